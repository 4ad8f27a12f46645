package pipeline

import (
	"mime"
	"path/filepath"
	"strings"
)

// categoryRules maps file extensions to a document category and the
// confidence assigned to that classification.
var categoryRules = map[string]struct {
	category   string
	confidence float64
}{
	".pdf":  {"document", 0.95},
	".doc":  {"document", 0.90},
	".docx": {"document", 0.90},
	".txt":  {"text", 0.90},
	".md":   {"text", 0.85},
	".csv":  {"spreadsheet", 0.90},
	".xls":  {"spreadsheet", 0.85},
	".xlsx": {"spreadsheet", 0.85},
	".png":  {"image", 0.95},
	".jpg":  {"image", 0.95},
	".jpeg": {"image", 0.95},
	".tiff": {"image", 0.90},
}

// Classify assigns a category and confidence to a file based on its
// extension. Unrecognized extensions get a low-confidence fallback.
func Classify(path string) (string, float64) {
	ext := strings.ToLower(filepath.Ext(path))
	if rule, ok := categoryRules[ext]; ok {
		return rule.category, rule.confidence
	}
	return "other", 0.50
}

// MimeType resolves the MIME type for a file by extension, falling back
// to application/octet-stream.
func MimeType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}

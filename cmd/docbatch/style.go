package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/avandermeer/docbatch/internal/batch"
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	styleStatus = map[batch.Status]lipgloss.Style{
		batch.StatusPending:        styleDim,
		batch.StatusValidating:     styleInfo,
		batch.StatusProcessing:     styleInfo,
		batch.StatusPaused:         styleWarn,
		batch.StatusCompleted:      styleSuccess,
		batch.StatusPartialSuccess: styleWarn,
		batch.StatusFailed:         styleError,
		batch.StatusRolledBack:     styleWarn,
	}
)

func renderStatus(s batch.Status) string {
	if style, ok := styleStatus[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

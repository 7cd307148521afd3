package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorPrimary = lipgloss.Color("#8B5CF6") // Violet
	ColorSuccess = lipgloss.Color("#10B981") // Emerald
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#6B7280") // Gray
)

// Styles renders console output. Colors are dropped when the writer is not
// a terminal.
type Styles struct {
	Prompt lipgloss.Style
	Result lipgloss.Style
	Error  lipgloss.Style
	Code   lipgloss.Style
	Muted  lipgloss.Style
}

// NewStyles creates styles for out
func NewStyles(out io.Writer) Styles {
	r := lipgloss.NewRenderer(out)
	return Styles{
		Prompt: r.NewStyle().Foreground(ColorPrimary).Bold(true),
		Result: r.NewStyle().Foreground(ColorSuccess),
		Error:  r.NewStyle().Foreground(ColorError),
		Code:   r.NewStyle().Foreground(ColorWarning).Bold(true),
		Muted:  r.NewStyle().Foreground(ColorMuted).Italic(true),
	}
}

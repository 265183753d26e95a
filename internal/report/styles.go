package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette, shared with the rest of the console output.
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#3B82F6"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

type styles struct {
	header lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	warn   lipgloss.Style
	info   lipgloss.Style
	muted  lipgloss.Style
}

// newStyles binds the palette to w. Writers that are not terminals get
// plain text.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header: r.NewStyle().Bold(true),
		pass:   r.NewStyle().Foreground(colorSuccess).Bold(true),
		fail:   r.NewStyle().Foreground(colorError).Bold(true),
		warn:   r.NewStyle().Foreground(colorWarning),
		info:   r.NewStyle().Foreground(colorInfo),
		muted:  r.NewStyle().Foreground(colorMuted),
	}
}

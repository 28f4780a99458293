package style

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Warnings
	Green   = lipgloss.Color("#2AFFAA") // Success
	Red     = lipgloss.Color("#FF5555") // Errors
	Blue    = lipgloss.Color("#3B82F6") // Info

	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
}

// DefaultPalette returns the default color palette
func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,
		Text:      Base2,
		TextMuted: Base01,
	}
}

// Styles used by the trade screen.
type Styles struct {
	Title     lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Box       lipgloss.Style
	LogsBox   lipgloss.Style
	Highlight lipgloss.Style
}

// DefaultStyles builds Styles from the default palette.
func DefaultStyles() Styles {
	p := DefaultPalette()
	return Styles{
		Title:     lipgloss.NewStyle().Foreground(p.Primary).Bold(true),
		Label:     lipgloss.NewStyle().Foreground(p.TextMuted).Width(12),
		Value:     lipgloss.NewStyle().Foreground(p.Text),
		Muted:     lipgloss.NewStyle().Foreground(p.TextMuted),
		Success:   lipgloss.NewStyle().Foreground(p.Success).Bold(true),
		Error:     lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(p.Warning),
		Info:      lipgloss.NewStyle().Foreground(p.Info),
		Box:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Primary).Padding(0, 1),
		LogsBox:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Info).Padding(0, 1).MarginTop(1),
		Highlight: lipgloss.NewStyle().Foreground(p.Secondary).Bold(true),
	}
}

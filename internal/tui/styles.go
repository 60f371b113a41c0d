package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	// Status colors
	Active  = lipgloss.Color("#95E1A3") // Green
	Warning = lipgloss.Color("#FFE66D") // Yellow
	Danger  = lipgloss.Color("#FF6B6B") // Red

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	Text      = lipgloss.Color("#FFFFFF")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	// Header
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			Padding(0, 1)

	// Subscription card
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 2)

	PlanStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Text)

	// QR block
	QRStyle = lipgloss.NewStyle().
		Padding(0, 1)

	MaskedStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Border(lipgloss.NormalBorder()).
			BorderForeground(Border).
			Padding(2, 6)

	CodeStyle = lipgloss.NewStyle().
			Foreground(TextMuted)

	// Usage stats
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Width(12)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true)

	// Degraded mode banner
	BannerStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Confirm modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// ExpiryStyle colors the days-left label
func ExpiryStyle(daysLeft int) lipgloss.Style {
	switch {
	case daysLeft <= 0:
		return lipgloss.NewStyle().Foreground(Danger).Bold(true)
	case daysLeft <= 3:
		return lipgloss.NewStyle().Foreground(Warning)
	default:
		return lipgloss.NewStyle().Foreground(Active)
	}
}

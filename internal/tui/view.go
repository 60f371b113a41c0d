package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/narodplus/internal/qr"
)

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var body string
	switch m.mode {
	case ModeHelp:
		body = m.renderHelp()
	case ModeConfirm:
		body = lipgloss.Place(
			m.width, m.height-2,
			lipgloss.Center, lipgloss.Center,
			m.renderConfirmModal(),
			lipgloss.WithWhitespaceChars(" "),
		)
	default:
		body = lipgloss.NewStyle().Height(m.height - 2).Render(m.renderScreen())
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatusBar())
}

// renderScreen renders the QR screen for the current state without the
// status bar. It is also used for one-shot plain output.
func (m Model) renderScreen() string {
	return RenderSnapshot(m.snap)
}

// RenderSnapshot renders snap as the QR screen body.
func RenderSnapshot(snap qr.Snapshot) string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render("Народный+") + "\n\n")

	switch snap.State {
	case qr.StateUninitialized, qr.StateCheckingActivity:
		s.WriteString(HelpStyle.Render("Loading subscription..."))
		return s.String()

	case qr.StateUnauthenticated:
		s.WriteString(ErrorStyle.Render("You are not signed in") + "\n")
		s.WriteString(HelpStyle.Render("Run 'narod auth login' to continue."))
		return s.String()

	case qr.StateNoSubscription:
		s.WriteString(PlanStyle.Render("No active subscription") + "\n")
		s.WriteString(HelpStyle.Render("Run 'narod subscription create' to get your discount code."))
		return s.String()
	}

	if snap.Subscription != nil {
		s.WriteString(renderCard(snap) + "\n\n")
	}

	switch snap.State {
	case qr.StateExpired:
		s.WriteString(ErrorStyle.Render("Subscription expired") + "\n")
		s.WriteString(HelpStyle.Render("Renew it with 'narod subscription create'."))
		return s.String()

	case qr.StateFetchingToken:
		if snap.Token == nil {
			s.WriteString(HelpStyle.Render("Fetching your code..."))
			return s.String()
		}
	}

	if snap.Degraded {
		s.WriteString(BannerStyle.Render("⚠ "+snap.Error+". Showing an offline code.") + "\n\n")
	}
	if snap.Token != nil {
		s.WriteString(renderCode(snap) + "\n\n")
	}
	if snap.Stats != nil {
		s.WriteString(renderStats(snap))
	}
	return s.String()
}

func renderCard(snap qr.Snapshot) string {
	sub := snap.Subscription
	content := PlanStyle.Render(sub.PlanName) + "  " +
		ExpiryStyle(snap.DaysLeft).Render(snap.ExpiryLabel) + "\n"
	content += HelpStyle.Render(fmt.Sprintf("Valid until %s  •  %d uses per day",
		sub.EndDate.Local().Format("02.01.2006"), sub.MaxUsagesPerDay))
	return CardStyle.Render(content)
}

func renderCode(snap qr.Snapshot) string {
	token := snap.Token
	if !snap.Reveal.Visible {
		hidden := MaskedStyle.Render("Code hidden\n\nPress space to show")
		return hidden + "\n" + CodeStyle.Render(mask(token.Code))
	}

	block, err := RenderQR(token.Code)
	if err != nil {
		block = ErrorStyle.Render("Could not draw the QR code: " + err.Error())
	}
	var s strings.Builder
	s.WriteString(QRStyle.Render(block) + "\n")
	s.WriteString(CodeStyle.Render(truncate(token.Code, 48)) + "\n")
	s.WriteString(HelpStyle.Render(fmt.Sprintf("Hides in %ds", snap.Reveal.Countdown)))
	if !token.ValidTo.IsZero() {
		s.WriteString(HelpStyle.Render("  •  valid until " + token.ValidTo.Local().Format("15:04 02.01")))
	}
	if snap.Refreshing {
		s.WriteString("\n" + HelpStyle.Render("Issuing a new code..."))
	}
	return s.String()
}

func renderStats(snap qr.Snapshot) string {
	stats := snap.Stats
	row := func(label string, value string) string {
		return StatLabelStyle.Render(label) + StatValueStyle.Render(value) + "\n"
	}

	var s strings.Builder
	today := fmt.Sprintf("%d / %d", stats.UsagesToday, stats.MaxUsagesPerDay)
	if snap.LimitReached {
		today = ErrorStyle.Render(today + "  daily limit reached")
	}
	s.WriteString(row("Today", today))
	s.WriteString(row("This week", fmt.Sprint(stats.UsagesThisWeek)))
	s.WriteString(row("This month", fmt.Sprint(stats.UsagesThisMonth)))
	s.WriteString(row("Total", fmt.Sprint(stats.TotalUsages)))
	s.WriteString(row("Remaining", fmt.Sprint(stats.RemainingUses)))
	return s.String()
}

func (m Model) renderStatusBar() string {
	help := m.help.View(keys)
	if m.message != "" {
		help = m.message
	}
	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderConfirmModal() string {
	content := lipgloss.NewStyle().Bold(true).Render("New code") + "\n\n"
	content += qr.RefreshPrompt + "\n\n"
	content += HelpStyle.Render("y:confirm  n:cancel")
	return ModalStyle.Width(60).Render(content)
}

func (m Model) renderHelp() string {
	m.help.ShowAll = true
	content := lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("Keyboard Shortcuts") + "\n\n"
	content += m.help.View(keys) + "\n\n"
	content += HelpStyle.Render("Press any key to close")
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, ModalStyle.Render(content))
}

package tui

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/narodplus/internal/apperr"
	"github.com/existflow/narodplus/internal/qr"
)

// tickMsg is sent every second for the reveal countdown
type tickMsg time.Time

// expiryMsg triggers the token expiry check
type expiryMsg time.Time

// updatedMsg is sent when the controller published a change
type updatedMsg struct{}

// mountedMsg is sent when the initial load finished
type mountedMsg struct{}

// refreshedMsg carries the outcome of a manual refresh
type refreshedMsg struct {
	refreshed bool
	err       error
}

// Init mounts the controller and starts the timers
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.mountCmd(), tickCmd(), expiryCmd(m.expiryEvery), m.waitForUpdate())
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func expiryCmd(every time.Duration) tea.Cmd {
	return tea.Every(every, func(t time.Time) tea.Msg {
		return expiryMsg(t)
	})
}

// waitForUpdate listens for controller changes
func (m Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	return func() tea.Msg {
		<-m.updates
		return updatedMsg{}
	}
}

func (m Model) mountCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.Mount(ctx)
		return mountedMsg{}
	}
}

func (m Model) startRefresh() (tea.Model, tea.Cmd) {
	m.busy = true
	m.message = "Issuing a new code..."
	return m, m.refreshCmd()
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		refreshed, err := ctrl.RefreshToken(ctx, qr.AutoConfirm)
		return refreshedMsg{refreshed: refreshed, err: err}
	}
}

func (m Model) usageCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.RefreshUsage(ctx)
		return updatedMsg{}
	}
}

func (m Model) checkExpiryCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.CheckExpiry(ctx)
		return nil
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.ctrl.Tick()
		m.snap = m.ctrl.Snapshot()
		return m, tickCmd()

	case expiryMsg:
		return m, tea.Batch(m.checkExpiryCmd(), expiryCmd(m.expiryEvery))

	case updatedMsg:
		m.snap = m.ctrl.Snapshot()
		return m, m.waitForUpdate()

	case mountedMsg:
		m.snap = m.ctrl.Snapshot()
		return m, nil

	case refreshedMsg:
		m.busy = false
		m.snap = m.ctrl.Snapshot()
		switch {
		case msg.err != nil:
			m.message = errorText(msg.err)
		case msg.refreshed:
			m.message = "New code issued"
		default:
			m.message = ""
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeConfirm:
			return m.handleConfirmKeys(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}
		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Reveal):
		if m.snap.Token == nil {
			return m, nil
		}
		if m.snap.Reveal.Visible {
			m.ctrl.Hide()
		} else {
			m.ctrl.Reveal()
		}
		m.snap = m.ctrl.Snapshot()

	case key.Matches(msg, keys.Refresh):
		if m.busy {
			return m, nil
		}
		if m.snap.Subscription == nil {
			m.message = "Subscription data not found"
			return m, nil
		}
		if !m.confirmRefresh {
			return m.startRefresh()
		}
		m.mode = ModeConfirm

	case key.Matches(msg, keys.Usage):
		if m.snap.Subscription != nil {
			m.message = "Reloading usage..."
			return m, m.usageCmd()
		}

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp
	}

	return m, nil
}

// handleConfirmKeys answers the refresh prompt
func (m Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Confirm):
		m.mode = ModeNormal
		return m.startRefresh()

	case key.Matches(msg, keys.Cancel), key.Matches(msg, keys.Quit):
		m.mode = ModeNormal
	}
	return m, nil
}

func errorText(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

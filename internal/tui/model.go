package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/existflow/narodplus/internal/logger"
	"github.com/existflow/narodplus/internal/qr"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeConfirm
	ModeHelp
)

// Model is the QR screen
type Model struct {
	ctx  context.Context
	ctrl *qr.Controller

	// updates is fed by the controller bus and drained by waitForUpdate.
	updates     chan struct{}
	expiryEvery time.Duration
	// confirmRefresh asks before a manual refresh invalidates the shown code.
	confirmRefresh bool

	snap qr.Snapshot

	// UI state
	width   int
	height  int
	mode    Mode
	help    help.Model
	busy    bool
	message string
}

// NewModel creates the screen for ctrl. Blocking controller calls run as
// commands bound to ctx.
func NewModel(ctx context.Context, ctrl *qr.Controller, expiryEvery time.Duration, confirmRefresh bool) Model {
	logger.Info("Initializing QR screen")

	if expiryEvery <= 0 {
		expiryEvery = qr.DefaultConfig().ExpiryCheck
	}

	m := Model{
		ctx:            ctx,
		ctrl:           ctrl,
		updates:        make(chan struct{}, 1),
		expiryEvery:    expiryEvery,
		confirmRefresh: confirmRefresh,
		snap:           ctrl.Snapshot(),
		help:           help.New(),
	}

	updates := m.updates
	if err := ctrl.Bus().Subscribe(qr.TopicUpdated, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}); err != nil {
		logger.Error("Failed to subscribe to QR updates", logger.Err(err))
	}

	return m
}

// Snapshot returns the state last rendered.
func (m Model) Snapshot() qr.Snapshot {
	return m.snap
}

// Mode returns the current UI mode.
func (m Model) Mode() Mode {
	return m.mode
}

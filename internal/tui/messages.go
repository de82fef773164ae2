package tui

import (
	"relayconf/internal/core"
	"relayconf/internal/storage/models"
)

// Snapshot messages. Coordinators push these from their delivery goroutines
// through program.Send.

type groupsChangedMsg struct {
	groups []*models.Group
}

type configsChangedMsg struct{}

type dashboardChangedMsg struct{}

type editorChangedMsg struct{}

type countsLoadedMsg struct {
	counts map[int64]int
}

type settingsLoadedMsg struct {
	settings map[string]string
	err      error
}

// Write results.

type writeResultMsg struct {
	what string
	id   int64
	err  error
}

// Engine lifecycle messages.

type connectResultMsg struct {
	err error
}

type disconnectResultMsg struct {
	err error
}

// Status polling messages.

type statusTickMsg struct{}

type statusResultMsg struct {
	status *core.Status
}

// Settings update messages.

type settingSavedMsg struct {
	key string
	err error
}

type clearNotificationMsg struct {
	version int
}

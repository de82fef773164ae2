package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"relayconf/internal/repository"
	"relayconf/internal/storage"
	"relayconf/internal/storage/models"
	"relayconf/internal/viewstate"
)

const (
	writeTimeout  = 30 * time.Second
	engineTimeout = 15 * time.Second
)

// awaitWrite waits for a queued write and reports it. A nil ticket means
// nothing was queued.
func awaitWrite(t *repository.Ticket, what string) tea.Cmd {
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		err := t.Wait(ctx)
		return writeResultMsg{what: what, id: t.ID(), err: err}
	}
}

// loadCounts counts configurations per group for the groups tab.
func loadCounts(configs *repository.ConfigurationRepository, groups []*models.Group) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		counts := make(map[int64]int, len(groups))
		for _, g := range groups {
			list, err := configs.ForGroup(ctx, g.ID)
			if err != nil {
				continue
			}
			counts[g.ID] = len(list)
		}
		return countsLoadedMsg{counts: counts}
	}
}

// loadSettings fetches all application settings.
func loadSettings(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		settings, err := store.GetAllSettings(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// connect starts the engine on the active configuration.
func connect(d *viewstate.Dashboard) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		return connectResultMsg{err: d.Connect(ctx)}
	}
}

// disconnect stops the engine.
func disconnect(d *viewstate.Dashboard) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		return disconnectResultMsg{err: d.Disconnect(ctx)}
	}
}

// pollStatus fetches engine status.
func pollStatus(d *viewstate.Dashboard) tea.Cmd {
	return func() tea.Msg {
		return statusResultMsg{status: d.Status()}
	}
}

// statusTick returns a tea.Cmd that fires after 2 seconds.
func statusTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return statusTickMsg{}
	})
}

// saveSetting saves a single setting.
func saveSetting(store storage.Storage, key, value string) tea.Cmd {
	return func() tea.Msg {
		err := store.SetSetting(context.Background(), key, value)
		return settingSavedMsg{key: key, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}

package tui

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"relayconf/internal/core"
	"relayconf/internal/logging"
	"relayconf/internal/repository"
	"relayconf/internal/storage"
	"relayconf/internal/storage/models"
	"relayconf/internal/viewstate"
)

// Tab indices.
const (
	tabGroups   = 0
	tabConfigs  = 1
	tabStatus   = 2
	tabSettings = 3
	tabCount    = 4
)

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	store   storage.Storage
	groups  *repository.GroupRepository
	configs *repository.ConfigurationRepository
	engine  *core.Manager
	log     *logging.Logger

	// Coordinators push snapshots through program once it is attached.
	program  *tea.Program
	ready    chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	groupList  *viewstate.GroupList
	configList *viewstate.ConfigurationList
	dashboard  *viewstate.Dashboard
	follow     repository.Subscription

	defaultRelay int
	defaultSocks int

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool
	focused   bool

	connecting bool

	// Tab models.
	groupsTab   groupsModel
	configsTab  configsModel
	statusTab   statusModel
	settingsTab settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Storage storage.Storage
	Groups  *repository.GroupRepository
	Configs *repository.ConfigurationRepository
	// Engine is nil when no engine command is configured.
	Engine *core.Manager
	Log    *logging.Logger

	DefaultRelayPort int
	DefaultSocksPort int
}

// NewModel creates a new root Model and subscribes its coordinators.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	logger := deps.Log
	if logger == nil {
		logger = logging.Discard()
	}

	m := &Model{
		store:        deps.Storage,
		groups:       deps.Groups,
		configs:      deps.Configs,
		engine:       deps.Engine,
		log:          logger,
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
		defaultRelay: deps.DefaultRelayPort,
		defaultSocks: deps.DefaultSocksPort,
		activeTab:    tabGroups,
		spinner:      s,
		groupsTab:    newGroupsModel(),
		configsTab:   newConfigsModel(),
		statusTab:    newStatusModel(),
		settingsTab:  newSettingsModel(),
	}

	m.groupList = viewstate.NewGroupList(m.groups, func(groups []*models.Group) {
		m.send(groupsChangedMsg{groups: groups})
	})
	m.configList = viewstate.NewConfigurationList(m.groups, m.configs, 0, logger, func() {
		m.send(configsChangedMsg{})
	})
	m.configList.SetListener(&m.configsTab)
	m.dashboard = viewstate.NewDashboard(m.groups, m.configs, m.engine, func() {
		m.send(dashboardChangedMsg{})
	})
	if m.engine != nil {
		m.follow = m.engine.Follow(m.configs)
	}
	return m
}

// send forwards a coordinator notification into the event loop. It drops
// msg once the model is closed, attached or not.
func (m *Model) send(msg tea.Msg) {
	select {
	case <-m.ready:
	case <-m.done:
		return
	}
	if m.program != nil {
		m.program.Send(msg)
	}
}

func (m *Model) attach(p *tea.Program) {
	m.program = p
	close(m.ready)
}

// close ends every screen. Pending reorder edits are committed.
func (m *Model) close() {
	m.doneOnce.Do(func() { close(m.done) })
	m.configsTab.closeEditor()
	m.configList.Close()
	m.groupList.Close()
	m.dashboard.Close()
	if m.follow != nil {
		m.follow.Cancel()
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		loadSettings(m.store),
		pollStatus(m.dashboard),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.groupsTab.setSize(msg.Width, ch)
		m.configsTab.setSize(msg.Width, ch)
		m.statusTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

	// Snapshots.
	case groupsChangedMsg:
		m.groupsTab.setGroups(msg.groups)
		if !m.focused {
			// Start the configs tab on the active group.
			for _, g := range msg.groups {
				if g.Active {
					m.configList.Focus(g.ID)
					break
				}
			}
			m.focused = true
		}
		cmds = append(cmds, loadCounts(m.configs, msg.groups))
	case configsChangedMsg:
		m.configsTab.sync(m.configList)
		cmds = append(cmds, loadCounts(m.configs, m.groupsTab.groups))
	case dashboardChangedMsg:
		cmds = append(cmds, pollStatus(m.dashboard))
	case countsLoadedMsg:
		m.groupsTab.setCounts(msg.counts)
	case settingsLoadedMsg:
		if msg.err == nil {
			m.settingsTab.setSettings(msg.settings)
			for k, v := range msg.settings {
				m.applySetting(k, v)
			}
		}

	// Writes.
	case writeResultMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("%s failed: %v", msg.what, msg.err), true)
		} else {
			m.setNotification(msg.what, false)
		}

	// Engine.
	case connectResultMsg:
		m.connecting = false
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Connect failed: %v", msg.err), true)
		} else {
			m.setNotification("Connected", false)
		}
		cmds = append(cmds, pollStatus(m.dashboard), statusTick())
	case disconnectResultMsg:
		m.connecting = false
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Disconnect failed: %v", msg.err), true)
		} else {
			m.setNotification("Disconnected", false)
		}
		cmds = append(cmds, pollStatus(m.dashboard))

	// Status polling.
	case statusTickMsg:
		if m.running() {
			cmds = append(cmds, pollStatus(m.dashboard), statusTick())
		}
	case statusResultMsg:
		wasRunning := m.running()
		m.statusTab.updateStatus(msg)
		if wasRunning && !m.running() && !m.connecting {
			m.setNotification("Engine stopped", true)
		}

	// Settings.
	case settingSavedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Saved %s", msg.key), false)
		}

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	if m.connecting {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Delegate to active tab.
	switch {
	case m.activeTab == tabGroups:
		cmds = append(cmds, m.groupsTab.Update(msg, m))
	case m.activeTab == tabConfigs:
		cmds = append(cmds, m.configsTab.Update(msg, m))
	case m.activeTab == tabStatus:
		cmds = append(cmds, m.statusTab.Update(msg, m))
	case m.activeTab == tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) running() bool {
	return m.statusTab.status != nil && m.statusTab.status.Running
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	h := headerState{
		activeTab: m.activeTab,
		running:   m.running(),
		working:   m.connecting,
		unsaved:   m.configList.Dirty(),
	}
	if g := m.dashboard.ActiveGroup(); g != nil {
		h.activeGroup = g.Name
	}
	if st := m.statusTab.status; st != nil && st.Configuration != nil {
		h.relay = st.Configuration.Name
	}
	header := renderHeader(h, m.width)

	var content string
	switch m.activeTab {
	case tabGroups:
		content = m.groupsTab.View()
	case tabConfigs:
		content = m.configsTab.View(m)
	case tabStatus:
		content = m.statusTab.View(m.dashboard)
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	switch {
	case m.connecting:
		notif = notifSuccessStyle.Render(m.spinner.View() + " Working...")
	case m.notification != "" && m.notificationErr:
		notif = notifErrorStyle.Render("! " + m.notification)
	case m.notification != "":
		notif = notifSuccessStyle.Render("* " + m.notification)
	}

	helpText := renderHelpBar(m.activeTab, m.showHelp)
	footer := renderFooter(helpText, m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

// capturing reports whether the active tab is taking text or a confirmation.
func (m *Model) capturing() bool {
	switch m.activeTab {
	case tabGroups:
		return m.groupsTab.capturing()
	case tabConfigs:
		return m.configsTab.capturing()
	case tabSettings:
		return m.settingsTab.editing
	}
	return false
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.capturing() {
		return nil, false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return nil, true

	case key.Matches(msg, keys.TabNext):
		return m.switchTab((m.activeTab + 1) % tabCount), true

	case key.Matches(msg, keys.TabPrev):
		return m.switchTab((m.activeTab - 1 + tabCount) % tabCount), true

	case key.Matches(msg, keys.Connect):
		if m.connecting {
			return nil, true
		}
		if !m.dashboard.HasEngine() {
			m.setNotification("No engine configured", true)
			return nil, true
		}
		m.connecting = true
		return tea.Batch(connect(m.dashboard), m.spinner.Tick), true

	case key.Matches(msg, keys.Disconnect):
		if m.running() && !m.connecting {
			m.connecting = true
			return tea.Batch(disconnect(m.dashboard), m.spinner.Tick), true
		}
		return nil, true

	case key.Matches(msg, keys.Refresh):
		return loadSettings(m.store), true
	}

	return nil, false
}

// switchTab moves to tab, committing reorder edits when leaving the configs tab.
func (m *Model) switchTab(tab int) tea.Cmd {
	var cmd tea.Cmd
	if m.activeTab == tabConfigs && tab != tabConfigs {
		cmd = m.configsTab.commit(m)
	}
	m.activeTab = tab
	if tab == tabStatus {
		return tea.Batch(cmd, pollStatus(m.dashboard))
	}
	return cmd
}

// openGroup focuses the configs tab on group id.
func (m *Model) openGroup(id int64) {
	m.configList.Focus(id)
	m.focused = true
	m.activeTab = tabConfigs
	m.configsTab.lastEvent = ""
	m.configsTab.sync(m.configList)
	m.configsTab.table.GotoTop()
}

// applySetting keeps values the TUI reads from settings current.
func (m *Model) applySetting(key, value string) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	switch key {
	case "default_relay_port":
		m.defaultRelay = n
	case "default_socks_port":
		m.defaultSocks = n
	}
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// Run shows the TUI until the user quits, then ends every screen.
func Run(deps Deps) error {
	m := NewModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.attach(p)
	defer m.close()

	_, err := p.Run()
	return err
}

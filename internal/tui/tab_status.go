package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"relayconf/internal/core"
	"relayconf/internal/viewstate"
)

type statusModel struct {
	width  int
	height int

	status *core.Status
}

func newStatusModel() statusModel {
	return statusModel{}
}

func (sm *statusModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
}

func (sm *statusModel) updateStatus(msg statusResultMsg) {
	sm.status = msg.status
}

func (sm *statusModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	return nil
}

func (sm *statusModel) View(d *viewstate.Dashboard) string {
	w := sm.width - 6
	if w < 30 {
		w = 30
	}

	active := sm.viewActive(d)
	engine := sm.viewEngine(d)

	if sm.width > 80 {
		halfW := (w - 4) / 2
		left := cardStyle.Width(halfW).Render(active)
		right := cardStyle.Width(halfW).Render(engine)
		return forceHeight(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right), sm.width, sm.height)
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		cardStyle.Width(w).Render(active),
		cardStyle.Width(w).Render(engine),
	)
	return forceHeight(content, sm.width, sm.height)
}

func (sm *statusModel) viewActive(d *viewstate.Dashboard) string {
	rows := []string{cardTitleStyle.Render("Active")}

	g := d.ActiveGroup()
	if g == nil {
		rows = append(rows,
			sm.row("Group", dimStyle.Render("none")),
			"",
			dimStyle.Render("Activate a group in the Groups tab (space)"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}
	rows = append(rows, sm.row("Group", g.Name))

	c := d.ActiveConfiguration()
	if c == nil {
		rows = append(rows,
			sm.row("Relay", dimStyle.Render("none")),
			"",
			dimStyle.Render("The active group has no configurations"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}
	rows = append(rows,
		sm.row("Relay", c.Name),
		sm.row("Host", c.Host),
		sm.row("Relay port", fmt.Sprintf("%d", c.RelayPort)),
		sm.row("SOCKS port", fmt.Sprintf("%d", c.SocksPort)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (sm *statusModel) viewEngine(d *viewstate.Dashboard) string {
	rows := []string{cardTitleStyle.Render("Engine")}

	if !d.HasEngine() {
		rows = append(rows,
			sm.row("Status", dimStyle.Render("not configured")),
			"",
			dimStyle.Render("Set RELAYCONF_ENGINE to enable connect"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	st := sm.status
	if st == nil || !st.Running {
		rows = append(rows,
			sm.row("Status", errorStyle.Render("Stopped")),
			"",
			dimStyle.Render("Press 'c' to connect"),
		)
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	rows = append(rows, sm.row("Status", successStyle.Render("Running")))
	if st.Configuration != nil {
		rows = append(rows, sm.row("Relay", st.Configuration.Name))
	}
	rows = append(rows, sm.row("Endpoint", st.Endpoint.String()))
	if st.PID > 0 {
		rows = append(rows, sm.row("PID", fmt.Sprintf("%d", st.PID)))
	}
	if !st.StartedAt.IsZero() {
		rows = append(rows,
			sm.row("Started", st.StartedAt.Format("15:04:05")),
			sm.row("Uptime", formatDuration(time.Since(st.StartedAt))),
		)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (sm *statusModel) row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"relayconf/internal/storage/models"
	"relayconf/internal/viewstate"
	pkgerrors "relayconf/pkg/errors"
)

// configsModel shows one group's configurations and edits their order.
type configsModel struct {
	table  table.Model
	items  []*models.Configuration
	width  int
	height int

	// lastEvent describes the most recent gesture, set by the session listener.
	lastEvent string

	editor *editorModel
}

func newConfigsModel() configsModel {
	cols := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Name", Width: 25},
		{Title: "Host", Width: 16},
		{Title: "Relay", Width: 7},
		{Title: "SOCKS", Width: 7},
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorRule).
		BorderBottom(true).
		Bold(true).
		Foreground(colorAccent)
	s.Selected = s.Selected.
		Foreground(colorText).
		Background(lipgloss.AdaptiveColor{Light: "#E6FFFA", Dark: "#234E52"}).
		Bold(true)
	t.SetStyles(s)

	return configsModel{table: t}
}

func (cm *configsModel) setSize(w, h int) {
	cm.width = w
	cm.height = h
	// Title, status line and hint line render around the table.
	th := h - 3
	if th < 1 {
		th = 1
	}
	cm.table.SetHeight(th)

	if w > 80 {
		cm.table.SetColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Name", Width: w/3 - 4},
			{Title: "Host", Width: 16},
			{Title: "Relay", Width: 7},
			{Title: "SOCKS", Width: 7},
		})
	}
	if cm.editor != nil {
		cm.editor.setSize(w)
	}
}

// capturing reports whether keys belong to this tab alone.
func (cm *configsModel) capturing() bool {
	return cm.editor != nil
}

// sync copies the working list out of the coordinator.
func (cm *configsModel) sync(l *viewstate.ConfigurationList) {
	cm.items = l.Items()
	rows := make([]table.Row, len(cm.items))
	for i, c := range cm.items {
		rows[i] = table.Row{
			fmt.Sprintf("%d", i+1),
			truncate(c.Name, 30),
			c.Host,
			fmt.Sprintf("%d", c.RelayPort),
			fmt.Sprintf("%d", c.SocksPort),
		}
	}
	cursor := cm.table.Cursor()
	cm.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = len(rows) - 1
	}
	if cursor < 0 {
		cursor = 0
	}
	cm.table.SetCursor(cursor)
}

func (cm *configsModel) selected() (int, *models.Configuration) {
	idx := cm.table.Cursor()
	if idx >= 0 && idx < len(cm.items) {
		return idx, cm.items[idx]
	}
	return -1, nil
}

// ItemMoved, ItemRemoved and ItemInserted follow the working list so the
// cursor stays on the item being handled.
func (cm *configsModel) ItemMoved(from, to int) {
	cm.lastEvent = fmt.Sprintf("moved %d → %d", from+1, to+1)
	cm.table.SetCursor(to)
}

func (cm *configsModel) ItemRemoved(index int) {
	cm.lastEvent = fmt.Sprintf("removed #%d (u to undo)", index+1)
}

func (cm *configsModel) ItemInserted(index int) {
	cm.lastEvent = fmt.Sprintf("restored #%d", index+1)
	cm.table.SetCursor(index)
}

func (cm *configsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if cm.editor != nil {
		return cm.editor.Update(msg, root)
	}

	l := root.configList
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.MoveUp):
			if i, c := cm.selected(); c != nil && i > 0 {
				return cm.apply(root, l.Move(i, i-1))
			}
			return nil

		case key.Matches(msg, keys.MoveDown):
			if i, c := cm.selected(); c != nil && i < len(cm.items)-1 {
				return cm.apply(root, l.Move(i, i+1))
			}
			return nil

		case key.Matches(msg, keys.Swipe):
			if i, c := cm.selected(); c != nil {
				return cm.apply(root, l.SwipeDelete(i))
			}
			return nil

		case key.Matches(msg, keys.Undo):
			err := l.Undo()
			if errors.Is(err, pkgerrors.ErrNothingToUndo) {
				root.setNotification("Nothing to undo", true)
				return nil
			}
			return cm.apply(root, err)

		case key.Matches(msg, keys.Save):
			return cm.commit(root)

		case key.Matches(msg, keys.Back):
			cmd := cm.commit(root)
			root.activeTab = tabGroups
			return cmd

		case key.Matches(msg, keys.New):
			if l.GroupID() == 0 {
				return nil
			}
			return cm.openEditor(root, 0)

		case key.Matches(msg, keys.Edit):
			if _, c := cm.selected(); c != nil {
				return cm.openEditor(root, c.ID)
			}
			return nil

		case key.Matches(msg, keys.DeleteGroup):
			g := l.Group()
			t, err := l.DeleteGroup()
			if err != nil {
				root.setNotification(err.Error(), true)
				return nil
			}
			cm.sync(l)
			if g != nil {
				return awaitWrite(t, "Deleted "+g.Name)
			}
			return awaitWrite(t, "Deleted group")
		}
	}

	var cmd tea.Cmd
	cm.table, cmd = cm.table.Update(msg)
	return cmd
}

func (cm *configsModel) apply(root *Model, err error) tea.Cmd {
	if err != nil {
		root.setNotification(err.Error(), true)
	}
	cm.sync(root.configList)
	return nil
}

// commit saves the working order and pending deletions, if any.
func (cm *configsModel) commit(root *Model) tea.Cmd {
	l := root.configList
	if !l.Dirty() {
		return nil
	}
	removed := l.WillDeleteCount()
	t, err := l.Commit()
	if err != nil {
		root.setNotification(err.Error(), true)
		return nil
	}
	cm.lastEvent = ""
	cm.sync(l)
	what := "Saved order"
	if removed > 0 {
		what = fmt.Sprintf("Saved order, removed %d", removed)
	}
	return awaitWrite(t, what)
}

func (cm *configsModel) openEditor(root *Model, configID int64) tea.Cmd {
	// Positions must be persisted before the editor can reuse them.
	cmd := cm.commit(root)
	cm.editor = newEditorModel(root, root.configList.GroupID(), configID)
	cm.editor.setSize(cm.width)
	return tea.Batch(cmd, cm.editor.init())
}

func (cm *configsModel) closeEditor() {
	if cm.editor != nil {
		cm.editor.close()
		cm.editor = nil
	}
}

func (cm *configsModel) View(root *Model) string {
	if cm.editor != nil {
		return forceHeight(cm.editor.View(), cm.width, cm.height)
	}

	l := root.configList
	var b strings.Builder

	g := l.Group()
	switch {
	case l.GroupID() == 0:
		b.WriteString(titleStyle.Render("Configurations"))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Open a group from the Groups tab (enter)."))
		return forceHeight(b.String(), cm.width, cm.height)
	case g == nil:
		b.WriteString(titleStyle.Render("Configurations"))
	default:
		title := g.Name
		if g.Active {
			title += " ●"
		}
		b.WriteString(titleStyle.Render(title))
	}
	b.WriteString("\n")

	// Status line.
	status := fmt.Sprintf("%d configurations", len(cm.items))
	if l.Dirty() {
		status += warningStyle.Render("  unsaved")
	}
	if n := l.WillDeleteCount(); n > 0 {
		status += errorStyle.Render(fmt.Sprintf("  %d to delete", n))
	}
	if cm.lastEvent != "" {
		status += dimStyle.Render("  " + cm.lastEvent)
	}
	b.WriteString(status + "\n")

	b.WriteString(cm.table.View())
	b.WriteString("\n")
	if l.Dirty() {
		b.WriteString(dimStyle.Render("Saved with s, or when you leave this tab."))
	}

	return forceHeight(b.String(), cm.width, cm.height)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}

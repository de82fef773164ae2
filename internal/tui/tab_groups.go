package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"relayconf/internal/storage/models"
)

// groupItem implements list.Item for the groups list.
type groupItem struct {
	group       *models.Group
	configCount int
}

func (i groupItem) Title() string       { return i.group.Name }
func (i groupItem) FilterValue() string { return i.group.Name }
func (i groupItem) Description() string {
	parts := []string{fmt.Sprintf("%d configs", i.configCount)}
	if i.group.Active {
		parts = append(parts, "active")
	}
	return strings.Join(parts, " | ")
}

// groupItemDelegate renders each group item.
type groupItemDelegate struct{}

func (d groupItemDelegate) Height() int                             { return 2 }
func (d groupItemDelegate) Spacing() int                            { return 0 }
func (d groupItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d groupItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	gi, ok := item.(groupItem)
	if !ok {
		return
	}

	title := gi.Title()
	if gi.group.Active {
		title = "● " + title
	} else {
		title = "  " + title
	}
	desc := dimStyle.PaddingLeft(4).Render(gi.Description())

	switch {
	case index == m.Index():
		title = selectedRowStyle.Render("> " + title)
	case gi.group.Active:
		title = activeRowStyle.Render("  " + title)
	default:
		title = textStyle.Render("  " + title)
	}

	fmt.Fprintf(w, "%s\n%s", title, desc)
}

type groupPrompt int

const (
	promptNone groupPrompt = iota
	promptNew
	promptRename
	promptDelete
)

// groupsModel manages the groups tab.
type groupsModel struct {
	list   list.Model
	groups []*models.Group
	counts map[int64]int
	width  int
	height int

	prompt groupPrompt
	target *models.Group
	input  textinput.Model
}

func newGroupsModel() groupsModel {
	l := list.New(nil, groupItemDelegate{}, 0, 0)
	l.Title = "Groups"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.FilterPrompt = promptStyle
	l.Styles.FilterCursor = promptStyle

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle

	return groupsModel{list: l, counts: map[int64]int{}, input: ti}
}

func (gm *groupsModel) setSize(w, h int) {
	gm.width = w
	gm.height = h
	gm.list.SetSize(w, h-2)
	gm.input.Width = w / 2
}

// capturing reports whether keys belong to this tab alone.
func (gm *groupsModel) capturing() bool {
	return gm.prompt != promptNone || gm.list.FilterState() == list.Filtering
}

func (gm *groupsModel) setGroups(groups []*models.Group) {
	gm.groups = groups
	gm.refreshItems()
}

func (gm *groupsModel) setCounts(counts map[int64]int) {
	gm.counts = counts
	gm.refreshItems()
}

func (gm *groupsModel) refreshItems() {
	items := make([]list.Item, len(gm.groups))
	for i, g := range gm.groups {
		items[i] = groupItem{group: g, configCount: gm.counts[g.ID]}
	}
	gm.list.SetItems(items)
}

func (gm *groupsModel) selectedGroup() *models.Group {
	item := gm.list.SelectedItem()
	if item == nil {
		return nil
	}
	gi, ok := item.(groupItem)
	if !ok {
		return nil
	}
	return gi.group
}

func (gm *groupsModel) openPrompt(p groupPrompt, target *models.Group) tea.Cmd {
	gm.prompt = p
	gm.target = target
	if p == promptDelete {
		return nil
	}
	value := ""
	if target != nil {
		value = target.Name
	}
	gm.input.SetValue(value)
	gm.input.CursorEnd()
	gm.input.Focus()
	return textinput.Blink
}

func (gm *groupsModel) closePrompt() {
	gm.prompt = promptNone
	gm.target = nil
	gm.input.Blur()
}

func (gm *groupsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if gm.prompt != promptNone {
		return gm.updatePrompt(msg, root)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// When filtering, pass all keys to list.
		if gm.list.FilterState() == list.Filtering {
			var cmd tea.Cmd
			gm.list, cmd = gm.list.Update(msg)
			return cmd
		}

		switch {
		case key.Matches(msg, keys.Enter):
			if g := gm.selectedGroup(); g != nil {
				root.openGroup(g.ID)
				return func() tea.Msg { return tea.ClearScreen() }
			}

		case key.Matches(msg, keys.Toggle):
			if g := gm.selectedGroup(); g != nil {
				t, err := root.groupList.Toggle(g)
				if err != nil {
					root.setNotification(err.Error(), true)
					return nil
				}
				what := "Activated " + g.Name
				if g.Active {
					what = "Deactivated " + g.Name
				}
				return awaitWrite(t, what)
			}

		case key.Matches(msg, keys.New):
			return gm.openPrompt(promptNew, nil)

		case key.Matches(msg, keys.Rename):
			if g := gm.selectedGroup(); g != nil {
				return gm.openPrompt(promptRename, g)
			}

		case key.Matches(msg, keys.DeleteGroup):
			if g := gm.selectedGroup(); g != nil {
				return gm.openPrompt(promptDelete, g)
			}
		}
	}

	var cmd tea.Cmd
	gm.list, cmd = gm.list.Update(msg)
	return cmd
}

func (gm *groupsModel) updatePrompt(msg tea.Msg, root *Model) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		gm.input, cmd = gm.input.Update(msg)
		return cmd
	}

	if key.Matches(km, keys.Back) {
		gm.closePrompt()
		return nil
	}

	if gm.prompt == promptDelete {
		target := gm.target
		gm.closePrompt()
		if km.String() != "y" && km.String() != "Y" {
			return nil
		}
		t, err := root.groupList.Delete(target)
		if err != nil {
			root.setNotification(err.Error(), true)
			return nil
		}
		return awaitWrite(t, "Deleted "+target.Name)
	}

	if km.String() != "enter" {
		var cmd tea.Cmd
		gm.input, cmd = gm.input.Update(msg)
		return cmd
	}

	name := strings.TrimSpace(gm.input.Value())
	prompt, target := gm.prompt, gm.target
	gm.closePrompt()

	switch prompt {
	case promptNew:
		t, err := root.groupList.Insert(name)
		if err != nil {
			root.setNotification(err.Error(), true)
			return nil
		}
		return awaitWrite(t, "Created "+name)
	case promptRename:
		t, err := root.groupList.Rename(target, name)
		if err != nil {
			root.setNotification(err.Error(), true)
			return nil
		}
		return awaitWrite(t, "Renamed to "+name)
	}
	return nil
}

func (gm *groupsModel) View() string {
	var b strings.Builder
	b.WriteString(gm.list.View())
	b.WriteString("\n")

	switch gm.prompt {
	case promptNew:
		b.WriteString(dimStyle.Render("New group name (enter to save, esc to cancel)") + "\n")
		b.WriteString(gm.input.View())
	case promptRename:
		b.WriteString(dimStyle.Render("Rename "+gm.target.Name+" (enter to save, esc to cancel)") + "\n")
		b.WriteString(gm.input.View())
	case promptDelete:
		b.WriteString(warningStyle.Render(fmt.Sprintf("Delete '%s' and its %d configurations? [y/N]",
			gm.target.Name, gm.counts[gm.target.ID])))
	}

	return forceHeight(b.String(), gm.width, gm.height)
}

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"relayconf/internal/viewstate"
)

var editorLabels = []string{"Name", "Host", "Relay port", "SOCKS port"}

// editorModel is the add/edit configuration form shown over the configs tab.
type editorModel struct {
	editor *viewstate.ConfigurationEditor
	inputs []textinput.Model
	focus  int
	loaded bool
	err    string
	width  int
}

func newEditorModel(root *Model, groupID, configID int64) *editorModel {
	em := &editorModel{}
	em.editor = viewstate.NewConfigurationEditor(root.groups, root.configs, groupID, configID, func() {
		root.send(editorChangedMsg{})
	})

	for i := range editorLabels {
		ti := textinput.New()
		ti.CharLimit = 64
		ti.Prompt = ""
		ti.TextStyle = textStyle
		if i >= 2 {
			ti.CharLimit = 5
		}
		em.inputs = append(em.inputs, ti)
	}

	if em.editor.IsNew() {
		em.fill(em.editor.Form(root.defaultRelay, root.defaultSocks))
		em.loaded = true
	}
	return em
}

func (em *editorModel) init() tea.Cmd {
	em.inputs[0].Focus()
	return textinput.Blink
}

func (em *editorModel) setSize(w int) {
	em.width = w
	for i := range em.inputs {
		em.inputs[i].Width = w / 2
	}
}

func (em *editorModel) fill(f viewstate.Form) {
	em.inputs[0].SetValue(f.Name)
	em.inputs[1].SetValue(f.Host)
	em.inputs[2].SetValue(f.RelayPort)
	em.inputs[3].SetValue(f.SocksPort)
}

func (em *editorModel) form() viewstate.Form {
	return viewstate.Form{
		Name:      em.inputs[0].Value(),
		Host:      em.inputs[1].Value(),
		RelayPort: em.inputs[2].Value(),
		SocksPort: em.inputs[3].Value(),
	}
}

func (em *editorModel) setFocus(i int) tea.Cmd {
	em.inputs[em.focus].Blur()
	em.focus = (i + len(em.inputs)) % len(em.inputs)
	return em.inputs[em.focus].Focus()
}

func (em *editorModel) close() {
	em.editor.Close()
}

// snapshot handles a change pushed by the editor's live queries.
func (em *editorModel) snapshot(root *Model) {
	if em.editor.IsNew() {
		return
	}
	c := em.editor.Configuration()
	switch {
	case c == nil && em.loaded:
		root.configsTab.closeEditor()
		root.setNotification("Configuration was deleted", true)
	case c != nil && !em.loaded:
		em.fill(em.editor.Form(root.defaultRelay, root.defaultSocks))
		em.loaded = true
	}
}

func (em *editorModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	switch msg := msg.(type) {
	case editorChangedMsg:
		em.snapshot(root)
		return nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Back):
			root.configsTab.closeEditor()
			return nil
		case msg.String() == "tab" || msg.String() == "down":
			return em.setFocus(em.focus + 1)
		case msg.String() == "shift+tab" || msg.String() == "up":
			return em.setFocus(em.focus - 1)
		case msg.String() == "ctrl+d":
			t, err := em.editor.Delete()
			if err != nil {
				em.err = err.Error()
				return nil
			}
			name := em.inputs[0].Value()
			root.configsTab.closeEditor()
			return awaitWrite(t, "Deleted "+name)
		case msg.String() == "enter":
			if !em.loaded {
				return nil
			}
			t, err := em.editor.Save(em.form())
			if err != nil {
				em.err = err.Error()
				return nil
			}
			name := strings.TrimSpace(em.inputs[0].Value())
			root.configsTab.closeEditor()
			return awaitWrite(t, "Saved "+name)
		}
	}

	var cmd tea.Cmd
	em.inputs[em.focus], cmd = em.inputs[em.focus].Update(msg)
	return cmd
}

func (em *editorModel) View() string {
	var b strings.Builder

	title := "New configuration"
	if !em.editor.IsNew() {
		title = "Edit configuration"
	}
	if g := em.editor.Group(); g != nil {
		title += " in " + g.Name
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if !em.loaded {
		b.WriteString(dimStyle.Render("Loading..."))
		return b.String()
	}

	for i, label := range editorLabels {
		var l string
		if i == em.focus {
			l = selectedLabelStyle.Width(14).Render("> " + label)
		} else {
			l = labelStyle.Width(14).Render("  " + label)
		}
		b.WriteString(l + em.inputs[i].View() + "\n")
	}

	b.WriteString("\n")
	if em.err != "" {
		b.WriteString(errorStyle.Render(em.err) + "\n")
	}
	hint := "enter save | tab next field | esc cancel"
	if !em.editor.IsNew() {
		hint += " | ctrl+d delete"
	}
	b.WriteString(dimStyle.Render(hint))
	return b.String()
}

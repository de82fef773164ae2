package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"relayconf/internal/logging"
	"relayconf/internal/storage/models"
)

// preference is one row of the settings screen. Rows with choices cycle;
// the others are typed.
type preference struct {
	key     string
	label   string
	hint    string
	def     string
	choices []string
	check   func(string) error
}

var preferences = []preference{
	{
		key: "default_relay_port", label: "Relay port", def: "7000",
		hint:  "prefilled for new configurations",
		check: func(v string) error { _, err := models.ParsePort(v); return err },
	},
	{
		key: "default_socks_port", label: "SOCKS port", def: "8090",
		hint:  "prefilled for new configurations",
		check: func(v string) error { _, err := models.ParsePort(v); return err },
	},
	{
		key: "log_level", label: "Log level", def: "info",
		hint:    "read at startup when no flag or variable sets it",
		choices: []string{"debug", "info", "warn", "error"},
		check:   func(v string) error { _, err := logging.ParseLevel(v); return err },
	},
}

type settingsModel struct {
	values  map[string]string
	cursor  int
	editing bool
	input   textinput.Model
	err     string
	width   int
	height  int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 5
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = textStyle
	return settingsModel{values: map[string]string{}, input: ti}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width, sm.height = w, h
	sm.input.Width = w / 3
}

func (sm *settingsModel) setSettings(s map[string]string) {
	if s == nil {
		s = map[string]string{}
	}
	sm.values = s
}

func (sm *settingsModel) value(p preference) string {
	if v, ok := sm.values[p.key]; ok && v != "" {
		return v
	}
	return p.def
}

// store validates v, records it, and returns the command that persists it.
func (sm *settingsModel) store(root *Model, p preference, v string) tea.Cmd {
	if err := p.check(v); err != nil {
		sm.err = err.Error()
		return nil
	}
	sm.err = ""
	sm.values[p.key] = v
	root.applySetting(p.key, v)
	return saveSetting(root.store, p.key, v)
}

func (sm *settingsModel) cycle(root *Model, p preference, step int) tea.Cmd {
	cur := 0
	for i, c := range p.choices {
		if c == sm.value(p) {
			cur = i
		}
	}
	n := len(p.choices)
	return sm.store(root, p, p.choices[(cur+step+n)%n])
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	km, ok := msg.(tea.KeyMsg)
	if sm.editing {
		return sm.updateInput(msg, km, ok, root)
	}
	if !ok {
		return nil
	}

	p := preferences[sm.cursor]
	switch km.String() {
	case "up", "k":
		sm.cursor = (sm.cursor - 1 + len(preferences)) % len(preferences)
		sm.err = ""
	case "down", "j":
		sm.cursor = (sm.cursor + 1) % len(preferences)
		sm.err = ""
	case "left", "h":
		if p.choices != nil {
			return sm.cycle(root, p, -1)
		}
	case "right", "l":
		if p.choices != nil {
			return sm.cycle(root, p, 1)
		}
	case "x":
		return sm.store(root, p, p.def)
	case "enter":
		if p.choices != nil {
			return sm.cycle(root, p, 1)
		}
		sm.editing = true
		sm.err = ""
		sm.input.SetValue(sm.value(p))
		sm.input.CursorEnd()
		sm.input.Focus()
		return textinput.Blink
	}
	return nil
}

func (sm *settingsModel) updateInput(msg tea.Msg, km tea.KeyMsg, isKey bool, root *Model) tea.Cmd {
	if isKey {
		switch {
		case key.Matches(km, keys.Back):
			sm.editing = false
			sm.err = ""
			sm.input.Blur()
			return nil
		case km.String() == "enter":
			cmd := sm.store(root, preferences[sm.cursor], strings.TrimSpace(sm.input.Value()))
			if sm.err == "" {
				sm.editing = false
				sm.input.Blur()
			}
			return cmd
		}
	}
	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n")

	for i, p := range preferences {
		v := sm.value(p)
		shown := dimStyle.Render(v)
		if v != p.def {
			shown = textStyle.Render(v) + warningStyle.Render(" *")
		}

		if i != sm.cursor {
			b.WriteString(labelStyle.Width(16).Render("  "+p.label) + shown + "\n")
			continue
		}

		row := selectedLabelStyle.Width(16).Render("> " + p.label)
		switch {
		case sm.editing:
			row += sm.input.View()
		case p.choices != nil:
			row += renderChoices(p.choices, v)
		default:
			row += shown
		}
		b.WriteString(row + "\n")

		switch {
		case sm.err != "":
			b.WriteString(errorStyle.PaddingLeft(4).Render(sm.err) + "\n")
		case !sm.editing:
			b.WriteString(dimStyle.PaddingLeft(4).Render(fmt.Sprintf("%s (default %s, x resets)", p.hint, p.def)) + "\n")
		}
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

func renderChoices(choices []string, current string) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		if c == current {
			parts[i] = selectedLabelStyle.Render("[" + c + "]")
		} else {
			parts[i] = dimStyle.Render(" " + c + " ")
		}
	}
	return strings.Join(parts, " ")
}

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var tabNames = []string{"Groups", "Configs", "Status", "Settings"}

// headerState is what the two header rows show besides the tabs.
type headerState struct {
	activeTab   int
	activeGroup string
	relay       string
	running     bool
	working     bool
	unsaved     bool
}

func renderHeader(h headerState, width int) string {
	left := logoStyle.Render("RELAYCONF")
	if h.activeGroup != "" {
		left += activeGroupStyle.Render("● " + h.activeGroup)
	}

	var pills []string
	if h.unsaved {
		pills = append(pills, unsavedPillStyle.Render("UNSAVED"))
	}
	switch {
	case h.working:
		pills = append(pills, workingPillStyle.Render("WORKING"))
	case h.running && h.relay != "":
		pills = append(pills, runningPillStyle.Render("▶ "+h.relay))
	case h.running:
		pills = append(pills, runningPillStyle.Render("RUNNING"))
	default:
		pills = append(pills, stoppedPillStyle.Render("STOPPED"))
	}
	right := strings.Join(pills, " ")

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	top := left + strings.Repeat(" ", gap) + right

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		if i == h.activeTab {
			tabs[i] = activeTabStyle.Render(name)
		} else {
			tabs[i] = inactiveTabStyle.Render(name)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		top,
		lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
		rule(width))
}

func rule(width int) string {
	if width < 0 {
		width = 0
	}
	return ruleStyle.Render(strings.Repeat("─", width))
}

func renderFooter(helpText string, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left, rule(width), helpBarStyle.Render(helpText))
}

// renderHelpBar shows the active tab's bindings, or every group with ? toggled.
func renderHelpBar(tab int, showFull bool) string {
	if !showFull {
		return helpLine(keys.TabHelp(tab), " | ")
	}
	var lines []string
	for _, group := range keys.FullHelp() {
		lines = append(lines, helpLine(group, "  "))
	}
	return strings.Join(lines, "\n")
}

func helpLine(bindings []key.Binding, sep string) string {
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		parts = append(parts, helpKeyStyle.Render(b.Help().Key)+" "+helpDescStyle.Render(b.Help().Desc))
	}
	return strings.Join(parts, helpSepStyle.Render(sep))
}

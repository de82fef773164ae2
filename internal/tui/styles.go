package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Adaptive so light and dark terminals both read.
var (
	colorAccent  = lipgloss.AdaptiveColor{Light: "#00707A", Dark: "#4FD1C5"}
	colorActive  = lipgloss.AdaptiveColor{Light: "#2F855A", Dark: "#68D391"}
	colorDanger  = lipgloss.AdaptiveColor{Light: "#C53030", Dark: "#FC8181"}
	colorPending = lipgloss.AdaptiveColor{Light: "#B7791F", Dark: "#F6E05E"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#A0AEC0", Dark: "#4A5568"}
	colorText    = lipgloss.AdaptiveColor{Light: "#1A202C", Dark: "#F7FAFC"}
	colorHint    = lipgloss.AdaptiveColor{Light: "#718096", Dark: "#A0AEC0"}
	colorRule    = lipgloss.AdaptiveColor{Light: "#E2E8F0", Dark: "#2D3748"}
)

var (
	logoStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	activeGroupStyle = lipgloss.NewStyle().Foreground(colorActive).PaddingLeft(2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Underline(true).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().Foreground(colorHint).Padding(0, 2)

	ruleStyle = lipgloss.NewStyle().Foreground(colorRule)
)

// Engine pills. The label is set by the caller.
var (
	pillStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	runningPillStyle = pillStyle.Background(colorActive)
	stoppedPillStyle = pillStyle.Background(colorMuted)
	workingPillStyle = pillStyle.Background(colorPending)
	unsavedPillStyle = pillStyle.Foreground(colorText).Background(colorPending)
)

var (
	helpBarStyle  = lipgloss.NewStyle().Foreground(colorHint).Padding(0, 1)
	helpKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorHint)
	helpSepStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	errorStyle   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(colorActive).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorPending)
	dimStyle     = lipgloss.NewStyle().Foreground(colorHint)
	textStyle    = lipgloss.NewStyle().Foreground(colorText)

	// Form rows shared by the editor and settings screens.
	labelStyle         = lipgloss.NewStyle().Foreground(colorText)
	selectedLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	promptStyle        = lipgloss.NewStyle().Foreground(colorAccent)

	// Group rows.
	selectedRowStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	activeRowStyle   = lipgloss.NewStyle().Foreground(colorActive)
)

// Dashboard cards.
var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRule).
			Padding(1, 2)

	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	cardLabelStyle = lipgloss.NewStyle().Foreground(colorHint).Width(14)
	cardValueStyle = lipgloss.NewStyle().Foreground(colorText)
)

var spinnerStyle = lipgloss.NewStyle().Foreground(colorPending)

var (
	notifSuccessStyle = lipgloss.NewStyle().Foreground(colorActive).Bold(true).Padding(0, 1)
	notifErrorStyle   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true).Padding(0, 1)
)

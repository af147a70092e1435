package tui

import "github.com/charmbracelet/lipgloss"

// matcherColorList is assigned to matchers in order of their first value
var matcherColorList = []lipgloss.Color{"14", "13", "12", "11", "10", "208", "207", "159", "156"}

var (
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	stoppingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Faint(true)
	stoppedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	defaultStyle  = lipgloss.NewStyle()
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	headerStyle = lipgloss.NewStyle().Background(lipgloss.Color("235")).Padding(0, 1).MarginBottom(1)
	statusStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")).Bold(true)
	helpStyle   = lipgloss.NewStyle().
			Background(lipgloss.Color("234")).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	matcherColors = func() []lipgloss.Style {
		styles := make([]lipgloss.Style, len(matcherColorList))
		for i, c := range matcherColorList {
			styles[i] = lipgloss.NewStyle().Foreground(c)
		}
		return styles
	}()
)

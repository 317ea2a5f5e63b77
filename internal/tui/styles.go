package tui

import "github.com/charmbracelet/lipgloss"

var (
	appStyle = lipgloss.NewStyle().Foreground(colorText)

	headerAppStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	headerBarStyle = lipgloss.NewStyle().
			Background(colorMantle).
			Foreground(colorText)

	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	paneStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Background(colorSurface0)
	statusErrBarStyle = lipgloss.NewStyle().
				Foreground(colorError).
				Background(colorSurface0)
	footerStyle = lipgloss.NewStyle().
			Background(colorMantle)

	cursorStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	busyStyle    = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	mismatchMark = lipgloss.NewStyle().Foreground(colorError).Render("≠")
)

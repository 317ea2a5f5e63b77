package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/routesync/core/dispatch"
)

func (a *App) View() string {
	if a.quitting {
		return "Goodbye\n"
	}
	header := a.renderHeader()
	status := a.renderStatusBar()
	footer := a.renderFooter()
	available := max(0, a.height-lipgloss.Height(header)-lipgloss.Height(status)-lipgloss.Height(footer))

	var body string
	if a.confirm {
		body = titleStyle.Render("Reset journal?") + "\nThis deletes every journaled command.\n[y] Yes  [n] No"
	} else {
		half := max(16, (a.width-4)/2)
		stacks := lipgloss.JoinHorizontal(lipgloss.Top,
			paneStyle.Width(half).Render(a.renderLocal()),
			paneStyle.Width(half).Render(a.renderRemote()),
		)
		body = strings.Join([]string{stacks, a.renderDispatcher(), a.renderActivity(), a.renderJournal()}, "\n")
	}
	body = fitHeight(body, available)
	view := strings.Join([]string{header, status, body, footer}, "\n")
	view = fitHeight(view, max(1, a.height))
	return appStyle.Width(max(1, a.width)).MaxWidth(max(1, a.width)).Render(view)
}

func (a *App) renderHeader() string {
	left := headerAppStyle.Render("routesync inspector")
	right := fmt.Sprintf("%s  template: %s", a.deps.Nav.Handle(), a.selected().Key)
	leftW, rightW := ansi.StringWidth(left), ansi.StringWidth(right)
	gap := 1
	if leftW+rightW+1 < a.width {
		gap = a.width - leftW - rightW
	}
	return renderBar(headerBarStyle, max(1, a.width), left+strings.Repeat(" ", gap)+right, colorMantle)
}

func (a *App) renderLocal() string {
	out := titleStyle.Render("Local stack")
	for i, rec := range a.local {
		marker := " "
		if i == a.cursor {
			marker = cursorStyle.Render("▶")
		}
		mark := " "
		if i >= len(a.remote) || a.remote[i] != rec.Key {
			mark = mismatchMark
		}
		line := fmt.Sprintf("%s%s %d %s %s", marker, mark, i, rec.Key, mutedStyle.Render(rec.ID.Short()))
		if rec.NativeOwned {
			line += mutedStyle.Render(" native")
		}
		out += "\n" + line
	}
	if len(a.local) == 0 {
		out += "\n" + mutedStyle.Render("empty")
	}
	return out
}

func (a *App) renderRemote() string {
	out := titleStyle.Render("Peer stack")
	for i, key := range a.remote {
		out += fmt.Sprintf("\n  %d %s", i, key)
	}
	if len(a.remote) == 0 {
		out += "\n" + mutedStyle.Render("empty")
	}
	if a.barHidden {
		out += "\n" + mutedStyle.Render("nav bar hidden")
	}
	return out
}

func (a *App) renderDispatcher() string {
	var state string
	switch a.state.State {
	case dispatch.Busy:
		state = busyStyle.Render(a.state.String())
	case dispatch.Failed:
		state = failedStyle.Render(a.state.String())
	default:
		state = idleStyle.Render(a.state.String())
	}
	return fmt.Sprintf("dispatcher %s  stale %d  in flight %d", state, a.stale, a.pending)
}

func (a *App) renderActivity() string {
	out := titleStyle.Render("Activity")
	if len(a.activity) == 0 {
		return out + "\n" + mutedStyle.Render("nothing yet")
	}
	for _, line := range a.activity {
		out += "\n" + ansi.Truncate(line, max(1, a.width), "…")
	}
	return out
}

func (a *App) renderJournal() string {
	if a.deps.Journal == nil {
		return ""
	}
	out := titleStyle.Render("Journal")
	for _, e := range a.journal {
		line := fmt.Sprintf("%-4d %-14s %-7s %8s", e.Generation, e.Op, e.Outcome, e.Duration.Round(time.Microsecond))
		if e.ErrorCode != nil {
			line += "  " + *e.ErrorCode
		}
		out += "\n" + line
	}
	return out
}

func (a *App) renderStatusBar() string {
	msg := strings.TrimSpace(a.status)
	if msg == "" {
		msg = "Ready"
	}
	if a.statusErr {
		return renderBar(statusErrBarStyle, max(1, a.width), msg, colorSurface0)
	}
	return renderBar(statusBarStyle, max(1, a.width), msg, colorSurface0)
}

func (a *App) renderFooter() string {
	bindings := a.keys.BindingsForScope(a.scope())
	keyStyle := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Background(colorMantle)
	descStyle := lipgloss.NewStyle().Foreground(colorMuted).Background(colorMantle)
	space := lipgloss.NewStyle().Background(colorMantle).Render(" ")
	sep := lipgloss.NewStyle().Background(colorMantle).Render("  ")

	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if len(b.Keys) == 0 {
			continue
		}
		parts = append(parts, keyStyle.Render(b.Keys[0])+space+descStyle.Render(b.Description))
	}
	return renderBar(footerStyle, max(1, a.width), strings.Join(parts, sep), colorMantle)
}

func renderBar(style lipgloss.Style, width int, text string, bg lipgloss.TerminalColor) string {
	line := strings.ReplaceAll(text, "\n", " ")
	line = ansi.Truncate(line, width, "")
	lineW := ansi.StringWidth(line)
	if lineW < width {
		line += strings.Repeat(" ", width-lineW)
	}
	return style.
		Background(bg).
		Width(width).
		MaxWidth(width).
		Render(line)
}

func fitHeight(s string, height int) string {
	if height <= 0 {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

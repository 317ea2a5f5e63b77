package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/navigator"
	"github.com/jask/routesync/core/peer/sim"
	"github.com/jask/routesync/core/stack"
	"github.com/jask/routesync/internal/database"
	"github.com/jask/routesync/internal/database/repository"
	"github.com/jask/routesync/internal/service"
	"github.com/jask/routesync/internal/templates"
)

type rig struct {
	app  *App
	nav  *navigator.Navigator
	peer *sim.Sim
	feed *Feed
}

func newRig(t *testing.T, withJournal bool) *rig {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	m, err := templates.Load("")
	require.NoError(t, err)
	r := &rig{peer: sim.New(sim.Config{}), feed: NewFeed(32)}
	r.nav = navigator.New(navigator.Config{
		Dispatch:  dispatch.Config{RegistrationTimeout: 200 * time.Millisecond, CommandTimeout: 200 * time.Millisecond},
		Store:     stack.Config{Debounce: 5 * time.Millisecond},
		Observers: []dispatch.Observer{r.feed},
	}, m.Templates(Content), r.peer, r.peer)
	t.Cleanup(r.nav.Close)
	_, err = r.nav.Start(ctx, m.InitialItems())
	require.NoError(t, err)

	deps := Deps{Nav: r.nav, Sim: r.peer, Feed: r.feed, Templates: m.Keys()}
	if withJournal {
		db, err := database.Prepare(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		deps.Journal = repository.NewJournalRepo(db)
		deps.Maintenance = &service.MaintenanceService{DB: db, Journal: deps.Journal}
	}
	r.app = New(ctx, deps)
	return r
}

func keyMsg(k string) tea.KeyMsg {
	if k == "tab" {
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func (r *rig) press(k string) tea.Cmd {
	_, cmd := r.app.Update(keyMsg(k))
	return cmd
}

// settle runs cmd and feeds its message back, following at most one
// follow-up command.
func (r *rig) settle(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	_, next := r.app.Update(cmd())
	if next != nil {
		r.app.Update(next())
	}
}

func (r *rig) localKeys() []string {
	keys := make([]string, len(r.app.local))
	for i, rec := range r.app.local {
		keys[i] = rec.Key
	}
	return keys
}

func TestPushAndPop(t *testing.T) {
	r := newRig(t, false)
	require.Equal(t, []string{"home"}, r.localKeys())

	r.press("tab")
	require.Equal(t, "inbox", r.app.selected().Key)
	r.settle(t, r.press("p"))
	require.Equal(t, []string{"home", "inbox"}, r.localKeys())
	require.Equal(t, []string{"home", "inbox"}, r.app.remote)
	require.False(t, r.app.statusErr)
	require.Contains(t, r.app.status, "pushed inbox")
	require.Contains(t, r.app.View(), "inbox")

	r.settle(t, r.press("o"))
	require.Equal(t, []string{"home"}, r.localKeys())
	require.Equal(t, 0, r.app.pending)
}

func TestFailedPushShowsError(t *testing.T) {
	r := newRig(t, false)
	require.Nil(t, r.press("f"))
	r.settle(t, r.press("p"))

	require.True(t, r.app.statusErr)
	require.Contains(t, r.app.status, "push")
	require.Equal(t, []string{"home"}, r.localKeys())
	require.Equal(t, dispatch.Failed, r.app.state.State)
	require.Contains(t, r.app.View(), "error(")
}

func TestSwipeBackReconciles(t *testing.T) {
	r := newRig(t, false)
	r.press("tab")
	r.settle(t, r.press("p"))
	r.settle(t, r.press("p"))
	require.Len(t, r.app.local, 3)

	require.Nil(t, r.press("s"))
	require.Eventually(t, func() bool { return len(r.nav.ActiveRoutes()) == 2 }, time.Second, 5*time.Millisecond)

	r.app.Update(tickMsg(time.Now()))
	require.Equal(t, []string{"home", "inbox"}, r.localKeys())
	require.Equal(t, r.localKeys(), r.app.remote)
}

func TestRemoveAndInsertAtCursor(t *testing.T) {
	r := newRig(t, false)
	r.press("tab")
	r.settle(t, r.press("p"))
	r.press("tab")
	r.settle(t, r.press("p"))
	require.Equal(t, []string{"home", "inbox", "message"}, r.localKeys())

	r.press("k")
	r.press("k")
	r.press("j")
	require.Equal(t, 1, r.app.cursor)
	r.settle(t, r.press("x"))
	require.Equal(t, []string{"home", "message"}, r.localKeys())

	r.settle(t, r.press("i"))
	require.Equal(t, []string{"home", "message", "message"}, r.localKeys())

	r.settle(t, r.press("v"))
	require.Equal(t, []string{"message", "message", "home"}, r.localKeys())
	require.Equal(t, r.localKeys(), r.app.remote)
}

func TestOptionsSentOnce(t *testing.T) {
	r := newRig(t, false)
	r.settle(t, r.press("t"))
	require.Contains(t, r.app.status, "options sent")
	r.settle(t, r.press("t"))
	require.Contains(t, r.app.status, "unchanged")
}

func TestActivityFeed(t *testing.T) {
	r := newRig(t, false)
	// Start produced a set-routes result.
	_, next := r.app.Update(r.feed.next()())
	require.NotNil(t, next)
	require.Len(t, r.app.activity, 1)
	require.Contains(t, r.app.activity[0], "set-routes ok")

	r.feed.Dropped(dispatch.OpPush, "busy")
	r.app.Update(r.feed.next()())
	require.Contains(t, r.app.View(), "push dropped: busy")
}

func TestJournalResetNeedsConfirmation(t *testing.T) {
	r := newRig(t, true)
	_, err := r.app.deps.Journal.Append(context.Background(), repository.CommandEntry{
		SessionID: "s", Generation: 1, Op: "push", Outcome: repository.OutcomeOK, StartedAt: time.Now(),
	})
	require.NoError(t, err)
	r.app.Update(r.app.loadJournal()())
	require.Len(t, r.app.journal, 1)

	require.Nil(t, r.press("X"))
	require.True(t, r.app.confirm)
	require.Contains(t, r.app.View(), "Reset journal?")
	require.Nil(t, r.press("p"))
	r.press("n")
	require.False(t, r.app.confirm)

	r.press("X")
	r.settle(t, r.press("y"))
	require.False(t, r.app.statusErr, r.app.status)
	require.Empty(t, r.app.journal)
}

func TestResetWithoutJournal(t *testing.T) {
	r := newRig(t, false)
	r.press("X")
	require.False(t, r.app.confirm)
	require.True(t, r.app.statusErr)
}

func TestViewFitsWindow(t *testing.T) {
	r := newRig(t, false)
	r.app.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	view := r.app.View()
	require.Equal(t, 20, lipgloss.Height(view))
	for _, line := range strings.Split(view, "\n") {
		require.LessOrEqual(t, lipgloss.Width(line), 80)
	}

	_, cmd := r.app.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	require.Equal(t, "Goodbye\n", r.app.View())
}

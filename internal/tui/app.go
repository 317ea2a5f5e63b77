// Package tui is the interactive inspector: it drives one navigator against
// the simulated peer and shows both stacks side by side.
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/navigator"
	"github.com/jask/routesync/core/peer/sim"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/internal/database/repository"
	"github.com/jask/routesync/internal/service"
)

const (
	activityLimit = 12
	journalLimit  = 8
	refreshEvery  = 250 * time.Millisecond
	hangFor       = 2 * time.Second
)

// Deps are the inspector's collaborators. Journal and Maintenance are
// optional.
type Deps struct {
	Nav         *navigator.Navigator
	Sim         *sim.Sim
	Feed        *Feed
	Templates   []string
	Journal     *repository.JournalRepo
	Maintenance *service.MaintenanceService
}

// App is the bubbletea model.
type App struct {
	ctx  context.Context
	deps Deps
	keys *KeyRegistry

	width    int
	height   int
	cursor   int
	template int
	confirm  bool
	quitting bool

	local     []route.Record
	remote    []string
	state     dispatch.Status
	stale     int64
	pending   int
	barHidden bool

	activity  []string
	journal   []repository.CommandEntry
	status    string
	statusErr bool
}

func New(ctx context.Context, deps Deps) *App {
	if deps.Feed == nil {
		deps.Feed = NewFeed(0)
	}
	a := &App{
		ctx:    ctx,
		deps:   deps,
		keys:   NewKeyRegistry(DefaultKeyBindings()),
		width:  100,
		height: 32,
	}
	a.refresh()
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.deps.Feed.next(), tick(), a.loadJournal())
}

type tickMsg time.Time

type doneMsg struct {
	action string
	note   string
	err    error
}

type journalMsg struct {
	entries []repository.CommandEntry
	err     error
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) scope() string {
	if a.confirm {
		return scopeConfirm
	}
	return scopeInspector
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case tickMsg:
		a.refresh()
		return a, tick()
	case activityMsg:
		a.activity = append(a.activity, string(m))
		if len(a.activity) > activityLimit {
			a.activity = a.activity[len(a.activity)-activityLimit:]
		}
		a.refresh()
		return a, a.deps.Feed.next()
	case doneMsg:
		a.pending--
		if m.err != nil {
			a.setError(fmt.Errorf("%s: %w", m.action, m.err))
		} else {
			a.setStatus(m.note)
		}
		a.refresh()
		return a, a.loadJournal()
	case journalMsg:
		if m.err != nil {
			a.setError(m.err)
			return a, nil
		}
		a.journal = m.entries
	case tea.KeyMsg:
		return a.handleKey(m)
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	action := a.keys.Action(m, a.scope())
	if a.confirm {
		switch action {
		case "confirm":
			a.confirm = false
			return a, a.run("reset journal", func(ctx context.Context) (string, error) {
				return "journal cleared", a.deps.Maintenance.Reset(ctx)
			})
		case "cancel":
			a.confirm = false
			a.setStatus("reset cancelled")
		}
		return a, nil
	}

	nav := a.deps.Nav
	switch action {
	case "quit":
		a.quitting = true
		return a, tea.Quit
	case "cursor-down":
		if a.cursor < len(a.local)-1 {
			a.cursor++
		}
	case "cursor-up":
		if a.cursor > 0 {
			a.cursor--
		}
	case "next-template":
		if len(a.deps.Templates) > 0 {
			a.template = (a.template + 1) % len(a.deps.Templates)
		}
	case "push":
		item := a.selected()
		return a, a.run("push", func(ctx context.Context) (string, error) {
			rec, err := nav.Push(ctx, item)
			return "pushed " + describe(rec), err
		})
	case "pop":
		return a, a.run("pop", func(ctx context.Context) (string, error) {
			return "popped", nav.Pop(ctx)
		})
	case "pop-to-root":
		return a, a.run("pop to root", func(ctx context.Context) (string, error) {
			return "back at root", nav.PopToRoot(ctx)
		})
	case "remove":
		index := a.cursor
		return a, a.run("remove", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("removed index %d", index), nav.RemoveRoute(ctx, index)
		})
	case "remove-previous":
		return a, a.run("remove previous", func(ctx context.Context) (string, error) {
			return "removed previous", nav.RemovePreviousRoute(ctx)
		})
	case "replace-current":
		item := a.selected()
		return a, a.run("replace", func(ctx context.Context) (string, error) {
			rec, err := nav.ReplaceCurrentRoute(ctx, item)
			return "replaced top with " + describe(rec), err
		})
	case "insert":
		item, index := a.selected(), a.cursor
		return a, a.run("insert", func(ctx context.Context) (string, error) {
			rec, err := nav.InsertRoute(ctx, item, index)
			return fmt.Sprintf("inserted %s at %d", describe(rec), index), err
		})
	case "reverse":
		return a, a.run("reverse", func(ctx context.Context) (string, error) {
			_, err := nav.SetRoutes(ctx, func(cur []route.Record) []route.Record {
				out := slices.Clone(cur)
				slices.Reverse(out)
				return out
			})
			return "stack reversed", err
		})
	case "swipe":
		if a.deps.Sim.UserPop(nav.Handle()) {
			a.setStatus("peer popped its top route")
		} else {
			a.setStatus("nothing to swipe back to")
		}
	case "touch-options":
		if len(a.local) == 0 {
			return a, nil
		}
		top := a.local[len(a.local)-1]
		return a, a.run("options", func(ctx context.Context) (string, error) {
			sent, err := nav.UpdateRouteOptions(ctx, top.ID, route.Options{"prompt": "edited"})
			if !sent {
				return "options unchanged, nothing sent", err
			}
			return "options sent for " + describe(top), err
		})
	case "toggle-bar":
		hidden := !a.barHidden
		a.barHidden = hidden
		return a, a.run("nav bar", func(ctx context.Context) (string, error) {
			return fmt.Sprintf("nav bar hidden=%t", hidden), nav.SetNavigationBarHidden(ctx, hidden, true)
		})
	case "fail-next":
		a.deps.Sim.FailNext(sim.OpPush, nil)
		a.setStatus("next push will fail on the peer")
	case "hang-next":
		a.deps.Sim.HangNext(sim.OpPush, hangFor)
		a.setStatus(fmt.Sprintf("next push will hang for %s", hangFor))
	case "drop-ack":
		a.deps.Sim.DropRegistrations(1)
		a.setStatus("next registration ack will be dropped")
	case "reset-journal":
		if a.deps.Maintenance == nil {
			a.setError(errors.New("journal disabled"))
			return a, nil
		}
		a.confirm = true
	}
	return a, nil
}

// run executes fn off the update loop. The dispatcher serialises the actual
// commands; several may be in flight from the inspector's point of view.
func (a *App) run(action string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	a.pending++
	ctx := a.ctx
	return func() tea.Msg {
		note, err := fn(ctx)
		return doneMsg{action: action, note: note, err: err}
	}
}

func (a *App) loadJournal() tea.Cmd {
	repo := a.deps.Journal
	if repo == nil {
		return nil
	}
	ctx := a.ctx
	return func() tea.Msg {
		entries, err := repo.Recent(ctx, journalLimit)
		return journalMsg{entries: entries, err: err}
	}
}

func (a *App) refresh() {
	a.local = a.deps.Nav.ActiveRoutes()
	a.remote = a.deps.Sim.Keys()
	a.state = a.deps.Nav.Status()
	a.stale = a.deps.Nav.Stale()
	if a.cursor >= len(a.local) {
		a.cursor = max(0, len(a.local)-1)
	}
}

func (a *App) selected() route.Item {
	if len(a.deps.Templates) == 0 {
		return route.Item{}
	}
	return route.Item{Key: a.deps.Templates[a.template]}
}

func (a *App) setStatus(msg string) {
	a.status = msg
	a.statusErr = false
}

func (a *App) setError(err error) {
	a.status = err.Error()
	a.statusErr = true
}

func describe(rec route.Record) string {
	if rec.ID == "" {
		return "-"
	}
	return fmt.Sprintf("%s(%s)", rec.Key, rec.ID.Short())
}

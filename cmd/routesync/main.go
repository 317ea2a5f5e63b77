package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jask/routesync/core/dispatch"
	"github.com/jask/routesync/core/navigator"
	"github.com/jask/routesync/core/peer"
	"github.com/jask/routesync/core/peer/sim"
	"github.com/jask/routesync/core/route"
	"github.com/jask/routesync/internal/config"
	"github.com/jask/routesync/internal/database"
	"github.com/jask/routesync/internal/database/repository"
	"github.com/jask/routesync/internal/logging"
	"github.com/jask/routesync/internal/metrics"
	"github.com/jask/routesync/internal/service"
	"github.com/jask/routesync/internal/templates"
	"github.com/jask/routesync/internal/tui"
)

func main() {
	restore := flag.Bool("restore", false, "start from the last journaled stack")
	writeManifest := flag.String("write-manifest", "", "write the built-in route manifest to `path` and exit")
	flag.Parse()

	if *writeManifest != "" {
		if err := templates.WriteDefault(*writeManifest); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(*restore); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(restore bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The terminal belongs to the inspector; logs only go to the file.
	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Close()
	log := logger.Logger
	slog.SetDefault(log)

	manifest, err := templates.Load(cfg.Inspector.Templates)
	if err != nil {
		return err
	}
	tmpls := manifest.Templates(tui.Content)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	feed := tui.NewFeed(64)

	navCfg := cfg.Navigator()
	navCfg.Logger = log
	navCfg.Hooks = m.Hooks()
	navCfg.Observers = []dispatch.Observer{m, feed}

	var (
		repo        *repository.JournalRepo
		maintenance *service.MaintenanceService
	)
	if cfg.Database.Journal {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("mkdir db dir: %w", err)
		}
		db, err := database.Prepare(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = repository.NewJournalRepo(db)
		maintenance = &service.MaintenanceService{DB: db, Journal: repo}

		session := uuid.NewString()
		journaler := service.NewJournaler(repo, session, log, 256)
		navCfg.Observers = append(navCfg.Observers, journaler)
		g.Go(func() error { return journaler.Run(ctx) })
		log.Info("journal enabled", "path", cfg.Database.Path, "session", session)
	}

	p := sim.New(sim.Config{
		Latency:   cfg.Inspector.PeerLatency,
		Constants: peer.Constants{NavBarHeight: 44, StatusBarHeight: 20, SafeAreaTop: 47, SafeAreaBottom: 34},
		Logger:    log,
	})
	nav := navigator.New(navCfg, tmpls, p, p)
	defer nav.Close()
	defer feed.Watch(nav.NavigatorEvents())()

	initial := manifest.InitialItems()
	if restore {
		initial = restoredItems(ctx, repo, tmpls, log, initial)
	}
	if _, err := nav.Start(ctx, initial); err != nil {
		return fmt.Errorf("start navigator: %w", err)
	}

	if cfg.Inspector.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Inspector.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
		log.Info("serving metrics", "addr", cfg.Inspector.MetricsAddr)
	}

	app := tui.New(ctx, tui.Deps{
		Nav:         nav,
		Sim:         p,
		Feed:        feed,
		Templates:   manifest.Keys(),
		Journal:     repo,
		Maintenance: maintenance,
	})
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("inspector: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func restoredItems(ctx context.Context, repo *repository.JournalRepo, tmpls route.Templates, log *slog.Logger, fallback []route.Item) []route.Item {
	if repo == nil {
		log.Warn("restore requested but the journal is disabled")
		return fallback
	}
	items, err := service.RestoreItems(ctx, repo, tmpls, log)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Info("nothing to restore, using manifest routes")
		return fallback
	case err != nil:
		log.Warn("restore failed, using manifest routes", "err", err)
		return fallback
	}
	log.Info("restored stack from journal", "routes", len(items))
	return items
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predictlabs/marketd/internal/notify"
	"github.com/predictlabs/marketd/internal/server"
	"github.com/predictlabs/marketd/internal/server/handler"
	"github.com/predictlabs/marketd/internal/server/ws"
	"github.com/predictlabs/marketd/internal/session"
	"github.com/predictlabs/marketd/internal/snapshot"
)

// ServeMode runs the full trading session: snapshot poll loop, transaction
// tracking with resume, the HTTP/WS API, and the optional daily archive.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	reader := snapshot.NewReader(deps.Engine, deps.SnapshotCache, deps.SignalBus, a.logger)
	quotes := session.NewQuoteService(deps.Engine, reader, a.logger)
	tracker := session.NewTracker(deps.Engine, deps.HandleStore, deps.SignalBus, deps.Notifier, a.logger).
		WithPatience(a.cfg.Session.ConfirmPatience.Duration)
	controller := session.NewController(deps.Engine, quotes, tracker, deps.HandleStore, reader, a.logger).
		WithLocks(deps.LockManager, a.cfg.Session.WriteLockTTL.Duration)

	// Snapshot poll loop.
	g.Go(func() error {
		return reader.Run(ctx, a.cfg.Session.PollInterval.Duration)
	})

	// Re-attach tracking to handles left in flight by a previous run.
	if err := tracker.Resume(ctx); err != nil {
		a.logger.ErrorContext(ctx, "resume in-flight handles failed",
			slog.String("error", err.Error()),
		)
	}

	// HTTP + WebSocket API.
	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && err != context.Canceled {
				return fmt.Errorf("app: ws hub: %w", err)
			}
			return nil
		})

		a.startHTTPServer(ctx, g, deps, reader, controller, hub)
	}

	// Daily archive of terminal handles.
	if deps.Archiver != nil {
		g.Go(func() error {
			a.runArchiveLoop(ctx, deps)
			return nil
		})
	}

	a.logger.InfoContext(ctx, "serve mode started")
	return g.Wait()
}

// WatchMode runs headless: the snapshot poll loop plus operator
// notifications, with no API server and no writes.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	reader := snapshot.NewReader(deps.Engine, deps.SnapshotCache, deps.SignalBus, a.logger)

	g.Go(func() error {
		return reader.Run(ctx, a.cfg.Session.PollInterval.Duration)
	})

	g.Go(func() error {
		a.watchMarket(ctx, deps, reader)
		return nil
	})

	a.logger.InfoContext(ctx, "watch mode started")
	return g.Wait()
}

// startHTTPServer builds the handlers and adds server start/stop goroutines
// to the errgroup.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	reader *snapshot.Reader,
	controller *session.Controller,
	hub *ws.Hub,
) {
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Health, a.logger),
		Market:  handler.NewMarketHandler(reader, a.logger),
		Quotes:  handler.NewQuoteHandler(controller.Quotes(), a.logger),
		Actions: handler.NewActionHandler(controller, deps.HandleStore, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runArchiveLoop exports the previous day's terminal handles once per day.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) {
	const interval = 24 * time.Hour

	archive := func() {
		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		n, err := deps.Archiver.ArchiveSettled(ctx, yesterday)
		if err != nil {
			a.logger.ErrorContext(ctx, "handle archive failed",
				slog.String("error", err.Error()),
			)
			return
		}
		if n > 0 {
			a.logger.InfoContext(ctx, "handles archived",
				slog.Int("count", n),
				slog.String("day", yesterday.Format("2006-01-02")),
			)
		}
	}

	archive()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			archive()
		}
	}
}

// watchMarket notifies operators when the market resolves and when snapshot
// refreshes go stale.
func (a *App) watchMarket(ctx context.Context, deps *Dependencies, reader *snapshot.Reader) {
	// Stale threshold: three missed polls.
	staleAfter := 3 * a.cfg.Session.PollInterval.Duration

	ticker := time.NewTicker(a.cfg.Session.PollInterval.Duration)
	defer ticker.Stop()

	var resolvedSeen, degradedSeen bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, ok := reader.Current()
		if !ok {
			continue
		}

		if snap.IsResolved && !resolvedSeen {
			resolvedSeen = true
			label := snap.WinningToken
			if o, found := snap.WinningOutcome(); found {
				label = snap.OutcomeLabels[o]
			}
			deps.Notifier.Notify(ctx, notify.EventResolved, "Market resolved",
				fmt.Sprintf("%s resolved: %s", snap.Question, label))
		}

		stale := time.Since(snap.FetchedAt) > staleAfter
		if stale && !degradedSeen {
			degradedSeen = true
			deps.Notifier.Notify(ctx, notify.EventDegraded, "Market state stale",
				fmt.Sprintf("no successful refresh since %s", snap.FetchedAt.UTC().Format(time.RFC3339)))
		}
		if !stale {
			degradedSeen = false
		}
	}
}

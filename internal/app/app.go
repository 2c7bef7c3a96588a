// Package app wires the goose bot together and manages its lifecycle: the
// poll loop, the health and metrics server, ledger backups and shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/goose-bot/internal/buildinfo"
	"github.com/garyellow/goose-bot/internal/config"
	"github.com/garyellow/goose-bot/internal/course"
	"github.com/garyellow/goose-bot/internal/directory"
	"github.com/garyellow/goose-bot/internal/forum"
	"github.com/garyellow/goose-bot/internal/goose"
	"github.com/garyellow/goose-bot/internal/ledger"
	"github.com/garyellow/goose-bot/internal/logger"
	"github.com/garyellow/goose-bot/internal/metrics"
	"github.com/garyellow/goose-bot/internal/r2client"
	"github.com/garyellow/goose-bot/internal/ratelimit"
	"github.com/garyellow/goose-bot/internal/scraper"
	"github.com/garyellow/goose-bot/internal/sentry"
	"github.com/garyellow/goose-bot/internal/snapshot"
	"github.com/garyellow/goose-bot/internal/storage"
)

// ErrLockHeld is returned by Initialize when another instance holds the lease.
var ErrLockHeld = errors.New("another goose-bot instance holds the lock")

// ErrLockLost is returned by Run when the lease was lost while running.
var ErrLockLost = errors.New("instance lock lost")

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg       *config.Config
	logger    *logger.Logger
	db        *storage.DB
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	ledger    *ledger.FileLedger
	forum     *forum.Client
	cache     *directory.Cached
	bot       *goose.Bot
	snapshots *snapshot.Manager // nil when R2 backup is disabled
	server    *http.Server

	ready    atomic.Bool
	lockLost atomic.Bool
	wg       sync.WaitGroup // Background jobs
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log = log.WithField("service", "goose-bot").WithField("bot", cfg.RedditUsername)
	host, _ := os.Hostname()
	if host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog calls pick up cycle and item ids through ContextHandler.
	slog.SetDefault(log.Logger)

	log.WithField("release", buildinfo.Release()).Info("Initializing goose-bot...")
	if cfg.BetterStackToken != "" {
		log.Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
		BotName:     cfg.RedditUsername,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed, error reporting disabled")
	} else if sentry.IsEnabled() {
		log.Info("Sentry error reporting enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var snapshots *snapshot.Manager
	if cfg.R2Enabled {
		store, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint(),
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, fmt.Errorf("r2: %w", err)
		}
		snapshots = snapshot.New(store, snapshot.Config{
			SnapshotKey: cfg.R2SnapshotKey,
			LockKey:     cfg.R2LockKey,
			LockTTL:     cfg.R2LockTTL,
			Host:        host,
		}, m, log)
	}

	replies, err := openLedger(ctx, snapshots, cfg.LedgerPath(), log)
	if err != nil {
		return nil, err
	}
	log.WithField("path", replies.Path()).WithField("entries", replies.Len()).Info("Reply ledger loaded")

	db, err := storage.New(ctx, cfg.SQLitePath(), cfg.CacheTTL)
	if err != nil {
		_ = replies.Close()
		releaseLock(snapshots, log)
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).WithField("cache_ttl", cfg.CacheTTL).Info("Database connected")

	forumClient := forum.NewClient(
		scraper.NewClient(scraper.Options{
			Module:       "forum",
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.HTTPMaxRetries,
			RetryInitial: config.HTTPRetryInitial,
			Pacing:       config.HTTPPacing,
			UserAgent:    cfg.RedditUserAgent,
			Metrics:      m,
		}),
		forum.Config{
			Credentials: forum.Credentials{
				ClientID:     cfg.RedditClientID,
				ClientSecret: cfg.RedditClientSecret,
				Username:     cfg.RedditUsername,
				Password:     cfg.RedditPassword,
			},
			AuthURL:       cfg.RedditAuthURL,
			APIURL:        cfg.RedditAPIURL,
			RefreshMargin: config.ForumTokenRefreshMargin,
		},
	)

	cache := directory.NewCached(directory.NewChain(directoryProviders(cfg, m), m, log), db, m, log)
	lookup := directory.LookupFunc(func(ctx context.Context, program, number string) (*directory.CourseRecord, error) {
		ctx, cancel := context.WithTimeout(ctx, config.DirectoryLookup)
		defer cancel()
		return cache.Lookup(ctx, program, number)
	})

	bot, err := goose.New(goose.Options{
		Submissions:        forum.NewSubmissionStream(forumClient, cfg.Subreddit),
		Inbox:              forum.NewInboxStream(forumClient),
		Replier:            forumClient,
		Ledger:             replies,
		Formatter:          course.NewFormatter(lookup, cfg.RedditUsername, log),
		Cooldown:           ratelimit.NewSharedCooldown(nil),
		SubmissionCooldown: cfg.SubmissionCooldown,
		InboxCooldown:      cfg.InboxCooldown,
		IdlePoll:           cfg.IdlePoll,
		Metrics:            m,
		Logger:             log,
	})
	if err != nil {
		_ = replies.Close()
		_ = db.Close()
		releaseLock(snapshots, log)
		return nil, fmt.Errorf("bot: %w", err)
	}

	app := &Application{
		cfg:       cfg,
		logger:    log,
		db:        db,
		metrics:   m,
		registry:  registry,
		ledger:    replies,
		forum:     forumClient,
		cache:     cache,
		bot:       bot,
		snapshots: snapshots,
	}
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: config.ServerRead,
		ReadTimeout:       config.ServerRead,
		WriteTimeout:      config.ServerWrite,
		IdleTimeout:       config.ServerIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

// openLedger takes the instance lease, restores the ledger snapshot when
// the local file is missing, and opens the ledger. Only the lease holder
// restores, so a standby never leaves a stale ledger on disk. snapshots may
// be nil when R2 is disabled.
func openLedger(ctx context.Context, snapshots *snapshot.Manager, path string, log *logger.Logger) (*ledger.FileLedger, error) {
	if snapshots != nil {
		acquired, err := snapshots.AcquireLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("instance lock: %w", err)
		}
		if !acquired {
			return nil, ErrLockHeld
		}
		log.Info("Instance lock acquired")

		restoreCtx, cancel := context.WithTimeout(ctx, config.LedgerBackup)
		_, err = snapshots.Restore(restoreCtx, path)
		cancel()
		if err != nil {
			releaseLock(snapshots, log)
			return nil, fmt.Errorf("ledger restore: %w", err)
		}
	}

	replies, err := ledger.Open(path)
	if err != nil {
		releaseLock(snapshots, log)
		return nil, err
	}
	return replies, nil
}

// releaseLock gives up the lease when Initialize fails after taking it.
func releaseLock(snapshots *snapshot.Manager, log *logger.Logger) {
	if snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.LedgerBackup)
	defer cancel()
	if err := snapshots.ReleaseLock(ctx); err != nil {
		log.WithError(err).Warn("Failed to release instance lock")
	}
}

// directoryProviders returns the lookup chain in priority order: the Open
// Data API when a key is configured, then the calendar scraper.
func directoryProviders(cfg *config.Config, m *metrics.Metrics) []directory.Provider {
	var providers []directory.Provider
	if cfg.UWAPIKey != "" {
		providers = append(providers, directory.NewAPIClient(scraper.NewClient(scraper.Options{
			Module:       "uwapi",
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.HTTPMaxRetries,
			RetryInitial: config.HTTPRetryInitial,
			UserAgent:    cfg.RedditUserAgent,
			Metrics:      m,
		}), cfg.UWAPIBaseURL, cfg.UWAPIKey))
	}
	if cfg.CalendarEnabled {
		// Empty UserAgent rotates browser agents for the public calendar site.
		providers = append(providers, directory.NewCalendarScraper(scraper.NewClient(scraper.Options{
			Module:       "calendar",
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.HTTPMaxRetries,
			RetryInitial: config.HTTPRetryInitial,
			Pacing:       config.HTTPPacing,
			Metrics:      m,
		}), cfg.CalendarBaseURL))
	}
	return providers
}

// Run verifies the forum login, keeps the instance lease taken by Initialize
// renewed, starts the HTTP server and background jobs, and runs the poll
// loop until SIGINT/SIGTERM.
//
// Shutdown order: stop the poll loop, wait for background jobs, then stop
// the HTTP server and close resources. The final ledger backup runs after
// the loop has stopped so it captures every recorded reply.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name, err := a.forum.Me(ctx)
	if err != nil {
		a.shutdown()
		return fmt.Errorf("forum login: %w", err)
	}
	a.logger.WithField("account", name).Info("Logged in to forum")

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	if a.snapshots != nil {
		a.wg.Go(func() {
			a.snapshots.HoldLock(loopCtx, func() {
				a.lockLost.Store(true)
				cancelLoop()
			})
		})
	}

	a.startBackgroundJobs(loopCtx)
	a.startHTTPServer()
	a.ready.Store(true)

	runErr := a.bot.Run(loopCtx)
	a.ready.Store(false)
	cancelLoop()

	if ctx.Err() != nil {
		a.logger.Info("Received shutdown signal")
	}

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).Info("All background jobs completed")

	a.shutdown()

	switch {
	case a.lockLost.Load():
		return ErrLockLost
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		return runErr
	}
	return nil
}

// startHTTPServer starts the health and metrics server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// shutdown stops the HTTP server, takes a final backup, releases the lock
// and closes resources. Call it only after background jobs have stopped.
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.snapshots != nil {
		if a.snapshots.LockHeld() {
			a.backupLedger(shutdownCtx)
		}
		if err := a.snapshots.ReleaseLock(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Failed to release instance lock")
		}
	}

	a.closeResources()

	sentry.Flush(2 * time.Second)
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}
	a.logger.Info("Shutdown complete")
}

func (a *Application) closeResources() {
	a.logger.Info("Closing resources...")
	if err := a.ledger.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "ledger").Error("Component close error")
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
}

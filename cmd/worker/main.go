package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/pingwatch/internal/cache"
	"github.com/hamed0406/pingwatch/internal/config"
	"github.com/hamed0406/pingwatch/internal/domain"
	"github.com/hamed0406/pingwatch/internal/httpapi"
	apimw "github.com/hamed0406/pingwatch/internal/httpapi/middleware"
	"github.com/hamed0406/pingwatch/internal/logging"
	"github.com/hamed0406/pingwatch/internal/notify"
	"github.com/hamed0406/pingwatch/internal/probe"
	"github.com/hamed0406/pingwatch/internal/repo"
	"github.com/hamed0406/pingwatch/internal/repo/file"
	"github.com/hamed0406/pingwatch/internal/repo/memory"
	"github.com/hamed0406/pingwatch/internal/repo/postgres"
	"github.com/hamed0406/pingwatch/internal/scheduler"
	"github.com/hamed0406/pingwatch/internal/sweep"
	"github.com/hamed0406/pingwatch/internal/transition"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stdout: cfg.LogStdout})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("worker_exit", zap.Error(err))
	}
}

type stores struct {
	registry repo.MonitorRegistry
	pings    repo.PingStore
	locker   scheduler.Locker
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	var st stores
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return st, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return st, err
		}
		st = stores{registry: pg, pings: pg, locker: pg, close: pg.Close}
		logger.Info("store_postgres")
	} else {
		mem := memory.New()
		st = stores{registry: mem, pings: mem, close: func() {}}
		logger.Warn("store_memory", zap.String("hint", "set DATABASE_URL to persist ping history"))
	}
	// a YAML registry overrides the monitors table
	if cfg.MonitorsFile != "" {
		st.registry = file.New(cfg.MonitorsFile)
		logger.Info("registry_file", zap.String("path", cfg.MonitorsFile))
	}
	return st, nil
}

func newEmail(ctx context.Context, cfg config.Config, logger *zap.Logger) notify.EmailSender {
	if cfg.SESFromEmail == "" {
		logger.Warn("email_disabled", zap.String("reason", "SES_FROM_EMAIL not set"))
		return notify.DisabledEmail{Logger: logger}
	}
	s, err := notify.NewSES(ctx, cfg.AWSRegion, cfg.SESFromEmail)
	if err != nil {
		logger.Warn("email_disabled", zap.Error(err))
		return notify.DisabledEmail{Logger: logger}
	}
	return s
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	statusCache := cache.New[httpapi.MonitorStatus](cfg.StatusCacheTTL)
	go statusCache.RunCleanup(ctx, cfg.StatusCacheTTL, logger)

	var trackerOpts []transition.Option
	if _, atomic := st.pings.(repo.AtomicAppender); !atomic {
		stateCache := cache.New[domain.PingResult](cfg.StateCacheTTL)
		go stateCache.RunCleanup(ctx, cfg.StateCacheTTL, logger)
		trackerOpts = append(trackerOpts, transition.WithStateCache(stateCache))
	}
	tracker := transition.NewTracker(st.pings, trackerOpts...)
	dispatcher := notify.NewDispatcher(logger, newEmail(ctx, cfg, logger), notify.NewWebhook(cfg.WebhookTimeout))
	exec := sweep.NewExecutor(logger, st.registry, probe.NewHTTPProber(), tracker, dispatcher, sweep.Config{
		ProbeTimeout: cfg.ProbeTimeout,
		Concurrency:  cfg.SweepConcurrency,
	})

	sched := scheduler.New(logger, st.locker)
	if err := sched.Register(exec.Job(scheduler.DefaultSweepJob, cfg.SweepInterval)); err != nil {
		return err
	}
	sched.Start(ctx)
	defer sched.Stop()

	api := httpapi.NewServer(logger, st.registry, st.pings,
		sweep.OnDemand{Exec: exec, Runner: sched, Name: scheduler.DefaultSweepJob}, statusCache)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.Router(keys, cfg.AllowedOrigins, httpapi.Limits{
			PublicRPM: cfg.PublicRPM, PublicBurst: cfg.PublicBurst,
			AdminRPM: cfg.AdminRPM, AdminBurst: cfg.AdminBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Duration("sweep_every", cfg.SweepInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	logger.Info("worker_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alexanderramin/recur/internal/cli"
	"github.com/alexanderramin/recur/internal/config"
	"github.com/alexanderramin/recur/internal/db"
	"github.com/alexanderramin/recur/internal/httpapi"
	"github.com/alexanderramin/recur/internal/lease"
	"github.com/alexanderramin/recur/internal/logging"
	"github.com/alexanderramin/recur/internal/materialize"
	"github.com/alexanderramin/recur/internal/repository"
	"github.com/alexanderramin/recur/internal/service"
	"github.com/alexanderramin/recur/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config path: RECUR_CONFIG (must exist) or ~/.recur/recur.yaml (optional).
	cfgPath := os.Getenv("RECUR_CONFIG")
	required := cfgPath != ""
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.Load(cfgPath, required)
	if err != nil {
		return err
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)

	database, err := db.OpenDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	// Wire repositories
	ruleRepo := repository.NewSQLiteRuleRepo(database)
	checkpointRepo := repository.NewSQLiteCheckpointRepo(database)
	taskStore := repository.NewSQLiteTaskStore(database)

	locker, closeLocker, err := newLocker(cfg.Lease, database)
	if err != nil {
		return err
	}
	defer closeLocker()

	sched := materialize.NewScheduler(materialize.Deps{
		Rules:       ruleRepo,
		Checkpoints: checkpointRepo,
		UoW:         db.NewSQLiteUnitOfWork(database),
		Locker:      locker,
		Logger:      log,
	}, cfg.Scheduler.Materialize())

	rules := service.NewRuleService(ruleRepo, taskStore, directoryFrom(cfg.Directory),
		service.NewLogUseCaseObserver(log), service.NewTraceUseCaseObserver())

	app := &cli.App{
		Rules:     rules,
		Scheduler: sched,
		Serve: func(ctx context.Context) error {
			return serve(ctx, cfgPath, required, cfg, log, rules, sched, database)
		},
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

func newLocker(cfg config.LeaseConfig, database db.DBTX) (lease.Locker, func(), error) {
	if cfg.Backend != config.LeaseRedis {
		return lease.NewSQLiteLocker(database, time.Now), func() {}, nil
	}
	rdb, err := lease.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return lease.NewRedisLocker(rdb), func() { _ = rdb.Close() }, nil
}

func directoryFrom(tables map[string]map[string]string) service.StaticDirectory {
	dir := make(service.StaticDirectory, len(tables))
	for kind, names := range tables {
		dir[service.DirectoryKind(kind)] = names
	}
	return dir
}

// serve runs the cron-driven scheduler and the HTTP API until ctx is done.
// Config file edits retune the scheduler without a restart.
func serve(ctx context.Context, cfgPath string, required bool, cfg *config.Config, log zerolog.Logger,
	rules service.RuleService, sched *materialize.Scheduler, database httpapi.Pinger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "recur", telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// Catch up before the first tick.
	if _, err := sched.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("initial materialization run failed")
	}

	runner := materialize.NewRunner(sched, cfg.Scheduler.Tick, log)
	if err := runner.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewEngine(httpapi.NewHandler(rules, sched, database, log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		runner.Stop()
		return err
	})
	if _, statErr := os.Stat(cfgPath); statErr == nil || required {
		w := config.NewWatcher(cfgPath, cfg, log, func(next *config.Config) {
			sched.Apply(next.Scheduler.Materialize())
			if err := runner.SetTick(next.Scheduler.Tick); err != nil {
				log.Warn().Err(err).Msg("runner reschedule failed")
			}
		})
		g.Go(func() error { return w.Watch(gctx) })
	}

	return g.Wait()
}

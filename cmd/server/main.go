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
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/router"
	"github.com/CT14090/meal-plan-verification/internal/scan"
	"github.com/CT14090/meal-plan-verification/internal/scheduler"
	"github.com/CT14090/meal-plan-verification/internal/service"
	"github.com/CT14090/meal-plan-verification/internal/vault"
	"github.com/CT14090/meal-plan-verification/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	// A missing or malformed key is fatal: nothing can be read or written.
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("ENCRYPTION_KEY unusable; generate one with cmd/genkey")
	}
	keys := vault.NewKeyring(v)

	db, err := infra.NewDatabase(databaseConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to open database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeID, err := cfg.Node()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid station node")
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create id generator")
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	studentRepo := repository.NewStudentRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	jobRunRepo := repository.NewJobRunRepository(db)
	cashierRepo := repository.NewCashierRepository(db)

	// ── Background delivery ──────────────────────────────────────────────────
	// Redis when configured so every station feeds one queue; otherwise an
	// in-process buffer.
	var queue worker.Queue
	if rdb != nil {
		queue = worker.NewRedisQueue(rdb)
	} else {
		queue = worker.NewMemoryQueue(1024)
	}
	dispatcher := worker.NewDispatcher(queue, cfg.SheetsEnabled)
	sheetsCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("sheets"))

	var pool *worker.Pool
	if cfg.SheetsEnabled {
		client := infra.NewSheetsClient(cfg.SheetsWebAppURL, cfg.SheetsTimeout)
		pool = worker.NewPool(queue, worker.SheetsHandlers(client, sheetsCB, summaryRepo), worker.QueueSheets)
		pool.Start(ctx, cfg.WorkerPoolSize)
		worker.StartRetryCron(ctx, worker.RetryCronConfig{
			Queue:  queue,
			CB:     sheetsCB,
			Queues: []string{worker.QueueSheets},
		})
	}

	// ── Engine ───────────────────────────────────────────────────────────────
	windows, _ := config.ParseMealWindows(cfg.MealWindows)
	cal := service.NewCalendar(cfg.Location(), windows)
	lookups := bridge.New(cfg.LookupDisplayTimeout, nil)
	markers := scan.NewMarkers()
	debounce := scan.NewStations(cfg.DebounceCooldown)

	resolverSvc := service.NewResolverService(db, studentRepo, usageRepo, keys, lookups, markers, cal)
	ledgerSvc := service.NewLedgerService(db, studentRepo, usageRepo, txRepo, markers, lookups, node, cal, dispatcher)
	adminSvc := service.NewAdminService(db, studentRepo, usageRepo, txRepo, keys, cal)
	authSvc := service.NewAuthService(cashierRepo, service.AuthConfig{
		JWTSecret:       cfg.JWTSecret,
		ExpirationHours: cfg.JWTExpirationHours,
	})

	// ── Scheduler ────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		var locker infra.JobLocker = infra.NewLocalJobLocker()
		if rdb != nil {
			locker = infra.NewRedisJobLocker(rdb)
		}
		deps := scheduler.Deps{
			DB:        db,
			Txs:       txRepo,
			Usage:     usageRepo,
			Students:  studentRepo,
			Summaries: summaryRepo,
			JobRuns:   jobRunRepo,
			Bridge:    lookups,
			Locker:    locker,
			Redis:     rdb,
			Breaker:   sheetsCB,
			Queue:     queue,
			Sheets:    dispatcher,
		}
		sched, err = scheduler.New(scheduler.Config{
			Loc:           cfg.Location(),
			ResetTime:     cfg.ResetTime,
			SummaryTime:   cfg.SummaryTime,
			RetentionDays: cfg.RetentionDays,
		}, deps)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build scheduler")
		}
		sched.Start(ctx)
	}

	// ── Card reader ──────────────────────────────────────────────────────────
	if cfg.RFIDEnabled {
		go runCardReader(ctx, cfg, resolverSvc, debounce)
	}

	r := router.New(ctx, cfg, router.Deps{
		DB:       db,
		Redis:    rdb,
		Breaker:  sheetsCB,
		Bridge:   lookups,
		Debounce: debounce,
		Resolver: resolverSvc,
		Ledger:   ledgerSvc,
		Admin:    adminSvc,
		Auth:     authSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().
			Str("station_id", cfg.StationID).
			Str("driver", cfg.DatabaseDriver).
			Bool("redis", rdb != nil).
			Bool("sheets", cfg.SheetsEnabled).
			Msgf("meal plan server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	if sched != nil {
		sched.Stop()
	}
	cancel()
	if pool != nil {
		pool.Wait()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}

// setupLogger: dev pretty console, prod JSON.
func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func databaseConfig(cfg *config.Config) infra.DatabaseConfig {
	dsn := cfg.DatabaseURL
	if cfg.DatabaseDriver == "sqlite" {
		dsn = cfg.SQLitePath
	}
	return infra.DatabaseConfig{Driver: cfg.DatabaseDriver, DSN: dsn, Debug: cfg.LogLevel == "debug"}
}

func runCardReader(ctx context.Context, cfg *config.Config, resolver service.ResolverService, debounce *scan.Stations) {
	dev, err := scan.OpenDevice(cfg.RFIDDevice)
	if err != nil {
		log.Error().Err(err).Str("device", cfg.RFIDDevice).Msg("scan: cannot open card reader")
		return
	}
	defer dev.Close()

	log.Info().Str("device", cfg.RFIDDevice).Str("station_id", cfg.StationID).Msg("scan: card reader started")
	err = scan.Pump(ctx, scan.NewLineReader(dev, nil), debounce.For(cfg.StationID), func(ctx context.Context, ev scan.Event) {
		v, err := resolver.ResolveCard(ctx, cfg.StationID, ev.CardID, ev.At)
		if err != nil {
			if !errors.Is(err, service.ErrNotFound) {
				log.Error().Err(err).Str("card", vault.Mask(ev.CardID)).Msg("scan: resolve failed")
			}
			return
		}
		log.Info().Str("student_id", v.StudentID).Bool("eligible", v.Eligible).Msg("scan: card resolved")
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("scan: card reader stopped")
	}
}

// Package scheduler runs the facility-clock jobs: the midnight reset, the
// afternoon summary, the hourly health check and the weekly retention prune.
// Every job writes a job_runs marker for its period, so a restart never
// repeats a completed period and startup only catches up what is owed.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/worker"
)

const (
	JobReset   = "reset"
	JobSummary = "summary"
	JobPrune   = "prune"
	JobHealth  = "health"

	dateLayout = "2006-01-02"
	lockTTL    = 10 * time.Minute
	jobTimeout = 5 * time.Minute
)

// SummaryEnqueuer hands the daily summary to the background worker.
type SummaryEnqueuer interface {
	EnqueueSheetsSummary(ctx context.Context, payload interface{}) error
}

type Config struct {
	Loc           *time.Location
	ResetTime     string // HH:MM facility time
	SummaryTime   string
	RetentionDays int
}

// Deps are the collaborators the jobs touch. Redis, Breaker, Queue and
// Sheets may be nil.
type Deps struct {
	DB        *gorm.DB
	Txs       repository.TransactionRepository
	Usage     repository.UsageRepository
	Students  repository.StudentRepository
	Summaries repository.SummaryRepository
	JobRuns   repository.JobRunRepository
	Bridge    *bridge.Bridge
	Locker    infra.JobLocker
	Redis     *redis.Client
	Breaker   *infra.CircuitBreaker
	Queue     worker.Queue
	Sheets    SummaryEnqueuer
}

type Scheduler struct {
	cfg  Config
	deps Deps
	cron *cron.Cron
	now  func() time.Time

	resetH, resetM     int
	summaryH, summaryM int
}

func New(cfg Config, deps Deps) (*Scheduler, error) {
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if deps.Locker == nil {
		deps.Locker = infra.NewLocalJobLocker()
	}
	s := &Scheduler{cfg: cfg, deps: deps, now: time.Now}

	var err error
	if s.resetH, s.resetM, err = config.ParseClock(cfg.ResetTime); err != nil {
		return nil, fmt.Errorf("scheduler: reset time: %w", err)
	}
	if s.summaryH, s.summaryM, err = config.ParseClock(cfg.SummaryTime); err != nil {
		return nil, fmt.Errorf("scheduler: summary time: %w", err)
	}

	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(cfg.Loc),
		cron.WithLogger(logger),
		// a job still running when its next tick arrives is skipped, not queued
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	jobs := []struct {
		spec string
		name string
		fn   func(context.Context) error
	}{
		{dailySpec(s.resetH, s.resetM), JobReset, s.RunReset},
		{dailySpec(s.summaryH, s.summaryM), JobSummary, s.RunSummary},
		{"0 * * * *", JobHealth, s.RunHealth},
		{"0 2 * * 0", JobPrune, s.RunPrune},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(j.name, j.fn) }); err != nil {
			return nil, fmt.Errorf("scheduler: add %s: %w", j.name, err)
		}
	}
	return s, nil
}

// Start runs the startup catch-up and then the cron loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.CatchUp(ctx)
	s.cron.Start()
	log.Info().
		Str("tz", s.cfg.Loc.String()).
		Str("reset", s.cfg.ResetTime).
		Str("summary", s.cfg.SummaryTime).
		Int("retention_days", s.cfg.RetentionDays).
		Msg("scheduler: started")
}

// Stop halts new ticks and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler: stopped")
}

func (s *Scheduler) run(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("job", name).Msg("scheduler: job failed")
	}
}

// CatchUp runs today's summary if its time has passed, and this week's
// prune if Sunday 02:00 has passed, unless either already completed.
// Earlier missed ticks are not replayed.
func (s *Scheduler) CatchUp(ctx context.Context) {
	now := s.now().In(s.cfg.Loc)

	if !now.Before(s.at(now, s.summaryH, s.summaryM)) {
		if err := s.RunSummary(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler: summary catch-up failed")
		}
	}
	if !now.Before(pruneDue(now)) {
		if err := s.RunPrune(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler: prune catch-up failed")
		}
	}
}

// ── Jobs ──────────────────────────────────────────────────────────────────────

// RunReset starts a new business day. Usage rows are keyed by date, so the
// new day's counters start at zero on their own; the reset drops carry-over
// lookup slots and records the day boundary.
func (s *Scheduler) RunReset(ctx context.Context) error {
	now := s.now().In(s.cfg.Loc)
	today := now.Format(dateLayout)
	return s.once(ctx, JobReset, today, func() (string, error) {
		if s.deps.Bridge != nil {
			s.deps.Bridge.Reset()
		}
		yesterday := now.AddDate(0, 0, -1).Format(dateLayout)
		served, err := s.deps.Usage.CountServed(ctx, yesterday)
		if err != nil {
			return "", err
		}
		log.Info().Str("date", today).Str("previous", yesterday).Int64("students_served", served).
			Msg("scheduler: daily reset complete")
		return fmt.Sprintf("previous day served %d", served), nil
	})
}

// RunSummary counts today's approved meals by type and emits the summary at
// most once per date. The unique business_date row is the guard.
func (s *Scheduler) RunSummary(ctx context.Context) error {
	today := s.now().In(s.cfg.Loc).Format(dateLayout)
	return s.once(ctx, JobSummary, today, func() (string, error) {
		st, err := s.deps.Txs.StatsForDate(ctx, today)
		if err != nil {
			return "", err
		}
		sum := &model.DailySummary{
			BusinessDate:   today,
			BreakfastCount: int(st.Breakfast),
			LunchCount:     int(st.Lunch),
			SnackCount:     int(st.Snack),
			Total:          int(st.Breakfast + st.Lunch + st.Snack),
		}
		created, err := s.deps.Summaries.CreateIfAbsent(ctx, sum)
		if err != nil {
			return "", err
		}
		if !created {
			log.Info().Str("date", today).Msg("scheduler: summary already emitted")
			return "already emitted", nil
		}

		if s.deps.Sheets != nil {
			payload := infra.SheetsSummary{
				Date:      today,
				Breakfast: sum.BreakfastCount,
				Lunch:     sum.LunchCount,
				Snacks:    sum.SnackCount,
				Total:     sum.Total,
			}
			if err := s.deps.Sheets.EnqueueSheetsSummary(ctx, payload); err != nil {
				log.Warn().Err(err).Str("date", today).Msg("scheduler: failed to enqueue summary")
			}
		}
		log.Info().
			Str("date", today).
			Int("breakfast", sum.BreakfastCount).
			Int("lunch", sum.LunchCount).
			Int("snack", sum.SnackCount).
			Int("total", sum.Total).
			Msg("scheduler: daily summary")
		return fmt.Sprintf("total %d", sum.Total), nil
	})
}

// RunPrune deletes transactions dated before the retention window. With a
// 30 day window, running on day 31 removes day 1 and keeps day 2.
func (s *Scheduler) RunPrune(ctx context.Context) error {
	now := s.now().In(s.cfg.Loc)
	week := pruneDue(now).Format(dateLayout)
	return s.once(ctx, JobPrune, week, func() (string, error) {
		cutoff := PruneCutoff(now, s.cfg.RetentionDays)
		n, err := s.deps.Txs.DeleteBefore(ctx, cutoff)
		if err != nil {
			return "", err
		}
		log.Info().Str("before", cutoff).Int64("deleted", n).Msg("scheduler: retention prune")
		return fmt.Sprintf("deleted %d before %s", n, cutoff), nil
	})
}

// RunHealth logs store and collaborator status. It mutates nothing.
func (s *Scheduler) RunHealth(ctx context.Context) error {
	ev := log.Info()
	dbErr := infra.Ping(s.deps.DB)
	if dbErr != nil {
		ev = log.Error().AnErr("database", dbErr)
	}
	ev = ev.Bool("database_ok", dbErr == nil)

	if s.deps.Students != nil && dbErr == nil {
		if n, err := s.deps.Students.CountActive(ctx); err == nil {
			ev = ev.Int64("active_students", n)
		}
	}
	if s.deps.Redis != nil {
		err := s.deps.Redis.Ping(ctx).Err()
		ev = ev.Bool("redis_ok", err == nil)
	}
	if s.deps.Breaker != nil {
		ev = ev.Str("sheets", s.deps.Breaker.State().String())
	}
	if s.deps.Queue != nil {
		if n, err := worker.DLQLength(ctx, s.deps.Queue, worker.QueueSheets); err == nil {
			ev = ev.Int64("sheets_dlq", n)
		}
	}
	ev.Msg("scheduler: health check")
	return dbErr
}

// once runs fn under the job lock unless (job, period) is already recorded.
func (s *Scheduler) once(ctx context.Context, job, period string, fn func() (string, error)) error {
	release, ok, err := s.deps.Locker.TryLock(ctx, job, lockTTL)
	if err != nil {
		return fmt.Errorf("lock %s: %w", job, err)
	}
	if !ok {
		log.Info().Str("job", job).Msg("scheduler: job already running elsewhere, skipping")
		return nil
	}
	defer release()

	done, err := s.deps.JobRuns.Done(ctx, job, period)
	if err != nil {
		return err
	}
	if done {
		log.Debug().Str("job", job).Str("period", period).Msg("scheduler: period already complete")
		return nil
	}

	detail, err := fn()
	if err != nil {
		return err
	}
	_, err = s.deps.JobRuns.Record(ctx, job, period, detail, s.now().UTC())
	return err
}

// ── Schedule math ─────────────────────────────────────────────────────────────

func dailySpec(h, m int) string { return fmt.Sprintf("%d %d * * *", m, h) }

func (s *Scheduler) at(day time.Time, h, m int) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, h, m, 0, 0, s.cfg.Loc)
}

// pruneDue returns the most recent Sunday 02:00 at or before now, in now's zone.
func pruneDue(now time.Time) time.Time {
	y, mo, d := now.Date()
	sunday := time.Date(y, mo, d, 2, 0, 0, 0, now.Location()).AddDate(0, 0, -int(now.Weekday()))
	if sunday.After(now) {
		sunday = sunday.AddDate(0, 0, -7)
	}
	return sunday
}

// PruneCutoff returns the earliest business date kept: dates strictly before
// it are deleted.
func PruneCutoff(now time.Time, retentionDays int) string {
	return now.AddDate(0, 0, -(retentionDays - 1)).Format(dateLayout)
}

// cronLogger routes robfig/cron's own messages to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	log.Debug().Fields(kv).Msg("scheduler: cron " + msg)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	log.Error().Err(err).Fields(kv).Msg("scheduler: cron " + msg)
}

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/worker"
)

var panama = time.FixedZone("EST", -5*60*60)

type fakeSheets struct {
	mu       sync.Mutex
	payloads []infra.SheetsSummary
}

func (f *fakeSheets) EnqueueSheetsSummary(_ context.Context, p interface{}) error {
	f.mu.Lock()
	f.payloads = append(f.payloads, p.(infra.SheetsSummary))
	f.mu.Unlock()
	return nil
}

type fixture struct {
	db     *gorm.DB
	sched  *Scheduler
	sheets *fakeSheets
	bridge *bridge.Bridge
	now    time.Time
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	db, err := infra.NewDatabase(infra.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	f := &fixture{db: db, sheets: &fakeSheets{}, bridge: bridge.New(time.Minute, nil), now: now}
	s, err := New(Config{Loc: panama, ResetTime: "00:00", SummaryTime: "14:00", RetentionDays: 30}, Deps{
		DB:        db,
		Txs:       repository.NewTransactionRepository(db),
		Usage:     repository.NewUsageRepository(db),
		Students:  repository.NewStudentRepository(db),
		Summaries: repository.NewSummaryRepository(db),
		JobRuns:   repository.NewJobRunRepository(db),
		Bridge:    f.bridge,
		Queue:     worker.NewMemoryQueue(8),
		Sheets:    f.sheets,
	})
	require.NoError(t, err)
	s.now = func() time.Time { return f.now }
	f.sched = s
	return f
}

var nextID int64 = 1000

func (f *fixture) addTx(t *testing.T, date string, d model.Decision, meal model.MealType) {
	t.Helper()
	nextID++
	m := meal
	tx := &model.Transaction{
		ID:           nextID,
		StudentID:    "10001",
		StationID:    "Station_1",
		CashierID:    "CASHIER_01",
		MealType:     &m,
		MealPlanType: model.PlanPremium,
		Decision:     d,
		BusinessDate: date,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(tx).Error)
}

func (f *fixture) txCount(t *testing.T, date string) int64 {
	var n int64
	require.NoError(t, f.db.Model(&model.Transaction{}).Where("business_date = ?", date).Count(&n).Error)
	return n
}

func TestRunSummary_OncePerDate(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 14, 0, 0, 0, panama))
	f.addTx(t, "2025-03-10", model.DecisionApproved, model.MealBreakfast)
	f.addTx(t, "2025-03-10", model.DecisionApproved, model.MealLunch)
	f.addTx(t, "2025-03-10", model.DecisionApproved, model.MealLunch)
	f.addTx(t, "2025-03-10", model.DecisionDenied, model.MealSnack)
	f.addTx(t, "2025-03-09", model.DecisionApproved, model.MealSnack)
	ctx := context.Background()

	require.NoError(t, f.sched.RunSummary(ctx))
	require.NoError(t, f.sched.RunSummary(ctx))

	require.Len(t, f.sheets.payloads, 1)
	p := f.sheets.payloads[0]
	assert.Equal(t, "2025-03-10", p.Date)
	assert.Equal(t, 1, p.Breakfast)
	assert.Equal(t, 2, p.Lunch)
	assert.Equal(t, 0, p.Snacks)
	assert.Equal(t, 3, p.Total)

	n, err := repository.NewSummaryRepository(f.db).Count(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunSummary_SurvivesLostJobMarker(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 14, 0, 0, 0, panama))
	ctx := context.Background()
	require.NoError(t, f.sched.RunSummary(ctx))

	// the summary row alone still prevents a second emission
	require.NoError(t, f.db.Where("job = ?", JobSummary).Delete(&model.JobRun{}).Error)
	require.NoError(t, f.sched.RunSummary(ctx))
	assert.Len(t, f.sheets.payloads, 1)
}

func TestRunPrune_Day31(t *testing.T) {
	// day 1 is 2025-03-01; day 31 is 2025-03-31
	f := newFixture(t, time.Date(2025, 3, 31, 2, 0, 0, 0, panama))
	f.addTx(t, "2025-03-01", model.DecisionApproved, model.MealLunch)
	f.addTx(t, "2025-03-02", model.DecisionApproved, model.MealLunch)
	f.addTx(t, "2025-03-31", model.DecisionApproved, model.MealLunch)

	require.NoError(t, f.sched.RunPrune(context.Background()))

	assert.Zero(t, f.txCount(t, "2025-03-01"))
	assert.Equal(t, int64(1), f.txCount(t, "2025-03-02"))
	assert.Equal(t, int64(1), f.txCount(t, "2025-03-31"))
}

func TestRunReset_ClearsSlotsOnce(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 11, 0, 0, 0, 0, panama))
	ctx := context.Background()
	f.bridge.Publish("Station_1", bridge.Identity{StudentID: "10001"})

	require.NoError(t, f.sched.RunReset(ctx))
	_, ok := f.bridge.Consume("Station_1")
	assert.False(t, ok)

	done, err := repository.NewJobRunRepository(f.db).Done(ctx, JobReset, "2025-03-11")
	require.NoError(t, err)
	assert.True(t, done)

	// a second tick for the same date is a no-op
	f.bridge.Publish("Station_1", bridge.Identity{StudentID: "10001"})
	require.NoError(t, f.sched.RunReset(ctx))
	_, ok = f.bridge.Consume("Station_1")
	assert.True(t, ok)
}

func TestCatchUp(t *testing.T) {
	t.Run("before summary time does nothing", func(t *testing.T) {
		// Monday 09:00
		f := newFixture(t, time.Date(2025, 3, 10, 9, 0, 0, 0, panama))
		f.sched.CatchUp(context.Background())
		assert.Empty(t, f.sheets.payloads)
	})

	t.Run("after summary time emits once", func(t *testing.T) {
		f := newFixture(t, time.Date(2025, 3, 10, 16, 30, 0, 0, panama))
		f.sched.CatchUp(context.Background())
		f.sched.CatchUp(context.Background())
		assert.Len(t, f.sheets.payloads, 1)
	})

	t.Run("owed prune runs once per week", func(t *testing.T) {
		f := newFixture(t, time.Date(2025, 3, 31, 9, 0, 0, 0, panama))
		f.addTx(t, "2025-02-01", model.DecisionApproved, model.MealLunch)
		f.sched.CatchUp(context.Background())
		assert.Zero(t, f.txCount(t, "2025-02-01"))

		done, err := repository.NewJobRunRepository(f.db).Done(context.Background(), JobPrune, "2025-03-30")
		require.NoError(t, err)
		assert.True(t, done)
	})
}

func TestRunHealth(t *testing.T) {
	f := newFixture(t, time.Date(2025, 3, 10, 9, 0, 0, 0, panama))
	assert.NoError(t, f.sched.RunHealth(context.Background()))
}

func TestScheduleMath(t *testing.T) {
	assert.Equal(t, "0 14 * * *", dailySpec(14, 0))
	assert.Equal(t, "30 0 * * *", dailySpec(0, 30))

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"sunday before 02:00 uses previous week", time.Date(2025, 3, 16, 1, 59, 0, 0, panama), time.Date(2025, 3, 9, 2, 0, 0, 0, panama)},
		{"sunday at 02:00", time.Date(2025, 3, 16, 2, 0, 0, 0, panama), time.Date(2025, 3, 16, 2, 0, 0, 0, panama)},
		{"saturday", time.Date(2025, 3, 15, 23, 0, 0, 0, panama), time.Date(2025, 3, 9, 2, 0, 0, 0, panama)},
		{"monday", time.Date(2025, 3, 10, 8, 0, 0, 0, panama), time.Date(2025, 3, 9, 2, 0, 0, 0, panama)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(pruneDue(tt.now)), "got %s", pruneDue(tt.now))
		})
	}

	assert.Equal(t, "2025-03-02", PruneCutoff(time.Date(2025, 3, 31, 2, 0, 0, 0, panama), 30))
}

func TestNew_RejectsBadClock(t *testing.T) {
	_, err := New(Config{ResetTime: "25:00", SummaryTime: "14:00"}, Deps{})
	assert.Error(t, err)
}

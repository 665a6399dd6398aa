package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/scan"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

// ── Fixture ───────────────────────────────────────────────────────────────────

var panama = time.FixedZone("EST", -5*60*60)

// at returns a facility-local instant on 2025-03-10.
func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, panama)
}

type recordingSheets struct {
	mu   sync.Mutex
	jobs []interface{}
}

func (r *recordingSheets) EnqueueSheetsTransaction(_ context.Context, p interface{}) error {
	r.mu.Lock()
	r.jobs = append(r.jobs, p)
	r.mu.Unlock()
	return nil
}

type env struct {
	keys     *vault.Keyring
	bridge   *bridge.Bridge
	markers  *scan.Markers
	cal      *Calendar
	sheets   *recordingSheets
	students repository.StudentRepository
	resolver ResolverService
	ledger   LedgerService
	admin    AdminService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := infra.NewDatabase(infra.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	key, err := vault.GenerateKey()
	require.NoError(t, err)
	v, err := vault.New(key)
	require.NoError(t, err)

	windows, err := config.ParseMealWindows("Breakfast=6-10,Lunch=10-14,Snack=14-17")
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	e := &env{
		keys:     vault.NewKeyring(v),
		bridge:   bridge.New(30*time.Second, nil),
		markers:  scan.NewMarkers(),
		cal:      NewCalendar(panama, windows),
		sheets:   &recordingSheets{},
		students: repository.NewStudentRepository(db),
	}
	e.cal.Now = func() time.Time { return at(12, 0) }
	usage := repository.NewUsageRepository(db)
	txs := repository.NewTransactionRepository(db)
	e.resolver = NewResolverService(db, e.students, usage, e.keys, e.bridge, e.markers, e.cal)
	e.ledger = NewLedgerService(db, e.students, usage, txs, e.markers, e.bridge, node, e.cal, e.sheets)
	e.admin = NewAdminService(db, e.students, usage, txs, e.keys, e.cal)
	return e
}

func (e *env) addStudent(t *testing.T, id, card string, plan model.MealPlanType, limit *int) {
	t.Helper()
	_, err := e.admin.AddStudent(context.Background(), dto.CreateStudentRequest{
		StudentID:      id,
		CardID:         card,
		Name:           "Student " + id,
		GradeLevel:     9,
		MealPlanType:   string(plan),
		DailyMealLimit: limit,
	})
	require.NoError(t, err)
}

func (e *env) decide(station, rid string, d model.Decision, meal model.MealType, when time.Time) (*dto.DecisionResponse, error) {
	return e.ledger.Decide(context.Background(), DecisionInput{
		ResolutionID: rid,
		StationID:    station,
		CashierID:    "CASHIER_01",
		Decision:     d,
		MealType:     meal,
		At:           when,
	})
}

func intp(n int) *int { return &n }

// ── Resolver ──────────────────────────────────────────────────────────────────

func TestResolveCard_FreshStudent(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)

	v, err := e.resolver.ResolveCard(context.Background(), "Station_1", "0a 1b 2c 3d", at(12, 0))
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	assert.Equal(t, "Student 10001", v.Name)
	require.NotNil(t, v.Remaining)
	assert.Equal(t, 3, *v.Remaining)
	assert.Equal(t, "Lunch", v.SuggestedMeal)
	assert.NotEmpty(t, v.ResolutionID)

	slot, ok := e.bridge.Consume("Station_1")
	require.True(t, ok)
	assert.Equal(t, "10001", slot.StudentID)

	m, ok := e.markers.Lookup("Station_1", v.ResolutionID)
	require.True(t, ok)
	assert.True(t, m.Found)
}

func TestResolveCard_UnknownCardLeavesSlotUnset(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)

	_, err := e.resolver.ResolveCard(context.Background(), "Station_1", "FFFFFFFF", at(12, 0))
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := e.bridge.Consume("Station_1")
	assert.False(t, ok)

	recent, ok := e.resolver.RecentScan("Station_1", at(11, 0))
	require.True(t, ok)
	assert.False(t, recent.Found)
}

func TestResolveCard_InactiveStudent(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10002", "AABBCCDD", model.PlanBasic, nil)
	require.NoError(t, e.admin.DeactivateStudent(context.Background(), "10002"))

	v, err := e.resolver.ResolveCard(context.Background(), "Station_1", "AABBCCDD", at(12, 0))
	require.NoError(t, err)
	assert.False(t, v.Eligible)
	assert.Equal(t, string(model.ReasonInactiveStatus), v.Reason)
}

func TestResolveStudentID_Unlimited(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10003", "11223344", model.PlanUnlimited, nil)

	v, err := e.resolver.ResolveStudentID(context.Background(), "Station_2", "10003", at(8, 0))
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	assert.True(t, v.Unlimited)
	assert.Nil(t, v.Remaining)
	assert.Equal(t, "Breakfast", v.SuggestedMeal)
}

// ── Ledger ────────────────────────────────────────────────────────────────────

func TestLedger_LimitScenario(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, intp(2))
	ctx := context.Background()

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(8, 0))
	require.NoError(t, err)
	resp, err := e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealBreakfast, at(8, 1))
	require.NoError(t, err)
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, 1, *resp.Remaining)

	_, ok := e.bridge.Consume("Station_1")
	assert.False(t, ok, "approval clears the lookup slot")

	v, err = e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	resp, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, "", at(12, 1))
	require.NoError(t, err)
	assert.Equal(t, "Lunch", resp.Transaction.MealType)
	assert.Equal(t, 0, *resp.Remaining)

	v, err = e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(15, 0))
	require.NoError(t, err)
	assert.False(t, v.Eligible)
	assert.Equal(t, string(model.ReasonLimitReached), v.Reason)

	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealSnack, at(15, 1))
	var denial *DenialError
	require.True(t, errors.As(err, &denial))
	assert.ErrorIs(t, err, ErrLimitReached)
	assert.Equal(t, "Denied", denial.Response.Transaction.Decision)
	assert.Equal(t, string(model.ReasonLimitReached), denial.Response.Transaction.Reason)

	e.cal.Now = func() time.Time { return at(16, 0) }
	stats, err := e.admin.GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Approved)
	assert.Equal(t, int64(1), stats.Denied)
	assert.Equal(t, int64(1), stats.Breakfast)
	assert.Equal(t, int64(1), stats.Lunch)
	assert.Equal(t, int64(0), stats.Snack)
	assert.Equal(t, int64(1), stats.StudentsServed)

	assert.Len(t, e.sheets.jobs, 3)
}

func TestLedger_DuplicateDecisionIsNoop(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)

	v, err := e.resolver.ResolveCard(context.Background(), "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)

	first, err := e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 1))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 2))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.TransactionID, second.Transaction.TransactionID)

	v, err = e.resolver.ResolveStudentID(context.Background(), "Station_1", "10001", at(12, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, v.MealsUsedToday)
}

func TestLedger_UnknownResolution(t *testing.T) {
	e := newEnv(t)
	_, err := e.decide("Station_1", "6f1c1f6e-3f7c-4c69-9a58-8d1f9f3f1a11", model.DecisionApproved, model.MealLunch, at(12, 0))
	assert.ErrorIs(t, err, ErrUnknownResolution)

	// a not-found scan cannot be approved either
	_, err = e.resolver.ResolveCard(context.Background(), "Station_1", "DEADBEEF", at(12, 0))
	require.ErrorIs(t, err, ErrNotFound)
	recent, ok := e.resolver.RecentScan("Station_1", time.Time{})
	require.True(t, ok)
	_, err = e.decide("Station_1", recent.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 1))
	assert.ErrorIs(t, err, ErrUnknownResolution)
}

func TestLedger_ManualDenial(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanBasic, nil)

	v, err := e.resolver.ResolveCard(context.Background(), "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)

	resp, err := e.ledger.Decide(context.Background(), DecisionInput{
		ResolutionID: v.ResolutionID,
		StationID:    "Station_1",
		CashierID:    "CASHIER_01",
		Decision:     model.DecisionDenied,
		Note:         "  card belongs to sibling ",
		At:           at(12, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "Denied", resp.Transaction.Decision)
	assert.Equal(t, string(model.ReasonManualOverride), resp.Transaction.Reason)
	assert.Equal(t, "card belongs to sibling", resp.Transaction.Note)
	assert.Equal(t, 1, *resp.Remaining)

	_, ok := e.bridge.Consume("Station_1")
	assert.False(t, ok)
}

func TestLedger_MealTypeNotAllowed(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanBasic, nil)

	v, err := e.resolver.ResolveCard(context.Background(), "Station_1", "0A1B2C3D", at(8, 0))
	require.NoError(t, err)

	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealBreakfast, at(8, 1))
	assert.ErrorIs(t, err, ErrMealTypeNotAllowed)

	v, err = e.resolver.ResolveStudentID(context.Background(), "Station_1", "10001", at(8, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, v.MealsUsedToday)
}

func TestLedger_OutsideServiceWindows(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanUnlimited, nil)

	v, err := e.resolver.ResolveCard(context.Background(), "Station_1", "0A1B2C3D", at(20, 0))
	require.NoError(t, err)
	assert.Empty(t, v.SuggestedMeal)

	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, "", at(20, 1))
	assert.ErrorIs(t, err, ErrNoMealService)
}

func TestLedger_FridayPlans(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)
	e.addStudent(t, "10002", "AABBCCDD", model.PlanFridayPremium, nil)
	ctx := context.Background()
	friday := time.Date(2025, 3, 14, 12, 0, 0, 0, panama)

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", friday)
	require.NoError(t, err)
	assert.False(t, v.Eligible)
	assert.Equal(t, string(model.ReasonNoFridayPlan), v.Reason)

	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, friday.Add(time.Minute))
	assert.ErrorIs(t, err, ErrNoFridayPlan)
	var denial *DenialError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, "Denied", denial.Response.Transaction.Decision)

	v, err = e.resolver.ResolveCard(ctx, "Station_2", "AABBCCDD", friday)
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	_, err = e.decide("Station_2", v.ResolutionID, model.DecisionApproved, model.MealLunch, friday.Add(time.Minute))
	require.NoError(t, err)

	// Thursday 21:00 facility time is already Friday in UTC
	thursday := time.Date(2025, 3, 13, 21, 0, 0, 0, panama)
	v, err = e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", thursday)
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealSnack, thursday.Add(time.Minute))
	require.NoError(t, err)
}

func TestLedger_DecidedResolutionNotReplayedAfterReset(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)
	ctx := context.Background()

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)
	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 1))
	require.NoError(t, err)

	_, err = e.admin.TriggerResetNow(ctx)
	require.NoError(t, err)

	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 2))
	assert.ErrorIs(t, err, ErrUnknownResolution)

	stats, err := e.admin.GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	v, err = e.resolver.ResolveStudentID(ctx, "Station_1", "10001", at(12, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, v.MealsUsedToday)
}

func TestLedger_ConcurrentApprovalsAtLimit(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, intp(2))

	const stations = 6
	rids := make([]string, stations)
	for i := range rids {
		v, err := e.resolver.ResolveCard(context.Background(), fmt.Sprintf("Station_%d", i), "0A1B2C3D", at(12, 0))
		require.NoError(t, err)
		rids[i] = v.ResolutionID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	approved, limited := 0, 0
	for i := range rids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.decide(fmt.Sprintf("Station_%d", i), rids[i], model.DecisionApproved, model.MealLunch, at(12, 1))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, ErrLimitReached):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, approved)
	assert.Equal(t, stations-2, limited)

	v, err := e.resolver.ResolveStudentID(context.Background(), "Station_0", "10001", at(12, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, v.MealsUsedToday)
}

func TestLedger_MidnightRollover(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanBasic, nil)
	ctx := context.Background()

	// 19:30 local is already 00:30 UTC on the 11th
	evening := time.Date(2025, 3, 10, 19, 30, 0, 0, panama)
	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", evening)
	require.NoError(t, err)
	resp, err := e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, evening)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", resp.Transaction.BusinessDate)

	v, err = e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", time.Date(2025, 3, 10, 23, 59, 59, 0, panama))
	require.NoError(t, err)
	assert.False(t, v.Eligible)

	// first second of the next facility day
	next := time.Date(2025, 3, 11, 0, 0, 1, 0, panama)
	v, err = e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", next)
	require.NoError(t, err)
	assert.True(t, v.Eligible)
	assert.Equal(t, 0, v.MealsUsedToday)
	require.NotNil(t, v.Remaining)
	assert.Equal(t, 1, *v.Remaining)
}

// ── Admin ─────────────────────────────────────────────────────────────────────

func TestAdmin_AddStudentDefaultsAndDuplicates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	resp, err := e.admin.AddStudent(ctx, dto.CreateStudentRequest{
		StudentID: "20001", CardID: "CAFEBABE", Name: "Ana", MealPlanType: "Plus",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.DailyMealLimit)
	assert.Equal(t, 2, *resp.DailyMealLimit)

	_, err = e.admin.AddStudent(ctx, dto.CreateStudentRequest{
		StudentID: "20001", CardID: "0BADF00D", Name: "Ana B", MealPlanType: "Plus",
	})
	assert.ErrorIs(t, err, ErrDuplicateStudent)

	// same card on a second active student
	_, err = e.admin.AddStudent(ctx, dto.CreateStudentRequest{
		StudentID: "20002", CardID: "cafebabe", Name: "Luis", MealPlanType: "Basic",
	})
	assert.ErrorIs(t, err, ErrDuplicateStudent)

	st, err := e.students.FindByID(ctx, "20001")
	require.NoError(t, err)
	assert.NotContains(t, st.CardCiphertext, "CAFEBABE")
}

func TestAdmin_RejectsBlankCardAfterNormalization(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, card := range []string{"- - ", "::::", "A-B-C"} {
		_, err := e.admin.AddStudent(ctx, dto.CreateStudentRequest{
			StudentID: "20001", CardID: card, Name: "Ana", MealPlanType: "Basic",
		})
		assert.ErrorIs(t, err, ErrInvalidInput, card)
	}
	_, err := e.students.FindByID(ctx, "20001")
	assert.Error(t, err)

	e.addStudent(t, "20002", "0A1B2C3D", model.PlanBasic, nil)
	blank := "-  -"
	_, err = e.admin.UpdateStudent(ctx, "20002", dto.UpdateStudentRequest{CardID: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, "20002", v.StudentID)
}

func TestAdmin_ListAndExport(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)
	e.addStudent(t, "10002", "AABBCCDD", model.PlanUnlimited, nil)
	ctx := context.Background()
	require.NoError(t, e.admin.DeactivateStudent(ctx, "10002"))

	list, err := e.admin.ListStudents(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Student 10001", list.Data[0].Name)
	assert.Empty(t, list.Data[0].CardID)

	all, err := e.admin.ExportStudents(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	cards := map[string]string{}
	for _, s := range all {
		cards[s.StudentID] = s.CardID
	}
	assert.Equal(t, "0A1B2C3D", cards["10001"])
	assert.Equal(t, "AABBCCDD", cards["10002"])

	assert.ErrorIs(t, e.admin.DeactivateStudent(ctx, "99999"), ErrNotFound)
}

func TestAdmin_ExportXLSX(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)
	e.addStudent(t, "10002", "AABBCCDD", model.PlanUnlimited, nil)

	var buf bytes.Buffer
	require.NoError(t, e.admin.ExportStudentsXLSX(context.Background(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Students")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Student ID", rows[0][0])

	limits := map[string]string{}
	for _, r := range rows[1:] {
		require.GreaterOrEqual(t, len(r), 6)
		limits[r[0]] = r[5]
	}
	assert.Equal(t, "Unlimited", limits["10002"])
	assert.Equal(t, "3", limits["10001"])
}

func TestAdmin_ListTransactions(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)
	e.addStudent(t, "10002", "AABBCCDD", model.PlanPremium, nil)
	ctx := context.Background()

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)
	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 1))
	require.NoError(t, err)

	v, err = e.resolver.ResolveCard(ctx, "Station_2", "AABBCCDD", at(12, 2))
	require.NoError(t, err)
	_, err = e.decide("Station_2", v.ResolutionID, model.DecisionDenied, model.MealLunch, at(12, 3))
	require.NoError(t, err)

	all, err := e.admin.ListTransactions(ctx, repository.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all.Data, 2)
	// newest first
	assert.Equal(t, "10002", all.Data[0].StudentID)

	denied, err := e.admin.ListTransactions(ctx, repository.TransactionFilter{Decision: model.DecisionDenied})
	require.NoError(t, err)
	require.Len(t, denied.Data, 1)
	assert.Equal(t, string(model.ReasonManualOverride), denied.Data[0].Reason)

	mine, err := e.admin.ListTransactions(ctx, repository.TransactionFilter{StudentID: "10001", BusinessDate: "2025-03-10"})
	require.NoError(t, err)
	require.Len(t, mine.Data, 1)
	assert.Equal(t, "Approved", mine.Data[0].Decision)
}

func TestAdmin_UpdatePlanResetsLimit(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanBasic, nil)

	plan := "Unlimited"
	resp, err := e.admin.UpdateStudent(context.Background(), "10001", dto.UpdateStudentRequest{MealPlanType: &plan})
	require.NoError(t, err)
	assert.True(t, resp.Unlimited)
	assert.Nil(t, resp.DailyMealLimit)

	_, err = e.admin.UpdateStudent(context.Background(), "nobody", dto.UpdateStudentRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdmin_TriggerResetNow(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanBasic, nil)
	ctx := context.Background()

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(12, 0))
	require.NoError(t, err)
	_, err = e.decide("Station_1", v.ResolutionID, model.DecisionApproved, model.MealLunch, at(12, 1))
	require.NoError(t, err)

	resp, err := e.admin.TriggerResetNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", resp.Date)
	assert.Equal(t, int64(1), resp.TransactionsDeleted)
	assert.Equal(t, int64(1), resp.UsageRowsReset)

	v, err = e.resolver.ResolveCard(ctx, "Station_1", "0A1B2C3D", at(12, 5))
	require.NoError(t, err)
	assert.True(t, v.Eligible)

	stats, err := e.admin.GetTodayStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestAdmin_RotateKey(t *testing.T) {
	e := newEnv(t)
	e.addStudent(t, "10001", "0A1B2C3D", model.PlanPremium, nil)
	e.addStudent(t, "10002", "AABBCCDD", model.PlanBasic, nil)
	ctx := context.Background()

	old := e.keys.Current()
	newKey, err := vault.GenerateKey()
	require.NoError(t, err)

	resp, err := e.admin.RotateKey(ctx, newKey)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Rotated)
	assert.NotSame(t, old, e.keys.Current())

	v, err := e.resolver.ResolveCard(ctx, "Station_1", "AABBCCDD", at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, "Student 10002", v.Name)

	st, err := e.students.FindByID(ctx, "10001")
	require.NoError(t, err)
	_, err = old.Decrypt(st.NameCiphertext)
	assert.ErrorIs(t, err, vault.ErrCiphertext)

	_, err = e.admin.RotateKey(ctx, "short")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

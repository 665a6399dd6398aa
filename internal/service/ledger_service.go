package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/scan"
)

// DecisionInput is one cashier verdict on a prior resolution.
type DecisionInput struct {
	ResolutionID string
	StationID    string
	CashierID    string
	Decision     model.Decision
	// MealType may be empty; it is then taken from the service windows.
	MealType model.MealType
	Note     string
	At       time.Time
}

// SheetsEnqueuer hands transaction rows to the background worker.
type SheetsEnqueuer interface {
	EnqueueSheetsTransaction(ctx context.Context, payload interface{}) error
}

// LedgerService records decisions. An approval increments today's usage
// and inserts the transaction in one store transaction, with the limit
// re-checked by the increment statement itself.
type LedgerService interface {
	Decide(ctx context.Context, in DecisionInput) (*dto.DecisionResponse, error)
}

type ledgerService struct {
	db       *gorm.DB
	students repository.StudentRepository
	usage    repository.UsageRepository
	txs      repository.TransactionRepository
	markers  *scan.Markers
	bridge   *bridge.Bridge
	ids      *snowflake.Node
	cal      *Calendar
	sheets   SheetsEnqueuer
}

func NewLedgerService(
	db *gorm.DB,
	students repository.StudentRepository,
	usage repository.UsageRepository,
	txs repository.TransactionRepository,
	markers *scan.Markers,
	b *bridge.Bridge,
	ids *snowflake.Node,
	cal *Calendar,
	sheets SheetsEnqueuer,
) LedgerService {
	return &ledgerService{
		db:       db,
		students: students,
		usage:    usage,
		txs:      txs,
		markers:  markers,
		bridge:   b,
		ids:      ids,
		cal:      cal,
		sheets:   sheets,
	}
}

// errAlreadyDecided rolls back a transaction that lost the race on
// resolution_id to a concurrent submission.
var errAlreadyDecided = errors.New("resolution already decided")

func (s *ledgerService) Decide(ctx context.Context, in DecisionInput) (*dto.DecisionResponse, error) {
	if in.Decision != model.DecisionApproved && in.Decision != model.DecisionDenied {
		return nil, ErrInvalidInput
	}
	if in.MealType != "" && !in.MealType.Valid() {
		return nil, ErrInvalidInput
	}

	if resp, ok, err := s.existing(ctx, in.ResolutionID); err != nil || ok {
		return resp, err
	}

	marker, ok := s.markers.Lookup(in.StationID, in.ResolutionID)
	if !ok || !marker.Found {
		return nil, ErrUnknownResolution
	}
	// decided once already, but the row is gone (admin reset)
	if marker.TransactionID != 0 {
		return nil, ErrUnknownResolution
	}

	meal := in.MealType
	if meal == "" {
		if m, ok := s.cal.MealAt(in.At); ok {
			meal = m
		}
	}

	rid := in.ResolutionID
	t := &model.Transaction{
		ID:           s.ids.Generate().Int64(),
		ResolutionID: &rid,
		StudentID:    marker.StudentID,
		StationID:    in.StationID,
		CashierID:    in.CashierID,
		Decision:     in.Decision,
		BusinessDate: s.cal.Date(in.At),
		CreatedAt:    in.At.UTC(),
	}
	if meal != "" {
		t.MealType = &meal
	}

	var remaining *int
	var unlimited bool
	err := runTx(ctx, s.db, func(tx *gorm.DB) error {
		st, err := s.students.FindByIDTx(tx, marker.StudentID)
		if err != nil {
			return err
		}
		t.MealPlanType = st.MealPlanType
		unlimited = st.DailyMealLimit.IsUnlimited()

		if in.Decision == model.DecisionDenied {
			deny(t, model.ReasonManualOverride, in.Note)
		} else {
			reason, err := s.approve(tx, st, t.BusinessDate, meal, in.At)
			if err != nil {
				return err
			}
			if reason != "" {
				deny(t, reason, "")
			}
		}

		if err := s.txs.CreateTx(tx, t); err != nil {
			if isDuplicate(err) {
				return errAlreadyDecided
			}
			return err
		}

		if u, err := s.usage.FindTx(tx, st.StudentID, t.BusinessDate); err == nil {
			remaining = remainingPtr(st.DailyMealLimit, u.MealsUsed)
		} else if !isNotFound(err) {
			return err
		} else {
			remaining = remainingPtr(st.DailyMealLimit, 0)
		}
		return nil
	})
	if errors.Is(err, errAlreadyDecided) {
		if resp, ok, err := s.existing(ctx, in.ResolutionID); err != nil || ok {
			return resp, err
		}
		return nil, ErrUnknownResolution
	}
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, storeErr("ledger: decide", err)
	}

	s.markers.MarkDecided(in.StationID, in.ResolutionID, t.ID)
	// the terminal has consumed the identity, or the cashier turned it away
	s.bridge.Clear(in.StationID)
	s.enqueueSheets(ctx, t)

	resp := &dto.DecisionResponse{
		Transaction: toTransactionResponse(t),
		Remaining:   remaining,
		Unlimited:   unlimited,
	}

	ev := log.Info()
	if t.Decision == model.DecisionDenied {
		ev = log.Warn()
	}
	ev.Str("station_id", t.StationID).
		Str("student_id", t.StudentID).
		Str("decision", string(t.Decision)).
		Str("meal_type", string(meal)).
		Int64("transaction_id", t.ID).
		Msg("ledger: decision recorded")

	if in.Decision == model.DecisionApproved && t.Decision == model.DecisionDenied {
		return nil, &DenialError{Reason: *t.Reason, Response: resp}
	}
	return resp, nil
}

// approve runs the guarded increment. A non-empty reason means the approval
// was refused and usage is untouched.
func (s *ledgerService) approve(tx *gorm.DB, st *model.Student, date string, meal model.MealType, at time.Time) (model.DenialReason, error) {
	switch {
	case !st.IsActive():
		return model.ReasonInactiveStatus, nil
	case !st.MealPlanType.ServesOn(at.In(s.cal.Loc).Weekday()):
		return model.ReasonNoFridayPlan, nil
	case meal == "":
		return model.ReasonNoMealService, nil
	case !st.MealPlanType.Allows(meal):
		return model.ReasonMealTypeNotAllowed, nil
	}
	if err := s.usage.EnsureTx(tx, st.StudentID, date, at.UTC()); err != nil {
		return "", err
	}
	ok, err := s.usage.IncrementTx(tx, st.StudentID, date, meal, st.DailyMealLimit, at.UTC())
	if err != nil {
		return "", err
	}
	if !ok {
		return model.ReasonLimitReached, nil
	}
	return "", nil
}

func deny(t *model.Transaction, reason model.DenialReason, note string) {
	t.Decision = model.DecisionDenied
	if reason != "" {
		r := reason
		t.Reason = &r
	}
	if note = strings.TrimSpace(note); note != "" {
		t.Note = &note
	}
}

// existing returns the recorded outcome for a resolution already decided.
func (s *ledgerService) existing(ctx context.Context, resolutionID string) (*dto.DecisionResponse, bool, error) {
	prev, err := s.txs.FindByResolutionID(ctx, resolutionID)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr("ledger: find by resolution", err)
	}
	log.Info().Str("resolution_id", resolutionID).Int64("transaction_id", prev.ID).
		Msg("ledger: duplicate decision absorbed")
	return &dto.DecisionResponse{Transaction: toTransactionResponse(prev), Duplicate: true}, true, nil
}

func (s *ledgerService) enqueueSheets(ctx context.Context, t *model.Transaction) {
	if s.sheets == nil {
		return
	}
	local := t.CreatedAt.In(s.cal.Loc)
	meal := "Unknown"
	if t.MealType != nil {
		meal = string(*t.MealType)
	}
	payload := infra.SheetsTransaction{
		Day:       local.Format(dateLayout),
		Time:      local.Format("03:04 PM"),
		StudentID: t.StudentID,
		MealType:  meal,
		Status:    string(t.Decision),
	}
	if err := s.sheets.EnqueueSheetsTransaction(ctx, payload); err != nil {
		log.Warn().Err(err).Int64("transaction_id", t.ID).Msg("ledger: failed to enqueue sheets job")
	}
}

func toTransactionResponse(t *model.Transaction) dto.TransactionResponse {
	r := dto.TransactionResponse{
		TransactionID: formatID(t.ID),
		StudentID:     t.StudentID,
		StationID:     t.StationID,
		CashierID:     t.CashierID,
		Decision:      string(t.Decision),
		BusinessDate:  t.BusinessDate,
		Timestamp:     t.CreatedAt,
	}
	if t.MealType != nil {
		r.MealType = string(*t.MealType)
	}
	if t.Reason != nil {
		r.Reason = string(*t.Reason)
		r.ReasonText = t.Reason.Text()
	}
	if t.Note != nil {
		r.Note = *t.Note
	}
	return r
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

package worker

// sheets_worker.go delivers transaction rows and daily summaries to the
// spreadsheet webhook. Delivery is best effort: the local record is the
// source of truth.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/CT14090/meal-plan-verification/internal/infra"
)

// SheetsSender is implemented by infra.SheetsClient.
type SheetsSender interface {
	LogTransaction(ctx context.Context, p infra.SheetsTransaction) error
	LogSummary(ctx context.Context, p infra.SheetsSummary) error
}

// SummaryAcker is told when a summary was delivered.
type SummaryAcker interface {
	MarkDelivered(ctx context.Context, businessDate string) error
}

type sheetsTransactionHandler struct {
	client SheetsSender
	cb     *infra.CircuitBreaker
}

type sheetsSummaryHandler struct {
	client SheetsSender
	cb     *infra.CircuitBreaker
	acker  SummaryAcker
}

// SheetsHandlers returns the job handlers for both sheets job types.
// acker may be nil.
func SheetsHandlers(client SheetsSender, cb *infra.CircuitBreaker, acker SummaryAcker) map[string]Handler {
	return map[string]Handler{
		JobSheetsTransaction: &sheetsTransactionHandler{client: client, cb: cb},
		JobSheetsSummary:     &sheetsSummaryHandler{client: client, cb: cb, acker: acker},
	}
}

func (h *sheetsTransactionHandler) Process(ctx context.Context, raw json.RawMessage) error {
	var p infra.SheetsTransaction
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error().Err(err).Msg("sheets_worker: invalid transaction payload")
		return fmt.Errorf("invalid payload: %w", err)
	}
	err := deliver(ctx, h.cb, func() error { return h.client.LogTransaction(ctx, p) })
	if err != nil {
		log.Error().Err(err).Str("student_id", p.StudentID).Msg("sheets_worker: transaction not delivered")
		return err
	}
	log.Info().Str("student_id", p.StudentID).Str("meal_type", p.MealType).Str("status", p.Status).
		Msg("sheets_worker: transaction logged")
	return nil
}

func (h *sheetsSummaryHandler) Process(ctx context.Context, raw json.RawMessage) error {
	var p infra.SheetsSummary
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error().Err(err).Msg("sheets_worker: invalid summary payload")
		return fmt.Errorf("invalid payload: %w", err)
	}
	err := deliver(ctx, h.cb, func() error { return h.client.LogSummary(ctx, p) })
	if err != nil {
		log.Error().Err(err).Str("date", p.Date).Msg("sheets_worker: summary not delivered")
		return err
	}
	if h.acker != nil {
		if err := h.acker.MarkDelivered(ctx, p.Date); err != nil {
			log.Warn().Err(err).Str("date", p.Date).Msg("sheets_worker: failed to mark summary delivered")
		}
	}
	log.Info().Str("date", p.Date).Int("total", p.Total).Msg("sheets_worker: daily summary logged")
	return nil
}

// deliver retries fn through the breaker. An open breaker ends the retries
// early; the job goes to the DLQ and is replayed once the breaker closes.
func deliver(ctx context.Context, cb *infra.CircuitBreaker, fn func() error) error {
	return withRetry(ctx, maxAttempts, func(attempt int) error {
		err := cb.Execute(fn)
		if errors.Is(err, infra.ErrCircuitOpen) {
			return stopRetrying(err)
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("sheets_worker: attempt failed")
		}
		return err
	})
}

package worker

// retry_cron.go: background goroutine that moves dead-lettered sheets jobs
// back onto their queue once the webhook is reachable again.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/CT14090/meal-plan-verification/internal/infra"
)

const (
	retryTickInterval = 5 * time.Minute
	retryBatchSize    = 20
	// MaxReplays caps how often one job may cycle through the DLQ.
	MaxReplays = 5
)

type RetryCronConfig struct {
	Queue    Queue
	CB       *infra.CircuitBreaker
	Queues   []string
	Interval time.Duration
}

// StartRetryCron ticks until ctx is done, replaying DLQ entries while the
// breaker is not open.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = retryTickInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				for _, q := range cfg.Queues {
					ReplayDLQ(ctx, cfg.Queue, cfg.CB, q, retryBatchSize)
				}
			}
		}
	}()
}

// ReplayDLQ moves up to batch entries from dlq:{queue} back to queue and
// returns how many were requeued. Entries past MaxReplays stay parked.
func ReplayDLQ(ctx context.Context, q Queue, cb *infra.CircuitBreaker, queue string, batch int) int {
	if cb != nil && cb.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return 0
	}

	dlqKey := DLQPrefix + queue
	var parked [][]byte
	moved := 0
	for i := 0; i < batch; i++ {
		_, raw, err := q.Pop(ctx, 10*time.Millisecond, dlqKey)
		if errors.Is(err, ErrEmpty) {
			break
		}
		if err != nil {
			log.Warn().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: pop failed")
			break
		}
		var entry DLQEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Error().Err(err).Msg("retry_cron: dropping unreadable DLQ entry")
			continue
		}

		if entry.Replays >= MaxReplays {
			parked = append(parked, raw)
			continue
		}
		job := Job{Type: entry.JobType, Payload: entry.Payload, Attempt: entry.Replays + 1}

		encoded, err := json.Marshal(job)
		if err != nil {
			parked = append(parked, raw)
			continue
		}
		if err := q.Push(ctx, queue, encoded); err != nil {
			log.Warn().Err(err).Str("queue", queue).Msg("retry_cron: requeue failed")
			parked = append(parked, raw)
			break
		}
		moved++
	}

	for _, raw := range parked {
		_ = q.Push(ctx, dlqKey, raw)
	}
	if moved > 0 {
		log.Info().Int("count", moved).Str("queue", queue).Msg("retry_cron: replayed dead-lettered jobs")
	}
	return moved
}

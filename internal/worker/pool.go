package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	QueueSheets = "jobs:sheets"

	JobSheetsTransaction = "sheets_transaction"
	JobSheetsSummary     = "sheets_summary"
)

// popTimeout bounds how long a worker blocks before re-checking ctx.
const popTimeout = 5 * time.Second

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt,omitempty"`
}

// Handler processes one job payload. A returned error sends the job to the
// dead letter queue.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs. The worker pool dequeues them.
type Dispatcher struct {
	q       Queue
	enabled bool
}

// NewDispatcher returns a dispatcher. With enabled false every enqueue is a
// silent no-op; the collaborator is switched off.
func NewDispatcher(q Queue, enabled bool) *Dispatcher {
	return &Dispatcher{q: q, enabled: enabled}
}

// EnqueueSheetsTransaction queues one transaction row for the webhook.
func (d *Dispatcher) EnqueueSheetsTransaction(ctx context.Context, payload interface{}) error {
	return d.enqueue(ctx, QueueSheets, JobSheetsTransaction, payload)
}

// EnqueueSheetsSummary queues the daily summary row for the webhook.
func (d *Dispatcher) EnqueueSheetsSummary(ctx context.Context, payload interface{}) error {
	return d.enqueue(ctx, QueueSheets, JobSheetsSummary, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	if d == nil || !d.enabled {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.q.Push(ctx, queue, encoded)
}

// Pool runs workers over a set of queues.
type Pool struct {
	q        Queue
	handlers map[string]Handler
	queues   []string
	wg       sync.WaitGroup
}

func NewPool(q Queue, handlers map[string]Handler, queues ...string) *Pool {
	return &Pool{q: q, handlers: handlers, queues: queues}
}

// Start launches n workers. They stop when ctx is done; Wait blocks until
// they have.
func (p *Pool) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Int("workers", n).Strs("queues", p.queues).Msg("worker pool started")
}

func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		}
		queue, raw, err := p.q.Pop(ctx, popTimeout, p.queues...)
		if err != nil {
			if !errors.Is(err, ErrEmpty) && ctx.Err() == nil {
				log.Warn().Err(err).Int("worker", id).Msg("worker: pop failed")
				time.Sleep(time.Second)
			}
			continue
		}
		p.process(ctx, queue, raw)
	}
}

func (p *Pool) process(ctx context.Context, queue string, raw []byte) {
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("worker: failed to unmarshal job")
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, p.q, queue, job, fmt.Sprintf("no handler for %q", job.Type), 0)
		return
	}
	if err := h.Process(ctx, job.Payload); err != nil {
		SendToDLQ(ctx, p.q, queue, job, err.Error(), maxAttempts)
		return
	}
	log.Debug().Str("type", job.Type).Str("queue", queue).Msg("worker: job done")
}

package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when nothing arrived within the timeout.
var ErrEmpty = errors.New("queue: empty")

// Queue is a FIFO of encoded jobs keyed by queue name. Redis backs it when
// stations share a deployment; a channel backs it on a single station.
type Queue interface {
	Push(ctx context.Context, queue string, data []byte) error
	// Pop blocks up to timeout and returns the queue name and the job.
	Pop(ctx context.Context, timeout time.Duration, queues ...string) (string, []byte, error)
	Len(ctx context.Context, queue string) (int64, error)
}

// RedisQueue uses LPUSH/BRPOP, so idle workers cost nothing.
type RedisQueue struct{ rdb *redis.Client }

func NewRedisQueue(rdb *redis.Client) *RedisQueue { return &RedisQueue{rdb: rdb} }

func (q *RedisQueue) Push(ctx context.Context, queue string, data []byte) error {
	return q.rdb.LPush(ctx, queue, data).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration, queues ...string) (string, []byte, error) {
	res, err := q.rdb.BRPop(ctx, timeout, queues...).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrEmpty
	}
	if err != nil {
		return "", nil, err
	}
	if len(res) < 2 {
		return "", nil, ErrEmpty
	}
	return res[0], []byte(res[1]), nil
}

func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	return q.rdb.LLen(ctx, queue).Result()
}

type memItem struct {
	queue string
	data  []byte
}

// MemoryQueue is a bounded in-process queue. Push fails fast when full so a
// stalled webhook can never block a cashier decision.
type MemoryQueue struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	notify chan struct{}
	cap    int
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		lists:  make(map[string][][]byte),
		notify: make(chan struct{}, 1),
		cap:    capacity,
	}
}

var ErrQueueFull = errors.New("queue: full")

func (q *MemoryQueue) Push(_ context.Context, queue string, data []byte) error {
	q.mu.Lock()
	if len(q.lists[queue]) >= q.cap {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.lists[queue] = append(q.lists[queue], data)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration, queues ...string) (string, []byte, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if name, data, ok := q.take(queues); ok {
			return name, data, nil
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-deadline.C:
			return "", nil, ErrEmpty
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) take(queues []string) (string, []byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, name := range queues {
		l := q.lists[name]
		if len(l) == 0 {
			continue
		}
		data := l[0]
		q.lists[name] = l[1:]
		// more work left: wake another waiter
		if len(l) > 1 {
			select {
			case q.notify <- struct{}{}:
			default:
			}
		}
		return name, data, true
	}
	return "", nil, false
}

func (q *MemoryQueue) Len(_ context.Context, queue string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.lists[queue])), nil
}

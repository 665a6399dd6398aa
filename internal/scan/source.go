package scan

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/CT14090/meal-plan-verification/internal/vault"
)

// Event is one raw presentation of a card, stamped on arrival.
type Event struct {
	CardID string
	At     time.Time
}

// Source emits raw card events until ctx is done or the device closes.
type Source interface {
	Run(ctx context.Context, out chan<- Event) error
}

// LineReader reads a keyboard-wedge style reader: one card UID per line.
type LineReader struct {
	r   io.Reader
	now func() time.Time
}

// NewLineReader wraps r. now may be nil.
func NewLineReader(r io.Reader, now func() time.Time) *LineReader {
	if now == nil {
		now = time.Now
	}
	return &LineReader{r: r, now: now}
}

// OpenDevice opens the reader's device path, or stdin when path is "-".
func OpenDevice(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func (l *LineReader) Run(ctx context.Context, out chan<- Event) error {
	sc := bufio.NewScanner(l.r)
	for sc.Scan() {
		id := vault.NormalizeCardID(sc.Text())
		if id == "" {
			continue
		}
		select {
		case out <- Event{CardID: id, At: l.now()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}

// Pump feeds events from src through d and calls handle for each accepted
// scan. It returns when ctx is done or src stops.
func Pump(ctx context.Context, src Source, d *Debouncer, handle func(context.Context, Event)) error {
	events := make(chan Event, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(ctx, events)
		close(events)
	}()

	for ev := range events {
		if !d.Accept(ev.CardID, ev.At) {
			log.Debug().Str("card", vault.Mask(ev.CardID)).Msg("scan: suppressed by debounce")
			continue
		}
		handle(ctx, ev)
	}
	return <-errc
}

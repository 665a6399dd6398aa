package scan

import (
	"sync"
	"time"
)

// sweepThreshold bounds how large the map may grow before a full sweep of
// stale entries runs on the next call.
const sweepThreshold = 256

// Debouncer suppresses repeated presentations of the same card within a
// fixed cooldown measured from the first accepted event. Suppressed events
// never extend the window, so a card left on the reader is accepted again
// once per cooldown.
type Debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
}

func NewDebouncer(cooldown time.Duration) *Debouncer {
	return &Debouncer{cooldown: cooldown, last: make(map[string]time.Time)}
}

// Accept reports whether the event for cardID at time at is a new scan.
func (d *Debouncer) Accept(cardID string, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.last) >= sweepThreshold {
		d.sweep(at)
	}

	if prev, ok := d.last[cardID]; ok {
		if at.Sub(prev) < d.cooldown {
			return false
		}
		delete(d.last, cardID)
	}
	d.last[cardID] = at
	return true
}

func (d *Debouncer) sweep(now time.Time) {
	for id, ts := range d.last {
		if now.Sub(ts) >= d.cooldown {
			delete(d.last, id)
		}
	}
}

// Len returns the number of tracked cards.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}

// Stations keeps one Debouncer per station, created on first use.
type Stations struct {
	mu       sync.Mutex
	cooldown time.Duration
	m        map[string]*Debouncer
}

func NewStations(cooldown time.Duration) *Stations {
	return &Stations{cooldown: cooldown, m: make(map[string]*Debouncer)}
}

// For returns the station's debouncer.
func (s *Stations) For(station string) *Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.m[station]
	if !ok {
		d = NewDebouncer(s.cooldown)
		s.m[station] = d
	}
	return d
}

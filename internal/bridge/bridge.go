// Package bridge holds the per-station lookup slot read by the external
// point-of-sale terminal. Slots live in this process only.
package bridge

import (
	"sync"
	"time"
)

// Identity is the display-ready record a terminal reads.
type Identity struct {
	StudentID    string `json:"student_id"`
	Name         string `json:"name"`
	MealPlanType string `json:"meal_plan_type"`
	Eligible     bool   `json:"eligible"`
	// Remaining is nil when the student has no daily limit.
	Remaining *int `json:"remaining"`
}

// Slot is a published identity and when it was published.
type Slot struct {
	Identity
	PublishedAt time.Time `json:"published_at"`
}

// Bridge maps station id to its current slot.
type Bridge struct {
	mu      sync.RWMutex
	slots   map[string]Slot
	timeout time.Duration
	now     func() time.Time
}

// New returns a bridge whose slots expire after displayTimeout. now may be nil.
func New(displayTimeout time.Duration, now func() time.Time) *Bridge {
	if now == nil {
		now = time.Now
	}
	return &Bridge{slots: make(map[string]Slot), timeout: displayTimeout, now: now}
}

// Publish overwrites the station's slot.
func (b *Bridge) Publish(station string, id Identity) {
	b.mu.Lock()
	b.slots[station] = Slot{Identity: id, PublishedAt: b.now()}
	b.mu.Unlock()
}

// Consume returns the live slot without clearing it. Slots older than the
// display timeout are reported absent and dropped.
func (b *Bridge) Consume(station string) (Slot, bool) {
	b.mu.RLock()
	s, ok := b.slots[station]
	b.mu.RUnlock()
	if !ok {
		return Slot{}, false
	}
	if b.now().Sub(s.PublishedAt) >= b.timeout {
		b.mu.Lock()
		// only drop it if nobody republished in between
		if cur, ok := b.slots[station]; ok && cur.PublishedAt.Equal(s.PublishedAt) {
			delete(b.slots, station)
		}
		b.mu.Unlock()
		return Slot{}, false
	}
	return s, true
}

// Clear drops the station's slot.
func (b *Bridge) Clear(station string) {
	b.mu.Lock()
	delete(b.slots, station)
	b.mu.Unlock()
}

// Reset drops every slot.
func (b *Bridge) Reset() {
	b.mu.Lock()
	b.slots = make(map[string]Slot)
	b.mu.Unlock()
}

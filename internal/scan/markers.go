package scan

import (
	"sync"
	"time"
)

// Marker records the latest resolution made on a station so the cashier UI
// can tell a new scan from one it has already shown, and so the ledger can
// tie a decision to the resolution that produced it.
type Marker struct {
	ResolutionID string    `json:"resolution_id"`
	StationID    string    `json:"station_id"`
	StudentID    string    `json:"student_id,omitempty"`
	Found        bool      `json:"found"`
	At           time.Time `json:"at"`
	// TransactionID is set once a decision was recorded for this resolution.
	TransactionID int64 `json:"transaction_id,omitempty"`
}

// Markers keeps one marker per station. A new resolution replaces the
// previous one.
type Markers struct {
	mu sync.RWMutex
	m  map[string]Marker
}

func NewMarkers() *Markers {
	return &Markers{m: make(map[string]Marker)}
}

func (s *Markers) Stamp(m Marker) {
	s.mu.Lock()
	s.m[m.StationID] = m
	s.mu.Unlock()
}

// Latest returns the station's marker if it is newer than since.
func (s *Markers) Latest(station string, since time.Time) (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.m[station]
	if !ok || !m.At.After(since) {
		return Marker{}, false
	}
	return m, true
}

// Lookup returns the station's marker only if it carries resolutionID.
func (s *Markers) Lookup(station, resolutionID string) (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.m[station]
	if !ok || m.ResolutionID != resolutionID {
		return Marker{}, false
	}
	return m, true
}

// MarkDecided records the transaction produced for resolutionID. It is a
// no-op when the station has since moved on to another resolution.
func (s *Markers) MarkDecided(station, resolutionID string, txID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.m[station]
	if !ok || m.ResolutionID != resolutionID {
		return
	}
	m.TransactionID = txID
	s.m[station] = m
}

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/i474232898/weather-station/internal/dashboard"
	"github.com/i474232898/weather-station/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshot is available for a given location.
	ErrNotFound = errors.New("no dashboard snapshots for location")
)

// SnapshotHistory holds a time-ordered list of committed dashboard states for a location.
type SnapshotHistory struct {
	Snapshots []dashboard.State
}

// MemoryStore is a concurrency-safe in-memory history of dashboard refreshes.
// It lives for the process only.
type MemoryStore struct {
	mu    sync.RWMutex
	clock clock.Clock

	// key: location key, value: history
	data map[string]*SnapshotHistory

	maxHistory int           // max number of snapshots per location
	maxAge     time.Duration // optional max age for snapshots
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &MemoryStore{
		clock:      clk,
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Publish implements dashboard.Sink.
func (s *MemoryStore) Publish(_ context.Context, state dashboard.State) error {
	s.SaveSnapshot(state.Location, state)
	return nil
}

// SaveSnapshot appends a snapshot for a location and enforces retention.
func (s *MemoryStore) SaveSnapshot(loc weather.Location, snapshot dashboard.State) {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &SnapshotHistory{}
		s.data[key] = history
	}

	history.Snapshots = append(history.Snapshots, snapshot)

	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots); i++ {
			if !history.Snapshots[i].UpdatedAt.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
}

// GetLatest returns the most recent snapshot for a location.
func (s *MemoryStore) GetLatest(loc weather.Location) (dashboard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.Key()]
	if !ok || len(history.Snapshots) == 0 {
		return dashboard.State{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all snapshots for a location updated between from and to (inclusive).
func (s *MemoryStore) GetRange(loc weather.Location, from, to time.Time) ([]dashboard.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.Key()]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []dashboard.State
	for _, snap := range history.Snapshots {
		if !snap.UpdatedAt.Before(from) && !snap.UpdatedAt.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}

package store

import (
	"context"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station/internal/dashboard"
	"github.com/i474232898/weather-station/internal/weather"
)

var (
	sanJose = weather.Location{City: "San Jose", Country: "US"}
	base    = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
)

func snap(loc weather.Location, at time.Time, id string) dashboard.State {
	return dashboard.State{Status: dashboard.StatusReady, Location: loc, UpdatedAt: at, RefreshID: id}
}

func TestMemoryStore_GetLatest(t *testing.T) {
	s := NewMemoryStore(0, 0, fakeclock.NewFakeClock(base))

	_, err := s.GetLatest(sanJose)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Publish(context.Background(), snap(sanJose, base, "a")))
	require.NoError(t, s.Publish(context.Background(), snap(sanJose, base.Add(time.Minute), "b")))

	latest, err := s.GetLatest(sanJose)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.RefreshID)

	_, err = s.GetLatest(weather.Location{City: "Paris", Country: "FR"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0, fakeclock.NewFakeClock(base))
	for i, id := range []string{"a", "b", "c"} {
		s.SaveSnapshot(sanJose, snap(sanJose, base.Add(time.Duration(i)*time.Minute), id))
	}

	got, err := s.GetRange(sanJose, base.Add(-time.Hour), base.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].RefreshID)
	assert.Equal(t, "c", got[1].RefreshID)
}

func TestMemoryStore_RetentionByAge(t *testing.T) {
	clk := fakeclock.NewFakeClock(base)
	s := NewMemoryStore(0, time.Hour, clk)

	s.SaveSnapshot(sanJose, snap(sanJose, base.Add(-2*time.Hour), "old"))
	s.SaveSnapshot(sanJose, snap(sanJose, base.Add(-30*time.Minute), "recent"))

	got, err := s.GetRange(sanJose, base.Add(-3*time.Hour), base)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].RefreshID)

	clk.Increment(2 * time.Hour)
	s.SaveSnapshot(sanJose, snap(sanJose, clk.Now(), "new"))

	got, err = s.GetRange(sanJose, base.Add(-3*time.Hour), clk.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].RefreshID)
}

func TestMemoryStore_GetRangeIsInclusive(t *testing.T) {
	s := NewMemoryStore(0, 0, fakeclock.NewFakeClock(base))
	s.SaveSnapshot(sanJose, snap(sanJose, base, "edge"))

	got, err := s.GetRange(sanJose, base, base)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.GetRange(sanJose, base.Add(time.Second), base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

package readings

import (
	"context"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-station/internal/db"
)

func newTestRecorder(t *testing.T, clk *fakeclock.FakeClock) *Recorder {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "readings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo, err := NewRepository(context.Background(), sqlDB)
	require.NoError(t, err)
	return NewRecorder(NewSensor(clk, rand.New(rand.NewPCG(11, 12))), repo)
}

func TestSensor_ReadRanges(t *testing.T) {
	s := NewSensor(fakeclock.NewFakeClock(time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)), rand.New(rand.NewPCG(1, 1)))

	for range 200 {
		r := s.Read()
		assert.True(t, r.Temperature >= 15 && r.Temperature <= 30, "temperature %v", r.Temperature)
		assert.True(t, r.Humidity >= 40 && r.Humidity <= 80, "humidity %v", r.Humidity)
		assert.True(t, r.Pressure >= 1000 && r.Pressure <= 1025, "pressure %v", r.Pressure)
		assert.InDelta(t, r.Temperature, math.Round(r.Temperature*100)/100, 1e-9)
	}
}

func TestRecorder_RecordAndList(t *testing.T) {
	start := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	clk := fakeclock.NewFakeClock(start)
	rec := newTestRecorder(t, clk)
	ctx := context.Background()

	first, err := rec.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	clk.Increment(time.Minute)
	second, err := rec.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	list, err := rec.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.True(t, list[1].Timestamp.Equal(start))
	assert.Equal(t, first.Temperature, list[1].Temperature)
	assert.Equal(t, first.Pressure, list[1].Pressure)

	limited, err := rec.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestRepository_ListEmpty(t *testing.T) {
	rec := newTestRecorder(t, fakeclock.NewFakeClock(time.Now()))

	list, err := rec.List(context.Background(), 10)

	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

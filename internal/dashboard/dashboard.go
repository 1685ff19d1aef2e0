package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"

	"github.com/i474232898/weather-station/internal/weather"
)

// Status is the lifecycle of the displayed dataset.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

var (
	// ErrSuperseded is returned by a refresh whose result was discarded because
	// a newer refresh started after it.
	ErrSuperseded = errors.New("refresh superseded by a newer request")

	ErrEmptyCity = errors.New("city must not be empty")
)

// State is everything the presentation layer renders.
type State struct {
	Status     Status                       `json:"status"`
	Location   weather.Location             `json:"location"`
	Source     string                       `json:"source"`
	Unit       weather.TemperatureUnit      `json:"unit"`
	Current    *float64                     `json:"current,omitempty"`
	Hourly     []weather.HourlyDisplayPoint `json:"hourly"`
	Daily      []weather.DailySummary       `json:"daily"`
	Warning    string                       `json:"warning,omitempty"`
	Error      string                       `json:"error,omitempty"`
	UpdatedAt  time.Time                    `json:"updatedAt"`
	RefreshID  string                       `json:"refreshId,omitempty"`
	Generation uint64                       `json:"generation"`
}

func (s State) clone() State {
	out := s
	out.Hourly = slices.Clone(s.Hourly)
	out.Daily = slices.Clone(s.Daily)
	if s.Current != nil {
		c := *s.Current
		out.Current = &c
	}
	return out
}

// Sink receives every state a refresh commits.
type Sink interface {
	Publish(ctx context.Context, state State) error
}

// Dashboard owns the displayed dataset and runs the Source → aggregation pipeline.
// Every refresh takes a generation number; only the completion holding the
// latest generation may overwrite the state.
type Dashboard struct {
	source   weather.Source
	geocoder weather.Geocoder
	clock    clock.Clock
	log      *slog.Logger

	mu    sync.RWMutex
	loc   weather.Location
	gen   uint64
	state State
	sinks []Sink
}

// Option customises a Dashboard.
type Option func(*Dashboard)

func WithGeocoder(g weather.Geocoder) Option {
	return func(d *Dashboard) { d.geocoder = g }
}

func WithClock(c clock.Clock) Option {
	return func(d *Dashboard) { d.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dashboard) { d.log = l }
}

func WithSinks(s ...Sink) Option {
	return func(d *Dashboard) { d.sinks = append(d.sinks, s...) }
}

// New creates a dashboard for loc backed by source. No fetch happens until Refresh.
func New(source weather.Source, loc weather.Location, opts ...Option) *Dashboard {
	d := &Dashboard{
		source: source,
		clock:  clock.NewClock(),
		log:    slog.Default(),
		loc:    loc,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.state = State{
		Status:   StatusIdle,
		Location: loc,
		Source:   source.Name(),
		Hourly:   []weather.HourlyDisplayPoint{},
		Daily:    []weather.DailySummary{},
	}
	return d
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.clone()
}

// Location returns the location the next refresh will fetch.
func (d *Dashboard) Location() weather.Location {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loc
}

// Refresh fetches new samples and recomputes the hourly and daily views.
//
// A source failure moves the state to failed while keeping the previously
// displayed data, and is returned. When a newer refresh started in the
// meantime the result is dropped and ErrSuperseded is returned.
func (d *Dashboard) Refresh(ctx context.Context) (State, error) {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	loc := d.loc
	d.state.Status = StatusLoading
	d.state.Location = loc
	d.state.Generation = gen
	d.mu.Unlock()

	log := d.log.With("location", loc.Key(), "generation", gen, "source", d.source.Name())
	log.Debug("dashboard refresh started")

	series, fetchErr := d.source.Fetch(ctx, loc)

	d.mu.Lock()
	if gen != d.gen {
		current := d.state.clone()
		d.mu.Unlock()
		log.Debug("dropping stale refresh result", "latest", current.Generation)
		return current, ErrSuperseded
	}

	next := d.state.clone()
	next.UpdatedAt = d.clock.Now()
	next.RefreshID = uuid.NewString()
	next.Warning = ""
	next.Error = ""

	if fetchErr != nil {
		next.Status = StatusFailed
		next.Error = fetchErr.Error()
		log.Error("weather fetch failed", "error", fetchErr)
	} else {
		d.apply(&next, series, log)
	}

	d.state = next
	committed := next.clone()
	sinks := d.sinks
	d.mu.Unlock()

	d.publish(ctx, sinks, committed)

	if fetchErr != nil {
		return committed, fmt.Errorf("refresh %s: %w", loc.Key(), fetchErr)
	}
	return committed, nil
}

// apply runs the aggregation for a successful fetch.
func (d *Dashboard) apply(next *State, series weather.Series, log *slog.Logger) {
	next.Unit = series.Unit
	next.Current = series.Current

	if len(series.Samples) == 0 {
		next.Status = StatusEmpty
		next.Hourly = []weather.HourlyDisplayPoint{}
		next.Daily = []weather.DailySummary{}
		log.Warn("weather source returned no samples")
		return
	}

	// Day boundaries and the current hour are read in the zone of the samples,
	// which is the forecast location's zone.
	now := next.UpdatedAt.In(series.Samples[0].Time.Location())

	next.Status = StatusReady
	next.Hourly = weather.AlignToCurrentHour(series.Samples, now)
	if len(next.Hourly) == 0 {
		next.Warning = "no samples at or after the current hour"
	}

	daily, err := weather.SummarizeByDay(series.Samples, now)
	if err != nil {
		next.Daily = []weather.DailySummary{}
		next.Warning = joinWarning(next.Warning, "daily summary unavailable: "+err.Error())
		log.Warn("daily summary skipped", "error", err)
		return
	}
	next.Daily = daily
}

// SetLocation switches to a new city and refreshes. With a geocoder the city
// is resolved to coordinates first; without one the previous coordinates stay.
func (d *Dashboard) SetLocation(ctx context.Context, city, country string) (State, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return d.Snapshot(), ErrEmptyCity
	}

	loc := d.Location()
	loc.City = city
	if c := strings.TrimSpace(country); c != "" {
		loc.Country = c
	}

	if d.geocoder != nil {
		resolved, err := d.geocoder.Resolve(ctx, loc)
		if err != nil {
			return d.Snapshot(), fmt.Errorf("resolve location: %w", err)
		}
		loc = resolved
	}

	d.mu.Lock()
	d.loc = loc
	d.mu.Unlock()
	d.log.Info("dashboard location changed", "location", loc.Key())

	return d.Refresh(ctx)
}

func (d *Dashboard) publish(ctx context.Context, sinks []Sink, state State) {
	for _, s := range sinks {
		if err := s.Publish(ctx, state); err != nil {
			d.log.Warn("dashboard sink failed", "error", err, "refresh_id", state.RefreshID)
		}
	}
}

func joinWarning(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

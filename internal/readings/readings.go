package readings

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// Reading is one station measurement.
type Reading struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
}

// Sensor simulates a station: temperature 15-30 °C, humidity 40-80 %,
// pressure 1000-1025 hPa, all rounded to two decimals.
type Sensor struct {
	clock clock.Clock
	mu    sync.Mutex
	rnd   *rand.Rand
}

func NewSensor(clk clock.Clock, rnd *rand.Rand) *Sensor {
	if clk == nil {
		clk = clock.NewClock()
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sensor{clock: clk, rnd: rnd}
}

// Read takes one simulated measurement.
func (s *Sensor) Read() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Reading{
		Timestamp:   s.clock.Now().UTC(),
		Temperature: uniform(s.rnd, 15, 30),
		Humidity:    uniform(s.rnd, 40, 80),
		Pressure:    uniform(s.rnd, 1000, 1025),
	}
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return math.Round((lo+r.Float64()*(hi-lo))*100) / 100
}

const schema = `
CREATE TABLE IF NOT EXISTS weather (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	temperature REAL NOT NULL,
	humidity REAL NOT NULL,
	pressure REAL NOT NULL
)`

// Repository persists readings in the SQLite "weather" table.
type Repository struct {
	db *sql.DB
}

// NewRepository creates the table if it does not exist.
func NewRepository(ctx context.Context, db *sql.DB) (*Repository, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create weather table: %w", err)
	}
	return &Repository{db: db}, nil
}

// Insert stores r and returns it with its ID set.
func (r *Repository) Insert(ctx context.Context, rd Reading) (Reading, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO weather (timestamp, temperature, humidity, pressure) VALUES (?, ?, ?, ?)`,
		rd.Timestamp.UTC(), rd.Temperature, rd.Humidity, rd.Pressure,
	)
	if err != nil {
		return Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Reading{}, fmt.Errorf("insert reading id: %w", err)
	}
	rd.ID = id
	return rd, nil
}

// List returns up to limit readings, newest first. limit <= 0 means no limit.
func (r *Repository) List(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, timestamp, temperature, humidity, pressure FROM weather ORDER BY timestamp DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	out := []Reading{}
	for rows.Next() {
		var rd Reading
		if err := rows.Scan(&rd.ID, &rd.Timestamp, &rd.Temperature, &rd.Humidity, &rd.Pressure); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

// Recorder ties a sensor to a repository.
type Recorder struct {
	sensor *Sensor
	repo   *Repository
}

func NewRecorder(sensor *Sensor, repo *Repository) *Recorder {
	return &Recorder{sensor: sensor, repo: repo}
}

// Record takes a measurement and stores it.
func (r *Recorder) Record(ctx context.Context) (Reading, error) {
	return r.repo.Insert(ctx, r.sensor.Read())
}

// List delegates to the repository.
func (r *Recorder) List(ctx context.Context, limit int) ([]Reading, error) {
	return r.repo.List(ctx, limit)
}

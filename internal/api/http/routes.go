package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-station/internal/dashboard"
	"github.com/i474232898/weather-station/internal/readings"
	"github.com/i474232898/weather-station/internal/store"
	"github.com/i474232898/weather-station/internal/weather"
)

var validate = validator.New()

// Dashboard is the presenter the routes drive.
type Dashboard interface {
	Snapshot() dashboard.State
	Location() weather.Location
	Refresh(ctx context.Context) (dashboard.State, error)
	SetLocation(ctx context.Context, city, country string) (dashboard.State, error)
}

// History serves past dashboard snapshots.
type History interface {
	GetRange(loc weather.Location, from, to time.Time) ([]dashboard.State, error)
}

// Readings records and lists simulated station readings.
type Readings interface {
	Record(ctx context.Context) (readings.Reading, error)
	List(ctx context.Context, limit int) ([]readings.Reading, error)
}

// Deps bundles what the routes need. History and Readings may be nil.
type Deps struct {
	Dashboard      Dashboard
	History        History
	Readings       Readings
	RefreshTimeout time.Duration
	Log            *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}
	if h.deps.RefreshTimeout <= 0 {
		h.deps.RefreshTimeout = 30 * time.Second
	}
	if h.deps.Log == nil {
		h.deps.Log = slog.Default()
	}

	v1 := app.Group("/api/v1")

	dash := v1.Group("/dashboard")
	dash.Get("/", h.getDashboard)
	dash.Get("/hourly", h.getHourly)
	dash.Get("/daily", h.getDaily)
	dash.Post("/refresh", h.refresh)
	dash.Put("/location", h.setLocation)
	dash.Get("/history", h.history)

	v1.Post("/readings", h.recordReading)
	v1.Get("/readings", h.listReadings)
}

type handlers struct {
	deps Deps
}

func (h *handlers) getDashboard(c *fiber.Ctx) error {
	return c.JSON(h.deps.Dashboard.Snapshot())
}

func (h *handlers) getHourly(c *fiber.Ctx) error {
	s := h.deps.Dashboard.Snapshot()
	return c.JSON(fiber.Map{
		"status": s.Status,
		"unit":   s.Unit,
		"hourly": s.Hourly,
	})
}

func (h *handlers) getDaily(c *fiber.Ctx) error {
	s := h.deps.Dashboard.Snapshot()
	return c.JSON(fiber.Map{
		"status": s.Status,
		"unit":   s.Unit,
		"daily":  s.Daily,
	})
}

// refresh runs in the background unless ?wait=true is given.
func (h *handlers) refresh(c *fiber.Ctx) error {
	if c.Query("wait") == "true" {
		ctx, cancel := context.WithTimeout(c.UserContext(), h.deps.RefreshTimeout)
		defer cancel()
		return h.respondRefresh(c, func() (dashboard.State, error) {
			return h.deps.Dashboard.Refresh(ctx)
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.deps.RefreshTimeout)
		defer cancel()
		if _, err := h.deps.Dashboard.Refresh(ctx); err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
			h.deps.Log.Warn("background refresh failed", "error", err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": dashboard.StatusLoading,
	})
}

type locationRequest struct {
	City    string `json:"city" validate:"required,max=100"`
	Country string `json:"country" validate:"omitempty,max=100"`
}

func (h *handlers) setLocation(c *fiber.Ctx) error {
	var req locationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.deps.RefreshTimeout)
	defer cancel()
	return h.respondRefresh(c, func() (dashboard.State, error) {
		return h.deps.Dashboard.SetLocation(ctx, req.City, req.Country)
	})
}

// respondRefresh maps refresh outcomes to responses. A source failure still
// answers 200 with the failed state; the state carries the error message.
func (h *handlers) respondRefresh(c *fiber.Ctx, run func() (dashboard.State, error)) error {
	state, err := run()
	switch {
	case err == nil:
		return c.JSON(state)
	case errors.Is(err, dashboard.ErrEmptyCity):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, dashboard.ErrSuperseded):
		return c.Status(fiber.StatusConflict).JSON(state)
	case state.Status == dashboard.StatusFailed:
		return c.JSON(state)
	default:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}

func (h *handlers) history(c *fiber.Ctx) error {
	if h.deps.History == nil {
		return fiber.NewError(fiber.StatusNotFound, "history is not enabled")
	}

	var req historyQuery
	if err := req.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	loc := h.deps.Dashboard.Location()
	if req.City != "" {
		loc = weather.Location{City: req.City, Country: req.Country}
	}

	snapshots, err := h.deps.History.GetRange(loc, req.From, req.To)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no dashboard history for requested range")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to read dashboard history")
	}

	return c.JSON(fiber.Map{
		"location":  loc,
		"from":      req.From,
		"to":        req.To,
		"snapshots": snapshots,
	})
}

func (h *handlers) recordReading(c *fiber.Ctx) error {
	if h.deps.Readings == nil {
		return fiber.NewError(fiber.StatusNotFound, "reading log is not enabled")
	}
	rd, err := h.deps.Readings.Record(c.UserContext())
	if err != nil {
		h.deps.Log.Error("record reading failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to record reading")
	}
	return c.Status(fiber.StatusCreated).JSON(rd)
}

func (h *handlers) listReadings(c *fiber.Ctx) error {
	if h.deps.Readings == nil {
		return fiber.NewError(fiber.StatusNotFound, "reading log is not enabled")
	}
	var q readingsQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	list, err := h.deps.Readings.List(c.UserContext(), q.Limit)
	if err != nil {
		h.deps.Log.Error("list readings failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list readings")
	}
	return c.JSON(list)
}

// historyQuery holds query parameters for the history endpoint. City and
// Country default to the dashboard's current location.
type historyQuery struct {
	City    string
	Country string    `validate:"required_with=City"`
	From    time.Time `validate:"required"`
	To      time.Time `validate:"required,gtefield=From"`
}

func (q *historyQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")
	q.Country = c.Query("country")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

type readingsQuery struct {
	Limit int `validate:"gte=0,lte=1000"`
}

func (q *readingsQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("limit")
	if raw == "" {
		q.Limit = 100
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	q.Limit = n
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

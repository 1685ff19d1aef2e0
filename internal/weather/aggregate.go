package weather

import (
	"math"
	"sort"
	"time"
)

const (
	// HoursPerDay is the fixed block width used to bucket samples into days.
	HoursPerDay = 24
	// ForecastDays is the number of daily summaries produced.
	ForecastDays = 7
)

// AlignToCurrentHour returns up to 24 points starting at the first sample at or
// after now truncated to the top of the hour. Samples must be ordered by time.
// When no such sample exists the result is empty.
func AlignToCurrentHour(samples []HourlySample, now time.Time) []HourlyDisplayPoint {
	start := topOfHour(now)

	idx := sort.Search(len(samples), func(i int) bool {
		return !samples[i].Time.Before(start)
	})

	end := min(idx+HoursPerDay, len(samples))
	points := make([]HourlyDisplayPoint, 0, end-idx)
	for _, s := range samples[idx:end] {
		points = append(points, HourlyDisplayPoint{
			Hour:        s.Time.Hour(),
			Temperature: roundHalfUp(s.Temperature),
		})
	}
	return points
}

// SummarizeByDay averages each 24-sample block into one DailySummary, starting
// with block 0 as today (the day of now). Labels rotate from today's weekday.
//
// Empty input yields an empty result. Input shorter than seven full days yields
// a *DataIncompleteError.
func SummarizeByDay(samples []HourlySample, now time.Time) ([]DailySummary, error) {
	if len(samples) == 0 {
		return []DailySummary{}, nil
	}
	want := ForecastDays * HoursPerDay
	if len(samples) < want {
		return nil, &DataIncompleteError{Have: len(samples), Want: want}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := make([]DailySummary, 0, ForecastDays)

	for offset := range ForecastDays {
		block := samples[offset*HoursPerDay : offset*HoursPerDay+HoursPerDay]

		var (
			sum       float64
			precip    float64
			maxChance float64
		)
		high, low := block[0].Temperature, block[0].Temperature
		for _, s := range block {
			sum += s.Temperature
			precip += s.Precipitation
			high = max(high, s.Temperature)
			low = min(low, s.Temperature)
			maxChance = max(maxChance, s.RainChance)
		}

		wd := time.Weekday((int(now.Weekday()) + offset) % 7)
		days = append(days, DailySummary{
			Day:                wd.String(),
			Weekday:            wd,
			Date:               today.AddDate(0, 0, offset),
			AverageTemperature: roundHalfUp(sum / float64(len(block))),
			High:               roundHalfUp(high),
			Low:                roundHalfUp(low),
			Precipitation:      math.Round(precip*100) / 100,
			RainChance:         roundHalfUp(maxChance),
		})
	}

	return days, nil
}

func topOfHour(t time.Time) time.Time {
	// Wall-clock truncation; time.Truncate ignores the zone offset.
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// roundHalfUp rounds to the nearest integer with halves going toward +Inf.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

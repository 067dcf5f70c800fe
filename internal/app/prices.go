package app

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNoPriceData indicates the price series has no entry at or before the
// requested date.
var ErrNoPriceData = errors.New("no price data at or before date")

// PricePoint is one daily BTC/USD close.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceResolver answers date -> USD close lookups over a merged
// historical + live price series. It is read-only after construction and
// safe for concurrent use.
type PriceResolver struct {
	points []PricePoint // ascending, unique days
}

// NewPriceResolver merges the static historical series with the live-appended
// series. Dates are truncated to day granularity; when both series carry the
// same day, the live close wins.
func NewPriceResolver(historical, live []PricePoint) *PriceResolver {
	merged := make(map[time.Time]float64, len(historical)+len(live))
	for _, p := range historical {
		merged[dayOf(p.Date)] = p.Close
	}
	for _, p := range live {
		merged[dayOf(p.Date)] = p.Close
	}

	points := make([]PricePoint, 0, len(merged))
	for day, close := range merged {
		points = append(points, PricePoint{Date: day, Close: close})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	return &PriceResolver{points: points}
}

// PriceAt returns the close for the given date. Missing dates resolve to the
// most recent earlier day's close; gaps are never silently filled with
// interpolated values. Returns ErrNoPriceData when no day in the series is at
// or before the query.
func (r *PriceResolver) PriceAt(date time.Time) (float64, error) {
	day := dayOf(date)

	// First index strictly after the query day; the answer is the point
	// immediately before it.
	i := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].Date.After(day)
	})
	if i == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoPriceData, day.Format("2006-01-02"))
	}
	return r.points[i-1].Close, nil
}

// Len returns the number of distinct days in the merged series.
func (r *PriceResolver) Len() int {
	return len(r.points)
}

// LastDate returns the most recent day in the series, or false when empty.
func (r *PriceResolver) LastDate() (time.Time, bool) {
	if len(r.points) == 0 {
		return time.Time{}, false
	}
	return r.points[len(r.points)-1].Date, true
}

// dayOf truncates a timestamp to UTC day granularity.
func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

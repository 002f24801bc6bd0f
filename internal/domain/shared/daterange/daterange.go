package daterange

import (
	"errors"
	"iter"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must be after start")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval of calendar days [Start, End).
// Both bounds are UTC midnights.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to the UTC calendar day it falls on.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Single returns the one-day range [d, d+1).
func Single(d time.Time) DateRange {
	start := Day(d)
	return DateRange{Start: start, End: start.Add(day)}
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrInvalidRange
	}
	if !dr.End.After(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.End.Sub(dr.Start) / day)
}

// Days yields every calendar day in the range in ascending order.
func (dr DateRange) Days() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for d := dr.Start; d.Before(dr.End); d = d.Add(day) {
			if !yield(d) {
				return
			}
		}
	}
}

// DayList materializes Days.
func (dr DateRange) DayList() []time.Time {
	out := make([]time.Time, 0, dr.Nights())
	for d := range dr.Days() {
		out = append(out, d)
	}
	return out
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Start.Before(other.End) && other.Start.Before(dr.End)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.Start) || t.After(dr.Start)) && t.Before(dr.End)
}

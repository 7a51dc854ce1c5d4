package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danielgrim/dayblock/internal/model"
)

// Clock abstracts wall-clock time so the engine and its tests are
// deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().Truncate(time.Minute)
}

func SystemClock() Clock {
	return systemClock{}
}

// Fixed is a Clock pinned to a settable instant.
type Fixed struct {
	Time time.Time
}

func (f *Fixed) Now() time.Time {
	return f.Time
}

func (f *Fixed) Advance(minutes int64) {
	f.Time = f.Time.Add(time.Duration(minutes) * time.Minute)
}

// ParseWall parses a "HH:mm" string into minutes from midnight. The
// whole string must match; trailing text like "12:30pm" is an error.
func ParseWall(value string) (int, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid wall time %q", value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid wall time %q", value)
	}
	mins, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid wall time %q", value)
	}
	if hours < 0 || hours > 23 || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("invalid wall time %q", value)
	}
	return hours*60 + mins, nil
}

// OnDay places a "HH:mm" wall time onto the given calendar day.
func OnDay(day time.Time, wall string) (time.Time, error) {
	mins, err := ParseWall(wall)
	if err != nil {
		return time.Time{}, err
	}
	return DayStart(day).Add(time.Duration(mins) * time.Minute), nil
}

func DayStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func AddMinutes(t time.Time, minutes int64) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// Interval is a half-open [Start, End) span of wall-clock time.
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Minutes() int64 {
	return int64(iv.End.Sub(iv.Start) / time.Minute)
}

func (iv Interval) Empty() bool {
	return !iv.End.After(iv.Start)
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Subtract removes the exclusion intervals from candidate and returns
// the remaining sub-intervals in chronological order. Zero-length
// results are dropped, so an empty candidate yields nil.
func Subtract(candidate Interval, exclusions []Interval) []Interval {
	if candidate.Empty() {
		return nil
	}

	remaining := []Interval{candidate}
	for _, excl := range exclusions {
		if excl.Empty() {
			continue
		}
		next := make([]Interval, 0, len(remaining)+1)
		for _, iv := range remaining {
			if !excl.Start.Before(iv.End) || !excl.End.After(iv.Start) {
				next = append(next, iv)
				continue
			}
			if excl.Start.After(iv.Start) {
				next = append(next, Interval{Start: iv.Start, End: excl.Start})
			}
			if excl.End.Before(iv.End) {
				next = append(next, Interval{Start: excl.End, End: iv.End})
			}
		}
		remaining = next
	}

	result := make([]Interval, 0, len(remaining))
	for _, iv := range remaining {
		if !iv.Empty() {
			result = append(result, iv)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// WindowsOnDay projects the workspace's recurring unplugged windows
// onto a calendar day. Windows that do not parse or would cross
// midnight are skipped.
func WindowsOnDay(day time.Time, windows []model.UnpluggedWindow) []Interval {
	result := make([]Interval, 0, len(windows))
	for _, window := range windows {
		start, err := OnDay(day, window.Start)
		if err != nil {
			continue
		}
		end, err := OnDay(day, window.End)
		if err != nil {
			continue
		}
		if !end.After(start) {
			continue
		}
		result = append(result, Interval{Start: start, End: end})
	}
	return result
}

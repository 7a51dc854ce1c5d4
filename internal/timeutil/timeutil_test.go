package timeutil

import (
	"testing"
	"time"

	"github.com/danielgrim/dayblock/internal/model"
)

func day(t *testing.T) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", "2025-03-10")
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	return parsed
}

func at(t *testing.T, wall string) time.Time {
	t.Helper()
	placed, err := OnDay(day(t), wall)
	if err != nil {
		t.Fatalf("place %s: %v", wall, err)
	}
	return placed
}

func TestParseWall(t *testing.T) {
	mins, err := ParseWall("14:30")
	if err != nil {
		t.Fatalf("parse 14:30: %v", err)
	}
	if mins != 14*60+30 {
		t.Fatalf("expected 870, got %d", mins)
	}

	if _, err := ParseWall("25:00"); err == nil {
		t.Fatalf("expected error for 25:00")
	}
	if _, err := ParseWall("12:60"); err == nil {
		t.Fatalf("expected error for 12:60")
	}
	if _, err := ParseWall("noon"); err == nil {
		t.Fatalf("expected error for 'noon'")
	}
}

func TestParseWallRejectsTrailingInput(t *testing.T) {
	for _, value := range []string{"12:30pm", "12:30:00", "12:3", "12:305", ""} {
		if _, err := ParseWall(value); err == nil {
			t.Fatalf("expected error for %q", value)
		}
	}

	mins, err := ParseWall("9:30")
	if err != nil {
		t.Fatalf("parse 9:30: %v", err)
	}
	if mins != 9*60+30 {
		t.Fatalf("expected 570, got %d", mins)
	}
}

func TestSubtractSplitsAroundExclusion(t *testing.T) {
	candidate := Interval{Start: at(t, "14:00"), End: at(t, "16:00")}
	exclusions := []Interval{{Start: at(t, "14:30"), End: at(t, "15:00")}}

	parts := Subtract(candidate, exclusions)
	if len(parts) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(parts))
	}
	if !parts[0].Start.Equal(at(t, "14:00")) || !parts[0].End.Equal(at(t, "14:30")) {
		t.Fatalf("unexpected first interval: %v", parts[0])
	}
	if !parts[1].Start.Equal(at(t, "15:00")) || !parts[1].End.Equal(at(t, "16:00")) {
		t.Fatalf("unexpected second interval: %v", parts[1])
	}
}

func TestSubtractExclusionCoversStart(t *testing.T) {
	candidate := Interval{Start: at(t, "14:40"), End: at(t, "15:30")}
	exclusions := []Interval{{Start: at(t, "14:30"), End: at(t, "15:00")}}

	parts := Subtract(candidate, exclusions)
	if len(parts) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(parts))
	}
	if !parts[0].Start.Equal(at(t, "15:00")) || !parts[0].End.Equal(at(t, "15:30")) {
		t.Fatalf("unexpected interval: %v", parts[0])
	}
}

func TestSubtractZeroDurationCandidate(t *testing.T) {
	candidate := Interval{Start: at(t, "14:00"), End: at(t, "14:00")}
	parts := Subtract(candidate, []Interval{{Start: at(t, "13:00"), End: at(t, "15:00")}})
	if parts != nil {
		t.Fatalf("expected nil for empty candidate, got %v", parts)
	}
}

func TestSubtractNoOverlap(t *testing.T) {
	candidate := Interval{Start: at(t, "09:00"), End: at(t, "10:00")}
	parts := Subtract(candidate, []Interval{{Start: at(t, "12:00"), End: at(t, "13:00")}})
	if len(parts) != 1 || !parts[0].Start.Equal(candidate.Start) || !parts[0].End.Equal(candidate.End) {
		t.Fatalf("expected candidate unchanged, got %v", parts)
	}
}

func TestWindowsOnDaySkipsInvalid(t *testing.T) {
	windows := []model.UnpluggedWindow{
		{Label: "lunch", Start: "12:00", End: "13:00"},
		{Label: "bad", Start: "22:00", End: "06:00"},
		{Label: "unparseable", Start: "later", End: "14:00"},
	}

	projected := WindowsOnDay(day(t), windows)
	if len(projected) != 1 {
		t.Fatalf("expected 1 window, got %d", len(projected))
	}
	if !projected[0].Start.Equal(at(t, "12:00")) {
		t.Fatalf("unexpected window start: %v", projected[0].Start)
	}
}

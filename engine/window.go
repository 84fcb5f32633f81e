package engine

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar date, no time component
// =============================================================================

const DateLayout = "2006-01-02"

// Date is a calendar date normalized to UTC midnight.
type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Time() time.Time { return d.t }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }
func (d Date) IsZero() bool { return d.t.IsZero() }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) String() string { return d.t.Format(DateLayout) }
func (d Date) Compare(other Date) int { return d.t.Compare(other.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool { return !d.Before(o) }

// =============================================================================
// WINDOW - Explicit inclusive reporting range
// =============================================================================

// Window is an inclusive [Start, End] date range. The engine never infers
// "now"; callers build windows explicitly (see WindowFor).
type Window struct {
	Start Date
	End   Date
}

// NewWindow returns a validated window.
func NewWindow(start, end Date) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate rejects a window whose end precedes its start.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return &MalformedRangeError{Start: w.Start, End: w.End}
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}

// =============================================================================
// WINDOW KINDS - Caller-side defaults ("current week", "current month")
// =============================================================================

type WindowKind string

const (
	WindowWeek  WindowKind = "week"  // ISO week, Monday..Sunday
	WindowMonth WindowKind = "month" // calendar month
)

// ParseWindowKind accepts "week" or "month"; empty defaults to week.
func ParseWindowKind(s string) (WindowKind, error) {
	switch k := WindowKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return WindowWeek, nil
	case WindowWeek, WindowMonth:
		return k, nil
	}
	return "", fmt.Errorf("unknown period %q (use week or month)", s)
}

// WindowFor returns the window of the given kind that contains t.
func WindowFor(kind WindowKind, t time.Time) Window {
	if kind == WindowMonth {
		return MonthOf(t)
	}
	return WeekOf(t)
}

// WeekOf returns the ISO week (Monday through Sunday) containing t.
func WeekOf(t time.Time) Window {
	d := DateOf(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	start := d.AddDays(-offset)
	return Window{Start: start, End: start.AddDays(6)}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Window {
	start := NewDate(t.Year(), t.Month(), 1)
	end := Date{t: start.t.AddDate(0, 1, -1)}
	return Window{Start: start, End: end}
}

package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// DateLayout is the value format of a date picker.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the value format of a datetime-local picker.
	DateTimeLayout = "2006-01-02T15:04"
)

// ParsePickerValue converts a date or datetime picker value, interpreted in
// loc, into an instant. An empty value yields nil.
func ParsePickerValue(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{DateLayout, DateTimeLayout, time.RFC3339} {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, loc)
		}
		if err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", value)
}

// FormatPickerValue renders an instant as a date picker value in loc.
func FormatPickerValue(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// ShortDate renders a due date as "M/D" in loc, or "" when unset.
func ShortDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return fmt.Sprintf("%d/%d", int(lt.Month()), lt.Day())
}

// LongDate renders a due date as "YYYY/M/D" in loc, or "" when unset.
func LongDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return fmt.Sprintf("%d/%d/%d", lt.Year(), int(lt.Month()), lt.Day())
}

// DayBounds returns the half-open calendar day [start, end) containing now in loc.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	lt := now.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// DueOn reports whether due falls on the calendar day of now in loc.
func DueOn(due *time.Time, now time.Time, loc *time.Location) bool {
	if due == nil {
		return false
	}
	start, end := DayBounds(now, loc)
	return !due.Before(start) && due.Before(end)
}

// SortByDueDate orders items by due date ascending; undated items go last and
// ties keep their id order.
func SortByDueDate(items []TaskListItem) {
	less := func(a, b TaskListItem) bool {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.ID < b.ID
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case a.DueDate.Equal(*b.DueDate):
			return a.ID < b.ID
		default:
			return a.DueDate.Before(*b.DueDate)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

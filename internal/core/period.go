package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Period is a calendar month, stored as the first day of that month in UTC.
type Period struct {
	time.Time
}

// NewPeriod returns the period for the given year and month (1-12).
func NewPeriod(year, month int) Period {
	return Period{Time: time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)}
}

// PeriodOf truncates t to the first day of its month.
func PeriodOf(t time.Time) Period {
	return NewPeriod(t.Year(), int(t.Month()))
}

// ParsePeriod accepts "YYYY-MM" or a full "YYYY-MM-DD" date (truncated).
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return PeriodOf(t), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: expected YYYY-MM", s)
	}
	return PeriodOf(t), nil
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.Format("2006-01")
}

// Key is the storage representation (first day of the month).
func (p Period) Key() string {
	return p.Format("2006-01-02")
}

// Next returns the following month.
func (p Period) Next() Period {
	return Period{Time: p.AddDate(0, 1, 0)}
}

// AddMonths shifts the period by n months (n may be negative).
func (p Period) AddMonths(n int) Period {
	return Period{Time: p.AddDate(0, n, 0)}
}

// Contains reports whether d falls within the month.
func (p Period) Contains(d Date) bool {
	return !d.IsZero() && d.Year() == p.Year() && d.Month() == p.Month()
}

// LastDay returns the number of days in the month.
func (p Period) LastDay() int {
	return time.Date(p.Year(), p.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay returns the date in p with the given day-of-month, clamped to the
// last valid day of that month.
func ClampDay(p Period, day int) Date {
	if last := p.LastDay(); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return NewDate(p.Year(), int(p.Month()), day)
}

// MonthsBetween lists every month from `from` to `to`, both inclusive.
// It returns nil when to is before from.
func MonthsBetween(from, to Period) []Period {
	if to.Before(from.Time) {
		return nil
	}
	var out []Period
	for p := from; !p.After(to.Time); p = p.Next() {
		out = append(out, p)
	}
	return out
}

// LastNMonths returns the n months ending with the month containing now.
func LastNMonths(now time.Time, n int) (Period, Period) {
	if n < 1 {
		n = 1
	}
	to := PeriodOf(now)
	return to.AddMonths(-(n - 1)), to
}

// UniquePeriods deduplicates and sorts periods ascending.
func UniquePeriods(in []Period) []Period {
	seen := make(map[string]struct{}, len(in))
	out := make([]Period, 0, len(in))
	for _, p := range in {
		if p.IsZero() {
			continue
		}
		k := p.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out
}

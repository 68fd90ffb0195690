package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ledger/internal/core"
)

// DateFormat selects how ambiguous day/month dates are read.
type DateFormat string

const (
	DateAuto DateFormat = "auto"
	DateDMY  DateFormat = "dmy"
	DateMDY  DateFormat = "mdy"
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidDateFormat = errors.New("invalid date format")

	isoDateRe   = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:[T ].*)?$`)
	shortDateRe = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{2}|\d{4})$`)
	yearMonthRe = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})$`)
	monthYearRe = regexp.MustCompile(`^(\d{1,2})[-/.](\d{4})$`)
)

// ParseDateFormat defaults to auto when s is empty. "iso" and "ymd" are
// accepted and read ambiguous dates as day-first.
func ParseDateFormat(s string) (DateFormat, error) {
	switch f := DateFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return DateAuto, nil
	case DateAuto, DateDMY, DateMDY:
		return f, nil
	case "iso", "ymd":
		return DateDMY, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
}

// DetectDateFormat decides one format for a whole column. Each value whose
// first slot is above 12 votes day-first, each value whose second slot is
// above 12 votes month-first; the majority wins and ties go to day-first.
//
// The decision is applied to every row of the file. A file that mixes both
// conventions will have the minority rows misread or rejected.
func DetectDateFormat(values []string) DateFormat {
	var dmy, mdy int
	for _, v := range values {
		m := shortDateRe.FindStringSubmatch(strings.TrimSpace(v))
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		switch {
		case a > 12:
			dmy++
		case b > 12:
			mdy++
		}
	}
	if mdy > dmy {
		return DateMDY
	}
	return DateDMY
}

// ParseDate reads ISO (YYYY-MM-DD), YYYY/M/D and D/M/Y or M/D/Y dates.
func ParseDate(s string, format DateFormat) (core.Date, error) {
	s = strings.TrimSpace(s)
	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return buildDate(s, m[1], m[2], m[3])
	}
	if m := shortDateRe.FindStringSubmatch(s); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		if format == DateMDY {
			return buildDate(s, year, m[1], m[2])
		}
		return buildDate(s, year, m[2], m[1])
	}
	return core.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func buildDate(raw, year, month, day string) (core.Date, error) {
	y, _ := strconv.Atoi(year)
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 {
		return core.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return core.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return core.Date{Time: t}, nil
}

// ParsePeriod reads YYYY-MM, YYYY/MM, MM/YYYY or any date ParseDate accepts.
func ParsePeriod(s string, format DateFormat) (core.Period, error) {
	s = strings.TrimSpace(s)
	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		return buildPeriod(s, m[1], m[2])
	}
	if m := monthYearRe.FindStringSubmatch(s); m != nil {
		return buildPeriod(s, m[2], m[1])
	}
	d, err := ParseDate(s, format)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return d.Period(), nil
}

func buildPeriod(raw, year, month string) (core.Period, error) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	if m < 1 || m > 12 {
		return core.Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return core.NewPeriod(y, m), nil
}

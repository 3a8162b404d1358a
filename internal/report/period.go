package report

import (
	"fmt"
	"strings"
	"time"

	"ledger/internal/core"
)

// Period is a calendar bucket used by series and category reports.
type Period string

const (
	Week  Period = "week"
	Month Period = "month"
	Year  Period = "year"
)

func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Week, Month, Year:
		return p, nil
	case "":
		return Week, nil
	default:
		return "", fmt.Errorf("unknown period %q (want week, month or year)", s)
	}
}

// Range returns the first and last day of the period containing ref.
// Weeks start on Sunday.
func (p Period) Range(ref core.Date) (core.Date, core.Date) {
	y, m, d := ref.Year(), int(ref.Month()), ref.Day()
	switch p {
	case Month:
		from := core.NewDate(y, m, 1)
		return from, from.AddDays(daysIn(y, m) - 1)
	case Year:
		return core.NewDate(y, 1, 1), core.NewDate(y, 12, 31)
	default:
		from := core.NewDate(y, m, d).AddDays(-int(ref.Weekday()))
		return from, from.AddDays(6)
	}
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

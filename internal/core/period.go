package core

import "time"

// Period identifies one calendar month.
type Period struct {
	Year  int
	Month int
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Today returns the current period and day of month.
func Today() (Period, int) {
	now := time.Now()
	return PeriodOf(now), now.Day()
}

// Index converts the period to an absolute month count. Periods compare in
// chronological order through their indexes.
func (p Period) Index() int {
	return p.Year*12 + p.Month
}

// PeriodFromIndex is the inverse of Index. An index divisible by 12 maps to
// December of the previous year.
func PeriodFromIndex(i int) Period {
	year, month := i/12, i%12
	if month == 0 {
		return Period{Year: year - 1, Month: 12}
	}
	return Period{Year: year, Month: month}
}

// Before reports whether p is strictly earlier than other.
func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

// After reports whether p is strictly later than other.
func (p Period) After(other Period) bool {
	return p.Index() > other.Index()
}

// Valid reports whether the month is in 1..12.
func (p Period) Valid() bool {
	return p.Month >= 1 && p.Month <= 12
}

// ExpandPeriods returns every period from start to end, inclusive of both
// endpoints. The result is empty when start is after end.
func ExpandPeriods(start, end Period) []Period {
	if start.After(end) {
		return nil
	}
	periods := make([]Period, 0, end.Index()-start.Index()+1)
	for i := start.Index(); i <= end.Index(); i++ {
		periods = append(periods, PeriodFromIndex(i))
	}
	return periods
}

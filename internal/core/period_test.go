package core

import "testing"

func TestExpandPeriodsInclusive(t *testing.T) {
	got := ExpandPeriods(Period{2023, 11}, Period{2024, 2})
	want := []Period{{2023, 11}, {2023, 12}, {2024, 1}, {2024, 2}}
	if len(got) != len(want) {
		t.Fatalf("got %d periods, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("period[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExpandPeriodsEmptyWhenStartAfterEnd(t *testing.T) {
	if got := ExpandPeriods(Period{2024, 3}, Period{2024, 2}); len(got) != 0 {
		t.Errorf("got %d periods, want 0", len(got))
	}
}

func TestExpandPeriodsSingleMonth(t *testing.T) {
	got := ExpandPeriods(Period{2024, 6}, Period{2024, 6})
	if len(got) != 1 || got[0] != (Period{2024, 6}) {
		t.Errorf("got %v, want [{2024 6}]", got)
	}
}

func TestPeriodFromIndexDecemberWrap(t *testing.T) {
	p := Period{2020, 12}
	if got := PeriodFromIndex(p.Index()); got != p {
		t.Errorf("round trip of %v gave %v", p, got)
	}
}

func TestExpandPeriodsFullYear(t *testing.T) {
	got := ExpandPeriods(Period{2022, 1}, Period{2022, 12})
	if len(got) != 12 {
		t.Fatalf("got %d periods, want 12", len(got))
	}
	for i, p := range got {
		if p.Year != 2022 || p.Month != i+1 {
			t.Errorf("period[%d] = %v", i, p)
		}
	}
}

func TestPeriodOrdering(t *testing.T) {
	tests := []struct {
		a, b   Period
		before bool
	}{
		{Period{2024, 5}, Period{2024, 6}, true},
		{Period{2023, 12}, Period{2024, 1}, true},
		{Period{2024, 6}, Period{2024, 6}, false},
		{Period{2024, 7}, Period{2024, 6}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Before(tt.b); got != tt.before {
			t.Errorf("%v.Before(%v) = %v, want %v", tt.a, tt.b, got, tt.before)
		}
	}
}

func TestRecurringClassificationIsExclusive(t *testing.T) {
	now := Period{2024, 6}
	rules := []struct {
		name   string
		rule   RecurringTransaction
		active bool
	}{
		{"active", RecurringTransaction{Start: Period{2024, 1}, End: Period{2024, 12}}, true},
		{"completed", RecurringTransaction{Start: Period{2024, 1}, End: Period{2024, 5}}, false},
		{"future", RecurringTransaction{Start: Period{2024, 7}, End: Period{2024, 12}}, false},
	}
	for _, tt := range rules {
		t.Run(tt.name, func(t *testing.T) {
			active := tt.rule.ActiveAt(now)
			completed := !tt.rule.End.After(now)
			future := tt.rule.Start.After(now)
			if active != tt.active {
				t.Errorf("ActiveAt = %v, want %v", active, tt.active)
			}
			count := 0
			for _, c := range []bool{active, completed, future} {
				if c {
					count++
				}
			}
			if count != 1 {
				t.Errorf("classifications not mutually exclusive: active=%v completed=%v future=%v", active, completed, future)
			}
		})
	}
}

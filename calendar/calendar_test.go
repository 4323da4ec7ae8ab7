package calendar

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddBusinessDaysZeroIsIdentity(t *testing.T) {
	c := NewBrazil()

	base := day(2024, time.June, 8) // a Saturday
	if got := c.AddBusinessDays(base, 0); !got.Equal(base) {
		t.Fatalf("expected %v, got %v", base, got)
	}
}

func TestAddBusinessDaysSkipsWeekend(t *testing.T) {
	c := NewBrazil()

	// Friday + 1 business day lands on Monday.
	base := day(2024, time.June, 7)
	want := day(2024, time.June, 10)
	if got := c.AddBusinessDays(base, 1); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAddBusinessDaysSkipsNationalHoliday(t *testing.T) {
	c := NewBrazil()

	// Sep 6 2024 is a Friday; Sep 7 is Independence Day (Saturday), so the
	// relevant holiday crossing is May 1 (Labor Day, a Wednesday in 2024).
	base := day(2024, time.April, 30) // Tuesday
	want := day(2024, time.May, 2)    // Thursday, May 1 excluded
	if got := c.AddBusinessDays(base, 1); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAddBusinessDaysMultiple(t *testing.T) {
	c := NewBrazil()

	// Monday + 5 business days = next Monday.
	base := day(2024, time.June, 10)
	want := day(2024, time.June, 17)
	if got := c.AddBusinessDays(base, 5); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

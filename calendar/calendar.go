package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/br"
)

// BusinessCalendar adds whole business days to a date. Weekends and national
// holidays do not count toward the total. Adding zero days returns the base
// date unchanged even when it falls on a non-working day.
type BusinessCalendar interface {
	AddBusinessDays(base time.Time, days int) time.Time
}

// Brazil wraps the national holiday set.
type Brazil struct {
	cal *cal.BusinessCalendar
}

func NewBrazil() *Brazil {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(br.Holidays...)
	return &Brazil{cal: c}
}

func (b *Brazil) AddBusinessDays(base time.Time, days int) time.Time {
	d := truncateToDay(base)
	for remaining := days; remaining > 0; {
		d = d.AddDate(0, 0, 1)
		if b.cal.IsWorkday(d) {
			remaining--
		}
	}
	return d
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

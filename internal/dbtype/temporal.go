package dbtype

import (
	"fmt"
	"time"
)

// Date is a hydrated PackStream 'D' struct: a calendar date with no
// time-of-day or zone component. Stored as a time.Time truncated to the
// day for reuse of its formatting/comparison methods.
type Date time.Time

func (d Date) Time() time.Time { return time.Time(d) }
func (d Date) String() string  { return time.Time(d).Format("2006-01-02") }

// LocalTime is a hydrated PackStream 't' struct: a time-of-day with no
// date or zone.
type LocalTime time.Time

func (t LocalTime) Time() time.Time { return time.Time(t) }
func (t LocalTime) String() string  { return time.Time(t).Format("15:04:05.999999999") }

// Time is a hydrated PackStream 'T' struct: a time-of-day with a fixed
// UTC offset but no date.
type Time time.Time

func (t Time) Time() time.Time { return time.Time(t) }
func (t Time) String() string  { return time.Time(t).Format("15:04:05.999999999Z07:00") }

// LocalDateTime is a hydrated PackStream 'd' struct: a date and
// time-of-day with no zone.
type LocalDateTime time.Time

func (t LocalDateTime) Time() time.Time { return time.Time(t) }
func (t LocalDateTime) String() string  { return time.Time(t).Format("2006-01-02T15:04:05.999999999") }

// Duration is a hydrated PackStream 'E' struct. It is kept as its own type
// rather than mapped onto time.Duration because Neo4j durations carry
// separate month/day components (calendar arithmetic, not fixed-length)
// that can exceed what a single int64 of nanoseconds can represent.
type Duration struct {
	Months, Days, Seconds int64
	Nanos                 int
}

func (d Duration) String() string {
	return fmt.Sprintf("P%dM%dDT%d.%09dS", d.Months, d.Days, d.Seconds, d.Nanos)
}

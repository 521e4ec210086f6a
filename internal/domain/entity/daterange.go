package entity

import "time"

const dayFormat = "2006-01-02"

// DateRange is an immutable UTC time window for a cost or usage query.
//
// Identity is calendar-day granular: two ranges covering the same start and
// end days are considered equal regardless of the time-of-day carried by the
// underlying timestamps. The two backends consume the window differently, so
// DateRange exposes one projection per backend instead of raw timestamps.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange builds a DateRange, normalizing both bounds to UTC.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{start: start.UTC(), end: end.UTC()}
}

// StartDate returns the start bound in UTC.
func (d DateRange) StartDate() time.Time { return d.start }

// EndDate returns the end bound in UTC.
func (d DateRange) EndDate() time.Time { return d.end }

// Key returns the calendar-day identity of the range, suitable for use as a
// cache key component. Ranges that differ only in time-of-day share a key.
func (d DateRange) Key() string {
	return d.start.Format(dayFormat) + ".." + d.end.Format(dayFormat)
}

// Equal reports whether two ranges cover the same calendar days.
func (d DateRange) Equal(other DateRange) bool {
	return d.Key() == other.Key()
}

// AWSRange returns the window formatted for Cost Explorer: YYYY-MM-DD strings
// where the end date is the day after the range's last day, because the API
// treats the end bound as exclusive.
func (d DateRange) AWSRange() (from, to string) {
	return d.start.Format(dayFormat), d.end.AddDate(0, 0, 1).Format(dayFormat)
}

// PrometheusRange returns the window as inclusive timestamps: the start
// normalized to 00:00:00 and the end to 23:59:59.999999 of their respective
// calendar days.
func (d DateRange) PrometheusRange() (from, to time.Time) {
	from = time.Date(d.start.Year(), d.start.Month(), d.start.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(d.end.Year(), d.end.Month(), d.end.Day(), 23, 59, 59, 999999000, time.UTC)
	return from, to
}

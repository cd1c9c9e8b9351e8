package interval

// Interval represents a half-open time window [Start, End) expressed in
// minutes since midnight. The half-open convention means touching endpoints
// do not overlap, so back-to-back bookings are allowed.
type Interval struct {
	Start int
	End   int
}

// New builds an interval from a start minute and a duration in minutes.
func New(startMinute, durationMinutes int) Interval {
	return Interval{Start: startMinute, End: startMinute + durationMinutes}
}

// WithBuffer returns a copy of the interval whose end is extended by the
// given number of idle minutes. Non-positive buffers leave the interval
// unchanged.
func (i Interval) WithBuffer(minutes int) Interval {
	if minutes <= 0 {
		return i
	}
	return Interval{Start: i.Start, End: i.End + minutes}
}

// Overlaps reports whether the two half-open intervals share any minute.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && other.Start < i.End
}

// Duration returns the nominal length of the interval in minutes.
func (i Interval) Duration() int {
	return i.End - i.Start
}

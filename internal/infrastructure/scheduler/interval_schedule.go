package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job every Interval, optionally offset from the
// registration time by InitialDelay on the first run.
type IntervalSchedule struct {
	Interval     time.Duration
	InitialDelay time.Duration

	started bool
}

// Every returns an IntervalSchedule. Non-positive intervals fall back to one minute.
func Every(interval time.Duration) *IntervalSchedule {
	if interval <= 0 {
		interval = time.Minute
	}
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if !s.started && s.InitialDelay > 0 {
		s.started = true
		return t.Add(s.InitialDelay)
	}
	s.started = true
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}

package checkin

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is a recurring service. Cron gives the service start times in
// standard five-field form; check-in opens CheckInOpensBefore a start and
// closes CheckInClosesAfter it.
type Schedule struct {
	ID                 int64         `yaml:"id" json:"id"`
	Name               string        `yaml:"name" json:"name"`
	Cron               string        `yaml:"cron" json:"cron"`
	CheckInOpensBefore time.Duration `yaml:"check_in_opens_before" json:"check_in_opens_before"`
	CheckInClosesAfter time.Duration `yaml:"check_in_closes_after" json:"check_in_closes_after"`
	CheckInEnabled     bool          `yaml:"check_in_enabled" json:"check_in_enabled"`

	parsed cron.Schedule
}

// Compile parses the cron expression. It must be called before
// IsCheckInActive.
func (s *Schedule) Compile() error {
	parsed, err := cron.ParseStandard(s.Cron)
	if err != nil {
		return fmt.Errorf("schedule %d (%s): invalid cron %q: %w", s.ID, s.Name, s.Cron, err)
	}
	if s.CheckInOpensBefore < 0 || s.CheckInClosesAfter < 0 {
		return fmt.Errorf("schedule %d (%s): check-in offsets must not be negative", s.ID, s.Name)
	}
	s.parsed = parsed
	return nil
}

// IsCheckInActive reports whether now falls inside the check-in window of
// some occurrence of the schedule.
func (s *Schedule) IsCheckInActive(now time.Time) bool {
	if s.parsed == nil {
		return false
	}
	// The earliest start whose window has not closed yet.
	start := s.parsed.Next(now.Add(-s.CheckInClosesAfter).Add(-time.Nanosecond))
	if start.IsZero() {
		return false
	}
	return !start.Add(-s.CheckInOpensBefore).After(now)
}

// CompileAll compiles every schedule in place
func CompileAll(schedules []Schedule) error {
	for i := range schedules {
		if err := schedules[i].Compile(); err != nil {
			return err
		}
	}
	return nil
}

// FirstActive returns the first schedule, in configured order, that has
// check-in enabled and an open window at now.
func FirstActive(schedules []Schedule, now time.Time) (*Schedule, bool) {
	for i := range schedules {
		s := &schedules[i]
		if s.CheckInEnabled && s.IsCheckInActive(now) {
			return s, true
		}
	}
	return nil, false
}

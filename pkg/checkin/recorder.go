package checkin

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Attendance is one attendance row
type Attendance struct {
	PersonID      int64
	GroupID       int64
	CampusID      int64
	ScheduleID    int64
	StartDateTime time.Time
	DidAttend     bool
}

// Recorder persists attendance
type Recorder interface {
	RecordAttendance(ctx context.Context, a Attendance) error
}

// SQLRecorder writes attendance to the attendance table
type SQLRecorder struct {
	db *sql.DB
}

// NewSQLRecorder creates a recorder over db
func NewSQLRecorder(db *sql.DB) *SQLRecorder {
	return &SQLRecorder{db: db}
}

// RecordAttendance inserts a with an open end time
func (r *SQLRecorder) RecordAttendance(ctx context.Context, a Attendance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (person_id, group_id, campus_id, schedule_id, start_date_time, end_date_time, did_attend)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)`,
		a.PersonID, a.GroupID, a.CampusID, a.ScheduleID, a.StartDateTime, a.DidAttend)
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	return nil
}

// Settings selects where logins are checked in. Attendance is only
// recorded when the group, the campus and at least one schedule are set.
type Settings struct {
	GroupID   int64      `yaml:"check_in_group" json:"check_in_group"`
	CampusID  int64      `yaml:"campus" json:"campus"`
	Schedules []Schedule `yaml:"schedules" json:"schedules"`
}

// Configured reports whether attendance should be attempted at all
func (s Settings) Configured() bool {
	return s.GroupID != 0 && s.CampusID != 0 && len(s.Schedules) > 0
}

// Poster records attendance for logged in people
type Poster struct {
	recorder Recorder
	now      func() time.Time
}

// NewPoster creates a Poster writing through recorder
func NewPoster(recorder Recorder) *Poster {
	return &Poster{recorder: recorder, now: time.Now}
}

// Post records attendance for personID against the first active schedule.
// It reports false without error when check-in is not configured or no
// schedule is open.
func (p *Poster) Post(ctx context.Context, settings Settings, personID int64) (bool, error) {
	if p == nil || p.recorder == nil || !settings.Configured() || personID == 0 {
		return false, nil
	}

	now := p.now()
	schedule, ok := FirstActive(settings.Schedules, now)
	if !ok {
		return false, nil
	}

	err := p.recorder.RecordAttendance(ctx, Attendance{
		PersonID:      personID,
		GroupID:       settings.GroupID,
		CampusID:      settings.CampusID,
		ScheduleID:    schedule.ID,
		StartDateTime: now,
		DidAttend:     true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

package telemedicine

import (
	"time"

	"clinic-portal-server/internal/models"
)

const (
	// JoinLeadTime is how early participants may enter before the scheduled start.
	JoinLeadTime = 10 * time.Minute
	// DefaultDuration applies when neither the provider nor the record carries an end time.
	DefaultDuration = 30 * time.Minute
)

// Window is the interval during which a meeting may be joined. Both ends are inclusive.
type Window struct {
	OpensAt  time.Time `json:"opensAt"`
	ClosesAt time.Time `json:"closesAt"`
}

// Contains reports whether now falls inside the window.
func (w Window) Contains(now time.Time) bool {
	return !now.Before(w.OpensAt) && !now.After(w.ClosesAt)
}

// EndTime returns the stored end time, or the start plus DefaultDuration.
func EndTime(m *models.Meeting) time.Time {
	if m.EndTime != nil && !m.EndTime.IsZero() {
		return *m.EndTime
	}
	return m.StartTime.Add(DefaultDuration)
}

// JoinWindow returns [start - JoinLeadTime, EndTime(m)].
func JoinWindow(m *models.Meeting) Window {
	return Window{
		OpensAt:  m.StartTime.Add(-JoinLeadTime),
		ClosesAt: EndTime(m),
	}
}

// IsJoinable reports whether m may be joined at now. Every join gate, server or
// client, must use this rule.
func IsJoinable(m *models.Meeting, now time.Time) bool {
	return JoinWindow(m).Contains(now)
}

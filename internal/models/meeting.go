package models

import "time"

// Meeting statuses as reported by the video provider. Informational only.
const (
	MeetingStatusScheduled = "scheduled"
	MeetingStatusStarted   = "started"
	MeetingStatusEnded     = "ended"
)

// Meeting is the telemedicine session allocated for exactly one appointment.
type Meeting struct {
	BaseModel
	AppointmentID     string     `gorm:"size:36;uniqueIndex;not null" json:"appointmentId"`
	Provider          string     `gorm:"size:32" json:"provider"`
	ProviderSessionID string     `gorm:"size:64;not null" json:"providerSessionId"`
	Topic             string     `gorm:"size:255" json:"topic"`
	JoinURL           string     `gorm:"type:text;not null" json:"joinUrl"`
	Passcode          string     `gorm:"size:64" json:"passcode,omitempty"`
	StartTime         time.Time  `gorm:"not null" json:"startTime"`
	EndTime           *time.Time `json:"endTime,omitempty"`
	Status            string     `gorm:"size:20" json:"status"`
}

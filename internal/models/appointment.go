package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusUnverified AppointmentStatus = "unverified"
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusCompleted  AppointmentStatus = "completed"
)

// Appointment represents a scheduled consultation between one patient and one doctor.
// The patient contact fields are a snapshot taken at booking time and are never
// refreshed from the live patient record.
type Appointment struct {
	BaseModel
	PatientID   string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID    string            `gorm:"size:36;index;not null" json:"doctorId"`
	Date        string            `gorm:"size:10;not null" json:"date"`
	Time        string            `gorm:"size:8;not null" json:"time"`
	ScheduledAt time.Time         `gorm:"index;not null" json:"scheduledAt"`
	Status      AppointmentStatus `gorm:"size:20;default:'unverified';index" json:"status"`
	Reason      string            `gorm:"size:255" json:"reason"`

	PatientName  string `gorm:"size:200" json:"patientName"`
	PatientEmail string `gorm:"size:255" json:"patientEmail"`
	PatientPhone string `gorm:"size:50" json:"patientPhone,omitempty"`

	// Set at most once, by the meeting provisioner.
	TelemedicineMeetingID *string `gorm:"size:36;uniqueIndex" json:"telemedicineMeetingId,omitempty"`

	// Relations (preloaded by query paths, never written through)
	Patient *User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"-"`
}

// AppointmentResponse is the API representation of an appointment with
// related users stripped of credentials.
type AppointmentResponse struct {
	ID                    string            `json:"id"`
	PatientID             string            `json:"patientId"`
	DoctorID              string            `json:"doctorId"`
	Date                  string            `json:"date"`
	Time                  string            `json:"time"`
	ScheduledAt           time.Time         `json:"scheduledAt"`
	Status                AppointmentStatus `json:"status"`
	Reason                string            `json:"reason"`
	PatientName           string            `json:"patientName"`
	PatientEmail          string            `json:"patientEmail"`
	PatientPhone          string            `json:"patientPhone,omitempty"`
	TelemedicineMeetingID *string           `json:"telemedicineMeetingId,omitempty"`
	Patient               *UserSanitized    `json:"patient,omitempty"`
	Doctor                *UserSanitized    `json:"doctor,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// HasMeeting reports whether a meeting has been linked to the appointment.
func (a *Appointment) HasMeeting() bool {
	return a.TelemedicineMeetingID != nil && *a.TelemedicineMeetingID != ""
}

// Sanitize builds the API representation of the appointment.
func (a *Appointment) Sanitize() AppointmentResponse {
	resp := AppointmentResponse{
		ID:                    a.ID,
		PatientID:             a.PatientID,
		DoctorID:              a.DoctorID,
		Date:                  a.Date,
		Time:                  a.Time,
		ScheduledAt:           a.ScheduledAt,
		Status:                a.Status,
		Reason:                a.Reason,
		PatientName:           a.PatientName,
		PatientEmail:          a.PatientEmail,
		PatientPhone:          a.PatientPhone,
		TelemedicineMeetingID: a.TelemedicineMeetingID,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
	if a.Patient != nil {
		p := a.Patient.Sanitize()
		resp.Patient = &p
	}
	if a.Doctor != nil {
		d := a.Doctor.Sanitize()
		resp.Doctor = &d
	}
	return resp
}

// SanitizeAppointments maps a slice of appointments to their API representation.
func SanitizeAppointments(appointments []Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(appointments))
	for i := range appointments {
		out[i] = appointments[i].Sanitize()
	}
	return out
}

// AppointmentFilter narrows appointment listings. Empty fields match everything.
type AppointmentFilter struct {
	PatientID string
	DoctorID  string
}

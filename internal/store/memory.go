package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/models"
)

// MemoryStore is an in-process store with the same semantics as GormStore.
// It backs tests and the `serve --memory` mode.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]models.User
	appointments map[string]models.Appointment
	meetings     map[string]models.Meeting
	now          func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]models.User),
		appointments: make(map[string]models.Appointment),
		meetings:     make(map[string]models.Meeting),
		now:          time.Now,
	}
}

func (s *MemoryStore) stamp(base *models.BaseModel) {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	now := s.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return apperrors.ErrDuplicateRecord
		}
	}
	s.stamp(&user.BaseModel)
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) FindUser(_ context.Context, id string, role models.Role) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok || (role != "" && user.Role != role) {
		return nil, apperrors.ErrRecordNotFound
	}
	return &user, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, role models.Role) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0)
	for _, u := range s.users {
		if u.Role == role {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].LastName != users[j].LastName {
			return users[i].LastName < users[j].LastName
		}
		return users[i].FirstName < users[j].FirstName
	})
	return users, nil
}

func (s *MemoryStore) CreateAppointment(_ context.Context, appt *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stamp(&appt.BaseModel)
	stored := *appt
	stored.Patient, stored.Doctor = nil, nil
	stored.TelemedicineMeetingID = copyString(appt.TelemedicineMeetingID)
	s.appointments[stored.ID] = stored
	return nil
}

func (s *MemoryStore) FindAppointment(_ context.Context, id string) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.appointments[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	out := s.hydrate(appt)
	return &out, nil
}

func (s *MemoryStore) TransitionStatus(_ context.Context, id string, from, to models.AppointmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok || appt.Status != from {
		return false, nil
	}
	appt.Status = to
	appt.UpdatedAt = s.now()
	s.appointments[id] = appt
	return true, nil
}

func (s *MemoryStore) ListAppointments(_ context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appointments := make([]models.Appointment, 0)
	for _, appt := range s.appointments {
		if filter.PatientID != "" && appt.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != "" && appt.DoctorID != filter.DoctorID {
			continue
		}
		appointments = append(appointments, s.hydrate(appt))
	}
	sort.SliceStable(appointments, func(i, j int) bool {
		return appointments[i].ScheduledAt.Before(appointments[j].ScheduledAt)
	})
	return appointments, nil
}

func (s *MemoryStore) SaveMeeting(_ context.Context, meeting *models.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[meeting.AppointmentID]
	if !ok {
		return apperrors.ErrRecordNotFound
	}
	if appt.HasMeeting() {
		return apperrors.ErrDuplicateRecord
	}
	for _, existing := range s.meetings {
		if existing.AppointmentID == meeting.AppointmentID {
			return apperrors.ErrDuplicateRecord
		}
	}

	s.stamp(&meeting.BaseModel)
	s.meetings[meeting.ID] = *meeting

	id := meeting.ID
	appt.TelemedicineMeetingID = &id
	appt.UpdatedAt = s.now()
	s.appointments[appt.ID] = appt
	return nil
}

func (s *MemoryStore) FindMeeting(_ context.Context, id string) (*models.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound
	}
	return &meeting, nil
}

func (s *MemoryStore) UpdateMeetingStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return apperrors.ErrRecordNotFound
	}
	meeting.Status = status
	meeting.UpdatedAt = s.now()
	s.meetings[id] = meeting
	return nil
}

// hydrate attaches patient and doctor copies. Callers must hold mu.
func (s *MemoryStore) hydrate(appt models.Appointment) models.Appointment {
	appt.TelemedicineMeetingID = copyString(appt.TelemedicineMeetingID)
	if u, ok := s.users[appt.PatientID]; ok {
		appt.Patient = &u
	}
	if u, ok := s.users[appt.DoctorID]; ok {
		appt.Doctor = &u
	}
	return appt
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

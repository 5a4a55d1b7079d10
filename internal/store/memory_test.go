package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/models"
)

func seedAppointment(t *testing.T, s *MemoryStore, at time.Time) *models.Appointment {
	t.Helper()
	appt := &models.Appointment{
		PatientID:   "patient-1",
		DoctorID:    "doc-1",
		ScheduledAt: at,
		Status:      models.StatusUnverified,
	}
	require.NoError(t, s.CreateAppointment(context.Background(), appt))
	return appt
}

func TestMemoryStore_FindUserRole(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doctor := &models.User{Email: "house@clinic.test", Role: models.RoleDoctor}
	require.NoError(t, s.CreateUser(ctx, doctor))

	got, err := s.FindUser(ctx, doctor.ID, models.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, doctor.Email, got.Email)

	_, err = s.FindUser(ctx, doctor.ID, models.RolePatient)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)

	err = s.CreateUser(ctx, &models.User{Email: "house@clinic.test"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRecord)
}

func TestMemoryStore_TransitionStatusOnlyOneWinner(t *testing.T) {
	s := NewMemoryStore()
	appt := seedAppointment(t, s, time.Now())

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TransitionStatus(context.Background(), appt.ID, models.StatusUnverified, models.StatusPending)
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	got, err := s.FindAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestMemoryStore_ListAppointmentsOrdered(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 12, 10, 9, 0, 0, 0, time.UTC)
	late := seedAppointment(t, s, base.Add(3*time.Hour))
	early := seedAppointment(t, s, base)

	other := &models.Appointment{PatientID: "patient-2", DoctorID: "doc-2", ScheduledAt: base}
	require.NoError(t, s.CreateAppointment(context.Background(), other))

	list, err := s.ListAppointments(context.Background(), models.AppointmentFilter{DoctorID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, early.ID, list[0].ID)
	assert.Equal(t, late.ID, list[1].ID)

	all, err := s.ListAppointments(context.Background(), models.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_SaveMeetingLinksOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	appt := seedAppointment(t, s, time.Now())

	first := &models.Meeting{AppointmentID: appt.ID, ProviderSessionID: "1"}
	require.NoError(t, s.SaveMeeting(ctx, first))

	got, err := s.FindAppointment(ctx, appt.ID)
	require.NoError(t, err)
	require.True(t, got.HasMeeting())
	assert.Equal(t, first.ID, *got.TelemedicineMeetingID)

	err = s.SaveMeeting(ctx, &models.Meeting{AppointmentID: appt.ID, ProviderSessionID: "2"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRecord)

	require.NoError(t, s.UpdateMeetingStatus(ctx, first.ID, models.MeetingStatusStarted))
	meeting, err := s.FindMeeting(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MeetingStatusStarted, meeting.Status)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	appt := seedAppointment(t, s, time.Now())

	got, err := s.FindAppointment(ctx, appt.ID)
	require.NoError(t, err)
	got.Status = models.StatusCancelled

	again, err := s.FindAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnverified, again.Status)
}

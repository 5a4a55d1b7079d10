package appointment

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/store"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationEmail(ctx context.Context, appt *models.Appointment, link string) error {
	args := m.Called(ctx, appt, link)
	return args.Error(0)
}

type fixture struct {
	svc      *Service
	store    *store.MemoryStore
	notifier *MockNotifier
	codec    *TokenCodec
	doctor   *models.User
	other    *models.User
	patient  *models.User
	admin    *models.User
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	doctor := &models.User{Email: "house@clinic.test", FirstName: "Gregory", LastName: "House", Role: models.RoleDoctor}
	other := &models.User{Email: "wilson@clinic.test", FirstName: "James", LastName: "Wilson", Role: models.RoleDoctor}
	patient := &models.User{Email: "pat@example.test", FirstName: "Pat", LastName: "Doe", Role: models.RolePatient}
	admin := &models.User{Email: "admin@clinic.test", Role: models.RoleAdmin}
	for _, u := range []*models.User{doctor, other, patient, admin} {
		require.NoError(t, st.CreateUser(ctx, u))
	}

	codec, err := NewTokenCodec("test-secret", time.Hour)
	require.NoError(t, err)

	notifier := new(MockNotifier)
	svc := NewService(st, codec, notifier, Options{
		Policy:        policy,
		VerifyURLBase: "https://clinic.test/verify",
		Location:      time.UTC,
		Logger:        zerolog.Nop(),
	})

	return &fixture{svc: svc, store: st, notifier: notifier, codec: codec, doctor: doctor, other: other, patient: patient, admin: admin}
}

func caller(u *models.User) *models.Caller {
	return &models.Caller{UserID: u.ID, Role: u.Role}
}

func (f *fixture) book(t *testing.T) (*models.Appointment, string) {
	t.Helper()
	f.notifier.On("SendVerificationEmail", mock.Anything, mock.AnythingOfType("*models.Appointment"), mock.AnythingOfType("string")).
		Return(nil).Once()

	appt, err := f.svc.Create(context.Background(), CreateInput{
		DoctorID:     f.doctor.ID,
		Date:         "2025-12-10",
		Time:         "02:00 PM",
		Reason:       "Persistent cough",
		PatientName:  "Pat Doe",
		PatientEmail: "pat@example.test",
	}, caller(f.patient))
	require.NoError(t, err)

	calls := f.notifier.Calls
	link := calls[len(calls)-1].Arguments.String(2)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	return appt, parsed.Query().Get("token")
}

func requireType(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperrors.TypeOf(err), err.Error())
}

func TestCreate(t *testing.T) {
	f := newFixture(t, DefaultPolicy())

	appt, token := f.book(t)

	assert.Equal(t, models.StatusUnverified, appt.Status)
	assert.Equal(t, f.patient.ID, appt.PatientID)
	assert.Equal(t, f.doctor.ID, appt.DoctorID)
	assert.Equal(t, "Pat Doe", appt.PatientName)
	assert.True(t, time.Date(2025, 12, 10, 14, 0, 0, 0, time.UTC).Equal(appt.ScheduledAt))
	assert.False(t, appt.HasMeeting())

	id, err := f.codec.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, id)
	f.notifier.AssertExpectations(t)
}

func TestCreateSurvivesNotificationFailure(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.notifier.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down"))

	appt, err := f.svc.Create(context.Background(), CreateInput{
		DoctorID: f.doctor.ID,
		Date:     "2025-12-10",
		Time:     "10:00 AM",
	}, caller(f.patient))
	require.NoError(t, err)

	stored, err := f.store.FindAppointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnverified, stored.Status)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{DoctorID: f.doctor.ID, Date: "2025-12-10", Time: "10:00 AM"}, nil)
	requireType(t, err, apperrors.ErrorTypeUnauthorized)

	_, err = f.svc.Create(ctx, CreateInput{DoctorID: "not-a-uuid", Date: "2025-12-10", Time: "10:00 AM"}, caller(f.patient))
	requireType(t, err, apperrors.ErrorTypeValidation)

	_, err = f.svc.Create(ctx, CreateInput{DoctorID: "7a1e6f0c-0000-4000-8000-000000000000", Date: "2025-12-10", Time: "10:00 AM"}, caller(f.patient))
	requireType(t, err, apperrors.ErrorTypeNotFound)

	_, err = f.svc.Create(ctx, CreateInput{DoctorID: f.patient.ID, Date: "2025-12-10", Time: "10:00 AM"}, caller(f.patient))
	requireType(t, err, apperrors.ErrorTypeNotFound)

	_, err = f.svc.Create(ctx, CreateInput{DoctorID: f.doctor.ID, Date: "2025-12-10", Time: "25:00"}, caller(f.patient))
	requireType(t, err, apperrors.ErrorTypeValidation)

	f.notifier.AssertNotCalled(t, "SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	appt, token := f.book(t)

	verified, err := f.svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, verified.ID)
	assert.Equal(t, models.StatusPending, verified.Status)

	_, err = f.svc.Verify(ctx, token)
	requireType(t, err, apperrors.ErrorTypeConflict)

	stored, err := f.store.FindAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()

	_, errGarbage := f.svc.Verify(ctx, "garbage")
	requireType(t, errGarbage, apperrors.ErrorTypeUnauthorized)

	orphan, err := f.codec.Issue("7a1e6f0c-0000-4000-8000-000000000000")
	require.NoError(t, err)
	_, errOrphan := f.svc.Verify(ctx, orphan)
	requireType(t, errOrphan, apperrors.ErrorTypeUnauthorized)

	var a, b *apperrors.AppError
	require.ErrorAs(t, errGarbage, &a)
	require.ErrorAs(t, errOrphan, &b)
	assert.Equal(t, a.Message, b.Message)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	appt, token := f.book(t)
	_, err := f.svc.Verify(ctx, token)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, caller(f.doctor))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, caller(f.doctor))
	requireType(t, err, apperrors.ErrorTypeConflict)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusPending, caller(f.doctor))
	requireType(t, err, apperrors.ErrorTypeConflict)

	updated, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusCompleted, caller(f.admin))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusCancelled, caller(f.admin))
	requireType(t, err, apperrors.ErrorTypeConflict)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	appt, token := f.book(t)
	_, err := f.svc.Verify(ctx, token)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, nil)
	requireType(t, err, apperrors.ErrorTypeUnauthorized)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, caller(f.patient))
	requireType(t, err, apperrors.ErrorTypeForbidden)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, caller(f.other))
	requireType(t, err, apperrors.ErrorTypeForbidden)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "archived", caller(f.doctor))
	requireType(t, err, apperrors.ErrorTypeValidation)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusUnverified, caller(f.doctor))
	requireType(t, err, apperrors.ErrorTypeValidation)

	_, err = f.svc.UpdateStatus(ctx, "7a1e6f0c-0000-4000-8000-000000000000", models.StatusConfirmed, caller(f.doctor))
	requireType(t, err, apperrors.ErrorTypeNotFound)
}

func TestUpdateStatusAnyDoctorWhenUnrestricted(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	appt, token := f.book(t)
	_, err := f.svc.Verify(ctx, token)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, models.StatusCancelled, caller(f.other))
	assert.NoError(t, err)
}

func TestUpdateStatusPendingCompletionPolicy(t *testing.T) {
	ctx := context.Background()

	strict := newFixture(t, DefaultPolicy())
	appt, token := strict.book(t)
	_, err := strict.svc.Verify(ctx, token)
	require.NoError(t, err)
	_, err = strict.svc.UpdateStatus(ctx, appt.ID, models.StatusCompleted, caller(strict.doctor))
	requireType(t, err, apperrors.ErrorTypeConflict)

	lenient := newFixture(t, Policy{AllowPendingCompletion: true, RestrictToAssignedDoctor: true})
	appt, token = lenient.book(t)
	_, err = lenient.svc.Verify(ctx, token)
	require.NoError(t, err)
	_, err = lenient.svc.UpdateStatus(ctx, appt.ID, models.StatusCompleted, caller(lenient.doctor))
	assert.NoError(t, err)
}

func TestManualVerificationByStaff(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	appt, _ := f.book(t)

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, models.StatusPending, caller(f.doctor))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, updated.Status)
}

func TestQueries(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	ctx := context.Background()
	appt, _ := f.book(t)

	mine, err := f.svc.ListForPatient(ctx, caller(f.patient))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, appt.ID, mine[0].ID)

	schedule, err := f.svc.ListForDoctor(ctx, caller(f.doctor))
	require.NoError(t, err)
	assert.Len(t, schedule, 1)

	empty, err := f.svc.ListForDoctor(ctx, caller(f.other))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.svc.ListForDoctor(ctx, caller(f.patient))
	requireType(t, err, apperrors.ErrorTypeForbidden)

	all, err := f.svc.ListAll(ctx, caller(f.admin), "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.svc.ListAll(ctx, caller(f.patient), "")
	requireType(t, err, apperrors.ErrorTypeForbidden)

	_, err = f.svc.ListAll(ctx, caller(f.admin), "bogus")
	requireType(t, err, apperrors.ErrorTypeValidation)

	got, err := f.svc.Get(ctx, appt.ID, caller(f.doctor))
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	_, err = f.svc.Get(ctx, appt.ID, caller(f.other))
	requireType(t, err, apperrors.ErrorTypeForbidden)

	_, err = f.svc.Get(ctx, appt.ID, caller(f.admin))
	assert.NoError(t, err)
}

package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/models"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewGormStore(gdb), mock
}

func TestGormStore_FindUser(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "role"}).
		AddRow("doc-1", "house@clinic.test", "Gregory", "House", "doctor")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE id = ? AND role = ?")).
		WillReturnRows(rows)

	user, err := s.FindUser(context.Background(), "doc-1", models.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, "House", user.LastName)
	assert.Equal(t, models.RoleDoctor, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindUserNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.FindUser(context.Background(), "missing", "")
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_FindAppointmentNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `appointments` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.FindAppointment(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CreateAppointment(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `appointments`")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	appt := &models.Appointment{
		PatientID:   "patient-1",
		DoctorID:    "doc-1",
		Date:        "2025-12-10",
		Time:        "02:00 PM",
		ScheduledAt: time.Date(2025, 12, 10, 14, 0, 0, 0, time.UTC),
		Status:      models.StatusUnverified,
	}
	require.NoError(t, s.CreateAppointment(context.Background(), appt))
	assert.NotEmpty(t, appt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransitionStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "status matched", affected: 1, want: true},
		{name: "status already changed", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)

			mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointments` SET `status`=?,`updated_at`=? WHERE id = ? AND status = ?")).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := s.TransitionStatus(context.Background(), "appt-1", models.StatusUnverified, models.StatusPending)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_SaveMeeting(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `meetings`")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointments` SET `telemedicine_meeting_id`=?,`updated_at`=? WHERE id = ? AND telemedicine_meeting_id IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	meeting := &models.Meeting{
		AppointmentID:     "appt-1",
		Provider:          "zoom",
		ProviderSessionID: "8675309",
		JoinURL:           "https://zoom.test/j/8675309",
		StartTime:         time.Date(2025, 12, 10, 14, 0, 0, 0, time.UTC),
		Status:            models.MeetingStatusScheduled,
	}
	require.NoError(t, s.SaveMeeting(context.Background(), meeting))
	assert.NotEmpty(t, meeting.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_SaveMeetingDuplicate(t *testing.T) {
	t.Run("unique index on appointment", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `meetings`")).
			WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
		mock.ExpectRollback()

		err := s.SaveMeeting(context.Background(), &models.Meeting{AppointmentID: "appt-1"})
		assert.ErrorIs(t, err, apperrors.ErrDuplicateRecord)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("appointment already linked", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `meetings`")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `appointments`")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := s.SaveMeeting(context.Background(), &models.Meeting{AppointmentID: "appt-1"})
		assert.ErrorIs(t, err, apperrors.ErrDuplicateRecord)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

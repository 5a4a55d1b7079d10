package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/models"
)

// GormStore persists appointments, meetings and the users they reference in MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateUser inserts a user. Used by the seed command only.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrDuplicateRecord
	}
	return err
}

// FindUser loads a user by id. A non-empty role must also match.
func (s *GormStore) FindUser(ctx context.Context, id string, role models.Role) (*models.User, error) {
	query := s.db.WithContext(ctx).Where("id = ?", id)
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ListUsers returns every user with the given role ordered by last name.
func (s *GormStore) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role = ?", role).
		Order("last_name asc, first_name asc").
		Find(&users).Error
	return users, err
}

// CreateAppointment inserts an appointment without touching its associations.
func (s *GormStore) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(appt).Error
}

// FindAppointment loads an appointment with its patient and doctor.
func (s *GormStore) FindAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Where("id = ?", id).
		First(&appt).Error
	if err != nil {
		return nil, translate(err)
	}
	return &appt, nil
}

// TransitionStatus is a compare-and-set on the status column.
func (s *GormStore) TransitionStatus(ctx context.Context, id string, from, to models.AppointmentStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListAppointments returns matching appointments ordered by scheduled time.
func (s *GormStore) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	query := s.db.WithContext(ctx).Preload("Patient").Preload("Doctor").Order("scheduled_at asc")
	if filter.PatientID != "" {
		query = query.Where("patient_id = ?", filter.PatientID)
	}
	if filter.DoctorID != "" {
		query = query.Where("doctor_id = ?", filter.DoctorID)
	}

	var appointments []models.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		return nil, err
	}
	return appointments, nil
}

// SaveMeeting inserts the meeting and links it to its appointment in one
// transaction. It returns apperrors.ErrDuplicateRecord when the appointment
// already has a meeting.
func (s *GormStore) SaveMeeting(ctx context.Context, meeting *models.Meeting) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(meeting).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrDuplicateRecord
			}
			return err
		}

		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND telemedicine_meeting_id IS NULL", meeting.AppointmentID).
			Update("telemedicine_meeting_id", meeting.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrDuplicateRecord
		}
		return nil
	})
}

// FindMeeting loads a meeting by id.
func (s *GormStore) FindMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&meeting).Error; err != nil {
		return nil, translate(err)
	}
	return &meeting, nil
}

// UpdateMeetingStatus records the provider-reported status of a meeting.
func (s *GormStore) UpdateMeetingStatus(ctx context.Context, id, status string) error {
	return s.db.WithContext(ctx).
		Model(&models.Meeting{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrRecordNotFound
	}
	return err
}

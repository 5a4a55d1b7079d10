package appointment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinic-portal-server/internal/apperrors"
	"clinic-portal-server/internal/logging"
	"clinic-portal-server/internal/metrics"
	"clinic-portal-server/internal/models"
)

var tracer = otel.Tracer("clinic-portal/appointment")

const defaultNotifyTimeout = 10 * time.Second

// Store persists appointments and reads the accounts they reference.
// Lookups that match nothing return apperrors.ErrRecordNotFound.
type Store interface {
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
	FindAppointment(ctx context.Context, id string) (*models.Appointment, error)
	FindUser(ctx context.Context, id string, role models.Role) (*models.User, error)
	// TransitionStatus sets status to `to` only if it is currently `from`.
	// It reports false when no row matched.
	TransitionStatus(ctx context.Context, id string, from, to models.AppointmentStatus) (bool, error)
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
}

// Notifier delivers the verification link to the patient.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, appt *models.Appointment, verificationLink string) error
}

// Options configures a Service.
type Options struct {
	Policy        Policy
	VerifyURLBase string
	Location      *time.Location
	NotifyTimeout time.Duration
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// Service owns the appointment status field and every transition of it.
type Service struct {
	store         Store
	tokens        *TokenCodec
	notifier      Notifier
	policy        Policy
	verifyURLBase string
	location      *time.Location
	notifyTimeout time.Duration
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// NewService constructs the appointment service.
func NewService(store Store, tokens *TokenCodec, notifier Notifier, opts Options) *Service {
	if store == nil {
		panic("appointment: store required")
	}
	if tokens == nil {
		panic("appointment: token codec required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	return &Service{
		store:         store,
		tokens:        tokens,
		notifier:      notifier,
		policy:        opts.Policy,
		verifyURLBase: opts.VerifyURLBase,
		location:      opts.Location,
		notifyTimeout: opts.NotifyTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// CreateInput is a booking request. The patient contact fields are stored as a
// snapshot on the appointment.
type CreateInput struct {
	DoctorID     string
	Date         string
	Time         string
	Reason       string
	PatientName  string
	PatientEmail string
	PatientPhone string
}

// Create books an unverified appointment for the calling patient and sends the
// verification link. A failed notification never fails the booking.
func (s *Service) Create(ctx context.Context, in CreateInput, caller *models.Caller) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()

	if !caller.Authenticated() {
		return nil, fail(span, apperrors.NewUnauthorizedError("User not authenticated"))
	}
	if _, err := uuid.Parse(in.DoctorID); err != nil {
		return nil, fail(span, apperrors.NewValidationError("Invalid Doctor ID format"))
	}

	doctor, err := s.store.FindUser(ctx, in.DoctorID, models.RoleDoctor)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, fail(span, apperrors.NewNotFoundError("Doctor not found"))
		}
		return nil, fail(span, apperrors.NewInternalError("failed to load doctor", err))
	}

	scheduledAt, err := CombineDateTime(in.Date, in.Time, s.location)
	if err != nil {
		return nil, fail(span, err)
	}

	appt := &models.Appointment{
		PatientID:    caller.UserID,
		DoctorID:     doctor.ID,
		Date:         scheduledAt.Format(dateLayout),
		Time:         strings.ToUpper(strings.TrimSpace(in.Time)),
		ScheduledAt:  scheduledAt,
		Status:       models.StatusUnverified,
		Reason:       strings.TrimSpace(in.Reason),
		PatientName:  strings.TrimSpace(in.PatientName),
		PatientEmail: strings.TrimSpace(in.PatientEmail),
		PatientPhone: strings.TrimSpace(in.PatientPhone),
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		s.metrics.ObserveBooking("failed")
		return nil, fail(span, apperrors.NewInternalError("failed to create appointment", err))
	}
	appt.Doctor = doctor

	span.SetAttributes(attribute.String("clinic.appointment_id", appt.ID))
	s.metrics.ObserveBooking("created")
	logging.WithTrace(ctx, s.logger).Info().
		Str("appointment_id", appt.ID).
		Str("doctor_id", appt.DoctorID).
		Str("patient_id", appt.PatientID).
		Time("scheduled_at", appt.ScheduledAt).
		Msg("appointment booked")

	s.sendVerification(ctx, appt)
	return appt, nil
}

func (s *Service) sendVerification(ctx context.Context, appt *models.Appointment) {
	log := logging.WithTrace(ctx, s.logger)

	token, err := s.tokens.Issue(appt.ID)
	if err != nil {
		s.metrics.ObserveNotification("verification", err)
		log.Error().Err(err).Str("appointment_id", appt.ID).Msg("failed to issue verification token")
		return
	}
	if s.notifier == nil {
		log.Warn().Str("appointment_id", appt.ID).Msg("no notifier configured, verification email skipped")
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	err = s.notifier.SendVerificationEmail(notifyCtx, appt, s.verificationLink(token))
	s.metrics.ObserveNotification("verification", err)
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("verification email failed")
	}
}

func (s *Service) verificationLink(token string) string {
	sep := "?"
	if strings.Contains(s.verifyURLBase, "?") {
		sep = "&"
	}
	return s.verifyURLBase + sep + "token=" + url.QueryEscape(token)
}

// Verify moves the appointment bound to token from unverified to pending.
// Invalid, expired and unknown-appointment tokens are indistinguishable to the caller.
func (s *Service) Verify(ctx context.Context, token string) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.verify")
	defer span.End()

	invalid := apperrors.NewUnauthorizedError("Invalid or expired verification token")

	id, err := s.tokens.Validate(token)
	if err != nil {
		s.metrics.ObserveVerification("invalid")
		return nil, fail(span, invalid)
	}
	span.SetAttributes(attribute.String("clinic.appointment_id", id))

	appt, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			s.metrics.ObserveVerification("invalid")
			return nil, fail(span, invalid)
		}
		return nil, fail(span, apperrors.NewInternalError("failed to load appointment", err))
	}

	processed := apperrors.NewConflictError("Appointment already verified or processed")
	if appt.Status != models.StatusUnverified || !s.policy.CanTransition(appt.Status, models.StatusPending) {
		s.metrics.ObserveVerification("conflict")
		return nil, fail(span, processed)
	}

	ok, err := s.store.TransitionStatus(ctx, id, models.StatusUnverified, models.StatusPending)
	if err != nil {
		return nil, fail(span, apperrors.NewInternalError("failed to verify appointment", err))
	}
	if !ok {
		s.metrics.ObserveVerification("conflict")
		return nil, fail(span, processed)
	}

	appt.Status = models.StatusPending
	s.metrics.ObserveVerification("verified")
	s.metrics.ObserveTransition(string(models.StatusUnverified), string(models.StatusPending))
	logging.WithTrace(ctx, s.logger).Info().Str("appointment_id", id).Msg("appointment verified")
	return appt, nil
}

// UpdateStatus applies a staff-initiated status change.
func (s *Service) UpdateStatus(ctx context.Context, id string, newStatus models.AppointmentStatus, caller *models.Caller) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.update_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", id),
		attribute.String("clinic.status", string(newStatus)),
	)

	if !caller.Authenticated() {
		return nil, fail(span, apperrors.NewUnauthorizedError("User not authenticated"))
	}
	if !caller.IsStaff() {
		return nil, fail(span, apperrors.NewForbiddenError("Only doctors and admins can update appointment status"))
	}
	if !IsSettable(newStatus) {
		return nil, fail(span, apperrors.NewValidationError("Invalid status. Must be one of: pending, confirmed, cancelled, completed"))
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fail(span, apperrors.NewValidationError("Invalid Appointment ID format"))
	}

	appt, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, fail(span, apperrors.NewNotFoundError("Appointment not found"))
		}
		return nil, fail(span, apperrors.NewInternalError("failed to load appointment", err))
	}

	if s.policy.RestrictToAssignedDoctor && caller.Role == models.RoleDoctor && appt.DoctorID != caller.UserID {
		return nil, fail(span, apperrors.NewForbiddenError("You are not the doctor assigned to this appointment"))
	}

	from := appt.Status
	if !s.policy.CanTransition(from, newStatus) {
		return nil, fail(span, apperrors.NewConflictError(fmt.Sprintf("Cannot change appointment status from %s to %s", from, newStatus)))
	}

	ok, err := s.store.TransitionStatus(ctx, id, from, newStatus)
	if err != nil {
		return nil, fail(span, apperrors.NewInternalError("failed to update appointment status", err))
	}
	if !ok {
		return nil, fail(span, apperrors.NewConflictError("Appointment status changed concurrently, reload and retry"))
	}

	appt.Status = newStatus
	s.metrics.ObserveTransition(string(from), string(newStatus))
	logging.WithTrace(ctx, s.logger).Info().
		Str("appointment_id", id).
		Str("from", string(from)).
		Str("to", string(newStatus)).
		Str("actor_id", caller.UserID).
		Msg("appointment status updated")
	return appt, nil
}

// Get returns one appointment to an admin or to one of its participants.
func (s *Service) Get(ctx context.Context, id string, caller *models.Caller) (*models.Appointment, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthorizedError("User not authenticated")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewValidationError("Invalid Appointment ID format")
	}

	appt, err := s.store.FindAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Appointment not found")
		}
		return nil, apperrors.NewInternalError("failed to load appointment", err)
	}

	isParticipant := caller.UserID == appt.PatientID || caller.UserID == appt.DoctorID
	if caller.Role != models.RoleAdmin && !isParticipant {
		return nil, apperrors.NewForbiddenError("You are not authorized to view this appointment")
	}
	return appt, nil
}

// ListForDoctor returns every appointment assigned to the calling doctor.
func (s *Service) ListForDoctor(ctx context.Context, caller *models.Caller) ([]models.Appointment, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthorizedError("User not authenticated")
	}
	if caller.Role != models.RoleDoctor {
		return nil, apperrors.NewForbiddenError("Only doctors can view their appointment schedule")
	}
	return s.list(ctx, models.AppointmentFilter{DoctorID: caller.UserID})
}

// ListForPatient returns every appointment booked by the calling patient.
func (s *Service) ListForPatient(ctx context.Context, caller *models.Caller) ([]models.Appointment, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthorizedError("User not authenticated")
	}
	return s.list(ctx, models.AppointmentFilter{PatientID: caller.UserID})
}

// ListAll returns every appointment, optionally limited to one doctor. Staff only.
func (s *Service) ListAll(ctx context.Context, caller *models.Caller, doctorID string) ([]models.Appointment, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthorizedError("User not authenticated")
	}
	if !caller.IsStaff() {
		return nil, apperrors.NewForbiddenError("Only doctors and admins can list all appointments")
	}
	if doctorID != "" {
		if _, err := uuid.Parse(doctorID); err != nil {
			return nil, apperrors.NewValidationError("Invalid Doctor ID format")
		}
	}
	return s.list(ctx, models.AppointmentFilter{DoctorID: doctorID})
}

func (s *Service) list(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	appointments, err := s.store.ListAppointments(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to fetch appointments", err)
	}
	return appointments, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

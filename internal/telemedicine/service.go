package telemedicine

import (
	"context"
	"errors"
	"fmt"
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

var tracer = otel.Tracer("clinic-portal/telemedicine")

// Store is the persistence the provisioner needs. Lookups that match nothing
// return apperrors.ErrRecordNotFound.
type Store interface {
	FindAppointment(ctx context.Context, id string) (*models.Appointment, error)
	// SaveMeeting inserts the meeting and links it to its appointment atomically,
	// returning apperrors.ErrDuplicateRecord if the appointment already has one.
	SaveMeeting(ctx context.Context, meeting *models.Meeting) error
	FindMeeting(ctx context.Context, id string) (*models.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id, status string) error
}

// Notifier sends the join link to the appointment participants.
type Notifier interface {
	SendMeetingLink(ctx context.Context, appt *models.Appointment, meeting *models.Meeting) error
}

// Options configures a Provisioner.
type Options struct {
	CallTimeout   time.Duration
	LockWait      time.Duration
	Duration      time.Duration
	NotifyTimeout time.Duration
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// Provisioner creates at most one video session per appointment.
type Provisioner struct {
	store         Store
	provider      VideoProvider
	locker        Locker
	notifier      Notifier
	callTimeout   time.Duration
	lockWait      time.Duration
	duration      time.Duration
	notifyTimeout time.Duration
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

func NewProvisioner(store Store, provider VideoProvider, locker Locker, notifier Notifier, opts Options) *Provisioner {
	if store == nil {
		panic("telemedicine: store required")
	}
	if provider == nil {
		panic("telemedicine: video provider required")
	}
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 15 * time.Second
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = opts.CallTimeout
	}
	return &Provisioner{
		store:         store,
		provider:      provider,
		locker:        locker,
		notifier:      notifier,
		callTimeout:   opts.CallTimeout,
		lockWait:      opts.LockWait,
		duration:      opts.Duration,
		notifyTimeout: opts.NotifyTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// CreateForAppointment returns the appointment's meeting, allocating it on the
// first call. Concurrent and repeated calls for one appointment all observe the
// same meeting and the provider is asked for a session at most once.
func (p *Provisioner) CreateForAppointment(ctx context.Context, appointmentID string, caller *models.Caller) (*models.Meeting, error) {
	ctx, span := tracer.Start(ctx, "telemedicine.create_meeting")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", appointmentID))

	appt, err := p.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !caller.Authenticated() {
		return nil, fail(span, apperrors.NewUnauthorizedError("Authentication required"))
	}
	if !isParticipant(appt, caller) {
		return nil, fail(span, apperrors.NewForbiddenError("You are not authorized to create a meeting for this appointment"))
	}

	if appt.HasMeeting() {
		meeting, err := p.linkedMeeting(ctx, appt)
		if err != nil {
			return nil, fail(span, err)
		}
		p.metrics.ObserveMeeting("existing")
		return meeting, nil
	}

	meeting, created, err := p.provision(ctx, appt.ID)
	if err != nil {
		p.metrics.ObserveMeeting("failed")
		return nil, fail(span, err)
	}
	if !created {
		p.metrics.ObserveMeeting("existing")
		return meeting, nil
	}

	p.metrics.ObserveMeeting("created")
	span.SetAttributes(attribute.String("clinic.meeting_id", meeting.ID))
	logging.WithTrace(ctx, p.logger).Info().
		Str("appointment_id", appt.ID).
		Str("meeting_id", meeting.ID).
		Str("provider", meeting.Provider).
		Str("provider_session_id", meeting.ProviderSessionID).
		Msg("telemedicine meeting created")

	p.sendMeetingLink(ctx, appt, meeting)
	return meeting, nil
}

// provision runs the check-then-create sequence under the per-appointment lock.
// It reports whether this call created the meeting.
func (p *Provisioner) provision(ctx context.Context, appointmentID string) (*models.Meeting, bool, error) {
	lockCtx, cancelLock := context.WithTimeout(ctx, p.lockWait)
	defer cancelLock()

	unlock, err := p.locker.Lock(lockCtx, "meeting:"+appointmentID)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return nil, false, apperrors.NewConflictError("Meeting creation already in progress, retry shortly")
		}
		return nil, false, apperrors.NewInternalError("failed to acquire meeting lock", err)
	}
	defer unlock()

	appt, err := p.store.FindAppointment(ctx, appointmentID)
	if err != nil {
		return nil, false, apperrors.NewInternalError("failed to reload appointment", err)
	}
	if appt.HasMeeting() {
		meeting, err := p.linkedMeeting(ctx, appt)
		return meeting, false, err
	}
	if appt.Status != models.StatusConfirmed {
		return nil, false, apperrors.NewConflictError(fmt.Sprintf("Meetings can only be created for confirmed appointments, this one is %s", appt.Status))
	}

	req := SessionRequest{
		Topic:           topicFor(appt),
		StartTime:       appt.ScheduledAt,
		DurationMinutes: int(p.duration / time.Minute),
	}

	callCtx, cancelCall := context.WithTimeout(ctx, p.callTimeout)
	session, err := p.provider.CreateSession(callCtx, req)
	cancelCall()
	if err != nil {
		return nil, false, apperrors.NewExternalError("Failed to create telemedicine session", err)
	}

	meeting := newMeeting(appt.ID, p.provider.Name(), req, session)
	if err := p.store.SaveMeeting(ctx, meeting); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateRecord) {
			logging.WithTrace(ctx, p.logger).Warn().
				Str("appointment_id", appt.ID).
				Str("provider_session_id", session.ID).
				Msg("meeting linked concurrently, provider session left orphaned")
			return nil, false, apperrors.NewConflictError("A meeting was created concurrently for this appointment")
		}
		return nil, false, apperrors.NewInternalError("failed to save meeting", err)
	}
	return meeting, true, nil
}

// GetForAppointment returns the stored meeting after a best-effort status refresh
// from the provider.
func (p *Provisioner) GetForAppointment(ctx context.Context, appointmentID string, caller *models.Caller) (*models.Meeting, error) {
	ctx, span := tracer.Start(ctx, "telemedicine.get_meeting")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", appointmentID))

	appt, err := p.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !caller.Authenticated() {
		return nil, fail(span, apperrors.NewUnauthorizedError("Authentication required"))
	}
	if caller.Role != models.RoleAdmin && !isParticipant(appt, caller) {
		return nil, fail(span, apperrors.NewForbiddenError("You are not authorized to view this meeting"))
	}

	meeting, err := p.linkedMeeting(ctx, appt)
	if err != nil {
		return nil, fail(span, err)
	}
	p.refresh(ctx, meeting)
	return meeting, nil
}

// Join checks that the caller is a participant and that now is inside the join
// window, and returns the meeting with its window.
func (p *Provisioner) Join(ctx context.Context, appointmentID string, caller *models.Caller, now time.Time) (*models.Meeting, Window, error) {
	appt, err := p.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, Window{}, err
	}
	if !caller.Authenticated() {
		return nil, Window{}, apperrors.NewUnauthorizedError("Authentication required")
	}
	if !isParticipant(appt, caller) {
		return nil, Window{}, apperrors.NewForbiddenError("Only the appointment participants can join this meeting")
	}
	if appt.Status == models.StatusCancelled {
		return nil, Window{}, apperrors.NewConflictError("Appointment has been cancelled")
	}

	meeting, err := p.linkedMeeting(ctx, appt)
	if err != nil {
		return nil, Window{}, err
	}

	window := JoinWindow(meeting)
	if !window.Contains(now) {
		return nil, window, apperrors.NewConflictError(fmt.Sprintf(
			"Meeting is not open for joining, it opens at %s and closes at %s",
			window.OpensAt.Format(time.RFC3339), window.ClosesAt.Format(time.RFC3339)))
	}
	return meeting, window, nil
}

func (p *Provisioner) loadAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewValidationError("Invalid Appointment ID format")
	}
	appt, err := p.store.FindAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Appointment not found")
		}
		return nil, apperrors.NewInternalError("failed to load appointment", err)
	}
	return appt, nil
}

func (p *Provisioner) linkedMeeting(ctx context.Context, appt *models.Appointment) (*models.Meeting, error) {
	if !appt.HasMeeting() {
		return nil, apperrors.NewNotFoundError("No meeting scheduled for this appointment")
	}
	meeting, err := p.store.FindMeeting(ctx, *appt.TelemedicineMeetingID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("Meeting record not found")
		}
		return nil, apperrors.NewInternalError("failed to load meeting", err)
	}
	return meeting, nil
}

func (p *Provisioner) refresh(ctx context.Context, meeting *models.Meeting) {
	log := logging.WithTrace(ctx, p.logger).With().
		Str("meeting_id", meeting.ID).
		Str("provider_session_id", meeting.ProviderSessionID).
		Logger()

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	session, err := p.provider.GetSession(callCtx, meeting.ProviderSessionID)
	if err != nil {
		log.Warn().Err(err).Msg("meeting refresh failed, returning stored meeting")
		return
	}
	if session.Status == "" || session.Status == meeting.Status {
		return
	}
	if err := p.store.UpdateMeetingStatus(ctx, meeting.ID, session.Status); err != nil {
		log.Warn().Err(err).Msg("failed to persist refreshed meeting status")
		return
	}
	meeting.Status = session.Status
}

func (p *Provisioner) sendMeetingLink(ctx context.Context, appt *models.Appointment, meeting *models.Meeting) {
	if p.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.notifyTimeout)
	defer cancel()

	err := p.notifier.SendMeetingLink(notifyCtx, appt, meeting)
	p.metrics.ObserveNotification("meeting_link", err)
	if err != nil {
		logging.WithTrace(ctx, p.logger).Warn().Err(err).
			Str("appointment_id", appt.ID).
			Str("meeting_id", meeting.ID).
			Msg("meeting link notification failed")
	}
}

func newMeeting(appointmentID, provider string, req SessionRequest, session *Session) *models.Meeting {
	start := session.StartTime
	if start.IsZero() {
		start = req.StartTime
	}
	minutes := session.DurationMinutes
	if minutes <= 0 {
		minutes = req.DurationMinutes
	}
	end := start.Add(DefaultDuration)
	if minutes > 0 {
		end = start.Add(time.Duration(minutes) * time.Minute)
	}
	status := session.Status
	if status == "" {
		status = models.MeetingStatusScheduled
	}
	return &models.Meeting{
		AppointmentID:     appointmentID,
		Provider:          provider,
		ProviderSessionID: session.ID,
		Topic:             req.Topic,
		JoinURL:           session.JoinURL,
		Passcode:          session.Passcode,
		StartTime:         start,
		EndTime:           &end,
		Status:            status,
	}
}

// topicFor names the session after both participants.
func topicFor(appt *models.Appointment) string {
	patient := strings.TrimSpace(appt.PatientName)
	if patient == "" && appt.Patient != nil {
		patient = appt.Patient.FullName()
	}
	if patient == "" {
		patient = "Patient"
	}
	if appt.Doctor == nil || appt.Doctor.FullName() == "" {
		return "Consultation: " + patient
	}
	return fmt.Sprintf("Consultation: %s with Dr. %s", patient, appt.Doctor.FullName())
}

func isParticipant(appt *models.Appointment, caller *models.Caller) bool {
	return caller.UserID == appt.PatientID || caller.UserID == appt.DoctorID
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

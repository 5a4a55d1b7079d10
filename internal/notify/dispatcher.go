package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinic-portal-server/internal/models"
)

// ErrNoRecipient is returned when an appointment carries no usable email address.
var ErrNoRecipient = errors.New("notify: no recipient email")

// Dispatcher renders appointment and meeting notifications and hands them to an
// EmailSender.
type Dispatcher struct {
	sender  EmailSender
	appName string
	linkTTL time.Duration
	logger  zerolog.Logger
}

// NewDispatcher builds a dispatcher. linkTTL is the verification token lifetime
// quoted in the email; zero means 24 hours.
func NewDispatcher(sender EmailSender, appName string, linkTTL time.Duration, logger zerolog.Logger) *Dispatcher {
	if appName == "" {
		appName = defaultFromName
	}
	if linkTTL <= 0 {
		linkTTL = 24 * time.Hour
	}
	return &Dispatcher{sender: sender, appName: appName, linkTTL: linkTTL, logger: logger}
}

// SendVerificationEmail mails the verification link to the patient contact
// captured at booking time.
func (d *Dispatcher) SendVerificationEmail(ctx context.Context, appt *models.Appointment, verificationLink string) error {
	if appt.PatientEmail == "" {
		return ErrNoRecipient
	}

	doctor := doctorName(appt)
	when := fmt.Sprintf("%s at %s", appt.Date, appt.Time)
	expires := describeTTL(d.linkTTL)

	body := fmt.Sprintf(
		"Hello %s,\n\nPlease confirm your appointment with %s on %s by opening the link below.\n\n%s\n\nThe link expires in %s.\n\n%s",
		greeting(appt.PatientName), doctor, when, verificationLink, expires, d.appName)
	htmlBody := fmt.Sprintf(
		"<p>Hello %s,</p><p>Please confirm your appointment with %s on %s.</p><p><a href=\"%s\">Confirm appointment</a></p><p>The link expires in %s.</p><p>%s</p>",
		html.EscapeString(greeting(appt.PatientName)), html.EscapeString(doctor), html.EscapeString(when),
		html.EscapeString(verificationLink), expires, html.EscapeString(d.appName))

	return d.send(ctx, "verification", EmailMessage{
		To:      appt.PatientEmail,
		ToName:  appt.PatientName,
		Subject: "Confirm your appointment",
		Body:    body,
		HTML:    htmlBody,
	})
}

// SendMeetingLink mails the join link to the patient contact and to the doctor.
// Each recipient is attempted; the returned error joins every failure.
func (d *Dispatcher) SendMeetingLink(ctx context.Context, appt *models.Appointment, meeting *models.Meeting) error {
	start := meeting.StartTime.Format("Mon, 02 Jan 2006 15:04 MST")

	details := fmt.Sprintf("Starts: %s\nJoin: %s", start, meeting.JoinURL)
	if meeting.Passcode != "" {
		details += "\nPasscode: " + meeting.Passcode
	}
	details += "\n\nThe meeting opens 10 minutes before the start time."

	var recipients []EmailMessage
	if appt.PatientEmail != "" {
		recipients = append(recipients, EmailMessage{
			To:      appt.PatientEmail,
			ToName:  appt.PatientName,
			Subject: "Your telemedicine consultation link",
			Body:    fmt.Sprintf("Hello %s,\n\nYour consultation with %s is ready.\n\n%s\n\n%s", greeting(appt.PatientName), doctorName(appt), details, d.appName),
		})
	}
	if appt.Doctor != nil && appt.Doctor.Email != "" {
		recipients = append(recipients, EmailMessage{
			To:      appt.Doctor.Email,
			ToName:  appt.Doctor.FullName(),
			Subject: "Telemedicine consultation scheduled",
			Body:    fmt.Sprintf("A consultation with %s has been scheduled.\n\n%s\n\n%s", greeting(appt.PatientName), details, d.appName),
		})
	}
	if len(recipients) == 0 {
		return ErrNoRecipient
	}

	var errs []error
	for _, msg := range recipients {
		if err := d.send(ctx, "meeting_link", msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, kind string, msg EmailMessage) error {
	started := time.Now()
	err := d.sender.Send(ctx, msg)
	d.logger.Debug().
		Str("kind", kind).
		Str("to", msg.To).
		Dur("elapsed", time.Since(started)).
		Err(err).
		Msg("notification dispatched")
	return err
}

func doctorName(appt *models.Appointment) string {
	if appt.Doctor == nil {
		return "your doctor"
	}
	if name := strings.TrimSpace(appt.Doctor.FullName()); name != "" {
		return "Dr. " + name
	}
	return "your doctor"
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

// describeTTL renders whole hours as "N hours" and anything shorter in minutes.
func describeTTL(ttl time.Duration) string {
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		if h := int(ttl / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	}
	m := int(ttl.Round(time.Minute) / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

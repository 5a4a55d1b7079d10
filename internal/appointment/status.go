package appointment

import (
	"clinic-portal-server/internal/models"
)

// Policy holds the configurable parts of the appointment state machine.
type Policy struct {
	// AllowPendingCompletion permits pending -> completed without a confirmation step.
	AllowPendingCompletion bool
	// RestrictToAssignedDoctor limits doctors to updating their own appointments.
	// Admins may always update any appointment.
	RestrictToAssignedDoctor bool
}

// DefaultPolicy is the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{RestrictToAssignedDoctor: true}
}

// transitions lists every legal status change. cancelled and completed are terminal.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusUnverified: {models.StatusPending},
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusCompleted, models.StatusCancelled},
}

// settableStatuses are the targets accepted by UpdateStatus. unverified is only
// ever an initial state.
var settableStatuses = map[models.AppointmentStatus]bool{
	models.StatusPending:   true,
	models.StatusConfirmed: true,
	models.StatusCancelled: true,
	models.StatusCompleted: true,
}

// CanTransition reports whether an appointment may move from one status to another.
func (p Policy) CanTransition(from, to models.AppointmentStatus) bool {
	if from == models.StatusPending && to == models.StatusCompleted {
		return p.AllowPendingCompletion
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from status.
func IsTerminal(status models.AppointmentStatus) bool {
	return status == models.StatusCancelled || status == models.StatusCompleted
}

// IsSettable reports whether status is an accepted UpdateStatus target.
func IsSettable(status models.AppointmentStatus) bool {
	return settableStatuses[status]
}

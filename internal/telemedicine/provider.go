package telemedicine

import (
	"context"
	"fmt"
	"time"
)

// SessionRequest asks a video provider for a new session.
type SessionRequest struct {
	Topic           string
	StartTime       time.Time
	DurationMinutes int
}

// Session is the provider's view of a video session. Zero StartTime or
// DurationMinutes mean the provider did not report them.
type Session struct {
	ID              string
	JoinURL         string
	Passcode        string
	StartTime       time.Time
	DurationMinutes int
	Status          string
}

// VideoProvider allocates and inspects remote video sessions.
type VideoProvider interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

// ProviderError is returned when the provider answers with a failure status.
type ProviderError struct {
	Provider   string
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Operation, e.StatusCode, e.Body)
}

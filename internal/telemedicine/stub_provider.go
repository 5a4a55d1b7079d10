package telemedicine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"clinic-portal-server/internal/models"
)

// StubProvider hands out fake sessions without any network call. It is used in
// development when no video provider credentials are configured.
type StubProvider struct {
	baseURL  string
	seq      atomic.Int64
	mu       sync.Mutex
	sessions map[string]Session
}

// NewStubProvider returns a provider whose join links point at baseURL.
func NewStubProvider(baseURL string) *StubProvider {
	if baseURL == "" {
		baseURL = "https://meet.clinic.local"
	}
	return &StubProvider{baseURL: baseURL, sessions: make(map[string]Session)}
}

func (s *StubProvider) Name() string { return "stub" }

func (s *StubProvider) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	id := fmt.Sprintf("stub-%d", s.seq.Add(1))
	session := Session{
		ID:              id,
		JoinURL:         fmt.Sprintf("%s/j/%s", s.baseURL, id),
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Status:          models.MeetingStatusScheduled,
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	return &session, nil
}

func (s *StubProvider) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, &ProviderError{Provider: s.Name(), Operation: "get_session", StatusCode: 404, Body: "session not found"}
	}
	return &session, nil
}

// Created reports how many sessions have been allocated.
func (s *StubProvider) Created() int {
	return int(s.seq.Load())
}

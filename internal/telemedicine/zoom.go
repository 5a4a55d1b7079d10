package telemedicine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"clinic-portal-server/internal/metrics"
	"clinic-portal-server/internal/models"
)

const (
	defaultZoomBaseURL  = "https://api.zoom.us/v2"
	defaultZoomTokenURL = "https://zoom.us/oauth/token"
	zoomScheduledType   = 2
	maxErrorBody        = 512
)

// ZoomConfig configures the Zoom adapter. Server-to-Server OAuth is used when the
// account id, client id and client secret are all present; otherwise AccessToken
// is sent as a static bearer token.
type ZoomConfig struct {
	BaseURL      string
	TokenURL     string
	AccountID    string
	ClientID     string
	ClientSecret string
	AccessToken  string
	Timeout      time.Duration
}

// ZoomProvider implements VideoProvider against the Zoom REST API.
type ZoomProvider struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
}

type zoomMeetingRequest struct {
	Topic     string              `json:"topic"`
	Type      int                 `json:"type"`
	StartTime string              `json:"start_time"`
	Duration  int                 `json:"duration"`
	Timezone  string              `json:"timezone"`
	Settings  zoomMeetingSettings `json:"settings"`
}

type zoomMeetingSettings struct {
	JoinBeforeHost bool `json:"join_before_host"`
	WaitingRoom    bool `json:"waiting_room"`
}

type zoomMeetingResponse struct {
	ID        int64  `json:"id"`
	Topic     string `json:"topic"`
	JoinURL   string `json:"join_url"`
	Password  string `json:"password"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	Status    string `json:"status"`
}

// NewZoomProvider builds an authenticated Zoom client.
func NewZoomProvider(cfg ZoomConfig, m *metrics.Metrics) (*ZoomProvider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultZoomBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultZoomTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	base := &http.Client{Timeout: cfg.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var client *http.Client
	switch {
	case cfg.AccountID != "" && cfg.ClientID != "" && cfg.ClientSecret != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
			EndpointParams: url.Values{
				"grant_type": {"account_credentials"},
				"account_id": {cfg.AccountID},
			},
		}
		client = cc.Client(ctx)
	case cfg.AccessToken != "":
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}))
	default:
		return nil, errors.New("zoom: account credentials or an access token are required")
	}
	client.Timeout = cfg.Timeout

	return &ZoomProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		metrics: m,
	}, nil
}

func (z *ZoomProvider) Name() string { return "zoom" }

// CreateSession schedules a Zoom meeting.
func (z *ZoomProvider) CreateSession(ctx context.Context, req SessionRequest) (session *Session, err error) {
	started := time.Now()
	defer func() { z.metrics.ObserveProviderCall("create_session", started, err) }()

	body, err := json.Marshal(zoomMeetingRequest{
		Topic:     req.Topic,
		Type:      zoomScheduledType,
		StartTime: req.StartTime.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  req.DurationMinutes,
		Timezone:  "UTC",
		Settings: zoomMeetingSettings{
			JoinBeforeHost: true,
			WaitingRoom:    false,
		},
	})
	if err != nil {
		return nil, err
	}

	var out zoomMeetingResponse
	if err := z.do(ctx, http.MethodPost, "/users/me/meetings", body, "create_session", &out); err != nil {
		return nil, err
	}
	if out.ID == 0 || out.JoinURL == "" {
		return nil, errors.New("zoom create_session: response missing meeting id or join url")
	}
	return out.toSession(), nil
}

// GetSession fetches the current state of a Zoom meeting.
func (z *ZoomProvider) GetSession(ctx context.Context, sessionID string) (session *Session, err error) {
	started := time.Now()
	defer func() { z.metrics.ObserveProviderCall("get_session", started, err) }()

	var out zoomMeetingResponse
	if err := z.do(ctx, http.MethodGet, "/meetings/"+url.PathEscape(sessionID), nil, "get_session", &out); err != nil {
		return nil, err
	}
	return out.toSession(), nil
}

func (z *ZoomProvider) do(ctx context.Context, method, path string, body []byte, op string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, z.baseURL+path, reader)
	if err != nil {
		return err
	}
	z.addHeaders(req)

	resp, err := z.client.Do(req)
	if err != nil {
		return fmt.Errorf("zoom %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ProviderError{
			Provider:   z.Name(),
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("zoom %s: decode response: %w", op, err)
	}
	return nil
}

func (z *ZoomProvider) addHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
}

func (r zoomMeetingResponse) toSession() *Session {
	s := &Session{
		ID:              strconv.FormatInt(r.ID, 10),
		JoinURL:         r.JoinURL,
		Passcode:        r.Password,
		DurationMinutes: r.Duration,
		Status:          zoomStatus(r.Status),
	}
	if ts, err := time.Parse(time.RFC3339, r.StartTime); err == nil {
		s.StartTime = ts
	}
	return s
}

func zoomStatus(status string) string {
	switch strings.ToLower(status) {
	case "waiting", "":
		return models.MeetingStatusScheduled
	case "started":
		return models.MeetingStatusStarted
	case "finished", "ended":
		return models.MeetingStatusEnded
	default:
		return strings.ToLower(status)
	}
}

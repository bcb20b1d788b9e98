// Package zoom is a minimal Zoom server-to-server OAuth API client covering
// meeting creation and cloud recording retrieval.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCredentialsMissing means the S2S client id/secret are not configured.
var ErrCredentialsMissing = errors.New("zoom: s2s client credentials missing")

// tokenExpirySkew is subtracted from the token lifetime so a token is never
// used right at its expiry boundary.
const tokenExpirySkew = 30 * time.Second

// AuthError is a rejected credential exchange at the OAuth endpoint.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("zoom: token exchange rejected: status %d: %s", e.StatusCode, e.Body)
}

// ProviderError is a non-success response from the Zoom API.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("zoom: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config holds Zoom S2S OAuth credentials and endpoint URLs.
type Config struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	OAuthURL     string // default https://zoom.us/oauth/token
	APIBaseURL   string // default https://api.zoom.us/v2
}

// Meeting is the subset of the create-meeting response we persist.
type Meeting struct {
	ID      int64  `json:"id"`
	UUID    string `json:"uuid"`
	Topic   string `json:"topic"`
	JoinURL string `json:"join_url"`
}

// RecordingFile is one file of a completed meeting's cloud recording.
type RecordingFile struct {
	ID             string `json:"id"`
	FileType       string `json:"file_type"`
	FileSize       int64  `json:"file_size"`
	Duration       int    `json:"duration"`
	RecordingStart string `json:"recording_start"` // RFC3339; may be empty
	DownloadURL    string `json:"download_url"`
}

// Client calls the Zoom API with a cached S2S bearer token. The token slot is
// owned by the client instance; concurrent refreshes may each hit the OAuth
// endpoint, tokens are interchangeable.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

// NewClient creates a Zoom client. Endpoint URLs fall back to production
// defaults when empty.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = "https://zoom.us/oauth/token"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.zoom.us/v2"
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
		now:    time.Now,
	}
}

// AccessToken returns a valid bearer token, exchanging client credentials via
// the account_credentials grant when the cached token is absent or within 30
// seconds of expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", ErrCredentialsMissing
	}

	params := url.Values{}
	params.Set("grant_type", "account_credentials")
	params.Set("account_id", c.cfg.AccountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.OAuthURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("zoom: build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("zoom: token exchange: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("zoom: decode token response: %w", err)
	}
	if tokenResp.ExpiresIn <= 0 {
		tokenResp.ExpiresIn = 3600
	}

	c.mu.Lock()
	c.token = tokenResp.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpirySkew)
	c.mu.Unlock()

	c.logger.Debug("zoom token refreshed", zap.Int("expires_in", tokenResp.ExpiresIn))
	return tokenResp.AccessToken, nil
}

type createMeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time,omitempty"`
	Duration  int             `json:"duration"`
	Timezone  string          `json:"timezone,omitempty"`
	Settings  meetingSettings `json:"settings"`
}

type meetingSettings struct {
	AutoRecording string `json:"auto_recording"`
}

// CreateMeeting creates a scheduled cloud meeting with cloud auto-recording
// enabled and returns its identifiers.
func (c *Client) CreateMeeting(ctx context.Context, topic string, startTime time.Time, durationMinutes int, timezone string) (*Meeting, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	reqBody := createMeetingRequest{
		Topic:    topic,
		Type:     2, // scheduled meeting
		Duration: durationMinutes,
		Timezone: timezone,
		Settings: meetingSettings{AutoRecording: "cloud"},
	}
	if !startTime.IsZero() {
		reqBody.StartTime = startTime.UTC().Format(time.RFC3339)
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("zoom: marshal meeting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/users/me/meetings", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("zoom: build meeting request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zoom: create meeting: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Op: "create meeting", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var meeting Meeting
	if err := json.Unmarshal(body, &meeting); err != nil {
		return nil, fmt.Errorf("zoom: decode meeting response: %w", err)
	}
	return &meeting, nil
}

// ListRecordingFiles returns the recording files of a completed meeting,
// looked up by its UUID.
func (c *Client) ListRecordingFiles(ctx context.Context, meetingUUID string) ([]RecordingFile, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := c.cfg.APIBaseURL + "/meetings/" + url.PathEscape(meetingUUID) + "/recordings"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("zoom: build recordings request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zoom: list recordings: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Op: "list recordings", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var recResp struct {
		RecordingFiles []RecordingFile `json:"recording_files"`
	}
	if err := json.Unmarshal(body, &recResp); err != nil {
		return nil, fmt.Errorf("zoom: decode recordings response: %w", err)
	}
	return recResp.RecordingFiles, nil
}

// Download fetches a recording file's bytes from its download URL using the
// bearer token.
func (c *Client) Download(ctx context.Context, downloadURL string) ([]byte, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("zoom: build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("zoom: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ProviderError{Op: "download recording", StatusCode: resp.StatusCode, Body: string(body)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("zoom: read download body: %w", err)
	}
	return data, nil
}

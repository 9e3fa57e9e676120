package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/leadline-ai/leadline-voice-service/pkg/retry"
)

// Availability is the answer to an availability query.
type Availability struct {
	Available bool     `json:"available"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// Adapter is the calendar service boundary used by the tool executor.
type Adapter interface {
	CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*Availability, error)
	CreateEvent(ctx context.Context, calendarID, summary string, start, end time.Time) (string, error)
}

// Config configures the HTTP calendar client.
type Config struct {
	BaseURL   string
	JWTSecret string
	JWTIssuer string
}

// HTTPClient talks to the calendar service over JSON/HTTP with a short-lived
// HS256 bearer token per request.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
	policy     retry.Policy
}

func NewHTTPClient(config Config) *HTTPClient {
	return &HTTPClient{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy: retry.Policy{
			MaxAttempts: 2,
			Backoff:     500 * time.Millisecond,
		},
	}
}

type availabilityRequest struct {
	CalendarID string    `json:"calendar_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type createEventRequest struct {
	CalendarID string    `json:"calendar_id"`
	Summary    string    `json:"summary"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type createEventResponse struct {
	EventID string `json:"event_id"`
}

// CheckAvailability queries the calendar service for conflicts in a window.
func (c *HTTPClient) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*Availability, error) {
	var result Availability
	err := c.postJSON(ctx, "/v1/availability", availabilityRequest{
		CalendarID: calendarID,
		Start:      start,
		End:        end,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateEvent books an event and returns the provider's event id.
func (c *HTTPClient) CreateEvent(ctx context.Context, calendarID, summary string, start, end time.Time) (string, error) {
	var result createEventResponse
	err := c.postJSON(ctx, "/v1/events", createEventRequest{
		CalendarID: calendarID,
		Summary:    summary,
		Start:      start,
		End:        end,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.EventID, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal calendar request: %w", err)
	}

	return c.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build calendar request: %w", err)
		}
		token, err := c.bearerToken()
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("calendar request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("calendar service returned %d: %s", resp.StatusCode, string(data))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode calendar response: %w", err)
		}
		return nil
	})
}

// bearerToken signs a short-lived service token for the calendar API.
func (c *HTTPClient) bearerToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": c.config.JWTIssuer,
		"iat": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(c.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign calendar token: %w", err)
	}
	return signed, nil
}

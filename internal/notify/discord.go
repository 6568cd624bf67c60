// Package notify delivers match notifications to the configured chat channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
)

var (
	// ErrDeliveryFailed is returned when the channel rejects or cannot
	// receive a notification. The engine leaves the record unnotified and
	// retries on a later cycle.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sink sends one notification per completed match. A nil return means the
// channel confirmed delivery; anything else means the send must be retried
// later.
type Sink interface {
	Send(ctx context.Context, match *models.Match) error
}

// DiscordWebhookSink posts a rich embed to a Discord webhook.
type DiscordWebhookSink struct {
	client     HTTPClient
	logger     *zap.Logger
	webhookURL string
	username   string
}

// NewDiscordWebhookSink creates a sink posting to webhookURL under the given
// display username.
func NewDiscordWebhookSink(client HTTPClient, logger *zap.Logger, webhookURL, username string) *DiscordWebhookSink {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscordWebhookSink{
		client:     client,
		logger:     logger,
		webhookURL: webhookURL,
		username:   username,
	}
}

// webhookPayload is the Discord "execute webhook" request body.
type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

const embedColorGreen = 0x2ECC71

// Send posts the match result embed. Only a 2xx response counts as confirmed
// delivery.
func (s *DiscordWebhookSink) Send(ctx context.Context, match *models.Match) error {
	payload := buildPayload(s.username, match)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		s.logger.Debug("notification delivered",
			zap.String("match_id", match.ID),
			zap.Int("status", resp.StatusCode),
		)
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: discord rate limited (429): %s", ErrDeliveryFailed, respBody)
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", ErrDeliveryFailed, resp.StatusCode, respBody)
	}
}

func buildPayload(username string, match *models.Match) webhookPayload {
	e := embed{
		Title: fmt.Sprintf("%s %s – %s %s", match.TeamA, match.ScoreA, match.ScoreB, match.TeamB),
		URL:   match.ID,
		Color: embedColorGreen,
		Fields: []embedField{
			{Name: "Tournament", Value: match.Tournament, Inline: true},
			{Name: "Phase", Value: match.Phase, Inline: true},
		},
	}

	if match.StartTime != nil {
		e.Timestamp = match.StartTime.UTC().Format(time.RFC3339)
	}

	return webhookPayload{
		Username: username,
		Embeds:   []embed{e},
	}
}

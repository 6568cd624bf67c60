// Package mirror pushes the current match table to an external display
// endpoint. Mirroring is best-effort: failures are logged by the caller and
// never block the notification pipeline.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
)

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Mirror receives the full scraped match sequence each cycle.
type Mirror interface {
	Push(ctx context.Context, matches []*models.Match) error
}

// SheetsWebhookMirror posts match rows as JSON to a spreadsheet ingestion
// endpoint (an Apps Script web app or similar).
type SheetsWebhookMirror struct {
	client     HTTPClient
	logger     *zap.Logger
	webhookURL string
}

// NewSheetsWebhookMirror creates a mirror posting to webhookURL.
func NewSheetsWebhookMirror(client HTTPClient, logger *zap.Logger, webhookURL string) *SheetsWebhookMirror {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetsWebhookMirror{
		client:     client,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// row is one spreadsheet line.
type row struct {
	Link       string `json:"link"`
	StartTime  string `json:"start_time"`
	TeamA      string `json:"team_a"`
	TeamB      string `json:"team_b"`
	ScoreA     string `json:"score_a"`
	ScoreB     string `json:"score_b"`
	Status     string `json:"status"`
	Phase      string `json:"phase"`
	Tournament string `json:"tournament"`
}

// Push sends the full table snapshot.
func (m *SheetsWebhookMirror) Push(ctx context.Context, matches []*models.Match) error {
	rows := make([]row, 0, len(matches))
	for _, match := range matches {
		r := row{
			Link:       match.ID,
			TeamA:      match.TeamA,
			TeamB:      match.TeamB,
			ScoreA:     match.ScoreA,
			ScoreB:     match.ScoreB,
			Status:     match.Status,
			Phase:      match.Phase,
			Tournament: match.Tournament,
		}
		if match.StartTime != nil {
			r.StartTime = match.StartTime.UTC().Format(time.RFC3339)
		}
		rows = append(rows, r)
	}

	body, err := json.Marshal(map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("encode mirror payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("push mirror rows: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push mirror rows: unexpected status %d", resp.StatusCode)
	}

	m.logger.Debug("mirror updated", zap.Int("rows", len(rows)))
	return nil
}

package mirror

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
)

func TestPush(t *testing.T) {
	var got struct {
		Rows []row `json:"rows"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewSheetsWebhookMirror(server.Client(), nil, server.URL)

	start := time.Date(2026, time.February, 14, 13, 0, 0, 0, time.UTC)
	match := models.NewMatch("https://www.vlr.gg/1/a-vs-b")
	match.Update(&start, "Sentinels", "Fnatic", "2", "1", "Completed", "Playoffs", "Champions Tour")

	unparsed := models.NewMatch("https://www.vlr.gg/2/c-vs-d")
	unparsed.Update(nil, "DRX", "LOUD", "-", "-", "upcoming", "", "")

	err := m.Push(context.Background(), []*models.Match{match, unparsed})
	require.NoError(t, err)

	require.Len(t, got.Rows, 2)
	assert.Equal(t, "https://www.vlr.gg/1/a-vs-b", got.Rows[0].Link)
	assert.Equal(t, "2026-02-14T13:00:00Z", got.Rows[0].StartTime)
	assert.Empty(t, got.Rows[1].StartTime)
}

func TestPush_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	m := NewSheetsWebhookMirror(server.Client(), nil, server.URL)

	err := m.Push(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 403")
}

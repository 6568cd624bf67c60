package notify

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

func completedMatch() *models.Match {
	start := time.Date(2026, time.February, 14, 13, 0, 0, 0, time.UTC)
	m := models.NewMatch("https://www.vlr.gg/12345/sentinels-vs-fnatic")
	m.Update(&start, "Sentinels", "Fnatic", "2", "1", "Completed", "Playoffs: Grand Final", "Champions Tour 2026: Americas")
	return m
}

func TestSend_Success(t *testing.T) {
	var got webhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewDiscordWebhookSink(server.Client(), nil, server.URL, "Match Results")

	err := sink.Send(context.Background(), completedMatch())
	require.NoError(t, err)

	assert.Equal(t, "Match Results", got.Username)
	require.Len(t, got.Embeds, 1)
	e := got.Embeds[0]
	assert.Equal(t, "Sentinels 2 – 1 Fnatic", e.Title)
	assert.Equal(t, "https://www.vlr.gg/12345/sentinels-vs-fnatic", e.URL)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "Champions Tour 2026: Americas", e.Fields[0].Value)
	assert.Equal(t, "2026-02-14T13:00:00Z", e.Timestamp)
}

func TestSend_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	sink := NewDiscordWebhookSink(server.Client(), nil, server.URL, "")

	err := sink.Send(context.Background(), completedMatch())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "429")
}

func TestSend_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewDiscordWebhookSink(server.Client(), nil, server.URL, "")

	err := sink.Send(context.Background(), completedMatch())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestSend_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately unreachable

	sink := NewDiscordWebhookSink(nil, nil, server.URL, "")

	err := sink.Send(context.Background(), completedMatch())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestBuildPayload_NoStartTime(t *testing.T) {
	m := models.NewMatch("https://www.vlr.gg/1/a-vs-b")
	m.Update(nil, "A", "B", "2", "0", "completed", "", "")

	payload := buildPayload("bot", m)
	require.Len(t, payload.Embeds, 1)
	assert.Empty(t, payload.Embeds[0].Timestamp)
	assert.Equal(t, models.TournamentNA, payload.Embeds[0].Fields[0].Value)
}

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
)

func newFileRepo(t *testing.T) MatchRepository {
	t.Helper()
	return NewFileMatchRepository(filepath.Join(t.TempDir(), "matches.json"))
}

func newCompletedMatch(id string, start time.Time) *models.Match {
	m := models.NewMatch(id)
	m.Update(&start, "Sentinels", "Fnatic", "2", "1", "Completed", "Playoffs", "Champions Tour")
	return m
}

func TestFileRepo_UpsertAndGet(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	match := newCompletedMatch("https://www.vlr.gg/1/a-vs-b", start)

	require.NoError(t, repo.Upsert(ctx, match))

	got, err := repo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sentinels", got.TeamA)
	assert.Equal(t, "2", got.ScoreA)
	assert.False(t, got.Notified)

	_, err = repo.GetByID(ctx, "https://www.vlr.gg/999/unknown")
	assert.True(t, db.IsNotFound(err))
}

func TestFileRepo_NotifiedIsMonotonic(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	match := newCompletedMatch("https://www.vlr.gg/1/a-vs-b", start)
	require.NoError(t, repo.Upsert(ctx, match))

	changed, err := repo.MarkNotified(ctx, []string{match.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	// Re-ingesting the same id must not clear the flag
	rescrape := newCompletedMatch(match.ID, start)
	require.NoError(t, repo.Upsert(ctx, rescrape))

	got, err := repo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified)

	// Second mark is a no-op, not an error
	changed, err = repo.MarkNotified(ctx, []string{match.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)
}

func TestFileRepo_ListNotificationCandidates(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()
	now := time.Now()

	recent := newCompletedMatch("https://www.vlr.gg/1/recent", now.Add(-23*time.Hour))
	stale := newCompletedMatch("https://www.vlr.gg/2/stale", now.Add(-25*time.Hour))
	live := models.NewMatch("https://www.vlr.gg/3/live")
	liveStart := now.Add(-time.Hour)
	live.Update(&liveStart, "DRX", "LOUD", "1", "0", "LIVE", "Groups", "Champions Tour")
	unparsed := models.NewMatch("https://www.vlr.gg/4/unparsed")
	unparsed.Update(nil, "NAVI", "EDG", "2", "0", "final", "Groups", "Champions Tour")

	require.NoError(t, repo.UpsertBatch(ctx, []*models.Match{recent, stale, live, unparsed}))

	candidates, err := repo.ListNotificationCandidates(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, recent.ID, candidates[0].ID)

	count, err := repo.CountUnparsedTerminal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// After marking, a repeat scrape yields zero candidates
	_, err = repo.MarkNotified(ctx, []string{recent.ID})
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, newCompletedMatch(recent.ID, now.Add(-23*time.Hour))))
	candidates, err = repo.ListNotificationCandidates(ctx, now, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFileRepo_ResetNotified(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Hour)
	a := newCompletedMatch("https://www.vlr.gg/1/a", start)
	b := newCompletedMatch("https://www.vlr.gg/2/b", start)
	require.NoError(t, repo.UpsertBatch(ctx, []*models.Match{a, b}))

	_, err := repo.MarkNotified(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)

	changed, err := repo.ResetNotified(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	changed, err = repo.ResetAllNotified(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed) // only b was still notified
}

func TestFileRepo_ListPending(t *testing.T) {
	repo := newFileRepo(t)
	ctx := context.Background()
	now := time.Now()

	// Stale completed matches stay pending even though they are outside the
	// recency window
	stale := newCompletedMatch("https://www.vlr.gg/1/stale", now.Add(-48*time.Hour))
	recent := newCompletedMatch("https://www.vlr.gg/2/recent", now.Add(-time.Hour))
	require.NoError(t, repo.UpsertBatch(ctx, []*models.Match{stale, recent}))

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = repo.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestFileRepo_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matches.json")
	ctx := context.Background()

	repo := NewFileMatchRepository(path)
	start := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Upsert(ctx, newCompletedMatch("https://www.vlr.gg/1/a", start)))
	_, err := repo.MarkNotified(ctx, []string{"https://www.vlr.gg/1/a"})
	require.NoError(t, err)

	// Crash-restart: a fresh repository over the same file sees the flag
	reopened := NewFileMatchRepository(path)
	got, err := reopened.GetByID(ctx, "https://www.vlr.gg/1/a")
	require.NoError(t, err)
	assert.True(t, got.Notified)
}

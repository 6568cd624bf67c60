package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
)

// fileMatchRepository is the database-less fallback: the whole table lives in
// one JSON file guarded by a coarse mutex. Writes go through a temp file and
// rename, so a crash leaves either the old or the new snapshot on disk.
// Atomicity is per snapshot, not per statement, which is weaker than the
// PostgreSQL implementation but carries the same call semantics.
type fileMatchRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileMatchRepository creates a MatchRepository backed by a JSON file at
// path. The file is created on first write; a missing file reads as an empty
// store.
func NewFileMatchRepository(path string) MatchRepository {
	return &fileMatchRepository{path: path}
}

func (r *fileMatchRepository) Upsert(ctx context.Context, match *models.Match) error {
	return r.UpsertBatch(ctx, []*models.Match{match})
}

func (r *fileMatchRepository) UpsertBatch(_ context.Context, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	for _, match := range matches {
		if existing, ok := records[match.ID]; ok {
			match.CreatedAt = existing.CreatedAt
			// The flag only ever accumulates truth
			match.Notified = existing.Notified || match.Notified
		}
		clone := *match
		records[match.ID] = &clone
	}

	return r.store(records)
}

func (r *fileMatchRepository) GetByID(_ context.Context, id string) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	match, ok := records[id]
	if !ok {
		return nil, fmt.Errorf("get match by id: %w", db.ErrNotFound)
	}

	clone := *match
	return &clone, nil
}

func (r *fileMatchRepository) ListNotificationCandidates(_ context.Context, now time.Time, window time.Duration) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	var matches []*models.Match
	for _, match := range records {
		if match.Notified || !match.IsTerminal() {
			continue
		}
		if !match.WithinRecency(now, window) {
			continue
		}
		clone := *match
		matches = append(matches, &clone)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].StartTime.After(*matches[j].StartTime)
	})

	return matches, nil
}

func (r *fileMatchRepository) CountUnparsedTerminal(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return 0, err
	}

	var count int64
	for _, match := range records {
		if match.IsTerminal() && !match.Notified && match.StartTime == nil {
			count++
		}
	}

	return count, nil
}

func (r *fileMatchRepository) MarkNotified(_ context.Context, ids []string) (int64, error) {
	return r.setNotified(ids, true)
}

func (r *fileMatchRepository) ResetNotified(_ context.Context, ids []string) (int64, error) {
	return r.setNotified(ids, false)
}

func (r *fileMatchRepository) ResetAllNotified(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return 0, err
	}

	var changed int64
	for _, match := range records {
		if match.Notified {
			match.Notified = false
			match.UpdatedAt = time.Now()
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}

	return changed, r.store(records)
}

func (r *fileMatchRepository) ListPending(_ context.Context, limit int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return nil, err
	}

	var matches []*models.Match
	for _, match := range records {
		if match.IsTerminal() && !match.Notified {
			clone := *match
			matches = append(matches, &clone)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

func (r *fileMatchRepository) Ping(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.load()
	return err
}

func (r *fileMatchRepository) setNotified(ids []string, value bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return 0, err
	}

	var changed int64
	for _, id := range ids {
		match, ok := records[id]
		if !ok || match.Notified == value {
			continue
		}
		match.Notified = value
		match.UpdatedAt = time.Now()
		changed++
	}

	if changed == 0 {
		return 0, nil
	}

	return changed, r.store(records)
}

// load reads the snapshot. Callers must hold the mutex.
func (r *fileMatchRepository) load() (map[string]*models.Match, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*models.Match), nil
		}
		return nil, fmt.Errorf("read match file: %w: %v", db.ErrUnavailable, err)
	}

	var records map[string]*models.Match
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode match file: %w: %v", db.ErrUnavailable, err)
	}
	if records == nil {
		records = make(map[string]*models.Match)
	}

	return records, nil
}

// store writes the snapshot via temp file and rename. Callers must hold the
// mutex.
func (r *fileMatchRepository) store(records map[string]*models.Match) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode match file: %w", err)
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, ".matches-*.json")
	if err != nil {
		return fmt.Errorf("create temp match file: %w: %v", db.ErrUnavailable, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp match file: %w: %v", db.ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp match file: %w: %v", db.ErrUnavailable, err)
	}

	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace match file: %w: %v", db.ErrUnavailable, err)
	}

	return nil
}

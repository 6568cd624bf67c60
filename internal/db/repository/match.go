// Package repository provides persistence for scraped match records.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
)

// MatchRepository defines operations for the durable match record store.
type MatchRepository interface {
	// Upsert inserts a match or overwrites its mutable fields. The notified
	// flag is never reset from true to false and created_at is preserved.
	Upsert(ctx context.Context, match *models.Match) error

	// UpsertBatch applies Upsert to every match inside one transaction.
	UpsertBatch(ctx context.Context, matches []*models.Match) error

	// GetByID retrieves a match by its source link.
	GetByID(ctx context.Context, id string) (*models.Match, error)

	// ListNotificationCandidates returns matches with a terminal status,
	// notified=false, and a parsed start time within window of now.
	ListNotificationCandidates(ctx context.Context, now time.Time, window time.Duration) ([]*models.Match, error)

	// CountUnparsedTerminal counts completed matches excluded from
	// notification because their start time never parsed.
	CountUnparsedTerminal(ctx context.Context) (int64, error)

	// MarkNotified sets notified=true for the given ids in a single
	// statement and returns how many rows actually changed. Ids that are
	// already notified contribute zero, not an error.
	MarkNotified(ctx context.Context, ids []string) (int64, error)

	// ResetNotified clears the notified flag for the given ids. Manual
	// recovery only; the engine never calls it.
	ResetNotified(ctx context.Context, ids []string) (int64, error)

	// ResetAllNotified clears the notified flag on every record.
	ResetAllNotified(ctx context.Context) (int64, error)

	// ListPending returns terminal, not-yet-notified matches regardless of
	// recency, newest first. Operator convenience.
	ListPending(ctx context.Context, limit int) ([]*models.Match, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

type matchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a MatchRepository backed by PostgreSQL.
func NewMatchRepository(pool *pgxpool.Pool) MatchRepository {
	return &matchRepository{pool: pool}
}

const upsertQuery = `
	INSERT INTO matches (
		id, start_time, team_a, team_b, score_a, score_b,
		status, phase, tournament, notified, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		start_time = EXCLUDED.start_time,
		team_a     = EXCLUDED.team_a,
		team_b     = EXCLUDED.team_b,
		score_a    = EXCLUDED.score_a,
		score_b    = EXCLUDED.score_b,
		status     = EXCLUDED.status,
		phase      = EXCLUDED.phase,
		tournament = EXCLUDED.tournament,
		notified   = matches.notified OR EXCLUDED.notified,
		updated_at = EXCLUDED.updated_at
	RETURNING notified, created_at
`

func (r *matchRepository) Upsert(ctx context.Context, match *models.Match) error {
	err := r.pool.QueryRow(ctx, upsertQuery,
		match.ID,
		match.StartTime,
		match.TeamA,
		match.TeamB,
		match.ScoreA,
		match.ScoreB,
		match.Status,
		match.Phase,
		match.Tournament,
		match.Notified,
		match.CreatedAt,
		match.UpdatedAt,
	).Scan(&match.Notified, &match.CreatedAt)

	if err != nil {
		return db.WrapError(err, "upsert match")
	}

	return nil
}

func (r *matchRepository) UpsertBatch(ctx context.Context, matches []*models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return db.WrapError(err, "begin upsert batch")
	}
	defer tx.Rollback(ctx)

	for _, match := range matches {
		err := tx.QueryRow(ctx, upsertQuery,
			match.ID,
			match.StartTime,
			match.TeamA,
			match.TeamB,
			match.ScoreA,
			match.ScoreB,
			match.Status,
			match.Phase,
			match.Tournament,
			match.Notified,
			match.CreatedAt,
			match.UpdatedAt,
		).Scan(&match.Notified, &match.CreatedAt)
		if err != nil {
			return db.WrapError(err, "upsert batch match")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return db.WrapError(err, "commit upsert batch")
	}

	return nil
}

func (r *matchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `
		SELECT id, start_time, team_a, team_b, score_a, score_b,
		       status, phase, tournament, notified, created_at, updated_at
		FROM matches
		WHERE id = $1
	`

	match := &models.Match{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&match.ID,
		&match.StartTime,
		&match.TeamA,
		&match.TeamB,
		&match.ScoreA,
		&match.ScoreB,
		&match.Status,
		&match.Phase,
		&match.Tournament,
		&match.Notified,
		&match.CreatedAt,
		&match.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get match by id")
	}

	return match, nil
}

func (r *matchRepository) ListNotificationCandidates(ctx context.Context, now time.Time, window time.Duration) ([]*models.Match, error) {
	query := `
		SELECT id, start_time, team_a, team_b, score_a, score_b,
		       status, phase, tournament, notified, created_at, updated_at
		FROM matches
		WHERE lower(status) = ANY($1)
		  AND notified = false
		  AND start_time IS NOT NULL
		  AND start_time > $2
		ORDER BY start_time DESC
	`

	rows, err := r.pool.Query(ctx, query, models.TerminalStatuses(), now.Add(-window))
	if err != nil {
		return nil, db.WrapError(err, "list notification candidates")
	}
	defer rows.Close()

	return scanMatches(rows)
}

func (r *matchRepository) CountUnparsedTerminal(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM matches
		WHERE lower(status) = ANY($1)
		  AND notified = false
		  AND start_time IS NULL
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, models.TerminalStatuses()).Scan(&count); err != nil {
		return 0, db.WrapError(err, "count unparsed terminal matches")
	}

	return count, nil
}

func (r *matchRepository) MarkNotified(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE matches
		SET notified = true, updated_at = NOW()
		WHERE id = ANY($1) AND notified = false
	`

	result, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, db.WrapError(err, "mark notified")
	}

	return result.RowsAffected(), nil
}

func (r *matchRepository) ResetNotified(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE matches
		SET notified = false, updated_at = NOW()
		WHERE id = ANY($1) AND notified = true
	`

	result, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, db.WrapError(err, "reset notified")
	}

	return result.RowsAffected(), nil
}

func (r *matchRepository) ResetAllNotified(ctx context.Context) (int64, error) {
	query := `
		UPDATE matches
		SET notified = false, updated_at = NOW()
		WHERE notified = true
	`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, db.WrapError(err, "reset all notified")
	}

	return result.RowsAffected(), nil
}

func (r *matchRepository) ListPending(ctx context.Context, limit int) ([]*models.Match, error) {
	query := `
		SELECT id, start_time, team_a, team_b, score_a, score_b,
		       status, phase, tournament, notified, created_at, updated_at
		FROM matches
		WHERE lower(status) = ANY($1)
		  AND notified = false
		ORDER BY updated_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, models.TerminalStatuses(), limit)
	if err != nil {
		return nil, db.WrapError(err, "list pending matches")
	}
	defer rows.Close()

	return scanMatches(rows)
}

func (r *matchRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return db.WrapError(err, "ping store")
	}
	return nil
}

// Helper function to scan multiple matches from query results
func scanMatches(rows pgx.Rows) ([]*models.Match, error) {
	var matches []*models.Match

	for rows.Next() {
		match := &models.Match{}
		err := rows.Scan(
			&match.ID,
			&match.StartTime,
			&match.TeamA,
			&match.TeamB,
			&match.ScoreA,
			&match.ScoreB,
			&match.Status,
			&match.Phase,
			&match.Tournament,
			&match.Notified,
			&match.CreatedAt,
			&match.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return matches, nil
}

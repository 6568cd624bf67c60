package models

import (
	"strings"
	"time"
)

// Default placeholder values used when the results page has no data yet.
const (
	TeamTBD       = "TBD"
	TournamentNA  = "N/A"
	PhaseNA       = "N/A"
	ScoreUnplayed = "-"
)

// terminalStatuses are the status labels that mark a match as concluded.
// Comparison is case-insensitive; the source page is not consistent about
// casing.
var terminalStatuses = map[string]struct{}{
	"completed": {},
	"finished":  {},
	"final":     {},
}

// Match represents one scraped match result keyed by its source link.
// Records are append/update-only: they are never deleted, and Notified never
// transitions back to false except through an explicit administrative reset.
type Match struct {
	ID         string     `db:"id" json:"id"`
	StartTime  *time.Time `db:"start_time" json:"start_time,omitempty"`
	TeamA      string     `db:"team_a" json:"team_a"`
	TeamB      string     `db:"team_b" json:"team_b"`
	ScoreA     string     `db:"score_a" json:"score_a"`
	ScoreB     string     `db:"score_b" json:"score_b"`
	Status     string     `db:"status" json:"status"`
	Phase      string     `db:"phase" json:"phase"`
	Tournament string     `db:"tournament" json:"tournament"`
	Notified   bool       `db:"notified" json:"notified"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// NewMatch creates a new Match with bookkeeping timestamps set and missing
// descriptive fields replaced by their placeholders.
func NewMatch(id string) *Match {
	now := time.Now()
	return &Match{
		ID:         id,
		TeamA:      TeamTBD,
		TeamB:      TeamTBD,
		ScoreA:     ScoreUnplayed,
		ScoreB:     ScoreUnplayed,
		Phase:      PhaseNA,
		Tournament: TournamentNA,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Update overwrites the mutable fields from a fresh scrape observation.
// Notified is deliberately left alone: only the engine's commit step and the
// administrative reset touch it.
func (m *Match) Update(startTime *time.Time, teamA, teamB, scoreA, scoreB, status, phase, tournament string) {
	m.StartTime = startTime
	m.TeamA = orDefault(teamA, TeamTBD)
	m.TeamB = orDefault(teamB, TeamTBD)
	m.ScoreA = orDefault(scoreA, ScoreUnplayed)
	m.ScoreB = orDefault(scoreB, ScoreUnplayed)
	m.Status = status
	m.Phase = orDefault(phase, PhaseNA)
	m.Tournament = orDefault(tournament, TournamentNA)
	m.UpdatedAt = time.Now()
}

// IsTerminal reports whether the match status marks the contest as concluded.
func (m *Match) IsTerminal() bool {
	return IsTerminalStatus(m.Status)
}

// IsTerminalStatus reports whether a raw status label belongs to the
// terminal set, ignoring case and surrounding whitespace.
func IsTerminalStatus(status string) bool {
	_, ok := terminalStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// TerminalStatuses returns the terminal status labels in lowercase form,
// for use in SQL IN clauses.
func TerminalStatuses() []string {
	out := make([]string, 0, len(terminalStatuses))
	for s := range terminalStatuses {
		out = append(out, s)
	}
	return out
}

// WithinRecency reports whether the match started within window of now. A
// match with an unparseable start time is never recent: it stays in the
// store but is excluded from notification until a later scrape provides a
// valid time.
func (m *Match) WithinRecency(now time.Time, window time.Duration) bool {
	if m.StartTime == nil {
		return false
	}
	return now.Sub(*m.StartTime) < window
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

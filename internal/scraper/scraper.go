// Package scraper fetches and parses the public results page into raw match
// tuples. The dedup engine consumes these as already-parsed candidates; all
// page-layout knowledge stays here.
package scraper

import "context"

// RawMatch is one scraped result row, untyped apart from strings. Start time
// parsing happens downstream so a malformed date never aborts a fetch.
type RawMatch struct {
	ID            string
	StartTimeText string
	TeamA         string
	TeamB         string
	ScoreA        string
	ScoreB        string
	StatusText    string
	Phase         string
	Tournament    string
}

// Scraper produces the current finite sequence of raw matches. Each call is
// independent; a failed call surfaces an error, never a partial sequence.
type Scraper interface {
	Fetch(ctx context.Context) ([]RawMatch, error)
}

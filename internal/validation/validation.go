// Package validation normalizes raw scraped tuples into match records.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
	"github.com/matchwatch/vlr-results-notifier-go/internal/scraper"
)

var ordinalRegex = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)

// startTimeLayouts are tried in order against the concatenated day label and
// time text from the results page.
var startTimeLayouts = []string{
	"Mon, January 2, 2006 3:04 PM",
	"Mon, January 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"2006-01-02 15:04",
}

// Normalizer converts raw scraped tuples into match records.
type Normalizer struct {
	location *time.Location
}

// NewNormalizer creates a Normalizer. Scraped times are interpreted in loc;
// nil means local time.
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{location: loc}
}

// Normalize builds a match record from a raw tuple. An invalid id is an
// error. An unparseable start time is not: the record is stored with no
// start time and stays out of the notification window until a later scrape
// supplies a valid one.
func (n *Normalizer) Normalize(raw scraper.RawMatch) (*models.Match, error) {
	if err := validateID(raw.ID); err != nil {
		return nil, err
	}

	match := models.NewMatch(raw.ID)
	start, _ := n.ParseStartTime(raw.StartTimeText)
	match.Update(start, raw.TeamA, raw.TeamB, raw.ScoreA, raw.ScoreB, raw.StatusText, raw.Phase, raw.Tournament)

	return match, nil
}

// ParseStartTime parses the scraped day-plus-time text. The second return is
// false when no layout matched.
func (n *Normalizer) ParseStartTime(text string) (*time.Time, bool) {
	cleaned := strings.TrimSpace(ordinalRegex.ReplaceAllString(text, "$1"))
	if cleaned == "" {
		return nil, false
	}

	for _, layout := range startTimeLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, n.location); err == nil {
			return &t, true
		}
	}

	return nil, false
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("match id is empty")
	}
	u, err := url.Parse(id)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("match id is not an absolute URL: %q", id)
	}
	return nil
}

package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// VLRScraper scrapes the vlr.gg results page.
type VLRScraper struct {
	client      HTTPClient
	logger      *zap.Logger
	url         string
	baseURL     string
	userAgent   string
	tournaments []string
}

// NewVLRScraper creates a scraper for the given results page. tournaments is
// an optional allow-list: when non-empty, matches whose tournament name does
// not contain one of the entries (case-insensitive) are dropped.
func NewVLRScraper(client HTTPClient, logger *zap.Logger, url, baseURL, userAgent string, tournaments []string) *VLRScraper {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VLRScraper{
		client:      client,
		logger:      logger,
		url:         url,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		userAgent:   userAgent,
		tournaments: tournaments,
	}
}

// Fetch downloads and parses the results page.
func (s *VLRScraper) Fetch(ctx context.Context) ([]RawMatch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch results page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch results page: unexpected status %d", resp.StatusCode)
	}

	matches, err := s.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scraped results page",
		zap.String("url", s.url),
		zap.Int("matches", len(matches)),
	)

	return matches, nil
}

// Parse extracts raw matches from a results page document. Exported for
// fixture-based tests.
func (s *VLRScraper) Parse(r io.Reader) ([]RawMatch, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse results html: %w", err)
	}

	var matches []RawMatch
	currentDate := ""

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			// Day headers carry the date for every row until the next header
			if n.Data == "div" && hasClass(n, "wf-label") {
				currentDate = normalizeSpace(textContent(n))
				return
			}
			if n.Data == "a" && hasClass(n, "wf-module-item") {
				if m, ok := s.extractMatch(n, currentDate); ok {
					matches = append(matches, m)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return matches, nil
}

func (s *VLRScraper) extractMatch(anchor *html.Node, date string) (RawMatch, bool) {
	href := attr(anchor, "href")
	if href == "" {
		return RawMatch{}, false
	}

	id := href
	if strings.HasPrefix(href, "/") {
		id = s.baseURL + href
	}

	names := findAllByClass(anchor, "match-item-vs-team-name")
	scores := findAllByClass(anchor, "match-item-vs-team-score")

	m := RawMatch{
		ID:         id,
		StatusText: normalizeSpace(textByClass(anchor, "ml-status")),
		Phase:      normalizeSpace(textByClass(anchor, "match-item-event-series")),
	}

	timeText := normalizeSpace(textByClass(anchor, "match-item-time"))
	m.StartTimeText = strings.TrimSpace(date + " " + timeText)

	if len(names) > 0 {
		m.TeamA = normalizeSpace(textContent(names[0]))
	}
	if len(names) > 1 {
		m.TeamB = normalizeSpace(textContent(names[1]))
	}
	if len(scores) > 0 {
		m.ScoreA = normalizeSpace(textContent(scores[0]))
	}
	if len(scores) > 1 {
		m.ScoreB = normalizeSpace(textContent(scores[1]))
	}

	// The event block holds the series line plus the tournament name; the
	// tournament is whatever remains after the series text.
	if event := findFirstByClass(anchor, "match-item-event"); event != nil {
		full := normalizeSpace(textContent(event))
		m.Tournament = normalizeSpace(strings.TrimPrefix(full, m.Phase))
	}

	if !s.tournamentAllowed(m.Tournament) {
		s.logger.Debug("match filtered by tournament allow-list",
			zap.String("id", m.ID),
			zap.String("tournament", m.Tournament),
		)
		return RawMatch{}, false
	}

	return m, true
}

func (s *VLRScraper) tournamentAllowed(tournament string) bool {
	if len(s.tournaments) == 0 {
		return true
	}
	lowered := strings.ToLower(tournament)
	for _, allowed := range s.tournaments {
		if strings.Contains(lowered, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

// html tree helpers

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func findFirstByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func findAllByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textByClass(n *html.Node, class string) string {
	node := findFirstByClass(n, class)
	if node == nil {
		return ""
	}
	return textContent(node)
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

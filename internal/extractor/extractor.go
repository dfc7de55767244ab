package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/project-radar/backend/internal/models"
)

// ErrNoEmbeddedData is returned when the page fetched fine but the embedded
// listing payload marker is missing, which is expected when the marketplace
// changes its page layout. Callers should treat it as a zero-progress run.
var ErrNoEmbeddedData = errors.New("embedded listing data not found")

// The search page carries its result set as an HTML-escaped JSON blob inside
// a single attribute.
var payloadExpr = regexp.MustCompile(`:results-initials="(\{[^"]+\})"`)

// Extractor fetches the marketplace search page and extracts listings.
type Extractor struct {
	searchURL string
	userAgent string
	client    *http.Client
}

// New wires an extractor against a fully parameterized search URL.
func New(searchURL, userAgent string, client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{searchURL: searchURL, userAgent: userAgent, client: client}
}

// Fetch pulls the search page and returns the embedded listings in page
// order. A missing payload marker yields ErrNoEmbeddedData; an empty result
// set yields an empty slice and no error.
func (e *Extractor) Fetch(ctx context.Context) ([]models.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search page returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search page: %w", err)
	}

	return extractListings(body)
}

func extractListings(page []byte) ([]models.Listing, error) {
	match := payloadExpr.FindSubmatch(page)
	if match == nil {
		return nil, ErrNoEmbeddedData
	}

	raw := html.UnescapeString(string(match[1]))

	var payload struct {
		Results []models.Listing `json:"results"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parse embedded listing data: %w", err)
	}

	listings := make([]models.Listing, 0, len(payload.Results))
	for _, listing := range payload.Results {
		if strings.TrimSpace(listing.Slug) == "" {
			continue
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

package models

import "time"

// Listing is a single project extracted from the marketplace search page.
// JSON tags follow the upstream embedded payload and may drift with it.
type Listing struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Budget        string `json:"budget"`
	PublishedDate string `json:"publishedDate"`
	TotalBids     int    `json:"totalBids"`
	URL           string `json:"url"`
}

// Analysis holds the structured fields parsed from a relevant model reply.
type Analysis struct {
	Summary  string `json:"summary"`
	Proposal string `json:"proposal"`
}

// Verdict is the classifier's decision for one listing. Analysis is only
// meaningful when Relevant is true.
type Verdict struct {
	Relevant bool
	Analysis Analysis
}

// Project represents an accepted listing as stored in Elasticsearch.
type Project struct {
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Budget        string    `json:"budget"`
	PublishedDate string    `json:"published_date"`
	TotalBids     int       `json:"total_bids"`
	Summary       string    `json:"summary"`
	Proposal      string    `json:"proposal"`
	ProcessedAt   time.Time `json:"processed_at"`
}

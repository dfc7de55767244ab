package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/project-radar/backend/internal/classifier"
	"github.com/project-radar/backend/internal/extractor"
	"github.com/project-radar/backend/internal/models"
	"github.com/project-radar/backend/internal/processing"
)

// Extractor pulls the current listing batch from the marketplace.
type Extractor interface {
	Fetch(ctx context.Context) ([]models.Listing, error)
}

// DedupStore is the durable set of already-classified slugs.
type DedupStore interface {
	IsProcessed(ctx context.Context, slug string) (bool, error)
	MarkProcessed(ctx context.Context, slug string) error
}

// Classifier judges one listing and drafts a proposal for relevant ones.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (models.Verdict, error)
}

// ResultStore persists accepted projects.
type ResultStore interface {
	IndexProject(ctx context.Context, project models.Project) error
}

// Notifier broadcasts accepted projects to subscribers.
type Notifier interface {
	Publish(ctx context.Context, project models.Project) error
}

// Deps wires the collaborating clients into one run.
type Deps struct {
	Extractor  Extractor
	Dedupe     DedupStore
	Classifier Classifier
	Results    ResultStore
	Notifier   Notifier
	BaseURL    string
	Log        *slog.Logger
}

// Pipeline drives a single batch run: fetch, then per listing dedup check,
// classification, marker write, persistence and notification. No state is
// kept between runs; everything durable lives in the dedup store and the
// result store.
type Pipeline struct {
	extractor  Extractor
	dedupe     DedupStore
	classifier Classifier
	results    ResultStore
	notifier   Notifier
	baseURL    string
	log        *slog.Logger
}

// Report summarizes one run for the trigger boundary.
type Report struct {
	// Analyzed counts new listings for which a verdict was obtained,
	// regardless of the verdict.
	Analyzed int
	// Accepted counts listings stored as projects.
	Accepted int
	// NoData is set when the page had no extractable listing payload.
	NoData bool
	// Empty is set when the payload was present but held no listings.
	Empty bool
}

// Message renders the run summary returned to the trigger.
func (r Report) Message() string {
	switch {
	case r.NoData:
		return "Could not find project data in the search page."
	case r.Empty:
		return "No projects found in the search."
	default:
		return fmt.Sprintf("Agent run finished. %d new projects analyzed.", r.Analyzed)
	}
}

// New constructs a pipeline for one run.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		extractor:  deps.Extractor,
		dedupe:     deps.Dedupe,
		classifier: deps.Classifier,
		results:    deps.Results,
		notifier:   deps.Notifier,
		baseURL:    deps.BaseURL,
		log:        deps.Log,
	}
}

// Run executes one batch. Fetch-stage failures abort the run; everything
// after that is isolated per listing so one bad item never sinks the batch.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	listings, err := p.extractor.Fetch(ctx)
	if errors.Is(err, extractor.ErrNoEmbeddedData) {
		p.log.Warn("no embedded listing data, treating as empty run")
		return Report{NoData: true}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("fetch listings: %w", err)
	}
	if len(listings) == 0 {
		return Report{Empty: true}, nil
	}

	var report Report
	for _, listing := range listings {
		p.processListing(ctx, listing, &report)
	}

	p.log.Info("run finished",
		slog.Int("listings", len(listings)),
		slog.Int("analyzed", report.Analyzed),
		slog.Int("accepted", report.Accepted),
	)

	return report, nil
}

func (p *Pipeline) processListing(ctx context.Context, listing models.Listing, report *Report) {
	log := p.log.With(slog.String("slug", listing.Slug))

	processed, err := p.dedupe.IsProcessed(ctx, listing.Slug)
	if err != nil {
		log.Error("dedup check failed, skipping listing", slog.Any("err", err))
		return
	}
	if processed {
		return
	}

	log.Info("classifying new listing", slog.String("title", listing.Title))

	verdict, err := p.classifier.Classify(ctx, listing.Title, processing.StripTags(listing.Description))
	if err != nil {
		if errors.Is(err, classifier.ErrNoAnalysis) {
			// The model answered but the reply was unusable. Mark the
			// listing so it is not re-classified forever.
			log.Warn("unparseable model reply", slog.Any("err", err))
			if markErr := p.dedupe.MarkProcessed(ctx, listing.Slug); markErr != nil {
				log.Error("mark processed failed", slog.Any("err", markErr))
			}
			return
		}
		// No classification decision was reached; leave the listing
		// unmarked so a later run can retry it.
		log.Warn("classifier call failed, skipping listing", slog.Any("err", err))
		return
	}

	report.Analyzed++

	if err := p.dedupe.MarkProcessed(ctx, listing.Slug); err != nil {
		// Without the marker the store state is inconsistent, so the
		// listing's remaining steps are abandoned.
		log.Error("mark processed failed", slog.Any("err", err))
		return
	}

	if !verdict.Relevant {
		log.Info("listing judged irrelevant")
		return
	}

	project := models.Project{
		Slug:          listing.Slug,
		Title:         listing.Title,
		URL:           processing.AbsoluteURL(p.baseURL, listing.URL),
		Budget:        listing.Budget,
		PublishedDate: listing.PublishedDate,
		TotalBids:     listing.TotalBids,
		Summary:       verdict.Analysis.Summary,
		Proposal:      verdict.Analysis.Proposal,
		ProcessedAt:   time.Now().UTC(),
	}

	if err := p.results.IndexProject(ctx, project); err != nil {
		log.Error("store project failed", slog.Any("err", err))
		return
	}

	report.Accepted++

	if err := p.notifier.Publish(ctx, project); err != nil {
		// Best-effort: the project is already durably stored.
		log.Warn("notify failed", slog.Any("err", err))
	}

	log.Info("relevant project stored and notified", slog.String("title", project.Title))
}

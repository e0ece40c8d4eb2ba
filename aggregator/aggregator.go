// Package aggregator merges every feed into one date-ordered listing set and
// serves it from a cache that expires at a fixed time each day.
package aggregator

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"alquilercito/models"
)

// Fetcher is a single feed. *feeds.Feed implements it.
type Fetcher interface {
	Fetch(ctx context.Context) models.FeedResult
}

// RunRecorder journals finished refreshes.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.RefreshRun) error
}

type Options struct {
	// Cutoff is required. The zero value is midnight, not DefaultCutoff.
	Cutoff Cutoff
	// Location the cutoff is evaluated in; the clock's own location when nil.
	Location *time.Location
	Now      func() time.Time
	Recorder RunRecorder
	Logger   *slog.Logger
}

type Aggregator struct {
	feeds  []Fetcher
	cache  *Cache
	opts   Options
	logger *slog.Logger
}

// New builds an aggregator over feeds, merged in the given order. Callers
// must set opts.Cutoff; pass DefaultCutoff for the usual 16:00 expiry.
func New(feeds []Fetcher, opts Options) *Aggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		feeds:  feeds,
		cache:  &Cache{},
		opts:   opts,
		logger: logger.With("component", "aggregator"),
	}
}

// FetchAll returns every listing, newest first. While the cache is fresh and
// force is false no feed is contacted. It never fails: feeds that error
// contribute nothing. The returned slice is shared and must not be modified.
func (a *Aggregator) FetchAll(ctx context.Context, force bool) []models.PropertyListing {
	return a.Snapshot(ctx, force).Listings
}

// Snapshot is FetchAll with the per-feed outcome of the refresh that
// produced the listings.
func (a *Aggregator) Snapshot(ctx context.Context, force bool) *Snapshot {
	now := a.now()
	if !force {
		if s, ok := a.cache.Get(now); ok {
			return s
		}
	}
	return a.refresh(ctx, now, force)
}

// Last returns the most recent snapshot without refreshing, or nil.
func (a *Aggregator) Last() *Snapshot {
	return a.cache.Last()
}

func (a *Aggregator) refresh(ctx context.Context, start time.Time, force bool) *Snapshot {
	// Abandoned callers must not cut a refresh short and cache its emptiness.
	ctx = context.WithoutCancel(ctx)

	results := make([]models.FeedResult, len(a.feeds))
	var g errgroup.Group
	for i, f := range a.feeds {
		g.Go(func() error {
			results[i] = f.Fetch(ctx)
			return nil
		})
	}
	g.Wait()

	merged := []models.PropertyListing{}
	statuses := make([]models.FeedStatus, 0, len(results))
	for _, r := range results {
		merged = append(merged, r.Listings...)
		statuses = append(statuses, r.Status())
	}
	SortByDate(merged)

	finished := a.now()
	snap := &Snapshot{
		RunID:     uuid.NewString(),
		Listings:  merged,
		Feeds:     statuses,
		Forced:    force,
		FetchedAt: finished,
		ExpiresAt: NextCutoff(finished, a.opts.Cutoff),
	}
	a.cache.Set(snap)

	a.logger.Info("listings refreshed",
		"run_id", snap.RunID,
		"listings", len(merged),
		"forced", force,
		"expires_at", snap.ExpiresAt,
	)
	a.record(ctx, start, snap)
	return snap
}

func (a *Aggregator) record(ctx context.Context, start time.Time, snap *Snapshot) {
	if a.opts.Recorder == nil {
		return
	}
	run := &models.RefreshRun{
		ID:         snap.RunID,
		StartedAt:  start,
		FinishedAt: snap.FetchedAt,
		Forced:     snap.Forced,
		Status:     models.RunStatusFor(snap.Feeds),
		Listings:   len(snap.Listings),
		ExpiresAt:  snap.ExpiresAt,
		Feeds:      snap.Feeds,
	}
	if err := a.opts.Recorder.RecordRun(ctx, run); err != nil {
		a.logger.Warn("failed to record refresh run", "run_id", run.ID, "error", err)
	}
}

func (a *Aggregator) now() time.Time {
	now := a.opts.Now()
	if a.opts.Location != nil {
		now = now.In(a.opts.Location)
	}
	return now
}

// SortByDate orders listings by publish date, newest first, with undated
// listings last. Equal dates keep their merge order.
func SortByDate(listings []models.PropertyListing) {
	slices.SortStableFunc(listings, func(x, y models.PropertyListing) int {
		switch {
		case x.PublishedDate == nil && y.PublishedDate == nil:
			return 0
		case x.PublishedDate == nil:
			return 1
		case y.PublishedDate == nil:
			return -1
		}
		// YYYY-MM-DD compares chronologically as a string.
		return strings.Compare(*y.PublishedDate, *x.PublishedDate)
	})
}

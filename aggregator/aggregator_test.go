package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"alquilercito/models"
)

type fakeFeed struct {
	source   models.Source
	listings []models.PropertyListing
	err      error
	calls    atomic.Int32
}

func (f *fakeFeed) Fetch(context.Context) models.FeedResult {
	f.calls.Add(1)
	if f.err != nil {
		return models.FeedResult{Source: f.source, Filename: string(f.source) + ".csv", Listings: []models.PropertyListing{}, Err: f.err}
	}
	return models.FeedResult{Source: f.source, Filename: string(f.source) + ".csv", Listings: f.listings}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recorder struct {
	mu   sync.Mutex
	runs []*models.RefreshRun
	err  error
}

func (r *recorder) RecordRun(_ context.Context, run *models.RefreshRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

func dated(url, date string) models.PropertyListing {
	l := models.PropertyListing{URL: url}
	if date != "" {
		l.PublishedDate = &date
	}
	return l
}

func published(listings []models.PropertyListing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.Published()
	}
	return out
}

func TestNextCutoff(t *testing.T) {
	art := time.FixedZone("ART", -3*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"morning", time.Date(2024, 6, 15, 9, 0, 0, 0, art), time.Date(2024, 6, 15, 16, 0, 0, 0, art)},
		{"exactly at cutoff", time.Date(2024, 6, 15, 16, 0, 0, 0, art), time.Date(2024, 6, 16, 16, 0, 0, 0, art)},
		{"evening", time.Date(2024, 6, 15, 18, 30, 0, 0, art), time.Date(2024, 6, 16, 16, 0, 0, 0, art)},
		{"month end", time.Date(2024, 6, 30, 23, 59, 0, 0, art), time.Date(2024, 7, 1, 16, 0, 0, 0, art)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextCutoff(tt.now, DefaultCutoff)
			if !got.Equal(tt.want) {
				t.Fatalf("NextCutoff(%v) = %v; want %v", tt.now, got, tt.want)
			}
		})
	}

	custom := NextCutoff(time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC), Cutoff{Hour: 8, Minute: 30})
	if want := time.Date(2024, 6, 16, 8, 30, 0, 0, time.UTC); !custom.Equal(want) {
		t.Fatalf("custom cutoff = %v; want %v", custom, want)
	}
}

func TestSortByDate(t *testing.T) {
	listings := []models.PropertyListing{
		dated("a", "2024-01-01"),
		dated("b", ""),
		dated("c", "2024-03-01"),
	}
	SortByDate(listings)

	got := published(listings)
	want := []string{"2024-03-01", "2024-01-01", ""}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByDate = %v; want %v", got, want)
		}
	}
}

func TestSortByDateKeepsMergeOrderForTies(t *testing.T) {
	listings := []models.PropertyListing{
		dated("zp-1", "2024-02-01"),
		dated("zp-2", ""),
		dated("ap-1", "2024-02-01"),
		dated("ap-2", ""),
	}
	SortByDate(listings)

	order := []string{listings[0].URL, listings[1].URL, listings[2].URL, listings[3].URL}
	want := []string{"zp-1", "ap-1", "zp-2", "ap-2"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v; want %v", order, want)
		}
	}
}

func TestFetchAllMergesAndSorts(t *testing.T) {
	zp := &fakeFeed{source: models.SourceZonaProp, listings: []models.PropertyListing{dated("zp", "2024-01-01"), dated("zp-undated", "")}}
	ap := &fakeFeed{source: models.SourceArgenProp, listings: []models.PropertyListing{dated("ap", "2024-03-01")}}

	agg := New([]Fetcher{zp, ap}, Options{Cutoff: DefaultCutoff})
	got := published(agg.FetchAll(context.Background(), false))

	want := []string{"2024-03-01", "2024-01-01", ""}
	if len(got) != len(want) {
		t.Fatalf("FetchAll = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FetchAll = %v; want %v", got, want)
		}
	}
}

func TestFetchAllServesCacheWithinWindow(t *testing.T) {
	clk := &clock{now: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
	zp := &fakeFeed{source: models.SourceZonaProp, listings: []models.PropertyListing{dated("zp", "2024-01-01")}}
	ap := &fakeFeed{source: models.SourceArgenProp}

	agg := New([]Fetcher{zp, ap}, Options{Cutoff: DefaultCutoff, Now: clk.Now})
	ctx := context.Background()

	first := agg.FetchAll(ctx, false)
	clk.Set(time.Date(2024, 6, 15, 15, 59, 0, 0, time.UTC))
	second := agg.FetchAll(ctx, false)

	if zp.calls.Load() != 1 || ap.calls.Load() != 1 {
		t.Fatalf("expected one fetch per feed, got zp=%d ap=%d", zp.calls.Load(), ap.calls.Load())
	}
	if len(first) != 1 || &first[0] != &second[0] {
		t.Fatalf("expected the memoized slice to be returned")
	}

	clk.Set(time.Date(2024, 6, 15, 16, 0, 0, 0, time.UTC))
	agg.FetchAll(ctx, false)
	if zp.calls.Load() != 2 {
		t.Fatalf("expected refetch once the cutoff passed, got %d", zp.calls.Load())
	}

	s := agg.Last()
	if want := time.Date(2024, 6, 16, 16, 0, 0, 0, time.UTC); !s.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v; want %v", s.ExpiresAt, want)
	}
}

func TestFetchAllForceAlwaysRefetches(t *testing.T) {
	zp := &fakeFeed{source: models.SourceZonaProp}
	agg := New([]Fetcher{zp}, Options{Cutoff: DefaultCutoff})
	ctx := context.Background()

	agg.FetchAll(ctx, false)
	agg.FetchAll(ctx, true)
	agg.FetchAll(ctx, true)

	if got := zp.calls.Load(); got != 3 {
		t.Fatalf("expected 3 fetches, got %d", got)
	}
	if !agg.Last().Forced {
		t.Fatalf("expected last snapshot to be marked forced")
	}
}

func TestFetchAllIsolatesFeedFailures(t *testing.T) {
	zp := &fakeFeed{source: models.SourceZonaProp, err: errors.New("404")}
	ap := &fakeFeed{source: models.SourceArgenProp, listings: []models.PropertyListing{dated("ap-1", "2024-05-01"), dated("ap-2", "")}}

	agg := New([]Fetcher{zp, ap}, Options{Cutoff: DefaultCutoff})
	snap := agg.Snapshot(context.Background(), false)

	if len(snap.Listings) != 2 {
		t.Fatalf("expected argenprop listings to survive, got %d", len(snap.Listings))
	}
	if snap.Feeds[0].OK || !snap.Feeds[1].OK || snap.Feeds[0].Error != "404" {
		t.Fatalf("unexpected feed statuses %+v", snap.Feeds)
	}
}

func TestFetchAllTotalOutageIsEmpty(t *testing.T) {
	zp := &fakeFeed{source: models.SourceZonaProp, err: errors.New("down")}
	ap := &fakeFeed{source: models.SourceArgenProp, err: errors.New("down")}

	agg := New([]Fetcher{zp, ap}, Options{Cutoff: DefaultCutoff})
	got := agg.FetchAll(context.Background(), false)
	if got == nil || len(got) != 0 {
		t.Fatalf("FetchAll = %v; want empty slice", got)
	}
}

func TestFetchAllIgnoresCallerCancellation(t *testing.T) {
	zp := &fakeFeed{source: models.SourceZonaProp, listings: []models.PropertyListing{dated("zp", "")}}
	agg := New([]Fetcher{zp}, Options{Cutoff: DefaultCutoff})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := agg.FetchAll(ctx, false); len(got) != 1 {
		t.Fatalf("expected refresh to complete, got %d listings", len(got))
	}
}

func TestRefreshIsRecorded(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	zp := &fakeFeed{source: models.SourceZonaProp, listings: []models.PropertyListing{dated("zp", "2024-01-01")}}
	ap := &fakeFeed{source: models.SourceArgenProp, err: errors.New("timeout")}

	agg := New([]Fetcher{zp, ap}, Options{Cutoff: DefaultCutoff, Recorder: rec})
	snap := agg.Snapshot(context.Background(), true)

	if len(rec.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(rec.runs))
	}
	run := rec.runs[0]
	if run.ID != snap.RunID || run.Status != models.RunStatusPartial || run.Listings != 1 || !run.Forced {
		t.Fatalf("unexpected run %+v", run)
	}
	if len(snap.Listings) != 1 {
		t.Fatalf("recorder failure must not affect the result")
	}
}

func TestZeroCutoffExpiresAtMidnight(t *testing.T) {
	clk := &clock{now: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
	agg := New([]Fetcher{&fakeFeed{source: models.SourceZonaProp}}, Options{Now: clk.Now})

	snap := agg.Snapshot(context.Background(), false)
	if want := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC); !snap.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v; want %v", snap.ExpiresAt, want)
	}
}

// rendezvousFeed finishes only after its peer has started fetching.
type rendezvousFeed struct {
	source  models.Source
	started chan struct{}
	peer    chan struct{}
}

func (f *rendezvousFeed) Fetch(context.Context) models.FeedResult {
	close(f.started)
	res := models.FeedResult{Source: f.source, Filename: string(f.source) + ".csv", Listings: []models.PropertyListing{}}
	select {
	case <-f.peer:
		res.Listings = []models.PropertyListing{dated(string(f.source), "")}
	case <-time.After(2 * time.Second):
		res.Err = errors.New("peer never started")
	}
	return res
}

func TestFetchAllFetchesFeedsConcurrently(t *testing.T) {
	zpStarted, apStarted := make(chan struct{}), make(chan struct{})
	zp := &rendezvousFeed{source: models.SourceZonaProp, started: zpStarted, peer: apStarted}
	ap := &rendezvousFeed{source: models.SourceArgenProp, started: apStarted, peer: zpStarted}

	agg := New([]Fetcher{zp, ap}, Options{Cutoff: DefaultCutoff})
	snap := agg.Snapshot(context.Background(), false)

	for _, f := range snap.Feeds {
		if !f.OK {
			t.Fatalf("feeds were fetched one after another: %+v", snap.Feeds)
		}
	}
	if len(snap.Listings) != 2 || snap.Listings[0].URL != "zonaprop" {
		t.Fatalf("unexpected merge %+v", snap.Listings)
	}
}

func TestConcurrentMissesEachRefresh(t *testing.T) {
	zp := &fakeFeed{source: models.SourceZonaProp}
	agg := New([]Fetcher{zp}, Options{Cutoff: DefaultCutoff})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.FetchAll(context.Background(), true)
		}()
	}
	wg.Wait()

	if got := zp.calls.Load(); got != 8 {
		t.Fatalf("expected 8 refreshes, got %d", got)
	}
	if agg.Last() == nil {
		t.Fatalf("expected a cached snapshot")
	}
}

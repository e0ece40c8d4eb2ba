package models

import "time"

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// FeedResult is what a single feed fetch produced. Err is set when the feed
// failed; Listings is then empty, never nil.
type FeedResult struct {
	Source   Source
	Filename string
	Listings []PropertyListing
	Err      error
	Duration time.Duration
}

// FeedStatus is the serializable view of a FeedResult.
type FeedStatus struct {
	Source     Source `json:"source"`
	Filename   string `json:"filename"`
	OK         bool   `json:"ok"`
	Listings   int    `json:"listings"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func (r FeedResult) Status() FeedStatus {
	st := FeedStatus{
		Source:     r.Source,
		Filename:   r.Filename,
		OK:         r.Err == nil,
		Listings:   len(r.Listings),
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		st.Error = r.Err.Error()
	}
	return st
}

// RefreshRun records one aggregator refresh.
type RefreshRun struct {
	ID         string       `json:"id" db:"id"`
	StartedAt  time.Time    `json:"started_at" db:"started_at"`
	FinishedAt time.Time    `json:"finished_at" db:"finished_at"`
	Forced     bool         `json:"forced" db:"forced"`
	Status     RunStatus    `json:"status" db:"status"`
	Listings   int          `json:"listings" db:"listings"`
	ExpiresAt  time.Time    `json:"expires_at" db:"expires_at"`
	Feeds      []FeedStatus `json:"feeds"`
}

// RunStatusFor derives the overall status from per-feed outcomes.
func RunStatusFor(feeds []FeedStatus) RunStatus {
	failed := 0
	for _, f := range feeds {
		if !f.OK {
			failed++
		}
	}
	switch {
	case failed == 0:
		return RunStatusCompleted
	case failed == len(feeds):
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

// FeedStats summarizes a feed's history in the refresh journal.
type FeedStats struct {
	Source        Source     `json:"source" db:"source"`
	Filename      string     `json:"filename" db:"filename"`
	Runs          int        `json:"runs" db:"runs"`
	SuccessRate   float64    `json:"success_rate" db:"success_rate"`
	AvgDurationMS int64      `json:"avg_duration_ms" db:"avg_duration_ms"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty" db:"last_success_at"`
}

// Package feeds fetches the scraped listing CSVs from their remote store and
// parses them, isolating each feed's failures from the others.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// MaxFeedSize bounds a single CSV download.
const MaxFeedSize = 32 << 20

// ErrFeedTooLarge is returned instead of a truncated feed.
var ErrFeedTooLarge = errors.New("feed exceeds size limit")

// Store retrieves the raw text of a feed file.
type Store interface {
	Fetch(ctx context.Context, filename string) (string, error)
}

// FetchError reports a non-success answer from the remote store.
type FetchError struct {
	Filename   string
	StatusCode int
	Reason     string
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %s", e.Filename, e.Reason)
	}
	return fmt.Sprintf("fetch %s: %d %s", e.Filename, e.StatusCode, e.Reason)
}

// ReadAll reads a feed body, failing once more than limit bytes arrive.
func ReadAll(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w of %d bytes", ErrFeedTooLarge, limit)
	}
	return string(data), nil
}

package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"alquilercito/config"
)

// GitHubStore reads feed files from the data/ directory of a repository
// served over raw.githubusercontent.com (or any host with the same layout).
type GitHubStore struct {
	client *http.Client
	remote func() config.Remote
	limit  int64
}

// NewGitHubStore uses config.LoadRemote on every fetch.
func NewGitHubStore(client *http.Client) *GitHubStore {
	return NewGitHubStoreWithRemote(client, config.LoadRemote)
}

func NewGitHubStoreWithRemote(client *http.Client, remote func() config.Remote) *GitHubStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &GitHubStore{client: client, remote: remote, limit: MaxFeedSize}
}

// FileURL builds the raw URL for filename.
func FileURL(r config.Remote, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s/data/%s",
		r.BaseURL,
		url.PathEscape(r.Username),
		url.PathEscape(r.Repo),
		url.PathEscape(r.Branch),
		url.PathEscape(filename),
	)
}

func (s *GitHubStore) Fetch(ctx context.Context, filename string) (string, error) {
	r := s.remote()
	if r.Username == "" || r.Repo == "" {
		return "", &FetchError{Filename: filename, Reason: "GITHUB_USERNAME and REPO_NAME must be set"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, FileURL(r, filename), nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", filename, err)
	}
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("Cache-Control", "no-cache")
	if r.Token != "" {
		req.Header.Set("Authorization", "token "+r.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &FetchError{
			Filename:   filename,
			StatusCode: resp.StatusCode,
			Reason:     http.StatusText(resp.StatusCode),
		}
	}

	body, err := ReadAll(resp.Body, s.limit)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return body, nil
}

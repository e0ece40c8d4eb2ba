package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFeedClientRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ubicacion,precio\n"))
	}))
	defer srv.Close()

	client := NewClients().Feeds
	if client.Timeout != feedTimeout {
		t.Fatalf("expected %s timeout, got %s", feedTimeout, client.Timeout)
	}

	resp, err := client.Get(srv.URL + "/alice/repo/main/data/feed.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ubicacion,precio\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

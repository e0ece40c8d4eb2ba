package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const feedTimeout = 30 * time.Second

type Clients struct {
	Feeds *http.Client // remote CSV store
}

func NewClients() *Clients {
	return &Clients{
		Feeds: NewFeedClient(http.DefaultTransport),
	}
}

// NewFeedClient wraps base in an instrumented transport. Redirects are
// followed; raw.githubusercontent.com answers renamed repos with a 301.
func NewFeedClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout: feedTimeout,
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "feed " + r.Method + " " + r.URL.Path
			}),
		),
	}
}

package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"alquilercito/config"
	"alquilercito/models"
	"alquilercito/parser"
)

const (
	ZonaPropFile  = "propiedades_zonaprop.csv"
	ArgenPropFile = "propiedades_argenprop.csv"
)

// Feed is one remote CSV file tagged with the source its listings belong to.
type Feed struct {
	Source   models.Source
	Filename string
	Store    Store
	Parser   *parser.Parser
	Logger   *slog.Logger
}

func ZonaProp(store Store) *Feed {
	return &Feed{Source: models.SourceZonaProp, Filename: ZonaPropFile, Store: store}
}

func ArgenProp(store Store) *Feed {
	return &Feed{Source: models.SourceArgenProp, Filename: ArgenPropFile, Store: store}
}

// FromDefs builds feeds from declarations. Unknown sources are rejected.
func FromDefs(defs []config.FeedDef, store Store, p *parser.Parser, logger *slog.Logger) ([]*Feed, error) {
	feeds := make([]*Feed, 0, len(defs))
	for _, d := range defs {
		src, ok := models.ParseSource(d.Source)
		if !ok {
			return nil, fmt.Errorf("feed %s: unknown source %q", d.Filename, d.Source)
		}
		feeds = append(feeds, &Feed{
			Source:   src,
			Filename: d.Filename,
			Store:    store,
			Parser:   p,
			Logger:   logger,
		})
	}
	return feeds, nil
}

// Fetch downloads and parses the feed. Any failure, including a panic while
// parsing, is logged and reported in the result alongside an empty listing
// slice; it never reaches the caller as an error.
func (f *Feed) Fetch(ctx context.Context) (res models.FeedResult) {
	start := time.Now()
	res = models.FeedResult{
		Source:   f.Source,
		Filename: f.Filename,
		Listings: []models.PropertyListing{},
	}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("parse %s: panic: %v", f.Filename, r)
		}
		if res.Err != nil {
			res.Listings = []models.PropertyListing{}
		}
		res.Duration = time.Since(start)
		f.log(res)
	}()

	text, err := f.Store.Fetch(ctx, f.Filename)
	if err != nil {
		res.Err = err
		return res
	}

	p := f.Parser
	if p == nil {
		p = &parser.Parser{}
	}
	res.Listings = p.Parse(text, f.Source)
	return res
}

// Listings returns only the parsed listings; failures yield an empty slice.
func (f *Feed) Listings(ctx context.Context) []models.PropertyListing {
	return f.Fetch(ctx).Listings
}

func (f *Feed) log(res models.FeedResult) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if res.Err != nil {
		logger.Error("feed fetch failed",
			"source", res.Source,
			"filename", res.Filename,
			"error", res.Err,
		)
		return
	}
	logger.Info("feed fetched",
		"source", res.Source,
		"filename", res.Filename,
		"listings", len(res.Listings),
		"duration", res.Duration,
	)
}

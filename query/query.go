// Package query filters, sorts and pages the aggregated listings the way the
// gallery presents them.
package query

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"alquilercito/models"
)

const (
	DefaultLimit = 12
	MaxLimit     = 100
)

type Currency string

const (
	CurrencyAll   Currency = "all"
	CurrencyUSD   Currency = "usd"
	CurrencyPesos Currency = "pesos"
)

type PropertyType string

const (
	TypeAll   PropertyType = "all"
	TypePH    PropertyType = "ph"
	TypeDepto PropertyType = "depto"
)

type Sort string

const (
	SortNone Sort = "none"
	SortAsc  Sort = "asc"
	SortDesc Sort = "desc"
)

// Rooms values are "all", "1", "2", "3" and "4+".
const RoomsAll = "all"

type Options struct {
	Currency Currency
	City     string
	Rooms    string
	Type     PropertyType
	Sort     Sort
	Source   models.Source
	// Favorites holds listing IDs or URLs.
	Favorites     map[string]bool
	FavoritesOnly bool
	Offset        int
	Limit         int
	Target        string
}

type Page struct {
	Total    int                      `json:"total"`
	Matched  int                      `json:"matched"`
	Offset   int                      `json:"offset"`
	Limit    int                      `json:"limit"`
	HasMore  bool                     `json:"has_more"`
	Listings []models.PropertyListing `json:"listings"`
	Target   *models.PropertyListing  `json:"target,omitempty"`
}

// ParseOptions reads options from query parameters. Unknown values fall back
// to their "all"/"none" defaults rather than failing the request.
func ParseOptions(v url.Values) Options {
	opts := Options{
		Currency:      CurrencyAll,
		City:          strings.TrimSpace(v.Get("city")),
		Rooms:         RoomsAll,
		Type:          TypeAll,
		Sort:          SortNone,
		FavoritesOnly: parseBool(v.Get("favorites_only")),
		Limit:         DefaultLimit,
		Target:        strings.TrimSpace(v.Get("target")),
	}

	switch c := Currency(strings.ToLower(v.Get("currency"))); c {
	case CurrencyUSD, CurrencyPesos:
		opts.Currency = c
	}
	switch t := PropertyType(strings.ToLower(v.Get("type"))); t {
	case TypePH, TypeDepto:
		opts.Type = t
	}
	switch s := Sort(strings.ToLower(v.Get("sort"))); s {
	case SortAsc, SortDesc:
		opts.Sort = s
	}
	switch r := strings.TrimSpace(v.Get("rooms")); r {
	case "1", "2", "3", "4+":
		opts.Rooms = r
	}
	if src, ok := models.ParseSource(v.Get("source")); ok {
		opts.Source = src
	}

	for _, raw := range v["favorites"] {
		for _, fav := range strings.Split(raw, ",") {
			if fav = strings.TrimSpace(fav); fav != "" {
				if opts.Favorites == nil {
					opts.Favorites = make(map[string]bool)
				}
				opts.Favorites[fav] = true
			}
		}
	}

	if n, err := strconv.Atoi(v.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(v.Get("offset")); err == nil && n > 0 {
		opts.Offset = n
	} else if p, err := strconv.Atoi(v.Get("page")); err == nil && p > 1 {
		opts.Offset = (p - 1) * opts.Limit
	}

	return opts
}

// Apply filters in the gallery's order (favourites, currency, city, type,
// rooms, source), then sorts by price and pages. listings is not modified.
func Apply(listings []models.PropertyListing, opts Options) Page {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := max(opts.Offset, 0)

	matched := make([]models.PropertyListing, 0, len(listings))
	for i := range listings {
		if opts.match(&listings[i]) {
			matched = append(matched, listings[i])
		}
	}
	sortByPrice(matched, opts.Sort)

	page := Page{
		Total:    len(listings),
		Matched:  len(matched),
		Offset:   offset,
		Limit:    limit,
		Listings: []models.PropertyListing{},
	}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		page.Listings = matched[offset:end]
		page.HasMore = end < len(matched)
	}
	if opts.Target != "" {
		page.Target = Find(listings, opts.Target)
	}
	return page
}

func (o Options) match(l *models.PropertyListing) bool {
	if o.FavoritesOnly && !o.Favorites[l.ID] && !o.Favorites[l.URL] {
		return false
	}

	switch o.Currency {
	case CurrencyUSD:
		if !l.IsDollar {
			return false
		}
	case CurrencyPesos:
		if l.IsDollar {
			return false
		}
	}

	if o.City != "" {
		needle := strings.ToLower(o.City)
		if !strings.Contains(strings.ToLower(l.City), needle) &&
			!strings.Contains(strings.ToLower(l.Address), needle) {
			return false
		}
	}

	switch o.Type {
	case TypePH:
		if !l.IsPH {
			return false
		}
	case TypeDepto:
		if l.IsPH {
			return false
		}
	}

	if o.Rooms != "" && o.Rooms != RoomsAll {
		n, ok := roomCount(l)
		if !ok {
			return false
		}
		if o.Rooms == "4+" {
			if n < 4 {
				return false
			}
		} else if strconv.Itoa(n) != o.Rooms {
			return false
		}
	}

	if o.Source != "" && l.Source != o.Source {
		return false
	}
	return true
}

// Find resolves a shared link target by listing ID, then by URL.
func Find(listings []models.PropertyListing, target string) *models.PropertyListing {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil
	}
	for i := range listings {
		if listings[i].ID == target {
			return &listings[i]
		}
	}
	for i := range listings {
		if listings[i].URL == target {
			return &listings[i]
		}
	}
	return nil
}

func sortByPrice(listings []models.PropertyListing, s Sort) {
	if s != SortAsc && s != SortDesc {
		return
	}
	slices.SortStableFunc(listings, func(a, b models.PropertyListing) int {
		d := PriceValue(a.Price) - PriceValue(b.Price)
		if s == SortDesc {
			d = -d
		}
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
		return 0
	})
}

// PriceValue extracts the number from a formatted price. "Consultar" and
// anything without digits count as 0. Currencies are not converted.
func PriceValue(price string) int64 {
	var n int64
	for _, r := range price {
		if r >= '0' && r <= '9' {
			n = n*10 + int64(r-'0')
		}
	}
	return n
}

// roomCount reads the leading integer of a rooms label such as "3 amb".
func roomCount(l *models.PropertyListing) (int, bool) {
	if l.Rooms == nil {
		return 0, false
	}
	s := strings.TrimSpace(*l.Rooms)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

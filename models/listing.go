package models

import "strings"

type Source string

const (
	SourceZonaProp  Source = "zonaprop"
	SourceArgenProp Source = "argenprop"
	SourceRemax     Source = "remax"
)

// DefaultSource is assigned when neither the feed nor the row names one.
const DefaultSource = SourceZonaProp

// ParseSource maps a raw cell to a known source. Unknown values report false.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceZonaProp:
		return SourceZonaProp, true
	case SourceArgenProp:
		return SourceArgenProp, true
	case SourceRemax:
		return SourceRemax, true
	}
	return "", false
}

// PropertyListing is one normalized rental listing. Nullable display fields
// are pointers so they serialize as null.
type PropertyListing struct {
	ID            string   `json:"id"`
	Source        Source   `json:"source"`
	Price         string   `json:"price"`
	IsDollar      bool     `json:"isDollar"`
	IsPH          bool     `json:"isPH"`
	Expenses      *string  `json:"expenses"`
	City          string   `json:"city"`
	Address       string   `json:"address"`
	TotalM2       *string  `json:"totalM2"`
	Rooms         *string  `json:"rooms"`
	Bathrooms     *string  `json:"bathrooms"`
	Description   string   `json:"description"`
	MainImage     string   `json:"mainImage"`
	Images        []string `json:"images,omitempty"`
	URL           string   `json:"url"`
	PublishedDate *string  `json:"publishedDate"`
}

// Published returns the canonical publish date, or "" when unknown.
func (l *PropertyListing) Published() string {
	if l.PublishedDate == nil {
		return ""
	}
	return *l.PublishedDate
}

package parser

import (
	"strings"
	"time"

	"alquilercito/identity"
	"alquilercito/models"
	"alquilercito/normalize"
)

const bom = "\uFEFF"

// Parser turns feed CSV text into listings. The zero value is usable.
type Parser struct {
	// Formatter groups prices and expenses; normalize.Default when nil.
	Formatter *normalize.Formatter
	// Now anchors relative publish dates; time.Now when nil.
	Now func() time.Time
}

var defaultParser = &Parser{}

// Parse uses the default parser.
func Parse(text string, override models.Source) []models.PropertyListing {
	return defaultParser.Parse(text, override)
}

// Parse reads a feed. When override is non-empty it wins over any source
// column in the file. Malformed rows degrade to listings with empty fields,
// they are never dropped; only fully blank lines are skipped.
func (p *Parser) Parse(text string, override models.Source) []models.PropertyListing {
	listings := []models.PropertyListing{}

	text = strings.TrimSpace(strings.TrimPrefix(text, bom))
	if text == "" {
		return listings
	}

	rows := Tokenize(text)
	if len(rows) < 2 {
		return listings
	}

	header := NewHeaderMap(rows[0])
	now := p.now()
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		listings = append(listings, p.listing(header, row, override, now))
	}
	return listings
}

func (p *Parser) listing(h HeaderMap, row []string, override models.Source, now time.Time) models.PropertyListing {
	f := p.Formatter
	if f == nil {
		f = normalize.Default
	}

	esDolares := h.Get(row, ColEsDolares)
	address := normalize.CleanText(h.Get(row, ColDireccion))
	description := normalize.CleanText(h.Get(row, ColDescripcion))

	l := models.PropertyListing{
		Source:      resolveSource(override, h.Get(row, ColSource)),
		Price:       f.Price(h.Get(row, ColPrecio), esDolares),
		IsDollar:    normalize.ParseBooleanish(esDolares),
		IsPH:        normalize.InferIsPH(h.Get(row, ColEsPH), address, description),
		Expenses:    f.Expenses(h.Get(row, ColExpensas)),
		City:        h.Get(row, ColUbicacion),
		Address:     address,
		TotalM2:     normalize.FormatArea(h.Get(row, ColMetros)),
		Rooms:       normalize.FormatRooms(h.Get(row, ColAmbientes)),
		Bathrooms:   normalize.FormatBathrooms(h.Get(row, ColBanos)),
		Description: description,
		Images:      normalize.ParseImages(h.Get(row, ColImagen)),
		URL:         h.Get(row, ColURL),
	}
	if len(l.Images) > 0 {
		l.MainImage = l.Images[0]
	}
	if d, ok := normalize.NormalizeDate(h.Get(row, ColFechaPublicacion), now); ok {
		l.PublishedDate = &d
	}
	l.ID = identity.ListingID(&l)
	return l
}

func (p *Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// resolveSource prefers the caller's override, then a recognized row value.
func resolveSource(override models.Source, cell string) models.Source {
	if override != "" {
		return override
	}
	if s, ok := models.ParseSource(cell); ok {
		return s
	}
	return models.DefaultSource
}

func isBlank(row []string) bool {
	return len(row) == 1 && strings.TrimSpace(row[0]) == ""
}

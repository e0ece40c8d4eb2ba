package parser

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"alquilercito/models"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return string(data)
}

func newTestParser() *Parser {
	return &Parser{Now: func() time.Time { return fixedNow }}
}

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestParseZonaPropFixture(t *testing.T) {
	listings := newTestParser().Parse(loadFixture(t, "zonaprop_sample.csv"), models.SourceZonaProp)
	if len(listings) != 4 {
		t.Fatalf("expected 4 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.Source != models.SourceZonaProp {
		t.Fatalf("expected source zonaprop, got %s", first.Source)
	}
	if first.City != "Coghlan, CABA" {
		t.Fatalf("expected city with embedded comma, got %q", first.City)
	}
	if first.Price != "USD 650" || !first.IsDollar {
		t.Fatalf("unexpected price %q (dollar=%v)", first.Price, first.IsDollar)
	}
	if deref(first.Expenses) != "$ 45,000" {
		t.Fatalf("unexpected expenses %s", deref(first.Expenses))
	}
	if deref(first.TotalM2) != "45 m²" || deref(first.Rooms) != "2 amb" || deref(first.Bathrooms) != "1 baño" {
		t.Fatalf("unexpected units %s / %s / %s", deref(first.TotalM2), deref(first.Rooms), deref(first.Bathrooms))
	}
	if deref(first.PublishedDate) != "2024-03-15" {
		t.Fatalf("expected relative date resolved to 2024-03-15, got %s", deref(first.PublishedDate))
	}
	if len(first.Images) != 2 || first.MainImage != "https://imgar.zonapropcdn.com/1001a.jpg" {
		t.Fatalf("unexpected images %v (main %q)", first.Images, first.MainImage)
	}
	if first.IsPH {
		t.Fatalf("expected first listing not to be a PH")
	}
	if first.ID == "" {
		t.Fatalf("expected listing ID")
	}

	second := listings[1]
	if second.Description != "PH reciclado\nsin expensas, patio propio" {
		t.Fatalf("expected multi-line description, got %q", second.Description)
	}
	if !second.IsPH {
		t.Fatalf("expected PH inferred from description")
	}
	if second.Price != "$ 850,000" || second.IsDollar {
		t.Fatalf("unexpected price %q", second.Price)
	}
	if second.Expenses != nil || second.Images != nil || second.MainImage != "" {
		t.Fatalf("expected empty expenses and images, got %v %v %q", second.Expenses, second.Images, second.MainImage)
	}
	if deref(second.Bathrooms) != "2 baños" {
		t.Fatalf("unexpected bathrooms %s", deref(second.Bathrooms))
	}

	third := listings[2]
	if third.Price != "Consultar" {
		t.Fatalf("expected Consultar, got %s", third.Price)
	}
	if third.Description != `Depto con "vista abierta"` {
		t.Fatalf("expected escaped quotes preserved, got %q", third.Description)
	}
	if !third.IsPH {
		t.Fatalf("expected explicit PH flag to win")
	}
	if third.Images != nil || third.MainImage != "" {
		t.Fatalf("expected invalid image to be dropped, got %v", third.Images)
	}
	if deref(third.PublishedDate) != "2024-01-10" {
		t.Fatalf("unexpected date %s", deref(third.PublishedDate))
	}
	if third.TotalM2 != nil || third.Rooms != nil || third.Bathrooms != nil {
		t.Fatalf("expected nil units for blank cells")
	}

	fourth := listings[3]
	if fourth.Price != "$ 1,200,000" {
		t.Fatalf("unexpected price %s", fourth.Price)
	}
	if fourth.PublishedDate != nil {
		t.Fatalf("expected nil date, got %s", *fourth.PublishedDate)
	}
	if fourth.IsPH {
		t.Fatalf("expected explicit 0 flag to mean not PH")
	}
}

func TestParseBOMAndSourceResolution(t *testing.T) {
	text := loadFixture(t, "argenprop_bom.csv")

	overridden := newTestParser().Parse(text, models.SourceArgenProp)
	if len(overridden) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(overridden))
	}
	for _, l := range overridden {
		if l.Source != models.SourceArgenProp {
			t.Fatalf("expected override to win, got %s", l.Source)
		}
	}
	if overridden[0].URL != "https://www.argenprop.com/depto-en-alquiler-en-vicente-lopez-2001" {
		t.Fatalf("expected BOM stripped from first header, got url %q", overridden[0].URL)
	}
	if overridden[1].Price != "USD 500" {
		t.Fatalf("unexpected price %s", overridden[1].Price)
	}

	inRow := newTestParser().Parse(text, "")
	if inRow[0].Source != models.SourceRemax {
		t.Fatalf("expected in-row source remax, got %s", inRow[0].Source)
	}
	if inRow[1].Source != models.SourceZonaProp {
		t.Fatalf("expected default source zonaprop, got %s", inRow[1].Source)
	}
}

func TestParseHeaderOnlyAndEmpty(t *testing.T) {
	p := newTestParser()
	for _, text := range []string{"", "   \n ", "\uFEFF", "ubicacion,precio,url\n", "ubicacion,precio,url\n\n\n"} {
		got := p.Parse(text, models.SourceZonaProp)
		if got == nil || len(got) != 0 {
			t.Errorf("Parse(%q) = %v; want empty slice", text, got)
		}
	}
}

func TestParseShortAndMalformedRows(t *testing.T) {
	text := "precio,esdolares,url,ubicacion,fechapublicacion\n" +
		"1500\n" +
		"abc,yes,,Nuñez,ayer,extra,cells\n" +
		"\"unterminated,true,https://x.com/1\n"

	listings := newTestParser().Parse(text, models.SourceArgenProp)
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	if listings[0].Price != "$ 1,500" || listings[0].URL != "" || listings[0].PublishedDate != nil {
		t.Fatalf("short row: unexpected %+v", listings[0])
	}
	if listings[1].City != "Nuñez" || listings[1].Price != "Consultar" || listings[1].IsDollar {
		t.Fatalf("extra cells: unexpected %+v", listings[1])
	}
	// The unbalanced quote swallows the rest of the line into one cell.
	if listings[2].URL != "" || listings[2].IsDollar || listings[2].Source != models.SourceArgenProp {
		t.Fatalf("unterminated row: unexpected %+v", listings[2])
	}
}

func TestParseColumnOrderIrrelevant(t *testing.T) {
	a := "precio,esdolares,url\n1000,true,https://x.com/1\n"
	b := "URL , \"EsDolares\",PRECIO,unknown\nhttps://x.com/1,true,1000,zzz\n"

	la := Parse(a, models.SourceZonaProp)
	lb := Parse(b, models.SourceZonaProp)
	if !reflect.DeepEqual(la, lb) {
		t.Fatalf("expected identical listings regardless of column order:\n%+v\n%+v", la, lb)
	}
}

func TestHeaderMapFirstDuplicateWins(t *testing.T) {
	h := NewHeaderMap([]string{"precio", "url", "PRECIO"})
	if got := h.Get([]string{"100", "u", "200"}, ColPrecio); got != "100" {
		t.Fatalf("expected first precio column, got %s", got)
	}
	if h.Has(ColImagen) {
		t.Fatalf("expected imagen to be absent")
	}
	if got := h.Get([]string{"100"}, ColURL); got != "" {
		t.Fatalf("expected empty cell for short row, got %q", got)
	}
}

func TestLookupColumn(t *testing.T) {
	tests := []struct {
		in   string
		want Column
		ok   bool
	}{
		{"fechapublicacion", ColFechaPublicacion, true},
		{" \"Banos\" ", ColBanos, true},
		{"ESPH", ColEsPH, true},
		{"baños", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := LookupColumn(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LookupColumn(%q) = (%v, %v); want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

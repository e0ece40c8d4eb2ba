package parser

import "strings"

// Column is one of the recognized feed columns.
type Column int

const (
	ColUbicacion Column = iota
	ColPrecio
	ColEsDolares
	ColExpensas
	ColDireccion
	ColDescripcion
	ColFechaPublicacion
	ColURL
	ColImagen
	ColMetros
	ColAmbientes
	ColBanos
	ColSource
	ColEsPH

	numColumns
)

var columnNames = [numColumns]string{
	ColUbicacion:        "ubicacion",
	ColPrecio:           "precio",
	ColEsDolares:        "esdolares",
	ColExpensas:         "expensas",
	ColDireccion:        "direccion",
	ColDescripcion:      "descripcion",
	ColFechaPublicacion: "fechapublicacion",
	ColURL:              "url",
	ColImagen:           "imagen",
	ColMetros:           "metros",
	ColAmbientes:        "ambientes",
	ColBanos:            "banos",
	ColSource:           "source",
	ColEsPH:             "esph",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "unknown"
	}
	return columnNames[c]
}

// LookupColumn resolves a header cell to a Column, ignoring case, surrounding
// whitespace and one pair of surrounding quotes.
func LookupColumn(name string) (Column, bool) {
	n := strings.TrimSpace(name)
	if len(n) >= 2 && n[0] == '"' && n[len(n)-1] == '"' {
		n = strings.TrimSpace(n[1 : len(n)-1])
	}
	n = strings.ToLower(n)
	for c, cn := range columnNames {
		if cn == n {
			return Column(c), true
		}
	}
	return 0, false
}

// HeaderMap holds the position of each recognized column, -1 when absent.
type HeaderMap [numColumns]int

// NewHeaderMap maps a header row. Unknown columns are ignored and the first
// occurrence of a repeated column wins.
func NewHeaderMap(header []string) HeaderMap {
	var h HeaderMap
	for i := range h {
		h[i] = -1
	}
	for pos, name := range header {
		c, ok := LookupColumn(name)
		if !ok || h[c] != -1 {
			continue
		}
		h[c] = pos
	}
	return h
}

// Has reports whether the header carried the column.
func (h HeaderMap) Has(c Column) bool {
	return h[c] >= 0
}

// Get returns the trimmed cell for a column, "" when absent or short.
func (h HeaderMap) Get(row []string, c Column) string {
	pos := h[c]
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

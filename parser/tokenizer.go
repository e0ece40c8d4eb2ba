// Package parser reads the scraped feed CSVs into normalized listings.
package parser

import "strings"

// Tokenize splits CSV text into rows of cells. Quoted fields may hold commas,
// newlines and doubled quotes. It never fails; unbalanced quotes simply run
// to the end of the input.
func Tokenize(text string) [][]string {
	var (
		rows         [][]string
		row          []string
		field        strings.Builder
		insideQuotes bool
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if insideQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			insideQuotes = !insideQuotes
		case insideQuotes:
			field.WriteByte(c)
		case c == ',':
			endField()
		case c == '\n':
			endRow()
		case c == '\r' && i+1 < len(text) && text[i+1] == '\n':
			endRow()
			i++
		default:
			field.WriteByte(c)
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		endRow()
	}
	return rows
}

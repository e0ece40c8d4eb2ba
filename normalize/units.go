package normalize

import (
	"fmt"
	"net/url"
	"strings"
)

func formatCount(cell string, render func(int64) string) *string {
	n, ok := parseDigits(cell)
	if !ok {
		return nil
	}
	s := render(n)
	return &s
}

// FormatArea renders the covered surface, e.g. "45 m²".
func FormatArea(cell string) *string {
	return formatCount(cell, func(n int64) string { return fmt.Sprintf("%d m²", n) })
}

func FormatRooms(cell string) *string {
	return formatCount(cell, func(n int64) string { return fmt.Sprintf("%d amb", n) })
}

func FormatBathrooms(cell string) *string {
	return formatCount(cell, func(n int64) string {
		if n == 1 {
			return "1 baño"
		}
		return fmt.Sprintf("%d baños", n)
	})
}

// ParseImages splits a "|"-separated image cell and keeps only absolute
// http(s) URLs. It returns nil when nothing valid remains.
func ParseImages(cell string) []string {
	var images []string
	for _, part := range strings.Split(cell, "|") {
		p := strings.TrimSpace(part)
		if isHTTPURL(p) {
			images = append(images, p)
		}
	}
	return images
}

func isHTTPURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Host != ""
}

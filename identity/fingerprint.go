package identity

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"alquilercito/models"
)

// listingNamespace scopes listing IDs; changing it changes every ID.
var listingNamespace = uuid.MustParse("6f1c6f0e-5a47-4c36-9a57-3f0b1d2e8a11")

var (
	streetReplacements = map[string]string{
		"avenida":      "av",
		"boulevard":    "bv",
		"bulevar":      "bv",
		"calle":        "",
		"pasaje":       "pje",
		"diagonal":     "diag",
		"departamento": "dto",
		"depto":        "dto",
		"piso":         "p",
		"unidad":       "u",
		"esquina":      "esq",
		"general":      "gral",
		"presidente":   "pres",
		"doctor":       "dr",
		"ingeniero":    "ing",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	wordRegex       = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// ListingID derives a stable ID for a listing so favourites and shared links
// survive cache refreshes. The URL is the identity when present.
func ListingID(l *models.PropertyListing) string {
	if key := normalizeURL(l.URL); key != "" {
		return uuid.NewSHA1(listingNamespace, []byte(key)).String()
	}
	key := string(l.Source) + "|" + NormalizeAddress(l.Address) + "|" + strings.ToLower(strings.TrimSpace(l.Description))
	return uuid.NewSHA1(listingNamespace, []byte(key)).String()
}

// normalizeURL drops scheme differences, the query, the fragment and any
// trailing slash. Listing pages on both portals are identified by path.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.Host = strings.ToLower(u.Host)
	u.Scheme = "https"
	return strings.TrimSuffix(u.String(), "/")
}

func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	addr = wordRegex.ReplaceAllStringFunc(addr, func(w string) string {
		if abbrev, ok := streetReplacements[w]; ok {
			return abbrev
		}
		return w
	})
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

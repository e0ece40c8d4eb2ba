package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	relativeUnitRegex = regexp.MustCompile(`(?:(\d+)\s*)?(años|año|anos|ano|meses|mes|días|dias|día|dia|horas|hora)`)
	isoDateRegex      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	isoDateTimeRegex  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[T ]\d{2}:\d{2}`)
	dayMonthYearRegex = regexp.MustCompile(`^(\d{1,2})([/-])(\d{1,2})([/-])(\d{4})$`)
	unixRegex         = regexp.MustCompile(`^(\d{10}|\d{13})$`)
)

const (
	relativePrefix = "publicado hace"
)

// NormalizeDate converts a publish-date cell to YYYY-MM-DD. Relative phrases
// and timestamps are resolved against now and formatted in now's location.
// It reports false for anything it does not recognize.
func NormalizeDate(cell string, now time.Time) (string, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return "", false
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, relativePrefix) {
		return relativeDate(strings.TrimSpace(lower[len(relativePrefix):]), now)
	}

	if isoDateRegex.MatchString(s) {
		return s, true
	}

	if m := isoDateTimeRegex.FindStringSubmatch(s); m != nil {
		return m[1], true
	}

	if m := dayMonthYearRegex.FindStringSubmatch(s); m != nil && m[2] == m[4] {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return "", false
		}
		return fmt.Sprintf("%s-%02d-%02d", m[5], month, day), true
	}

	if unixRegex.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", false
		}
		var t time.Time
		if len(s) == 13 {
			t = time.UnixMilli(n)
		} else {
			t = time.Unix(n, 0)
		}
		return t.In(now.Location()).Format(dateLayout), true
	}

	return "", false
}

// relativeDate resolves the remainder of "publicado hace ...". A leading
// "más de" bumps the quantity by one: "más de 1 año" becomes two years. That
// is an approximate lower bound, not an exact date.
func relativeDate(rest string, now time.Time) (string, bool) {
	atLeast := false
	for _, p := range []string{"más de", "mas de"} {
		if strings.HasPrefix(rest, p) {
			atLeast = true
			rest = strings.TrimSpace(rest[len(p):])
			break
		}
	}

	m := relativeUnitRegex.FindStringSubmatch(rest)
	if m == nil {
		return "", false
	}

	qty := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		qty = n
	}
	if atLeast {
		qty++
	}

	var t time.Time
	switch m[2] {
	case "hora", "horas":
		t = now.Add(-time.Duration(qty) * time.Hour)
	case "día", "días", "dia", "dias":
		t = now.AddDate(0, 0, -qty)
	case "mes", "meses":
		t = now.AddDate(0, -qty, 0)
	default:
		t = now.AddDate(-qty, 0, 0)
	}
	return t.Format(dateLayout), true
}

package normalize

import (
	"regexp"
	"strings"
)

var phWordRegex = regexp.MustCompile(`(?i)\bph\b`)

// ParseBooleanish reports whether a loosely typed flag cell is "true" or "1".
func ParseBooleanish(cell string) bool {
	v := strings.ToLower(strings.TrimSpace(cell))
	return v == "true" || v == "1"
}

// InferIsPH uses the explicit flag when present, otherwise looks for the
// standalone word "ph" in the address and description. The keyword match is a
// heuristic: "PH" in free text usually but not always means a PH unit.
func InferIsPH(esPHCell, address, description string) bool {
	if strings.TrimSpace(esPHCell) != "" {
		return ParseBooleanish(esPHCell)
	}
	return phWordRegex.MatchString(address + " " + description)
}

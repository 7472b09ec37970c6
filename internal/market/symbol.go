package market

import "strings"

// NormalizeSymbol maps user input to the canonical upstream ticker:
// uppercased, trimmed, and exchange-qualified with suffix (e.g. ".VN")
// when no qualifier is present. An empty suffix disables qualification.
func NormalizeSymbol(raw, suffix string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if suffix != "" && !strings.Contains(s, ".") {
		s += suffix
	}
	return s
}

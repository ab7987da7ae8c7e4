package entity

import (
	"regexp"
	"strings"
)

var pairPattern = regexp.MustCompile(`^([A-Z]{3})[-/]?([A-Z]{3})$`)

// Pair is a currency pair such as USD-KRW.
type Pair struct {
	Base  string
	Quote string
}

// ParsePair accepts "USD-KRW", "usd/krw" and "USDKRW".
func ParsePair(s string) (Pair, bool) {
	m := pairPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || m[1] == m[2] {
		return Pair{}, false
	}
	return Pair{Base: m[1], Quote: m[2]}, true
}

// String is the canonical key used for storage and caching.
func (p Pair) String() string { return p.Base + "-" + p.Quote }

// Symbol is the upstream quote symbol.
func (p Pair) Symbol() string { return p.Base + "/" + p.Quote }

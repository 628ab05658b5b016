package subject

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// Ratio scores how alike a and b are on a 0..100 scale, computed as
// 2*matches/total over their runes. Identical strings score 100 and an
// empty side scores 0.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	m := difflib.NewMatcher(runes(a), runes(b))
	return int(math.RoundToEven(100 * m.Ratio()))
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

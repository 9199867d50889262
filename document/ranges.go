package document

import (
	"strconv"
	"strings"
)

// ParsePageRanges converts a user range expression like "1-3,5" into
// zero-based page indices. Page numbers are one-based in the input.
// Tokens that do not parse and indices outside [0, pageCount) are
// dropped silently; an empty result is valid.
func ParsePageRanges(expr string, pageCount int) []int {
	var out []int
	for _, tok := range strings.Split(expr, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if i := strings.IndexByte(tok, '-'); i >= 0 {
			start, err1 := strconv.Atoi(strings.TrimSpace(tok[:i]))
			end, err2 := strconv.Atoi(strings.TrimSpace(tok[i+1:]))
			if err1 != nil || err2 != nil {
				continue
			}
			for n := start; n <= end; n++ {
				if n >= 1 && n <= pageCount {
					out = append(out, n-1)
				}
			}
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if n >= 1 && n <= pageCount {
			out = append(out, n-1)
		}
	}
	return out
}

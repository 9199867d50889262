package xref

import (
	"fmt"
	"regexp"
)

var objHeader = regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// Repair rebuilds a table by scanning the whole file for "N G obj"
// headers. The last occurrence of each object number wins, matching
// the incremental-update rule that later bodies shadow earlier ones.
func Repair(data []byte) (*Table, error) {
	matches := objHeader.FindAllSubmatchIndex(data, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("xref: repair found no indirect objects")
	}
	t := &Table{entries: make(map[int]entry), trailerOff: -1}
	for _, m := range matches {
		num := atoi(data[m[2]:m[3]])
		gen := atoi(data[m[4]:m[5]])
		// Offset of the object number, skipping leading blanks.
		t.entries[num] = entry{offset: int64(m[2]), gen: gen}
	}
	return t, nil
}

func atoi(b []byte) int {
	v := 0
	for _, c := range b {
		v = v*10 + int(c-'0')
	}
	return v
}

// Package xref locates indirect objects in a PDF file. It parses
// classic cross-reference tables, follows /Prev chains, and falls back
// to a full-file repair scan when the table is missing or broken.
package xref

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/wudi/doctool/scanner"
)

type entry struct {
	offset int64
	gen    int
}

// Table maps object numbers to byte offsets.
type Table struct {
	entries    map[int]entry
	trailerOff int64
}

// Lookup returns the offset and generation for an object number.
func (t *Table) Lookup(num int) (offset int64, gen int, ok bool) {
	e, ok := t.entries[num]
	return e.offset, e.gen, ok
}

// Len returns the number of in-use entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Numbers returns all object numbers in ascending order.
func (t *Table) Numbers() []int {
	nums := make([]int, 0, len(t.entries))
	for n := range t.entries {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// TrailerOffset returns the offset of the trailer dictionary belonging
// to the last-parsed table section, or -1 if the table was repaired.
func (t *Table) TrailerOffset() int64 {
	return t.trailerOff
}

const maxPrevChain = 64

// Parse reads the cross-reference table(s) referenced by the startxref
// pointer at the end of data.
func Parse(data []byte) (*Table, error) {
	start, err := findStartXref(data)
	if err != nil {
		return nil, err
	}
	t := &Table{entries: make(map[int]entry), trailerOff: -1}
	seen := make(map[int64]bool)
	for i := 0; ; i++ {
		if i >= maxPrevChain {
			return nil, fmt.Errorf("xref: /Prev chain longer than %d sections", maxPrevChain)
		}
		if seen[start] {
			return nil, fmt.Errorf("xref: /Prev loop at offset %d", start)
		}
		seen[start] = true
		prev, trailerOff, err := parseSection(data, start, t)
		if err != nil {
			return nil, err
		}
		if t.trailerOff < 0 {
			t.trailerOff = trailerOff
		}
		if prev < 0 {
			break
		}
		start = prev
	}
	if len(t.entries) == 0 {
		return nil, fmt.Errorf("xref: table has no in-use entries")
	}
	return t, nil
}

func findStartXref(data []byte) (int64, error) {
	// Look in the last 1KB of the file for the startxref keyword.
	tail := data
	if len(tail) > 1024 {
		tail = tail[len(tail)-1024:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("xref: startxref not found")
	}
	s := scanner.New(data)
	if err := s.SeekTo(int64(len(data) - len(tail) + idx)); err != nil {
		return 0, err
	}
	tok, err := s.Next()
	if err != nil || tok.Str != "startxref" {
		return 0, fmt.Errorf("xref: malformed startxref")
	}
	tok, err = s.Next()
	if err != nil || tok.Type != scanner.TokenNumber || !tok.IsInt {
		return 0, fmt.Errorf("xref: startxref is not an integer offset")
	}
	if tok.Int < 0 || tok.Int >= int64(len(data)) {
		return 0, fmt.Errorf("xref: startxref offset %d out of range", tok.Int)
	}
	return tok.Int, nil
}

// parseSection parses one xref section and its trailer. Entries already
// present in t win: sections are visited newest first. It returns the
// /Prev offset (-1 if none) and the trailer offset.
func parseSection(data []byte, off int64, t *Table) (prev int64, trailerOff int64, err error) {
	s := scanner.New(data)
	if err := s.SeekTo(off); err != nil {
		return 0, 0, err
	}
	tok, err := s.Next()
	if err != nil {
		return 0, 0, err
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "xref" {
		return 0, 0, fmt.Errorf("xref: expected 'xref' at offset %d", off)
	}
	// Consume the rest of the keyword's line.
	if _, err := s.ReadLine(); err != nil {
		return 0, 0, err
	}
	for {
		lineStart := s.Pos()
		line, err := s.ReadLine()
		if err != nil {
			return 0, 0, err
		}
		text := string(bytes.TrimSpace(line))
		if text == "trailer" {
			trailerOff = s.Pos()
			break
		}
		var first, count int
		if _, err := fmt.Sscanf(text, "%d %d", &first, &count); err != nil {
			return 0, 0, fmt.Errorf("xref: bad subsection header %q at offset %d", text, lineStart)
		}
		if count < 0 || count > len(data) {
			return 0, 0, fmt.Errorf("xref: implausible subsection count %d", count)
		}
		for i := 0; i < count; i++ {
			line, err := s.ReadLine()
			if err != nil {
				return 0, 0, err
			}
			var eoff int64
			var gen int
			var kind rune
			if _, err := fmt.Sscanf(string(line), "%d %d %c", &eoff, &gen, &kind); err != nil {
				return 0, 0, fmt.Errorf("xref: bad entry %q", line)
			}
			num := first + i
			if kind == 'n' {
				if _, exists := t.entries[num]; !exists {
					t.entries[num] = entry{offset: eoff, gen: gen}
				}
			}
		}
	}
	prev = -1
	// Scan the trailer dict textually for /Prev; the full trailer is
	// parsed by the object loader.
	tEnd := trailerOff + 4096
	if tEnd > int64(len(data)) {
		tEnd = int64(len(data))
	}
	region := data[trailerOff:tEnd]
	if pi := bytes.Index(region, []byte("/Prev")); pi >= 0 {
		ps := scanner.New(region)
		if err := ps.SeekTo(int64(pi + len("/Prev"))); err == nil {
			if tok, err := ps.Next(); err == nil && tok.Type == scanner.TokenNumber && tok.IsInt {
				prev = tok.Int
			}
		}
	}
	return prev, trailerOff, nil
}

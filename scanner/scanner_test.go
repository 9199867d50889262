package scanner

import (
	"bytes"
	"testing"
)

func TestNextBasicTokens(t *testing.T) {
	s := New([]byte("<< /Type /Catalog /Count 3 /Scale 0.5 >>"))
	want := []TokenType{
		TokenDictOpen, TokenName, TokenName, TokenName, TokenNumber,
		TokenName, TokenNumber, TokenDictClose, TokenEOF,
	}
	for i, wt := range want {
		tok, err := s.Next()
		if err != nil {
			t.Fatalf("token %d: %v", i, err)
		}
		if tok.Type != wt {
			t.Fatalf("token %d: got %v, want %v", i, tok.Type, wt)
		}
	}
}

func TestNextNumbers(t *testing.T) {
	cases := []struct {
		in    string
		isInt bool
		i     int64
		f     float64
	}{
		{"42", true, 42, 42},
		{"-17", true, -17, -17},
		{"+8", true, 8, 8},
		{"3.14", false, 0, 3.14},
		{"-.5", false, 0, -0.5},
		{"0.9", false, 0, 0.9},
	}
	for _, c := range cases {
		tok, err := New([]byte(c.in)).Next()
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if tok.Type != TokenNumber || tok.IsInt != c.isInt {
			t.Fatalf("%q: got type=%v isInt=%v", c.in, tok.Type, tok.IsInt)
		}
		if c.isInt && tok.Int != c.i {
			t.Fatalf("%q: got int %d, want %d", c.in, tok.Int, c.i)
		}
		if !c.isInt && (tok.Float < c.f-1e-9 || tok.Float > c.f+1e-9) {
			t.Fatalf("%q: got float %v, want %v", c.in, tok.Float, c.f)
		}
	}
}

func TestNextLiteralString(t *testing.T) {
	s := New([]byte(`(hello \(nested\) \101 world\n)`))
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := []byte("hello (nested) A world\n")
	if !bytes.Equal(tok.Bytes, want) {
		t.Fatalf("got %q, want %q", tok.Bytes, want)
	}
}

func TestNextNestedParens(t *testing.T) {
	s := New([]byte("(a (b (c)) d)"))
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := string(tok.Bytes); got != "a (b (c)) d" {
		t.Fatalf("got %q", got)
	}
}

func TestNextHexString(t *testing.T) {
	s := New([]byte("<48 65 6C6C 6F7>"))
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := string(tok.Bytes); got != "Hellop" {
		t.Fatalf("got %q", got)
	}
}

func TestNextNameEscapes(t *testing.T) {
	s := New([]byte("/A#20B"))
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Str != "A B" {
		t.Fatalf("got %q, want %q", tok.Str, "A B")
	}
}

func TestNextSkipsComments(t *testing.T) {
	s := New([]byte("% a comment\n/Name"))
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("got %v %q", tok.Type, tok.Str)
	}
}

func TestReadStreamData(t *testing.T) {
	data := []byte("stream\r\nabcdef\nendstream")
	s := New(data)
	tok, err := s.Next()
	if err != nil || tok.Str != "stream" {
		t.Fatalf("keyword: %v %q", err, tok.Str)
	}
	payload, err := s.ReadStreamData(6)
	if err != nil {
		t.Fatalf("ReadStreamData: %v", err)
	}
	if string(payload) != "abcdef" {
		t.Fatalf("got %q", payload)
	}
}

func TestReadStreamDataTooLong(t *testing.T) {
	s := New([]byte("stream\nab"))
	if _, err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := s.ReadStreamData(100); err == nil {
		t.Fatal("expected error for oversized length")
	}
}

func TestReadLine(t *testing.T) {
	s := New([]byte("first\r\nsecond\nthird"))
	for i, want := range []string{"first", "second", "third"} {
		line, err := s.ReadLine()
		if err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if string(line) != want {
			t.Fatalf("line %d: got %q, want %q", i, line, want)
		}
	}
}

func TestSeekTo(t *testing.T) {
	s := New([]byte("aaaa/Name"))
	if err := s.SeekTo(4); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	tok, err := s.Next()
	if err != nil || tok.Str != "Name" {
		t.Fatalf("got %v %q", err, tok.Str)
	}
	if err := s.SeekTo(100); err == nil {
		t.Fatal("expected range error")
	}
}

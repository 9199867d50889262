// Package scanner tokenizes PDF syntax from an in-memory buffer.
package scanner

import (
	"fmt"
)

// TokenType identifies the kind of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenName
	TokenString
	TokenKeyword
	TokenDictOpen
	TokenDictClose
	TokenArrayOpen
	TokenArrayClose
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenNumber:
		return "number"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenKeyword:
		return "keyword"
	case TokenDictOpen:
		return "<<"
	case TokenDictClose:
		return ">>"
	case TokenArrayOpen:
		return "["
	case TokenArrayClose:
		return "]"
	}
	return "unknown"
}

// Token is a single lexical unit. Pos is the byte offset of its first
// character.
type Token struct {
	Type  TokenType
	Int   int64
	Float float64
	IsInt bool
	Str   string // keyword or name text
	Bytes []byte // decoded string payload
	Pos   int64
}

// Scanner reads tokens from a byte slice. It never copies the input.
type Scanner struct {
	data []byte
	pos  int
}

// New returns a scanner positioned at the start of data.
func New(data []byte) *Scanner {
	return &Scanner{data: data}
}

// SeekTo repositions the scanner at the given byte offset.
func (s *Scanner) SeekTo(off int64) error {
	if off < 0 || off > int64(len(s.data)) {
		return fmt.Errorf("scanner: seek offset %d out of range", off)
	}
	s.pos = int(off)
	return nil
}

// Pos returns the current byte offset.
func (s *Scanner) Pos() int64 {
	return int64(s.pos)
}

func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func (s *Scanner) skipWhitespaceAndComments() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

// Next returns the next token. At end of input it returns a TokenEOF
// token with a nil error.
func (s *Scanner) Next() (Token, error) {
	s.skipWhitespaceAndComments()
	if s.pos >= len(s.data) {
		return Token{Type: TokenEOF, Pos: int64(s.pos)}, nil
	}
	start := int64(s.pos)
	c := s.data[s.pos]
	switch {
	case c == '[':
		s.pos++
		return Token{Type: TokenArrayOpen, Pos: start}, nil
	case c == ']':
		s.pos++
		return Token{Type: TokenArrayClose, Pos: start}, nil
	case c == '<':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
			s.pos += 2
			return Token{Type: TokenDictOpen, Pos: start}, nil
		}
		return s.readHexString(start)
	case c == '>':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '>' {
			s.pos += 2
			return Token{Type: TokenDictClose, Pos: start}, nil
		}
		return Token{}, fmt.Errorf("scanner: stray '>' at offset %d", start)
	case c == '(':
		return s.readLiteralString(start)
	case c == '/':
		return s.readName(start)
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return s.readNumber(start)
	case isRegular(c):
		return s.readKeyword(start)
	}
	return Token{}, fmt.Errorf("scanner: unexpected byte %#x at offset %d", c, start)
}

func (s *Scanner) readKeyword(start int64) (Token, error) {
	begin := s.pos
	for s.pos < len(s.data) && isRegular(s.data[s.pos]) {
		s.pos++
	}
	return Token{Type: TokenKeyword, Str: string(s.data[begin:s.pos]), Pos: start}, nil
}

func (s *Scanner) readName(start int64) (Token, error) {
	s.pos++ // slash
	var out []byte
	for s.pos < len(s.data) && isRegular(s.data[s.pos]) {
		c := s.data[s.pos]
		if c == '#' && s.pos+2 < len(s.data) {
			hi, ok1 := hexVal(s.data[s.pos+1])
			lo, ok2 := hexVal(s.data[s.pos+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				s.pos += 3
				continue
			}
		}
		out = append(out, c)
		s.pos++
	}
	return Token{Type: TokenName, Str: string(out), Pos: start}, nil
}

func (s *Scanner) readNumber(start int64) (Token, error) {
	begin := s.pos
	if s.data[s.pos] == '+' || s.data[s.pos] == '-' {
		s.pos++
	}
	isInt := true
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			s.pos++
			continue
		}
		if c == '.' && isInt {
			isInt = false
			s.pos++
			continue
		}
		break
	}
	text := s.data[begin:s.pos]
	if len(text) == 0 || (len(text) == 1 && (text[0] == '+' || text[0] == '-' || text[0] == '.')) {
		return Token{}, fmt.Errorf("scanner: malformed number at offset %d", start)
	}
	tok := Token{Type: TokenNumber, IsInt: isInt, Pos: start}
	if isInt {
		var v int64
		neg := false
		for _, c := range text {
			switch c {
			case '+':
			case '-':
				neg = true
			default:
				v = v*10 + int64(c-'0')
			}
		}
		if neg {
			v = -v
		}
		tok.Int = v
		tok.Float = float64(v)
	} else {
		tok.Float = parseReal(text)
	}
	return tok, nil
}

// parseReal avoids strconv for the restricted PDF real grammar.
func parseReal(text []byte) float64 {
	var intPart, fracPart float64
	var fracDiv float64 = 1
	neg := false
	seenDot := false
	for _, c := range text {
		switch {
		case c == '+':
		case c == '-':
			neg = true
		case c == '.':
			seenDot = true
		default:
			d := float64(c - '0')
			if seenDot {
				fracDiv *= 10
				fracPart += d / fracDiv
			} else {
				intPart = intPart*10 + d
			}
		}
	}
	v := intPart + fracPart
	if neg {
		v = -v
	}
	return v
}

func (s *Scanner) readLiteralString(start int64) (Token, error) {
	s.pos++ // opening paren
	var out []byte
	depth := 1
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return Token{}, fmt.Errorf("scanner: unterminated string at offset %d", start)
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				// line continuation, swallow optional LF
				if s.pos < len(s.data) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						s.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: out, Pos: start}, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return Token{}, fmt.Errorf("scanner: unterminated string at offset %d", start)
}

func (s *Scanner) readHexString(start int64) (Token, error) {
	s.pos++ // '<'
	var out []byte
	var hi byte
	haveHi := false
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if haveHi {
				out = append(out, hi<<4)
			}
			return Token{Type: TokenString, Bytes: out, Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := hexVal(c)
		if !ok {
			return Token{}, fmt.Errorf("scanner: bad hex digit %q at offset %d", c, s.pos-1)
		}
		if haveHi {
			out = append(out, hi<<4|v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
	return Token{}, fmt.Errorf("scanner: unterminated hex string at offset %d", start)
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ReadStreamData reads length bytes of stream payload. The scanner must
// be positioned just after the "stream" keyword; the single EOL that
// follows it is consumed first.
func (s *Scanner) ReadStreamData(length int) ([]byte, error) {
	if s.pos < len(s.data) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < len(s.data) && s.data[s.pos] == '\n' {
		s.pos++
	}
	if length < 0 || s.pos+length > len(s.data) {
		return nil, fmt.Errorf("scanner: stream length %d exceeds input", length)
	}
	data := s.data[s.pos : s.pos+length]
	s.pos += length
	return data, nil
}

// ReadLine reads bytes up to the next EOL, consuming the terminator.
// Used by the xref table parser, which is line-oriented.
func (s *Scanner) ReadLine() ([]byte, error) {
	if s.pos >= len(s.data) {
		return nil, fmt.Errorf("scanner: read past end of input")
	}
	begin := s.pos
	for s.pos < len(s.data) && s.data[s.pos] != '\r' && s.data[s.pos] != '\n' {
		s.pos++
	}
	line := s.data[begin:s.pos]
	if s.pos < len(s.data) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < len(s.data) && s.data[s.pos] == '\n' {
		s.pos++
	}
	return line, nil
}

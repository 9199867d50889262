// Package contentstream parses and serializes page content streams as
// sequences of operations. Operands reuse the raw object model.
package contentstream

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/wudi/doctool/ir/raw"
	"github.com/wudi/doctool/scanner"
)

// Operation is one content stream operator with its operands.
type Operation struct {
	Operator string
	Operands []raw.Object
}

// Op builds an operation from operands and an operator name.
func Op(operator string, operands ...raw.Object) Operation {
	return Operation{Operator: operator, Operands: operands}
}

// Parse tokenizes a decoded content stream into operations. Inline
// images (BI..EI) are skipped; the toolkit neither renders nor
// rewrites them.
func Parse(data []byte) ([]Operation, error) {
	s := scanner.New(data)
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case scanner.TokenEOF:
			return ops, nil
		case scanner.TokenNumber:
			operands = append(operands, raw.Number{I: tok.Int, F: tok.Float, IsInt: tok.IsInt})
		case scanner.TokenName:
			operands = append(operands, raw.Name{Val: tok.Str})
		case scanner.TokenString:
			operands = append(operands, raw.Str(tok.Bytes))
		case scanner.TokenArrayOpen:
			arr, err := parseArray(s)
			if err != nil {
				return nil, err
			}
			operands = append(operands, arr)
		case scanner.TokenDictOpen:
			d, err := parseDict(s)
			if err != nil {
				return nil, err
			}
			operands = append(operands, d)
		case scanner.TokenKeyword:
			switch tok.Str {
			case "BI":
				if err := skipInlineImage(s); err != nil {
					return nil, err
				}
				operands = operands[:0]
			case "true":
				operands = append(operands, raw.Bool{V: true})
			case "false":
				operands = append(operands, raw.Bool{V: false})
			case "null":
				operands = append(operands, raw.Null{})
			default:
				ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
				operands = nil
			}
		default:
			return nil, fmt.Errorf("contentstream: unexpected token %v at offset %d", tok.Type, tok.Pos)
		}
	}
}

func parseArray(s *scanner.Scanner) (*raw.Array, error) {
	arr := &raw.Array{}
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case scanner.TokenArrayClose:
			return arr, nil
		case scanner.TokenEOF:
			return nil, fmt.Errorf("contentstream: unterminated array")
		case scanner.TokenNumber:
			arr.Items = append(arr.Items, raw.Number{I: tok.Int, F: tok.Float, IsInt: tok.IsInt})
		case scanner.TokenName:
			arr.Items = append(arr.Items, raw.Name{Val: tok.Str})
		case scanner.TokenString:
			arr.Items = append(arr.Items, raw.Str(tok.Bytes))
		case scanner.TokenArrayOpen:
			inner, err := parseArray(s)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, inner)
		case scanner.TokenDictOpen:
			d, err := parseDict(s)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, d)
		case scanner.TokenKeyword:
			switch tok.Str {
			case "true":
				arr.Items = append(arr.Items, raw.Bool{V: true})
			case "false":
				arr.Items = append(arr.Items, raw.Bool{V: false})
			case "null":
				arr.Items = append(arr.Items, raw.Null{})
			default:
				return nil, fmt.Errorf("contentstream: keyword %q inside array", tok.Str)
			}
		default:
			return nil, fmt.Errorf("contentstream: unexpected %v inside array", tok.Type)
		}
	}
}

func parseDict(s *scanner.Scanner) (*raw.Dict, error) {
	d := raw.NewDict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenDictClose {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("contentstream: dict key must be a name, got %v", tok.Type)
		}
		key := tok.Str
		vtok, err := s.Next()
		if err != nil {
			return nil, err
		}
		switch vtok.Type {
		case scanner.TokenNumber:
			d.Set(key, raw.Number{I: vtok.Int, F: vtok.Float, IsInt: vtok.IsInt})
		case scanner.TokenName:
			d.Set(key, raw.Name{Val: vtok.Str})
		case scanner.TokenString:
			d.Set(key, raw.Str(vtok.Bytes))
		case scanner.TokenArrayOpen:
			arr, err := parseArray(s)
			if err != nil {
				return nil, err
			}
			d.Set(key, arr)
		case scanner.TokenDictOpen:
			inner, err := parseDict(s)
			if err != nil {
				return nil, err
			}
			d.Set(key, inner)
		case scanner.TokenKeyword:
			switch vtok.Str {
			case "true":
				d.Set(key, raw.Bool{V: true})
			case "false":
				d.Set(key, raw.Bool{V: false})
			case "null":
				d.Set(key, raw.Null{})
			default:
				return nil, fmt.Errorf("contentstream: keyword %q as dict value", vtok.Str)
			}
		default:
			return nil, fmt.Errorf("contentstream: unexpected %v as dict value", vtok.Type)
		}
	}
}

// skipInlineImage consumes tokens through the EI operator. The image
// dictionary parses as ordinary tokens; the binary payload after ID is
// skipped by searching for the EI delimiter.
func skipInlineImage(s *scanner.Scanner) error {
	for {
		tok, err := s.Next()
		if err != nil {
			return err
		}
		if tok.Type == scanner.TokenEOF {
			return fmt.Errorf("contentstream: unterminated inline image")
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "ID" {
			break
		}
	}
	// Scan for whitespace-delimited "EI".
	for {
		line, err := s.ReadLine()
		if err != nil {
			return fmt.Errorf("contentstream: unterminated inline image")
		}
		if idx := bytes.Index(line, []byte("EI")); idx >= 0 {
			back := int64(len(line) - idx - 2)
			return s.SeekTo(s.Pos() - back)
		}
	}
}

// Serialize renders operations back to content stream bytes.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		for _, o := range op.Operands {
			writeOperand(&buf, o)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeOperand(buf *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case raw.Number:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(strconv.FormatFloat(v.F, 'f', -1, 64))
		}
	case raw.Name:
		buf.WriteByte('/')
		buf.WriteString(v.Val)
	case raw.String:
		buf.WriteByte('(')
		for _, c := range v.Bytes {
			switch c {
			case '(', ')', '\\':
				buf.WriteByte('\\')
				buf.WriteByte(c)
			case '\n':
				buf.WriteString(`\n`)
			case '\r':
				buf.WriteString(`\r`)
			default:
				buf.WriteByte(c)
			}
		}
		buf.WriteByte(')')
	case raw.Bool:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.Null:
		buf.WriteString("null")
	case *raw.Array:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeOperand(buf, item)
		}
		buf.WriteByte(']')
	case *raw.Dict:
		buf.WriteString("<<")
		for k, val := range v.KV {
			buf.WriteByte('/')
			buf.WriteString(k)
			buf.WriteByte(' ')
			writeOperand(buf, val)
		}
		buf.WriteString(">>")
	}
}

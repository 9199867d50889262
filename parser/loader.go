// Package parser loads PDF bytes into the document model. It resolves
// indirect objects through the xref table (repairing it when broken),
// authenticates encrypted files, and flattens the page tree.
package parser

import (
	"errors"
	"fmt"

	"github.com/wudi/doctool"
	"github.com/wudi/doctool/ir/raw"
	"github.com/wudi/doctool/scanner"
	"github.com/wudi/doctool/security"
	"github.com/wudi/doctool/xref"
)

const maxObjectDepth = 64

// objectLoader resolves indirect objects on demand and caches them.
type objectLoader struct {
	data    []byte
	table   *xref.Table
	handler *security.Handler
	cache   map[raw.ObjectRef]raw.Object
}

func newObjectLoader(data []byte, table *xref.Table) *objectLoader {
	return &objectLoader{
		data:  data,
		table: table,
		cache: make(map[raw.ObjectRef]raw.Object),
	}
}

// load parses the indirect object for ref. Decryption applies to
// string and stream payloads once a handler is installed.
func (l *objectLoader) load(ref raw.ObjectRef) (raw.Object, error) {
	if obj, ok := l.cache[ref]; ok {
		return obj, nil
	}
	off, _, ok := l.table.Lookup(ref.Num)
	if !ok {
		return raw.Null{}, nil
	}
	s := scanner.New(l.data)
	if err := s.SeekTo(off); err != nil {
		return nil, err
	}
	numTok, err := s.Next()
	if err != nil {
		return nil, err
	}
	genTok, err := s.Next()
	if err != nil {
		return nil, err
	}
	objTok, err := s.Next()
	if err != nil {
		return nil, err
	}
	if numTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber ||
		objTok.Type != scanner.TokenKeyword || objTok.Str != "obj" {
		return nil, fmt.Errorf("parser: object %s: bad header at offset %d", ref, off)
	}
	if int(numTok.Int) != ref.Num {
		return nil, fmt.Errorf("parser: object %s: header names object %d", ref, numTok.Int)
	}
	obj, err := l.parseValue(s, 0)
	if err != nil {
		return nil, fmt.Errorf("parser: object %s: %w", ref, err)
	}
	// A dictionary may be followed by a stream body.
	if dict, ok := obj.(*raw.Dict); ok {
		save := s.Pos()
		tok, err := s.Next()
		if err == nil && tok.Type == scanner.TokenKeyword && tok.Str == "stream" {
			length, err := l.streamLength(dict)
			if err != nil {
				return nil, fmt.Errorf("parser: object %s: %w", ref, err)
			}
			data, err := s.ReadStreamData(length)
			if err != nil {
				return nil, fmt.Errorf("parser: object %s: %w", ref, err)
			}
			obj = &raw.Stream{Dict: dict, Data: data}
		} else {
			s.SeekTo(save)
		}
	}
	if l.handler != nil {
		obj = l.decrypt(ref, obj)
	}
	l.cache[ref] = obj
	return obj, nil
}

// streamLength resolves /Length, which is commonly an indirect
// reference.
func (l *objectLoader) streamLength(dict *raw.Dict) (int, error) {
	switch v := dict.Get("Length").(type) {
	case raw.Number:
		return int(v.I), nil
	case raw.Ref:
		obj, err := l.load(v.R)
		if err != nil {
			return 0, err
		}
		if n, ok := obj.(raw.Number); ok {
			return int(n.I), nil
		}
		return 0, fmt.Errorf("stream /Length resolves to %s", obj.Type())
	default:
		return 0, fmt.Errorf("stream has no /Length")
	}
}

func (l *objectLoader) decrypt(ref raw.ObjectRef, obj raw.Object) raw.Object {
	switch v := obj.(type) {
	case raw.String:
		if dec, err := l.handler.Decrypt(ref.Num, ref.Gen, v.Bytes, security.ClassString); err == nil {
			return raw.String{Bytes: dec, Hex: v.Hex}
		}
		return v
	case *raw.Array:
		for i, item := range v.Items {
			v.Items[i] = l.decrypt(ref, item)
		}
		return v
	case *raw.Dict:
		for k, item := range v.KV {
			v.KV[k] = l.decrypt(ref, item)
		}
		return v
	case *raw.Stream:
		if dec, err := l.handler.Decrypt(ref.Num, ref.Gen, v.Data, security.ClassStream); err == nil {
			v.Data = dec
		}
		for k, item := range v.Dict.KV {
			v.Dict.KV[k] = l.decrypt(ref, item)
		}
		return v
	default:
		return obj
	}
}

func (l *objectLoader) parseValue(s *scanner.Scanner, depth int) (raw.Object, error) {
	if depth > maxObjectDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxObjectDepth)
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return l.parseToken(s, tok, depth)
}

func (l *objectLoader) parseToken(s *scanner.Scanner, tok scanner.Token, depth int) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenNumber:
		// "N G R" is an indirect reference; look ahead.
		if tok.IsInt {
			save := s.Pos()
			genTok, err1 := s.Next()
			if err1 == nil && genTok.Type == scanner.TokenNumber && genTok.IsInt {
				rTok, err2 := s.Next()
				if err2 == nil && rTok.Type == scanner.TokenKeyword && rTok.Str == "R" {
					return raw.NewRef(int(tok.Int), int(genTok.Int)), nil
				}
			}
			s.SeekTo(save)
		}
		return raw.Number{I: tok.Int, F: tok.Float, IsInt: tok.IsInt}, nil
	case scanner.TokenName:
		return raw.Name{Val: tok.Str}, nil
	case scanner.TokenString:
		return raw.String{Bytes: tok.Bytes}, nil
	case scanner.TokenArrayOpen:
		arr := &raw.Array{}
		for {
			itemTok, err := s.Next()
			if err != nil {
				return nil, err
			}
			if itemTok.Type == scanner.TokenArrayClose {
				return arr, nil
			}
			if itemTok.Type == scanner.TokenEOF {
				return nil, fmt.Errorf("unterminated array")
			}
			item, err := l.parseToken(s, itemTok, depth+1)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, item)
		}
	case scanner.TokenDictOpen:
		dict := raw.NewDict()
		for {
			keyTok, err := s.Next()
			if err != nil {
				return nil, err
			}
			if keyTok.Type == scanner.TokenDictClose {
				return dict, nil
			}
			if keyTok.Type != scanner.TokenName {
				return nil, fmt.Errorf("dict key is %v, want name", keyTok.Type)
			}
			val, err := l.parseValue(s, depth+1)
			if err != nil {
				return nil, err
			}
			dict.Set(keyTok.Str, val)
		}
	case scanner.TokenKeyword:
		switch tok.Str {
		case "true":
			return raw.Bool{V: true}, nil
		case "false":
			return raw.Bool{V: false}, nil
		case "null":
			return raw.Null{}, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q", tok.Str)
	default:
		return nil, fmt.Errorf("unexpected token %v", tok.Type)
	}
}

// resolve follows indirect references until a direct object remains.
func (l *objectLoader) resolve(obj raw.Object) (raw.Object, error) {
	for i := 0; i < maxObjectDepth; i++ {
		ref, ok := obj.(raw.Ref)
		if !ok {
			return obj, nil
		}
		next, err := l.load(ref.R)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, fmt.Errorf("parser: reference chain too deep")
}

// resolveDict resolves obj to a dictionary. Absent objects (nil or
// null) resolve to a nil dict, not an error.
func (l *objectLoader) resolveDict(obj raw.Object) (*raw.Dict, error) {
	if obj == nil {
		return nil, nil
	}
	r, err := l.resolve(obj)
	if err != nil {
		return nil, err
	}
	switch v := r.(type) {
	case nil:
		return nil, nil
	case raw.Null:
		return nil, nil
	case *raw.Dict:
		return v, nil
	case *raw.Stream:
		return v.Dict, nil
	}
	return nil, fmt.Errorf("parser: expected dict, got %s", r.Type())
}

// loadTrailer parses the trailer dictionary after the xref table, or
// reconstructs one by locating the catalog when the table was
// repaired.
func (l *objectLoader) loadTrailer() (*raw.Dict, error) {
	if off := l.table.TrailerOffset(); off >= 0 {
		s := scanner.New(l.data)
		if err := s.SeekTo(off); err != nil {
			return nil, err
		}
		obj, err := l.parseValue(s, 0)
		if err != nil {
			return nil, err
		}
		if d, ok := obj.(*raw.Dict); ok {
			return d, nil
		}
		return nil, fmt.Errorf("parser: trailer is %s, want dict", obj.Type())
	}
	// Repaired file: find the object whose /Type is /Catalog.
	for _, num := range l.table.Numbers() {
		obj, err := l.load(raw.ObjectRef{Num: num})
		if err != nil {
			continue
		}
		if d, ok := obj.(*raw.Dict); ok {
			if t, _ := d.GetName("Type"); t == "Catalog" {
				trailer := raw.NewDict()
				trailer.Set("Root", raw.NewRef(num, 0))
				return trailer, nil
			}
		}
	}
	return nil, fmt.Errorf("parser: no catalog found")
}

// malformed wraps err as a structured malformed-file load error.
func malformed(err error) error {
	return &doctool.LoadError{Kind: doctool.KindMalformed, Err: err}
}

// passwordError classifies an authentication failure: an empty
// password means the caller did not know the file was encrypted.
func passwordError(password string, err error) error {
	if errors.Is(err, security.ErrWrongPassword) {
		if password == "" {
			return &doctool.LoadError{Kind: doctool.KindEncrypted, Err: err}
		}
		return &doctool.LoadError{Kind: doctool.KindWrongPassword, Err: err}
	}
	return malformed(err)
}

package raw

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{KV: make(map[string]Object)}
}

// Int builds an integer Number.
func Int(i int64) Number {
	return Number{I: i, F: float64(i), IsInt: true}
}

// Real builds a real Number.
func Real(f float64) Number {
	return Number{F: f}
}

// Str builds a literal String from bytes.
func Str(b []byte) String {
	return String{Bytes: b}
}

// NewRef builds an indirect reference.
func NewRef(num, gen int) Ref {
	return Ref{R: ObjectRef{Num: num, Gen: gen}}
}

// Set stores a value under key.
func (d *Dict) Set(key string, v Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = v
}

// Get returns the value stored under key, or nil.
func (d *Dict) Get(key string) Object {
	if d == nil || d.KV == nil {
		return nil
	}
	return d.KV[key]
}

// GetName returns the Name value under key, if present.
func (d *Dict) GetName(key string) (string, bool) {
	n, ok := d.Get(key).(Name)
	if !ok {
		return "", false
	}
	return n.Val, true
}

// GetInt returns the integer value under key, if present. Reals are
// truncated, matching viewer behavior for count-like entries.
func (d *Dict) GetInt(key string) (int64, bool) {
	switch v := d.Get(key).(type) {
	case Number:
		if v.IsInt {
			return v.I, true
		}
		return int64(v.F), true
	default:
		return 0, false
	}
}

// GetNumber returns the numeric value under key as float64, if present.
func (d *Dict) GetNumber(key string) (float64, bool) {
	n, ok := d.Get(key).(Number)
	if !ok {
		return 0, false
	}
	return n.Value(), true
}

// GetDict returns the dictionary under key, if present. Indirect
// references are not followed; resolution is the parser's job.
func (d *Dict) GetDict(key string) (*Dict, bool) {
	v, ok := d.Get(key).(*Dict)
	return v, ok
}

// GetArray returns the array under key, if present.
func (d *Dict) GetArray(key string) (*Array, bool) {
	v, ok := d.Get(key).(*Array)
	return v, ok
}

// GetString returns the string bytes under key, if present.
func (d *Dict) GetString(key string) ([]byte, bool) {
	v, ok := d.Get(key).(String)
	if !ok {
		return nil, false
	}
	return v.Bytes, true
}

// GetBool returns the boolean value under key, if present.
func (d *Dict) GetBool(key string) (bool, bool) {
	v, ok := d.Get(key).(Bool)
	if !ok {
		return false, false
	}
	return v.V, true
}

// GetRef returns the reference under key, if present.
func (d *Dict) GetRef(key string) (ObjectRef, bool) {
	v, ok := d.Get(key).(Ref)
	if !ok {
		return ObjectRef{}, false
	}
	return v.R, true
}

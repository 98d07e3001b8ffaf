package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Undefined marks an explicitly absent value, distinct from nil (JSON null).
type Undefined struct{}

// Regexp is a regular expression by source and flag string. The codec does
// not compile or validate the pattern; it round-trips the textual form.
type Regexp struct {
	Source string
	Flags  string
}

// LegacyCircularRef is the opaque sentinel decoded from the legacy
// __circular_ref placeholder. The legacy form carries no back-reference and
// cannot be resolved to its target.
type LegacyCircularRef struct{}

// Object is a string-keyed record that preserves key insertion order across
// encode and decode. Plain JSON objects decode into *Object so that callers
// observe properties in their original order.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject creates an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set stores a value under key, appending the key on first write.
func (o *Object) Set(key string, value any) *Object {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
	return o
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key and its value, preserving the order of remaining keys.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is shared; do not mutate.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// MarshalJSON emits the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MapEntry is a single key/value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map is a keyed mapping with arbitrary key types and stable entry order.
type Map struct {
	entries []MapEntry
}

// NewMap creates an empty map.
func NewMap() *Map { return &Map{} }

// Set stores value under key, replacing an existing entry with an equal
// comparable key. Non-comparable keys always append.
func (m *Map) Set(key, value any) *Map {
	if isComparable(key) {
		for i := range m.entries {
			if isComparable(m.entries[i].Key) && m.entries[i].Key == key {
				m.entries[i].Value = value
				return m
			}
		}
	}
	m.entries = append(m.entries, MapEntry{Key: key, Value: value})
	return m
}

// Get returns the value stored under a comparable key.
func (m *Map) Get(key any) (any, bool) {
	if !isComparable(key) {
		return nil, false
	}
	for i := range m.entries {
		if isComparable(m.entries[i].Key) && m.entries[i].Key == key {
			return m.entries[i].Value, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order. The slice is shared.
func (m *Map) Entries() []MapEntry { return m.entries }

// Set is an ordered collection of unique values. Uniqueness applies to
// comparable values; non-comparable values always append.
type Set struct {
	items []any
}

// NewSet creates a set seeded with the given values.
func NewSet(values ...any) *Set {
	s := &Set{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add appends value unless an equal comparable value is already present.
func (s *Set) Add(value any) *Set {
	if isComparable(value) && s.Has(value) {
		return s
	}
	s.items = append(s.items, value)
	return s
}

// Has reports whether an equal comparable value is present.
func (s *Set) Has(value any) bool {
	if !isComparable(value) {
		return false
	}
	for _, v := range s.items {
		if isComparable(v) && v == value {
			return true
		}
	}
	return false
}

// Len returns the number of values.
func (s *Set) Len() int { return len(s.items) }

// Values returns the values in insertion order. The slice is shared.
func (s *Set) Values() []any { return s.items }

// ArrayBuffer is a raw byte buffer, distinct from typed views over it.
type ArrayBuffer []byte

// ElemKind names the element type of a TypedArray.
type ElemKind string

const (
	KindUint8        ElemKind = "uint8"
	KindUint8Clamped ElemKind = "uint8clamped"
	KindInt8         ElemKind = "int8"
	KindUint16       ElemKind = "uint16"
	KindInt16        ElemKind = "int16"
	KindUint32       ElemKind = "uint32"
	KindInt32        ElemKind = "int32"
	KindFloat32      ElemKind = "float32"
	KindFloat64      ElemKind = "float64"
	KindBigUint64    ElemKind = "biguint64"
	KindBigInt64     ElemKind = "bigint64"
)

// TypedArray is a typed numeric view over little-endian raw storage.
// ByteOffset records the view's original offset into a shared buffer; the
// decoder always reconstructs a fresh zero-offset backing buffer.
type TypedArray struct {
	Kind       ElemKind
	Data       []byte
	ByteOffset int
}

// DataView is an untyped aligned view over raw bytes.
type DataView struct {
	Data       []byte
	ByteOffset int
}

// Blob is an opaque byte payload with a media type and declared size.
// Encoding a blob requires EncodeContext because the payload is read lazily.
type Blob struct {
	ContentType string
	Size        int64

	data   []byte
	reader io.Reader
}

// NewBlob creates a blob over an in-memory payload.
func NewBlob(data []byte, contentType string) *Blob {
	return &Blob{ContentType: contentType, Size: int64(len(data)), data: data}
}

// NewBlobReader creates a blob whose payload is read from r at encode time.
// Size is the declared payload length in bytes.
func NewBlobReader(r io.Reader, size int64, contentType string) *Blob {
	return &Blob{ContentType: contentType, Size: size, reader: r}
}

// Bytes returns the in-memory payload. It is nil for reader-backed blobs
// that have not been encoded or decoded yet.
func (b *Blob) Bytes() []byte { return b.data }

// Reader returns a reader over the payload.
func (b *Blob) Reader() io.Reader {
	if b.data != nil {
		return bytes.NewReader(b.data)
	}
	return b.reader
}

// RemoteError is an error value that survives the wire with its name,
// message, and optional stack, code, and cause.
type RemoteError struct {
	Name    string
	Message string
	Stack   string
	Code    string
	Cause   error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Name != "" && e.Name != "Error" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *RemoteError) Unwrap() error { return e.Cause }

// isComparable reports whether == is safe for v.
func isComparable(v any) bool {
	switch v.(type) {
	case nil:
		return true
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		// Pointers compare by identity, which is the useful semantic for
		// composite keys. Everything else is treated as non-comparable.
		switch v.(type) {
		case *Object, *Map, *Set:
			return true
		}
		return false
	}
}

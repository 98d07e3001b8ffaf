package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// maxSafeInt is the largest integer exactly representable as a 64-bit float.
const maxSafeInt = 1<<53 - 1

// refKey identifies a composite by its memory identity.
type refKey struct {
	ptr  uintptr
	len  int
	kind reflect.Kind
}

type encodeState struct {
	c    *Codec
	ctx  context.Context // nil in the synchronous path
	refs map[refKey]int
	next int
}

// Encode serializes v to the JSON envelope. It is synchronous and fails with
// ErrNeedsAsync if the graph contains blobs.
func (c *Codec) Encode(v any) ([]byte, error) {
	return c.run(nil, v)
}

// EncodeContext serializes v to the JSON envelope, reading blob payloads
// through ctx. Blob bytes are emitted as base64 with their media type and size.
func (c *Codec) EncodeContext(ctx context.Context, v any) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.run(ctx, v)
}

func (c *Codec) run(ctx context.Context, v any) ([]byte, error) {
	st := &encodeState{c: c, ctx: ctx, refs: make(map[refKey]int)}
	node, err := st.value(v, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// value converts v into an envelope node. Composites register their identity
// before descending so that cyclic graphs terminate with __ref citations.
func (st *encodeState) value(v any, depth int) (any, error) {
	if depth > st.c.maxDepth {
		return nil, fmt.Errorf("%w (max %d)", ErrDepth, st.c.maxDepth)
	}

	switch t := v.(type) {
	case nil:
		return nil, nil
	case Undefined:
		return tagged(tagUndefined, true), nil
	case LegacyCircularRef:
		return tagged(tagCircularRef, true), nil
	case bool:
		return t, nil
	case string:
		if len(t) > st.c.maxStringLen {
			return nil, fmt.Errorf("%w: string of %d bytes (max %d)", ErrSizeLimit, len(t), st.c.maxStringLen)
		}
		return t, nil
	case json.Number:
		return t, nil
	case int:
		return encodeInt(int64(t)), nil
	case int8:
		return encodeInt(int64(t)), nil
	case int16:
		return encodeInt(int64(t)), nil
	case int32:
		return encodeInt(int64(t)), nil
	case int64:
		return encodeInt(t), nil
	case uint:
		return encodeUint(uint64(t)), nil
	case uint8:
		return encodeUint(uint64(t)), nil
	case uint16:
		return encodeUint(uint64(t)), nil
	case uint32:
		return encodeUint(uint64(t)), nil
	case uint64:
		return encodeUint(t), nil
	case float32:
		return encodeFloat(float64(t)), nil
	case float64:
		return encodeFloat(t), nil
	case *big.Int:
		if t == nil {
			return nil, nil
		}
		return tagged(tagBigInt, t.String()), nil
	case big.Int:
		return tagged(tagBigInt, t.String()), nil
	case time.Time:
		return tagged(tagDate, encodeTime(t)), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return tagged(tagDate, encodeTime(*t)), nil
	case Regexp:
		return tagged(tagRegexp, NewObject().Set("source", t.Source).Set("flags", t.Flags)), nil
	case *Regexp:
		if t == nil {
			return nil, nil
		}
		return st.value(*t, depth)
	case *url.URL:
		if t == nil {
			return nil, nil
		}
		return tagged(tagURL, t.String()), nil
	case url.URL:
		return tagged(tagURL, t.String()), nil
	case *Blob:
		if t == nil {
			return nil, nil
		}
		return st.blob(t)
	case ArrayBuffer:
		if len(t) > st.c.maxBlobBytes {
			return nil, fmt.Errorf("%w: buffer of %d bytes (max %d)", ErrSizeLimit, len(t), st.c.maxBlobBytes)
		}
		return tagged(tagArrayBuffer, base64.StdEncoding.EncodeToString(t)), nil
	case TypedArray:
		return st.typedArray(t)
	case *TypedArray:
		if t == nil {
			return nil, nil
		}
		return st.typedArray(*t)
	case DataView:
		return st.dataView(t)
	case []byte:
		return st.typedArray(TypedArray{Kind: KindUint8, Data: t})
	case *Object:
		if t == nil {
			return nil, nil
		}
		return st.object(t, depth)
	case *Map:
		if t == nil {
			return nil, nil
		}
		return st.mapValue(t, depth)
	case *Set:
		if t == nil {
			return nil, nil
		}
		return st.setValue(t, depth)
	case error:
		return st.errorValue(t, depth)
	}

	return st.reflected(reflect.ValueOf(v), depth)
}

// reflected handles plain Go composites: pointers, structs, maps, slices.
func (st *encodeState) reflected(rv reflect.Value, depth int) (any, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			key := refKey{ptr: rv.Pointer(), kind: reflect.Pointer}
			if id, ok := st.refs[key]; ok {
				return tagged(tagRef, id), nil
			}
			id := st.assign(key)
			return st.structValue(rv.Elem(), id, depth)
		}
		return st.value(rv.Elem().Interface(), depth)

	case reflect.Struct:
		return st.structValue(rv, st.fresh(), depth)

	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		key := refKey{ptr: rv.Pointer(), kind: reflect.Map}
		if id, ok := st.refs[key]; ok {
			return tagged(tagRef, id), nil
		}
		id := st.assign(key)
		return st.goMap(rv, id, depth)

	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		key := refKey{ptr: rv.Pointer(), len: rv.Len(), kind: reflect.Slice}
		if rv.Cap() > 0 {
			if id, ok := st.refs[key]; ok {
				return tagged(tagRef, id), nil
			}
			st.refs[key] = st.next
		}
		id := st.next
		st.next++
		return st.sequence(rv, id, depth)

	case reflect.Array:
		return st.sequence(rv, st.fresh(), depth)

	case reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return st.value(rv.Elem().Interface(), depth)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

// assign registers a composite identity and returns its reference id.
func (st *encodeState) assign(key refKey) int {
	id := st.next
	st.next++
	st.refs[key] = id
	return id
}

// fresh returns the next reference id without registering an identity.
// Used for by-value composites that cannot be shared.
func (st *encodeState) fresh() int {
	id := st.next
	st.next++
	return id
}

// object encodes an ordered record. Records containing reserved-looking keys
// are emitted in __map form to keep the tag vocabulary unambiguous.
func (st *encodeState) object(o *Object, depth int) (any, error) {
	key := refKey{ptr: reflect.ValueOf(o).Pointer(), kind: reflect.Pointer}
	if id, ok := st.refs[key]; ok {
		return tagged(tagRef, id), nil
	}
	id := st.assign(key)

	if hasReservedKey(o.Keys()) {
		entries := make([]any, 0, o.Len())
		for _, k := range o.Keys() {
			v, _ := o.Get(k)
			ev, err := st.value(v, depth+1)
			if err != nil {
				return nil, err
			}
			entries = append(entries, []any{k, ev})
		}
		return taggedRef(tagMap, entries, id), nil
	}

	node := NewObject()
	for _, k := range o.Keys() {
		if len(k) > st.c.maxStringLen {
			return nil, fmt.Errorf("%w: key of %d bytes (max %d)", ErrSizeLimit, len(k), st.c.maxStringLen)
		}
		v, _ := o.Get(k)
		ev, err := st.value(v, depth+1)
		if err != nil {
			return nil, err
		}
		node.Set(k, ev)
	}
	node.Set(keyRefID, id)
	return node, nil
}

func (st *encodeState) mapValue(m *Map, depth int) (any, error) {
	key := refKey{ptr: reflect.ValueOf(m).Pointer(), kind: reflect.Pointer}
	if id, ok := st.refs[key]; ok {
		return tagged(tagRef, id), nil
	}
	id := st.assign(key)

	entries := make([]any, 0, m.Len())
	for _, e := range m.Entries() {
		ek, err := st.value(e.Key, depth+1)
		if err != nil {
			return nil, err
		}
		ev, err := st.value(e.Value, depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, []any{ek, ev})
	}
	return taggedRef(tagMap, entries, id), nil
}

func (st *encodeState) setValue(s *Set, depth int) (any, error) {
	key := refKey{ptr: reflect.ValueOf(s).Pointer(), kind: reflect.Pointer}
	if id, ok := st.refs[key]; ok {
		return tagged(tagRef, id), nil
	}
	id := st.assign(key)

	items := make([]any, 0, s.Len())
	for _, v := range s.Values() {
		ev, err := st.value(v, depth+1)
		if err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return taggedRef(tagSet, items, id), nil
}

// goMap encodes a native Go map. String-keyed maps become plain records with
// sorted keys (native maps carry no order); other key types use __map form.
func (st *encodeState) goMap(rv reflect.Value, id int, depth int) (any, error) {
	if rv.Type().Key().Kind() == reflect.String {
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)

		if hasReservedKey(keys) {
			entries := make([]any, 0, len(keys))
			for _, k := range keys {
				ev, err := st.value(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), depth+1)
				if err != nil {
					return nil, err
				}
				entries = append(entries, []any{k, ev})
			}
			return taggedRef(tagMap, entries, id), nil
		}

		node := NewObject()
		for _, k := range keys {
			ev, err := st.value(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			node.Set(k, ev)
		}
		node.Set(keyRefID, id)
		return node, nil
	}

	type kv struct {
		label string
		key   reflect.Value
	}
	pairs := make([]kv, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		pairs = append(pairs, kv{label: fmt.Sprint(k.Interface()), key: k})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].label < pairs[j].label })

	entries := make([]any, 0, len(pairs))
	for _, p := range pairs {
		ek, err := st.value(p.key.Interface(), depth+1)
		if err != nil {
			return nil, err
		}
		ev, err := st.value(rv.MapIndex(p.key).Interface(), depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, []any{ek, ev})
	}
	return taggedRef(tagMap, entries, id), nil
}

func (st *encodeState) sequence(rv reflect.Value, id int, depth int) (any, error) {
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev, err := st.value(rv.Index(i).Interface(), depth+1)
		if err != nil {
			return nil, err
		}
		items[i] = ev
	}
	return taggedRef(tagArray, items, id), nil
}

func (st *encodeState) structValue(rv reflect.Value, id int, depth int) (any, error) {
	node := NewObject()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		ev, err := st.value(rv.Field(i).Interface(), depth+1)
		if err != nil {
			return nil, err
		}
		node.Set(name, ev)
	}
	if hasReservedKey(node.Keys()) {
		entries := make([]any, 0, node.Len())
		for _, k := range node.Keys() {
			v, _ := node.Get(k)
			entries = append(entries, []any{k, v})
		}
		return taggedRef(tagMap, entries, id), nil
	}
	node.Set(keyRefID, id)
	return node, nil
}

func (st *encodeState) blob(b *Blob) (any, error) {
	if st.ctx == nil {
		return nil, ErrNeedsAsync
	}
	if err := st.ctx.Err(); err != nil {
		return nil, err
	}

	data := b.data
	if data == nil {
		if b.reader == nil {
			data = []byte{}
		} else {
			read, err := io.ReadAll(io.LimitReader(b.reader, int64(st.c.maxBlobBytes)+1))
			if err != nil {
				return nil, fmt.Errorf("codec: reading blob payload: %w", err)
			}
			data = read
		}
	}
	if len(data) > st.c.maxBlobBytes {
		return nil, fmt.Errorf("%w: blob of %d bytes (max %d)", ErrSizeLimit, len(data), st.c.maxBlobBytes)
	}

	payload := NewObject().
		Set("data", base64.StdEncoding.EncodeToString(data)).
		Set("type", b.ContentType).
		Set("size", len(data))
	return tagged(tagBlob, payload), nil
}

func (st *encodeState) typedArray(t TypedArray) (any, error) {
	if len(t.Data) > st.c.maxBlobBytes {
		return nil, fmt.Errorf("%w: typed array of %d bytes (max %d)", ErrSizeLimit, len(t.Data), st.c.maxBlobBytes)
	}
	if t.ByteOffset != 0 {
		st.c.logger.Warn("encoding typed array view with non-zero offset; buffer sharing is not preserved",
			"kind", string(t.Kind), "offset", t.ByteOffset)
	}
	kind := t.Kind
	if kind == "" {
		kind = KindUint8
	}
	payload := NewObject().
		Set("kind", string(kind)).
		Set("data", base64.StdEncoding.EncodeToString(t.Data))
	return tagged(tagTypedArray, payload), nil
}

func (st *encodeState) dataView(d DataView) (any, error) {
	if len(d.Data) > st.c.maxBlobBytes {
		return nil, fmt.Errorf("%w: data view of %d bytes (max %d)", ErrSizeLimit, len(d.Data), st.c.maxBlobBytes)
	}
	if d.ByteOffset != 0 {
		st.c.logger.Warn("encoding data view with non-zero offset; buffer sharing is not preserved",
			"offset", d.ByteOffset)
	}
	payload := NewObject().Set("data", base64.StdEncoding.EncodeToString(d.Data))
	return tagged(tagDataView, payload), nil
}

func (st *encodeState) errorValue(err error, depth int) (any, error) {
	if depth > st.c.maxDepth {
		return nil, fmt.Errorf("%w (max %d)", ErrDepth, st.c.maxDepth)
	}

	node := NewObject()
	if re, ok := err.(*RemoteError); ok {
		name := re.Name
		if name == "" {
			name = "Error"
		}
		node.Set("name", name).Set("message", re.Message)
		if re.Stack != "" {
			node.Set("stack", re.Stack)
		}
		if re.Code != "" {
			node.Set("code", re.Code)
		}
		if re.Cause != nil {
			cause, cerr := st.errorValue(re.Cause, depth+1)
			if cerr != nil {
				return nil, cerr
			}
			node.Set("cause", cause)
		}
		return tagged(tagError, node), nil
	}

	node.Set("name", "Error").Set("message", err.Error())
	if cause := errors.Unwrap(err); cause != nil {
		enc, cerr := st.errorValue(cause, depth+1)
		if cerr != nil {
			return nil, cerr
		}
		node.Set("cause", enc)
	}
	return tagged(tagError, node), nil
}

func encodeInt(i int64) any {
	if i >= -maxSafeInt && i <= maxSafeInt {
		return json.Number(strconv.FormatInt(i, 10))
	}
	return tagged(tagNumber, strconv.FormatInt(i, 10))
}

func encodeUint(u uint64) any {
	if u <= maxSafeInt {
		return json.Number(strconv.FormatUint(u, 10))
	}
	return tagged(tagNumber, strconv.FormatUint(u, 10))
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return tagged(tagNumber, "NaN")
	case math.IsInf(f, 1):
		return tagged(tagNumber, "Infinity")
	case math.IsInf(f, -1):
		return tagged(tagNumber, "-Infinity")
	case f == 0 && math.Signbit(f):
		return tagged(tagNumber, "-0")
	case f == math.Trunc(f) && math.Abs(f) > maxSafeInt:
		return tagged(tagNumber, strconv.FormatFloat(f, 'f', -1, 64))
	default:
		return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
	}
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return "invalid"
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func tagged(tag string, value any) *Object {
	return NewObject().Set(tag, value)
}

func taggedRef(tag string, value any, id int) *Object {
	return NewObject().Set(tag, value).Set(keyRefID, id)
}

func hasReservedKey(keys []string) bool {
	for _, k := range keys {
		if strings.HasPrefix(k, "__") {
			return true
		}
	}
	return false
}

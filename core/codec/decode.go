package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// rawObject is the ordered parse tree form of a JSON object.
type rawObject struct {
	keys   []string
	values map[string]any
}

// refPlaceholder stands in for a __ref whose target has not been decoded yet.
// The patch pass replaces every placeholder with its target shell.
type refPlaceholder struct {
	id int
}

type decodeState struct {
	c    *Codec
	refs map[int]any
}

// Decode deserializes an envelope into its value graph. Shared identities are
// restored: two envelope paths citing the same reference id decode to the
// same shell, cycles included.
func (c *Codec) Decode(data []byte) (any, error) {
	tree, err := parseTree(data, 2*c.maxDepth+16)
	if err != nil {
		return nil, err
	}

	st := &decodeState{c: c, refs: make(map[int]any)}
	v, err := st.value(tree, 0)
	if err != nil {
		return nil, err
	}
	return st.patch(v)
}

// parseTree parses JSON preserving object key order. Numbers stay as
// json.Number; objects become *rawObject; arrays []any.
func parseTree(data []byte, maxDepth int) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTag, err)
	}
	return v, nil
}

func parseValue(dec *json.Decoder, depth int) (any, error) {
	if depth < 0 {
		return nil, ErrDepth
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok, depth)
}

func parseToken(dec *json.Decoder, tok json.Token, depth int) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &rawObject{values: make(map[string]any)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := parseValue(dec, depth-1)
				if err != nil {
					return nil, err
				}
				if _, dup := obj.values[key]; !dup {
					obj.keys = append(obj.keys, key)
				}
				obj.values[key] = val
			}
			if _, err := dec.Token(); err != nil { // closing brace
				return nil, err
			}
			return obj, nil
		case '[':
			var items []any
			for dec.More() {
				val, err := parseValue(dec, depth-1)
				if err != nil {
					return nil, err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil { // closing bracket
				return nil, err
			}
			return items, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	default:
		return tok, nil
	}
}

// value converts a parse tree node into a domain value. Composite shells are
// registered under their reference id before descending, so cyclic citations
// resolve to the shell under construction.
func (st *decodeState) value(tree any, depth int) (any, error) {
	if depth > st.c.maxDepth {
		return nil, fmt.Errorf("%w (max %d)", ErrDepth, st.c.maxDepth)
	}

	switch t := tree.(type) {
	case nil:
		return nil, nil
	case bool:
		return t, nil
	case string:
		return t, nil
	case json.Number:
		return decodeBareNumber(t)
	case []any:
		// Bare arrays carry no identity (plain-client argument lists).
		items := make([]any, len(t))
		for i, el := range t {
			v, err := st.value(el, depth+1)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return items, nil
	case *rawObject:
		return st.object(t, depth)
	}
	return nil, fmt.Errorf("%w: unexpected node %T", ErrMalformedTag, tree)
}

func (st *decodeState) object(obj *rawObject, depth int) (any, error) {
	refID := -1
	if raw, ok := obj.values[keyRefID]; ok {
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: non-numeric %s", ErrMalformedTag, keyRefID)
		}
		id, err := strconv.Atoi(n.String())
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: invalid %s %q", ErrMalformedTag, keyRefID, n.String())
		}
		refID = id
	}

	var tag string
	for _, k := range obj.keys {
		if reservedTags[k] {
			if tag != "" {
				return nil, fmt.Errorf("%w: multiple tags %q and %q", ErrMalformedTag, tag, k)
			}
			tag = k
		}
	}

	if tag != "" {
		return st.tagged(obj, tag, refID, depth)
	}

	// A lone unrecognized "__" key is a vocabulary mismatch, not user data:
	// the encoder wraps all reserved-looking user keys in __map form.
	if len(obj.keys) == 1 || (len(obj.keys) == 2 && refID >= 0) {
		for _, k := range obj.keys {
			if k != keyRefID && strings.HasPrefix(k, "__") {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTag, k)
			}
		}
	}

	shell := NewObject()
	if refID >= 0 {
		st.refs[refID] = shell
	}
	for _, k := range obj.keys {
		if k == keyRefID {
			continue
		}
		v, err := st.value(obj.values[k], depth+1)
		if err != nil {
			return nil, err
		}
		shell.Set(k, v)
	}
	return shell, nil
}

func (st *decodeState) tagged(obj *rawObject, tag string, refID int, depth int) (any, error) {
	raw := obj.values[tag]

	// Tagged nodes carry exactly the tag plus an optional reference id.
	for _, k := range obj.keys {
		if k != tag && k != keyRefID {
			return nil, fmt.Errorf("%w: unexpected key %q beside %q", ErrMalformedTag, k, tag)
		}
	}

	switch tag {
	case tagRef:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: non-numeric __ref", ErrMalformedTag)
		}
		id, err := strconv.Atoi(n.String())
		if err != nil || id < 0 {
			return nil, fmt.Errorf("%w: invalid __ref %q", ErrMalformedTag, n.String())
		}
		if target, ok := st.refs[id]; ok {
			return target, nil
		}
		return &refPlaceholder{id: id}, nil

	case tagArray:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: __array payload must be an array", ErrMalformedTag)
		}
		shell := make([]any, len(items))
		if refID >= 0 {
			st.refs[refID] = shell
		}
		for i, el := range items {
			v, err := st.value(el, depth+1)
			if err != nil {
				return nil, err
			}
			shell[i] = v
		}
		return shell, nil

	case tagMap:
		pairs, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: __map payload must be an array of pairs", ErrMalformedTag)
		}
		shell := NewMap()
		if refID >= 0 {
			st.refs[refID] = shell
		}
		for _, p := range pairs {
			pair, ok := p.([]any)
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("%w: __map entry must be a [key, value] pair", ErrMalformedTag)
			}
			k, err := st.value(pair[0], depth+1)
			if err != nil {
				return nil, err
			}
			v, err := st.value(pair[1], depth+1)
			if err != nil {
				return nil, err
			}
			shell.entries = append(shell.entries, MapEntry{Key: k, Value: v})
		}
		return shell, nil

	case tagSet:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: __set payload must be an array", ErrMalformedTag)
		}
		shell := NewSet()
		if refID >= 0 {
			st.refs[refID] = shell
		}
		for _, el := range items {
			v, err := st.value(el, depth+1)
			if err != nil {
				return nil, err
			}
			shell.items = append(shell.items, v)
		}
		return shell, nil

	case tagDate:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: __date payload must be a string", ErrMalformedTag)
		}
		if s == "invalid" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrMalformedTag, s)
		}
		return t, nil

	case tagRegexp:
		o, ok := raw.(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __regexp payload must be an object", ErrMalformedTag)
		}
		source, _ := o.values["source"].(string)
		flags, _ := o.values["flags"].(string)
		return Regexp{Source: source, Flags: flags}, nil

	case tagBigInt:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: __bigint payload must be a string", ErrMalformedTag)
		}
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: bad bigint %q", ErrMalformedTag, s)
		}
		return i, nil

	case tagNumber:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: __number payload must be a string", ErrMalformedTag)
		}
		return decodeTaggedNumber(s)

	case tagBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: __boolean payload must be a bool", ErrMalformedTag)
		}
		return b, nil

	case tagString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: __string payload must be a string", ErrMalformedTag)
		}
		return s, nil

	case tagNull:
		return nil, nil

	case tagUndefined:
		return Undefined{}, nil

	case tagCircularRef:
		return LegacyCircularRef{}, nil

	case tagURL:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: __url payload must be a string", ErrMalformedTag)
		}
		u, err := url.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad url %q", ErrMalformedTag, s)
		}
		return u, nil

	case tagArrayBuffer:
		data, err := st.binary(raw)
		if err != nil {
			return nil, err
		}
		return ArrayBuffer(data), nil

	case tagTypedArray:
		o, ok := raw.(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __typedarray payload must be an object", ErrMalformedTag)
		}
		kind, _ := o.values["kind"].(string)
		if !validElemKind(ElemKind(kind)) {
			return nil, fmt.Errorf("%w: unknown element kind %q", ErrMalformedTag, kind)
		}
		data, err := st.binary(o.values["data"])
		if err != nil {
			return nil, err
		}
		return TypedArray{Kind: ElemKind(kind), Data: data}, nil

	case tagDataView:
		o, ok := raw.(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __dataview payload must be an object", ErrMalformedTag)
		}
		data, err := st.binary(o.values["data"])
		if err != nil {
			return nil, err
		}
		return DataView{Data: data}, nil

	case tagBlob:
		o, ok := raw.(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __blob payload must be an object", ErrMalformedTag)
		}
		if n, ok := o.values["size"].(json.Number); ok {
			size, err := strconv.ParseInt(n.String(), 10, 64)
			if err != nil || size < 0 {
				return nil, fmt.Errorf("%w: bad blob size %q", ErrMalformedTag, n.String())
			}
			if size > int64(st.c.maxBlobBytes) {
				return nil, fmt.Errorf("%w: declared blob size %d (max %d)", ErrSizeLimit, size, st.c.maxBlobBytes)
			}
		}
		data, err := st.binary(o.values["data"])
		if err != nil {
			return nil, err
		}
		contentType, _ := o.values["type"].(string)
		return NewBlob(data, contentType), nil

	case tagError:
		o, ok := raw.(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __error payload must be an object", ErrMalformedTag)
		}
		return st.remoteError(o, depth)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

// binary decodes a base64 payload, validating the declared length against the
// blob ceiling before allocating backing storage.
func (st *decodeState) binary(raw any) ([]byte, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: binary payload must be a base64 string", ErrMalformedTag)
	}
	if decoded := base64.StdEncoding.DecodedLen(len(s)); decoded > st.c.maxBlobBytes {
		return nil, fmt.Errorf("%w: binary payload of ~%d bytes (max %d)", ErrSizeLimit, decoded, st.c.maxBlobBytes)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBase64, err)
	}
	return data, nil
}

func (st *decodeState) remoteError(o *rawObject, depth int) (*RemoteError, error) {
	if depth > st.c.maxDepth {
		return nil, fmt.Errorf("%w (max %d)", ErrDepth, st.c.maxDepth)
	}
	re := &RemoteError{}
	re.Name, _ = o.values["name"].(string)
	re.Message, _ = o.values["message"].(string)
	re.Stack, _ = o.values["stack"].(string)
	re.Code, _ = o.values["code"].(string)
	if re.Name == "" {
		re.Name = "Error"
	}

	if rawCause, ok := o.values["cause"]; ok && rawCause != nil {
		causeObj, ok := rawCause.(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __error cause must be an object", ErrMalformedTag)
		}
		inner, ok := causeObj.values[tagError].(*rawObject)
		if !ok {
			return nil, fmt.Errorf("%w: __error cause must be a tagged error", ErrMalformedTag)
		}
		cause, err := st.remoteError(inner, depth+1)
		if err != nil {
			return nil, err
		}
		re.Cause = cause
	}
	return re, nil
}

// patch replaces forward __ref placeholders with their target shells. Our own
// encoder only emits backward citations, but the two-pass strategy also
// accepts envelopes whose references precede their targets.
func (st *decodeState) patch(root any) (any, error) {
	if ph, ok := root.(*refPlaceholder); ok {
		target, ok := st.refs[ph.id]
		if !ok {
			return nil, fmt.Errorf("%w: unresolved __ref %d", ErrMalformedTag, ph.id)
		}
		root = target
	}

	visited := make(map[visitKey]bool)
	if err := st.patchWalk(root, visited); err != nil {
		return nil, err
	}
	return root, nil
}

type visitKey struct {
	ptr  uintptr
	kind reflect.Kind
}

func (st *decodeState) resolve(v any) (any, error) {
	ph, ok := v.(*refPlaceholder)
	if !ok {
		return v, nil
	}
	target, ok := st.refs[ph.id]
	if !ok {
		return nil, fmt.Errorf("%w: unresolved __ref %d", ErrMalformedTag, ph.id)
	}
	return target, nil
}

func (st *decodeState) patchWalk(v any, visited map[visitKey]bool) error {
	switch t := v.(type) {
	case *Object:
		key := visitKey{ptr: reflect.ValueOf(t).Pointer(), kind: reflect.Pointer}
		if visited[key] {
			return nil
		}
		visited[key] = true
		for _, k := range t.keys {
			resolved, err := st.resolve(t.values[k])
			if err != nil {
				return err
			}
			t.values[k] = resolved
			if err := st.patchWalk(resolved, visited); err != nil {
				return err
			}
		}
	case *Map:
		key := visitKey{ptr: reflect.ValueOf(t).Pointer(), kind: reflect.Pointer}
		if visited[key] {
			return nil
		}
		visited[key] = true
		for i := range t.entries {
			k, err := st.resolve(t.entries[i].Key)
			if err != nil {
				return err
			}
			val, err := st.resolve(t.entries[i].Value)
			if err != nil {
				return err
			}
			t.entries[i].Key = k
			t.entries[i].Value = val
			if err := st.patchWalk(k, visited); err != nil {
				return err
			}
			if err := st.patchWalk(val, visited); err != nil {
				return err
			}
		}
	case *Set:
		key := visitKey{ptr: reflect.ValueOf(t).Pointer(), kind: reflect.Pointer}
		if visited[key] {
			return nil
		}
		visited[key] = true
		for i := range t.items {
			resolved, err := st.resolve(t.items[i])
			if err != nil {
				return err
			}
			t.items[i] = resolved
			if err := st.patchWalk(resolved, visited); err != nil {
				return err
			}
		}
	case []any:
		if len(t) == 0 {
			return nil
		}
		key := visitKey{ptr: reflect.ValueOf(t).Pointer(), kind: reflect.Slice}
		if visited[key] {
			return nil
		}
		visited[key] = true
		for i := range t {
			resolved, err := st.resolve(t[i])
			if err != nil {
				return err
			}
			t[i] = resolved
			if err := st.patchWalk(resolved, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeBareNumber maps untagged JSON numbers to float64, matching the
// envelope's numeric domain. Exact wide integers travel tagged.
func decodeBareNumber(n json.Number) (any, error) {
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: bad number %q", ErrMalformedTag, n.String())
	}
	return f, nil
}

func decodeTaggedNumber(s string) (any, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	case "-0":
		return math.Copysign(0, -1), nil
	}
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: bad __number %q", ErrMalformedTag, s)
}

func validElemKind(k ElemKind) bool {
	switch k {
	case KindUint8, KindUint8Clamped, KindInt8, KindUint16, KindInt16,
		KindUint32, KindInt32, KindFloat32, KindFloat64, KindBigUint64, KindBigInt64:
		return true
	}
	return false
}

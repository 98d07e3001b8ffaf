package dispatcher

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"

	"github.com/iclass/poto/core/codec"
)

// argsQueryParam carries GET/DELETE argument arrays.
const argsQueryParam = "args"

// maxArgsBody bounds how much request body the dispatcher will read.
const maxArgsBody = 64 << 20

// readArgs extracts the positional argument list from the request. POST,
// PUT, and PATCH carry a JSON array body; GET and DELETE carry the array in
// a single query parameter. An absent body or parameter means no arguments.
func (d *Dispatcher) readArgs(r *http.Request) ([]any, error) {
	var payload []byte
	switch r.Method {
	case http.MethodGet, http.MethodDelete:
		raw := r.URL.Query().Get(argsQueryParam)
		if raw == "" {
			return nil, nil
		}
		payload = []byte(raw)
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBody))
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrBadArguments, err)
		}
		if len(body) == 0 {
			return nil, nil
		}
		payload = body
	}

	decoded, err := d.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArguments, err)
	}
	args, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: arguments must be an array", ErrBadArguments)
	}
	return args, nil
}

// buildCall converts decoded arguments into the method's parameter values.
// Extra arguments are ignored; missing ones reject the call.
func buildCall(m *method, args []any) ([]reflect.Value, error) {
	if len(args) < m.required() {
		return nil, fmt.Errorf("%w: got %d arguments, need %d", ErrBadArguments, len(args), m.required())
	}

	in := make([]reflect.Value, 0, len(m.params))
	for i, pt := range m.params {
		if m.variadic && i == len(m.params)-1 {
			elem := pt.Elem()
			for _, a := range args[i:] {
				v, err := convertArg(a, elem)
				if err != nil {
					return nil, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
				}
				in = append(in, v)
			}
			return in, nil
		}

		v, err := convertArg(args[i], pt)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

// convertArg adapts one decoded value to a parameter type. Decoded numbers
// arrive as float64 (or int64/uint64 off tagged forms) and are narrowed
// when they fit exactly.
func convertArg(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("null is not a %s", t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := asInt64(v)
		if !ok || reflect.Zero(t).OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("%v is not a %s", v, t)
		}
		return reflect.ValueOf(i).Convert(t), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, ok := asUint64(v)
		if !ok || reflect.Zero(t).OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("%v is not a %s", v, t)
		}
		return reflect.ValueOf(u).Convert(t), nil

	case reflect.Float32, reflect.Float64:
		f, ok := asFloat64(v)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%v is not a %s", v, t)
		}
		return reflect.ValueOf(f).Convert(t), nil

	case reflect.Slice:
		items, ok := v.([]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%T is not a %s", v, t)
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			ev, err := convertArg(item, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case reflect.Map:
		obj, ok := v.(*codec.Object)
		if !ok || t.Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("%T is not a %s", v, t)
		}
		out := reflect.MakeMapWithSize(t, obj.Len())
		for _, k := range obj.Keys() {
			item, _ := obj.Get(k)
			ev, err := convertArg(item, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
		return out, nil
	}

	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%T is not a %s", v, t)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n < 0 || n > math.MaxUint64 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

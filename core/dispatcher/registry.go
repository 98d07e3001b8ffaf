package dispatcher

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/iclass/poto/core/handler"
)

// RoleRestricted is an optional interface handlers implement to protect
// methods. The returned mapping is keyed by the client-visible method name;
// methods absent from the mapping are public.
type RoleRestricted interface {
	RequiredRoles() map[string][]string
}

// method is one routable endpoint discovered on a handler.
type method struct {
	// name is the client-visible method name (verb stripped, lowercased).
	name string
	// verb is the HTTP method selecting this endpoint.
	verb string
	// fn is the bound method value, receiver included.
	fn reflect.Value
	// params are the declared parameter types, carrier excluded.
	params []reflect.Type
	// wantsContext marks methods whose first parameter is the carrier.
	wantsContext bool
	// variadic marks methods whose last parameter is variadic.
	variadic bool
	// hasValue and hasErr describe the return shape.
	hasValue bool
	hasErr   bool
	// roles is the required role set; empty means public.
	roles []string
}

// required returns the number of arguments a call must supply.
func (m *method) required() int {
	if m.variadic {
		return len(m.params) - 1
	}
	return len(m.params)
}

// registration is one handler instance with its discovered methods.
type registration struct {
	name     string
	instance any
	methods  map[string]map[string]*method // verb -> name -> method
}

func (r *registration) lookup(verb, name string) *method {
	byName, ok := r.methods[verb]
	if !ok {
		return nil
	}
	return byName[name]
}

// verbPrefixes maps Go method name prefixes to HTTP verbs. Names without a
// recognized prefix route as POST under their full lowercased name.
var verbPrefixes = []struct {
	prefix string
	verb   string
}{
	{"Get", http.MethodGet},
	{"Post", http.MethodPost},
	{"Put", http.MethodPut},
	{"Delete", http.MethodDelete},
	{"Patch", http.MethodPatch},
}

// carrierType is the handler.Context interface methods may declare first.
var carrierType = reflect.TypeOf((*handler.Context)(nil)).Elem()

// errorType matches the error interface in return positions.
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// discover builds a registration from a handler instance. Routable methods
// are the exported methods whose name ends with an underscore; the trailing
// underscore keeps ordinary helpers off the wire. A Get/Post/Put/Delete/
// Patch prefix selects the HTTP verb (POST when absent), and the remainder,
// lowercased, is the client-visible name.
func discover(name string, instance any) (*registration, error) {
	rv := reflect.ValueOf(instance)
	rt := rv.Type()

	var roles map[string][]string
	if rr, ok := instance.(RoleRestricted); ok {
		roles = rr.RequiredRoles()
	}

	reg := &registration{
		name:     name,
		instance: instance,
		methods:  make(map[string]map[string]*method),
	}

	for i := 0; i < rt.NumMethod(); i++ {
		mt := rt.Method(i)
		if !mt.IsExported() || !strings.HasSuffix(mt.Name, "_") {
			continue
		}

		verb, visible := routeName(strings.TrimSuffix(mt.Name, "_"))
		m, err := bindMethod(rv.Method(i), visible, verb)
		if err != nil {
			return nil, fmt.Errorf("method %s.%s: %w", name, mt.Name, err)
		}
		m.roles = roles[visible]

		byName := reg.methods[verb]
		if byName == nil {
			byName = make(map[string]*method)
			reg.methods[verb] = byName
		}
		if _, dup := byName[visible]; dup {
			return nil, fmt.Errorf("method %s.%s: duplicate route %s /%s/%s", name, mt.Name, verb, name, visible)
		}
		byName[visible] = m
	}

	if len(reg.methods) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotRoutable, name)
	}
	return reg, nil
}

// routeName splits a trimmed method name into its HTTP verb and
// client-visible name.
func routeName(trimmed string) (verb, visible string) {
	for _, p := range verbPrefixes {
		rest, ok := strings.CutPrefix(trimmed, p.prefix)
		if ok && rest != "" {
			return p.verb, strings.ToLower(rest)
		}
	}
	return http.MethodPost, strings.ToLower(trimmed)
}

// bindMethod validates a method's shape and captures its call metadata.
// Methods may accept the carrier as their first parameter and may return
// any of: nothing, a value, an error, or a value and an error.
func bindMethod(fn reflect.Value, visible, verb string) (*method, error) {
	ft := fn.Type()

	m := &method{name: visible, verb: verb, fn: fn, variadic: ft.IsVariadic()}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == carrierType {
		m.wantsContext = true
		start = 1
	}
	for i := start; i < ft.NumIn(); i++ {
		m.params = append(m.params, ft.In(i))
	}

	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0).Implements(errorType) {
			m.hasErr = true
		} else {
			m.hasValue = true
		}
	case 2:
		if !ft.Out(1).Implements(errorType) {
			return nil, fmt.Errorf("second return value must be error, got %s", ft.Out(1))
		}
		m.hasValue = true
		m.hasErr = true
	default:
		return nil, fmt.Errorf("too many return values (%d)", ft.NumOut())
	}
	return m, nil
}

// handlerName derives the route segment from the instance's type name.
func handlerName(instance any) string {
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}

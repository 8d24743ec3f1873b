// Package jsvalue models the statically known JavaScript values that flow
// from page sources into generated modules, and serializes them back to
// deterministic JavaScript source.
package jsvalue

// Undefined is the JavaScript undefined literal.
type Undefined struct{}

// Raw is emitted verbatim by Serialize. Generated modules use it for
// expressions such as lazy imports that must not be quoted.
type Raw string

// Property is one key/value pair of an Object.
type Property struct {
	Key   string
	Value any
}

// Object is an insertion-ordered JavaScript object literal. Values are
// string, float64, bool, nil (null), Undefined, Raw, []any or *Object.
type Object struct {
	props []Property
	index map[string]int
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{index: make(map[string]int)}
}

// Set assigns key. Re-assigning an existing key keeps its original position,
// matching JavaScript semantics for duplicate keys in a literal.
func (o *Object) Set(key string, value any) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if i, ok := o.index[key]; ok {
		o.props[i].Value = value
		return
	}
	o.index[key] = len(o.props)
	o.props = append(o.props, Property{Key: key, Value: value})
}

// Get returns the value for key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	i, ok := o.index[key]
	if !ok {
		return nil, false
	}
	return o.props[i].Value, true
}

// Len returns the number of properties.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.props)
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	keys := make([]string, len(o.props))
	for i, p := range o.props {
		keys[i] = p.Key
	}
	return keys
}

// Properties returns a copy of the properties in insertion order.
func (o *Object) Properties() []Property {
	if o == nil {
		return nil
	}
	out := make([]Property, len(o.props))
	copy(out, o.props)
	return out
}

// ToMap converts the object (recursively) to plain Go maps and slices, which
// is what YAML and JSON encoders expect.
func (o *Object) ToMap() map[string]any {
	if o == nil {
		return nil
	}
	out := make(map[string]any, len(o.props))
	for _, p := range o.props {
		out[p.Key] = toPlain(p.Value)
	}
	return out
}

func toPlain(v any) any {
	switch x := v.(type) {
	case *Object:
		return x.ToMap()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toPlain(e)
		}
		return out
	case Undefined:
		return nil
	case Raw:
		return string(x)
	default:
		return x
	}
}

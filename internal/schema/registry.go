package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Field describes one indexed field.
type Field struct {
	Name            string
	Type            DataType
	CaseInsensitive bool
}

// Registry is an in-memory FieldResolver and TypeNameMapper.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	fields map[string]Field
	names  map[reflect.Type]string // host type → content-type name
	types  map[string]reflect.Type // content-type name → host type
}

// NewRegistry creates a registry pre-populated with the well-known fields.
func NewRegistry() *Registry {
	r := &Registry{
		fields: make(map[string]Field),
		names:  make(map[reflect.Type]string),
		types:  make(map[string]reflect.Type),
	}
	for _, f := range builtinFields() {
		r.fields[f.Name] = f
	}
	return r
}

func builtinFields() []Field {
	return []Field{
		{Name: FieldID, Type: DataTypeInt},
		{Name: FieldName, Type: DataTypeString},
		{Name: FieldPath, Type: DataTypeString, CaseInsensitive: true},
		{Name: FieldType, Type: DataTypeString, CaseInsensitive: true},
		{Name: FieldTypeIs, Type: DataTypeString, CaseInsensitive: true},
		{Name: FieldInFolder, Type: DataTypeString, CaseInsensitive: true},
		{Name: FieldInTree, Type: DataTypeString, CaseInsensitive: true},
	}
}

// AddField registers a field. Redefining a field with a different
// declaration is an error; an identical redefinition is a no-op.
func (r *Registry) AddField(f Field) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field name is required")
	}
	if _, ok := dataTypeNames[f.Type]; !ok {
		return fmt.Errorf("field %q: invalid type %v", f.Name, f.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.fields[f.Name]; ok && existing != f {
		return fmt.Errorf("field %q already registered as %s", f.Name, existing.Type)
	}
	r.fields[f.Name] = f
	return nil
}

// Field returns the declaration of a field.
func (r *Registry) Field(name string) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[name]
	return f, ok
}

// Fields returns all fields sorted by name.
func (r *Registry) Fields() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Resolve implements FieldResolver.
func (r *Registry) Resolve(name string) (DataType, Converter, error) {
	f, ok := r.Field(name)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f.Type, NewConverter(f.Type, f.CaseInsensitive), nil
}

// BindType associates a host type with a content-type name.
// Pointer types bind their element type.
func (r *Registry) BindType(t reflect.Type, name string) error {
	if t == nil {
		return fmt.Errorf("content type %q: nil host type", name)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("content type name is required for %s", t)
	}
	t = elem(t)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.names[t]; ok && existing != name {
		return fmt.Errorf("host type %s already bound to %q", t, existing)
	}
	if existing, ok := r.types[name]; ok && existing != t {
		return fmt.Errorf("content type %q already bound to %s", name, existing)
	}
	r.names[t] = name
	r.types[name] = t
	return nil
}

// DeclareType registers a content type that has no host Go type and
// returns a stand-in host type for it. Declaring the same name twice
// returns the same type.
func (r *Registry) DeclareType(name string) (reflect.Type, error) {
	if t, ok := r.TypeByName(name); ok {
		return t, nil
	}
	t := reflect.StructOf([]reflect.StructField{{
		Name: "ContentType",
		Type: reflect.TypeOf(""),
		Tag:  reflect.StructTag(fmt.Sprintf(`contentq:%q`, name)),
	}})
	if err := r.BindType(t, name); err != nil {
		return nil, err
	}
	return t, nil
}

// NameForType implements TypeNameMapper.
func (r *Registry) NameForType(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[elem(t)]
	return name, ok
}

// TypeByName returns the host type bound to a content-type name.
func (r *Registry) TypeByName(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// ContentTypes returns the bound content-type names, sorted.
func (r *Registry) ContentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func elem(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

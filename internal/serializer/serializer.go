// Package serializer converts host objects to and from edm.Entity records.
package serializer

import (
	"encoding"
	"fmt"
	"math"
	"reflect"

	"github.com/pkg/errors"

	"odatagate/internal/descriptor"
	"odatagate/internal/edm"
)

// PropertyReader lets a host type expose properties without reflection.
type PropertyReader interface {
	ReadProperty(name string) (any, error)
}

// PropertyWriter is the mutator counterpart of PropertyReader.
type PropertyWriter interface {
	WriteProperty(name string, value any) error
}

// Serialize reads every structural property of et from obj, in schema order.
func Serialize(et *edm.EntityType, d *descriptor.EntityDescriptor, obj any) (*edm.Entity, error) {
	entity := edm.NewEntity(d.Name)
	fail := func(prop string, err error) error {
		return &SerializationError{Entity: d.Name.String(), Property: prop, Err: err}
	}

	rv := reflect.ValueOf(obj)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fail("", errors.New("nil entity"))
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, fail("", errors.New("nil entity"))
	}
	if rv.Type() != d.Type {
		return nil, fail("", errors.Errorf("got '%s', want '%s'", rv.Type(), d.Type))
	}

	reader, _ := obj.(PropertyReader)
	for _, p := range et.Properties {
		kind := edm.ValuePrimitive
		if p.Collection {
			kind = edm.ValueCollection
		}
		if reader != nil {
			v, err := reader.ReadProperty(p.Name)
			if err != nil {
				return nil, fail(p.Name, err)
			}
			entity.Add(p.Name, kind, v)
			continue
		}

		f, ok := d.Field(p.Name)
		if !ok {
			return nil, fail(p.Name, errors.New("no accessor"))
		}
		v, err := exportValue(rv.FieldByIndex(f.Index), f)
		if err != nil {
			return nil, fail(p.Name, err)
		}
		entity.Add(p.Name, kind, v)
	}
	return entity, nil
}

// SerializeCollection serializes every element of objs, which must be a
// slice of the descriptor's host type or pointers to it.
func SerializeCollection(et *edm.EntityType, d *descriptor.EntityDescriptor, objs any) (*edm.EntityCollection, error) {
	out := &edm.EntityCollection{Type: d.Name}
	rv := reflect.ValueOf(objs)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &SerializationError{Entity: d.Name.String(), Err: errors.Errorf("expected a slice, got %T", objs)}
	}
	out.Entities = make([]*edm.Entity, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e, err := Serialize(et, d, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out.Entities = append(out.Entities, e)
	}
	return out, nil
}

// Deserialize instantiates a new host value and sets every property of rec
// on it. The result is a pointer to the host type.
func Deserialize(d *descriptor.EntityDescriptor, rec *edm.Entity) (any, error) {
	if d.Type == nil || d.Type.Kind() != reflect.Struct {
		return nil, &DeserializationError{Entity: d.Name.String(), Err: errors.Errorf("'%v' is not a struct type", d.Type)}
	}
	ptr := reflect.New(d.Type)
	if err := Apply(d, ptr.Interface(), rec, nil); err != nil {
		return nil, err
	}
	return ptr.Interface(), nil
}

// Apply sets the properties of rec on target, a pointer to the host type.
// Properties for which skip returns true are left untouched.
func Apply(d *descriptor.EntityDescriptor, target any, rec *edm.Entity, skip func(string) bool) error {
	fail := func(prop string, err error) error {
		return &DeserializationError{Entity: d.Name.String(), Property: prop, Err: err}
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != d.Type {
		return fail("", errors.Errorf("target must be a non-nil *%s, got %T", d.Type, target))
	}
	writer, _ := target.(PropertyWriter)
	elem := rv.Elem()

	for _, p := range rec.Properties {
		if skip != nil && skip(p.Name) {
			continue
		}
		if writer != nil {
			if err := writer.WriteProperty(p.Name, p.Value); err != nil {
				return fail(p.Name, err)
			}
			continue
		}
		f, ok := d.Field(p.Name)
		if !ok {
			return fail(p.Name, errors.New("no mutator"))
		}
		if err := assign(elem.FieldByIndex(f.Index), p.Value); err != nil {
			return fail(p.Name, err)
		}
	}
	return nil
}

func exportValue(v reflect.Value, f *descriptor.FieldDescriptor) (any, error) {
	if f.Enum == descriptor.EnumNone {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return nil, nil
			}
			v = v.Elem()
		}
		return v.Interface(), nil
	}
	if f.IsCollection() {
		v = reflect.Indirect(v)
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := range out {
			ev, err := exportEnum(v.Index(i), f.Enum)
			if err != nil {
				return nil, errors.Wrapf(err, "element %d", i)
			}
			out[i] = ev
		}
		return out, nil
	}
	return exportEnum(v, f.Enum)
}

func exportEnum(v reflect.Value, enc descriptor.EnumEncoding) (any, error) {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	switch enc {
	case descriptor.EnumOrdinal:
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := v.Int()
			if n < math.MinInt32 || n > math.MaxInt32 {
				return nil, errors.Errorf("ordinal %d overflows Edm.Int32", n)
			}
			return int32(n), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n := v.Uint()
			if n > math.MaxInt32 {
				return nil, errors.Errorf("ordinal %d overflows Edm.Int32", n)
			}
			return int32(n), nil
		}
		return nil, errors.Errorf("'%s' has no ordinal representation", v.Type())
	case descriptor.EnumString:
		if m, ok := v.Interface().(encoding.TextMarshaler); ok {
			b, err := m.MarshalText()
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}
		if s, ok := v.Interface().(fmt.Stringer); ok {
			return s.String(), nil
		}
		if v.Kind() == reflect.String {
			return v.String(), nil
		}
		return nil, errors.Errorf("'%s' has no string representation", v.Type())
	}
	return v.Interface(), nil
}

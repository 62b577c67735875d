package serializer

import (
	"encoding"
	"encoding/base64"
	"math"
	"reflect"

	"github.com/pkg/errors"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// assign stores value into dst, converting between compatible kinds.
// Numeric conversions fail instead of truncating.
func assign(dst reflect.Value, value any) error {
	if !dst.CanSet() {
		return errors.New("field is not settable")
	}
	if value == nil {
		dst.SetZero()
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		src := reflect.ValueOf(value)
		if src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	src := reflect.ValueOf(value)
	for src.Kind() == reflect.Pointer {
		if src.IsNil() {
			dst.SetZero()
			return nil
		}
		src = src.Elem()
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if s, ok := src.Interface().(string); ok || src.Kind() == reflect.String {
		if !ok {
			s = src.String()
		}
		if reflect.PointerTo(dst.Type()).Implements(textUnmarshalerType) {
			return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
		}
		switch {
		case dst.Kind() == reflect.String:
			dst.SetString(s)
			return nil
		case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8:
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return errors.Wrap(err, "binary value")
			}
			dst.SetBytes(b)
			return nil
		}
		return errors.Errorf("cannot assign string to '%s'", dst.Type())
	}

	switch dst.Kind() {
	case reflect.Bool:
		if src.Kind() == reflect.Bool {
			dst.SetBool(src.Bool())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		if dst.OverflowInt(n) {
			return errors.Errorf("value %d overflows '%s'", n, dst.Type())
		}
		dst.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toInt64(src)
		if err != nil {
			return err
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return errors.Errorf("value %d overflows '%s'", n, dst.Type())
		}
		dst.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := toFloat64(src)
		if err != nil {
			return err
		}
		if dst.OverflowFloat(f) {
			return errors.Errorf("value %g overflows '%s'", f, dst.Type())
		}
		dst.SetFloat(f)
		return nil
	case reflect.Slice:
		if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
			break
		}
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := assign(out.Index(i), src.Index(i).Interface()); err != nil {
				return errors.Wrapf(err, "element %d", i)
			}
		}
		dst.Set(out)
		return nil
	case reflect.Array:
		if (src.Kind() != reflect.Slice && src.Kind() != reflect.Array) || src.Len() != dst.Len() {
			break
		}
		for i := 0; i < src.Len(); i++ {
			if err := assign(dst.Index(i), src.Index(i).Interface()); err != nil {
				return errors.Wrapf(err, "element %d", i)
			}
		}
		return nil
	}

	if src.Type().ConvertibleTo(dst.Type()) && src.Kind() == dst.Kind() {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot assign '%s' to '%s'", src.Type(), dst.Type())
}

func toInt64(v reflect.Value) (int64, error) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return 0, errors.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, errors.Errorf("value %g is not a whole number", f)
		}
		return int64(f), nil
	}
	return 0, errors.Errorf("'%s' is not numeric", v.Type())
}

func toFloat64(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	}
	return 0, errors.Errorf("'%s' is not numeric", v.Type())
}

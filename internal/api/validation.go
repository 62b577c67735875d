package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"mime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"odatagate/internal/dispatch"
	"odatagate/internal/edm"
)

// ErrUnsupportedMediaType: тело не application/json.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок полезной нагрузки
const (
	ErrRequired     = "required"
	ErrTypeMismatch = "type_mismatch"
	ErrUnknownField = "unknown_field"
	ErrNotNullable  = "not_nullable"
	ErrInvalidJSON  = "invalid_json"
)

// PayloadError собирает все ошибки тела запроса.
type PayloadError struct {
	Errors []FieldError
}

func (e *PayloadError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field == "" {
			parts = append(parts, fe.Message)
			continue
		}
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// JSONDecoder реализует dispatch.PayloadDecoder для application/json.
type JSONDecoder struct{}

var _ dispatch.PayloadDecoder = JSONDecoder{}

// Decode валидирует и НОРМАЛИЗУЕТ тело под тип сущности. Неизвестные поля :
// ошибка; при создании обязательны все не-nullable свойства, кроме ключей
// (их может выдать контроллер).
func (JSONDecoder) Decode(ctx context.Context, et *edm.EntityType, op dispatch.Operation, contentType string, payload []byte) (*edm.Entity, error) {
	if err := checkContentType(contentType); err != nil {
		return nil, err
	}
	obj, err := readObject(payload)
	if err != nil {
		return nil, err
	}

	var errs []FieldError
	for _, name := range sortedKeys(obj) {
		if strings.HasPrefix(name, "@") || strings.Contains(name, "@odata.") {
			continue // аннотации
		}
		if _, ok := et.Property(name); ok {
			continue
		}
		if _, ok := et.NavigationProperty(name); ok {
			errs = append(errs, ferr(ErrUnknownField, name, "navigation properties cannot be set"))
			continue
		}
		errs = append(errs, ferr(ErrUnknownField, name, "unknown property"))
	}

	rec := edm.NewEntity(edm.FullQualifiedName{})
	for _, p := range et.Properties {
		raw, present := obj[p.Name]
		if !present {
			if op == dispatch.OpCreate && !p.Nullable && !et.IsKey(p.Name) {
				errs = append(errs, ferr(ErrRequired, p.Name, "required"))
			}
			continue
		}
		v, err := coerceProperty(p, raw)
		if err != nil {
			code := ErrTypeMismatch
			if raw == nil {
				code = ErrNotNullable
			}
			errs = append(errs, ferr(code, p.Name, err.Error()))
			continue
		}
		kind := edm.ValuePrimitive
		if p.Collection {
			kind = edm.ValueCollection
		}
		rec.Add(p.Name, kind, v)
	}
	if len(errs) > 0 {
		return nil, &PayloadError{Errors: errs}
	}
	return rec, nil
}

func checkContentType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return errors.Wrapf(ErrUnsupportedMediaType, "%s", contentType)
	}
	if mt != "application/json" && !strings.HasSuffix(mt, "+json") {
		return errors.Wrapf(ErrUnsupportedMediaType, "%s", mt)
	}
	return nil
}

func readObject(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &PayloadError{Errors: []FieldError{ferr(ErrInvalidJSON, "", "Invalid JSON")}}
	}
	if dec.More() {
		return nil, &PayloadError{Errors: []FieldError{ferr(ErrInvalidJSON, "", "trailing data after JSON object")}}
	}
	if obj == nil {
		return nil, &PayloadError{Errors: []FieldError{ferr(ErrInvalidJSON, "", "JSON object expected")}}
	}
	return obj, nil
}

// completeForReplace дополняет тело PUT: отсутствующие nullable свойства
// становятся null, отсутствующие обязательные: ошибка.
func completeForReplace(et *edm.EntityType, payload []byte) ([]byte, error) {
	obj, err := readObject(payload)
	if err != nil {
		return nil, err
	}
	var errs []FieldError
	for _, p := range et.Properties {
		if _, ok := obj[p.Name]; ok || et.IsKey(p.Name) {
			continue
		}
		if !p.Nullable {
			errs = append(errs, ferr(ErrRequired, p.Name, "required"))
			continue
		}
		obj[p.Name] = nil
	}
	if len(errs) > 0 {
		return nil, &PayloadError{Errors: errs}
	}
	return json.Marshal(obj)
}

func coerceProperty(p edm.Property, v any) (any, error) {
	if v == nil {
		if !p.Nullable {
			return nil, errors.New("must not be null")
		}
		return nil, nil
	}
	if !p.Collection {
		return coerceValue(p.Type, v)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, errors.New("must be array")
	}
	out := make([]any, 0, len(arr))
	for i, ev := range arr {
		norm, err := coerceValue(p.Type, ev)
		if err != nil {
			return nil, errors.Wrapf(err, "array element %d", i)
		}
		out = append(out, norm)
	}
	return out, nil
}

// coerceValue приводит JSON-значение к представлению примитивного типа.
func coerceValue(t edm.FullQualifiedName, v any) (any, error) {
	switch t {
	case edm.EdmString:
		return toStringStrict(v)
	case edm.EdmBoolean:
		return toBoolStrict(v)
	case edm.EdmSByte:
		return toIntRange(v, math.MinInt8, math.MaxInt8)
	case edm.EdmByte:
		return toIntRange(v, 0, math.MaxUint8)
	case edm.EdmInt16:
		return toIntRange(v, math.MinInt16, math.MaxInt16)
	case edm.EdmInt32:
		return toIntRange(v, math.MinInt32, math.MaxInt32)
	case edm.EdmInt64:
		return toIntRange(v, math.MinInt64, math.MaxInt64)
	case edm.EdmSingle, edm.EdmDouble, edm.EdmDecimal:
		return toFloatStrict(v)
	case edm.EdmDateTimeOffset:
		return parseStringAs(v, func(s string) (any, error) {
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, errors.New("must be RFC3339 datetime")
			}
			return ts, nil
		})
	case edm.EdmDate:
		return parseStringAs(v, func(s string) (any, error) {
			d, err := time.Parse(dateLayout, s)
			if err != nil {
				return nil, errors.New("must match YYYY-MM-DD")
			}
			return d, nil
		})
	case edm.EdmTimeOfDay:
		return parseStringAs(v, func(s string) (any, error) {
			tod, err := time.Parse(timeOfDayLayout, s)
			if err != nil {
				return nil, errors.New("must match hh:mm:ss")
			}
			return tod, nil
		})
	case edm.EdmDuration:
		return parseStringAs(v, func(s string) (any, error) { return parseISODuration(s) })
	case edm.EdmBinary, edm.EdmStream:
		return parseStringAs(v, func(s string) (any, error) {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, errors.New("must be base64")
			}
			return b, nil
		})
	case edm.EdmGuid:
		return parseStringAs(v, func(s string) (any, error) {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, errors.New("must be a GUID")
			}
			return id, nil
		})
	default:
		return nil, errors.Errorf("unsupported type %s", t)
	}
}

func parseStringAs(v any, parse func(string) (any, error)) (any, error) {
	s, err := toStringStrict(v)
	if err != nil {
		return nil, err
	}
	return parse(s)
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	// числа как строки не форматируем: лучше отдать ошибку
	return "", errors.New("must be string")
}

func toIntRange(v any, lo, hi int64) (int64, error) {
	var n int64
	switch t := v.(type) {
	case json.Number:
		i, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		n = i
	case string:
		// IEEE754Compatible: большие целые строкой
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		n = i
	default:
		return 0, errors.New("must be integer")
	}
	if n < lo || n > hi {
		return 0, errors.Errorf("out of range [%d, %d]", lo, hi)
	}
	return n, nil
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, errors.New("must be number")
		}
		return f, nil
	case string:
		switch t {
		case "NaN":
			return math.NaN(), nil
		case "INF":
			return math.Inf(1), nil
		case "-INF":
			return math.Inf(-1), nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, errors.New("must be number")
		}
		return f, nil
	default:
		return 0, errors.New("must be number")
	}
}

func toBoolStrict(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.New("must be boolean")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

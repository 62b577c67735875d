// memstore/store.go
package memstore

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"odatagate/internal/descriptor"
	"odatagate/internal/dispatch"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("entity already exists")
)

var (
	ulidType = reflect.TypeOf(ulid.ULID{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

type record[T any] struct {
	value     T
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// Store: потокобезопасное хранилище сущностей одного типа в памяти.
// Реализует dispatch.Controller[T] и dispatch.Lister[T].
type Store[T any] struct {
	mu      sync.RWMutex
	keys    []descriptor.FieldDescriptor
	fields  []descriptor.FieldDescriptor
	unique  []string
	data    map[string]*record[T]
	order   []string
	seq     int64
	entropy io.Reader
}

var (
	_ dispatch.Controller[struct{}] = (*Store[struct{}])(nil)
	_ dispatch.Lister[struct{}]     = (*Store[struct{}])(nil)
)

// New готовит хранилище для T; у T должен быть хотя бы один ключ.
func New[T any](unique ...string) (*Store[T], error) {
	fields, err := descriptor.Describe(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	var keys []descriptor.FieldDescriptor
	for _, f := range fields {
		if f.Key {
			keys = append(keys, f)
		}
	}
	if len(keys) == 0 {
		return nil, errors.Errorf("type '%s' has no key field", reflect.TypeFor[T]())
	}
	for _, u := range unique {
		if !hasField(fields, u) {
			return nil, errors.Errorf("unique field '%s' not found", u)
		}
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store[T]{
		keys:    keys,
		fields:  fields,
		unique:  unique,
		data:    make(map[string]*record[T]),
		entropy: ulid.Monotonic(src, 0),
	}, nil
}

func hasField(fields []descriptor.FieldDescriptor, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (s *Store[T]) newID() ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy)
}

func (s *Store[T]) Read(ctx context.Context, keys dispatch.Keys) (*T, error) {
	id, err := s.keyOfPredicates(keys)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.data[id]
	if rec == nil {
		return nil, nil
	}
	v := rec.value
	return &v, nil
}

func (s *Store[T]) List(ctx context.Context) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.order))
	for _, id := range s.order {
		v := s.data[id].value
		out = append(out, &v)
	}
	return out, nil
}

// Create сохраняет копию entity. Пустые ключи генерируются: строки и ULID :
// новым ULID, UUID: uuid.New(), единственный целый ключ: счётчиком.
func (s *Store[T]) Create(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, errors.New("nil entity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := *entity
	rv := reflect.ValueOf(&v).Elem()
	for _, k := range s.keys {
		fv := rv.FieldByIndex(k.Index)
		switch {
		case fv.Kind() == reflect.String && fv.String() == "":
			fv.SetString(s.newID().String())
		case fv.Type() == ulidType && fv.Interface().(ulid.ULID) == (ulid.ULID{}):
			fv.Set(reflect.ValueOf(s.newID()))
		case fv.Type() == uuidType && fv.Interface().(uuid.UUID) == uuid.Nil:
			fv.Set(reflect.ValueOf(uuid.New()))
		case len(s.keys) == 1 && fv.CanInt() && fv.Int() == 0:
			s.seq++
			fv.SetInt(s.seq)
		}
	}

	id := s.keyOf(rv)
	if _, exists := s.data[id]; exists {
		return nil, errors.Wrapf(ErrConflict, "key %s", id)
	}
	if field, ok := s.uniqueOK(rv, ""); !ok {
		return nil, errors.Wrapf(ErrConflict, "unique field '%s'", field)
	}
	if fv := rv.FieldByIndex(s.keys[0].Index); len(s.keys) == 1 && fv.CanInt() && fv.Int() > s.seq {
		s.seq = fv.Int()
	}
	now := time.Now().UTC()
	s.data[id] = &record[T]{value: v, version: 1, createdAt: now, updatedAt: now}
	s.order = append(s.order, id)
	out := v
	return &out, nil
}

func (s *Store[T]) Update(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, errors.New("nil entity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := *entity
	rv := reflect.ValueOf(&v).Elem()
	id := s.keyOf(rv)
	rec := s.data[id]
	if rec == nil {
		return nil, errors.Wrapf(ErrNotFound, "key %s", id)
	}
	if field, ok := s.uniqueOK(rv, id); !ok {
		return nil, errors.Wrapf(ErrConflict, "unique field '%s'", field)
	}
	rec.value = v
	rec.version++
	rec.updatedAt = time.Now().UTC()
	out := v
	return &out, nil
}

func (s *Store[T]) Delete(ctx context.Context, entity *T) (bool, error) {
	if entity == nil {
		return false, errors.New("nil entity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.keyOf(reflect.ValueOf(entity).Elem())
	if _, ok := s.data[id]; !ok {
		return false, nil
	}
	delete(s.data, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Version возвращает номер версии записи, 0: если записи нет.
func (s *Store[T]) Version(keys dispatch.Keys) int64 {
	id, err := s.keyOfPredicates(keys)
	if err != nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.data[id]; rec != nil {
		return rec.version
	}
	return 0
}

// Len: число записей.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Seed добавляет стартовые записи через Create.
func (s *Store[T]) Seed(items ...T) error {
	for i := range items {
		if _, err := s.Create(context.Background(), &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store[T]) keyOf(rv reflect.Value) string {
	parts := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		parts = append(parts, stringify(rv.FieldByIndex(k.Index).Interface()))
	}
	return strings.Join(parts, ",")
}

func (s *Store[T]) keyOfPredicates(keys dispatch.Keys) (string, error) {
	if len(keys) == 1 && keys[0].Name == "" && len(s.keys) == 1 {
		return stringify(keys[0].Value), nil
	}
	parts := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		v, ok := keys.Get(k.Name)
		if !ok {
			return "", errors.Errorf("missing key '%s'", k.Name)
		}
		parts = append(parts, stringify(v))
	}
	return strings.Join(parts, ","), nil
}

// простая проверка уникальности по полям (in-memory); exceptID: сама запись
func (s *Store[T]) uniqueOK(rv reflect.Value, exceptID string) (string, bool) {
	for _, name := range s.unique {
		var idx []int
		for _, f := range s.fields {
			if f.Name == name {
				idx = f.Index
			}
		}
		want := stringify(rv.FieldByIndex(idx).Interface())
		for id, rec := range s.data {
			if id == exceptID {
				continue
			}
			other := reflect.ValueOf(&rec.value).Elem().FieldByIndex(idx).Interface()
			if stringify(other) == want {
				return name, false
			}
		}
	}
	return "", true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

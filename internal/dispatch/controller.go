package dispatch

import (
	"context"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// Controller implements the data operations of one entity type. Read returns
// (nil, nil) when no entity matches; Delete reports whether one was removed.
type Controller[T any] interface {
	Read(ctx context.Context, keys Keys) (*T, error)
	Create(ctx context.Context, entity *T) (*T, error)
	Update(ctx context.Context, entity *T) (*T, error)
	Delete(ctx context.Context, entity *T) (bool, error)
}

// Lister is optionally implemented by controllers that can enumerate an
// entity set.
type Lister[T any] interface {
	List(ctx context.Context) ([]*T, error)
}

// binding erases T so controllers of different entity types share a registry.
type binding interface {
	read(ctx context.Context, keys Keys) (any, error)
	create(ctx context.Context, entity any) (any, error)
	update(ctx context.Context, entity any) (any, error)
	delete(ctx context.Context, entity any) (bool, error)
	list(ctx context.Context) (any, bool, error)
	listable() bool
}

type typedBinding[T any] struct {
	c Controller[T]
}

func (b typedBinding[T]) read(ctx context.Context, keys Keys) (any, error) {
	v, err := b.c.Read(ctx, keys)
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func (b typedBinding[T]) create(ctx context.Context, entity any) (any, error) {
	v, err := b.c.Create(ctx, entity.(*T))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return entity, nil
	}
	return v, nil
}

func (b typedBinding[T]) update(ctx context.Context, entity any) (any, error) {
	v, err := b.c.Update(ctx, entity.(*T))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return entity, nil
	}
	return v, nil
}

func (b typedBinding[T]) delete(ctx context.Context, entity any) (bool, error) {
	return b.c.Delete(ctx, entity.(*T))
}

func (b typedBinding[T]) list(ctx context.Context) (any, bool, error) {
	l, ok := b.c.(Lister[T])
	if !ok {
		return nil, false, nil
	}
	items, err := l.List(ctx)
	return items, true, err
}

func (b typedBinding[T]) listable() bool {
	_, ok := b.c.(Lister[T])
	return ok
}

// Registry maps host types to controllers.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]binding
}

func NewRegistry() *Registry {
	return &Registry{byType: map[reflect.Type]binding{}}
}

// Bind registers c as the controller of T. Binding T twice is an error.
func Bind[T any](r *Registry, c Controller[T]) error {
	return bind(r, c, false)
}

// Rebind registers c as the controller of T, replacing an earlier binding.
func Rebind[T any](r *Registry, c Controller[T]) error {
	return bind(r, c, true)
}

func bind[T any](r *Registry, c Controller[T], replace bool) error {
	if c == nil {
		return errors.New("nil controller")
	}
	t := reflect.TypeFor[T]()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byType[t]; dup && !replace {
		return errors.Errorf("controller for '%s' already bound", t)
	}
	r.byType[t] = typedBinding[T]{c: c}
	return nil
}

func (r *Registry) lookup(t reflect.Type) (binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byType[t]
	return b, ok
}

// Has reports whether a controller is bound for t.
func (r *Registry) Has(t reflect.Type) bool {
	_, ok := r.lookup(t)
	return ok
}

// Listable reports whether the controller bound for t also implements Lister.
func (r *Registry) Listable(t reflect.Type) bool {
	b, ok := r.lookup(t)
	return ok && b.listable()
}

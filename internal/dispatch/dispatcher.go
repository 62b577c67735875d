// Package dispatch routes parsed resource paths to entity controllers and
// converts between host objects and entity records.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/descriptor"
	"odatagate/internal/edm"
	"odatagate/internal/metadata"
	"odatagate/internal/serializer"
)

// Operation is the kind of data operation requested.
type Operation int

const (
	OpRead Operation = iota
	OpCreate
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Request is one parsed inbound call.
type Request struct {
	Operation   Operation
	Path        []Segment
	ContentType string
	Payload     []byte
}

// Response carries either a single entity or a collection. Delete responses
// carry neither.
type Response struct {
	EntitySet  *edm.EntitySet
	EntityType *edm.EntityType
	Entity     *edm.Entity
	Collection *edm.EntityCollection
}

// PayloadDecoder turns a raw request body into an entity record of et.
type PayloadDecoder interface {
	Decode(ctx context.Context, et *edm.EntityType, op Operation, contentType string, payload []byte) (*edm.Entity, error)
}

type Dispatcher struct {
	provider    *metadata.Provider
	descriptors map[edm.FullQualifiedName]*descriptor.EntityDescriptor
	registry    *Registry
	decoder     PayloadDecoder
	logger      *zap.Logger
}

func New(provider *metadata.Provider, descriptors []*descriptor.EntityDescriptor, registry *Registry, decoder PayloadDecoder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[edm.FullQualifiedName]*descriptor.EntityDescriptor, len(descriptors))
	for _, d := range descriptors {
		byName[d.Name] = d
	}
	return &Dispatcher{
		provider:    provider,
		descriptors: byName,
		registry:    registry,
		decoder:     decoder,
		logger:      logger,
	}
}

// Provider exposes the schema lookups the dispatcher works against.
func (d *Dispatcher) Provider() *metadata.Provider { return d.provider }

// Capabilities reports which operations the entity type name can serve.
func (d *Dispatcher) Capabilities(name edm.FullQualifiedName) (bound, listable bool) {
	desc, ok := d.descriptors[name]
	if !ok {
		return false, false
	}
	return d.registry.Has(desc.Type), d.registry.Listable(desc.Type)
}

// Dispatch consumes the resource path and runs the requested operation.
// Paths containing unhandled segment kinds fail with NotImplementedError
// before any controller is called.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Path) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "empty resource path")
	}

	var target *EntitySetSegment
	for i, seg := range req.Path {
		switch s := seg.(type) {
		case EntitySetSegment:
			if i > 0 {
				return nil, &NotImplementedError{Kind: KindNavigation}
			}
			target = &s
		case *EntitySetSegment:
			if i > 0 {
				return nil, &NotImplementedError{Kind: KindNavigation}
			}
			target = s
		case NavigationSegment, PrimitivePropertySegment, ComplexPropertySegment,
			ValueSegment, CountSegment, ActionSegment, FunctionSegment, RefSegment,
			SingletonSegment, LambdaAllSegment, LambdaAnySegment, LambdaVariableSegment,
			RootSegment, ItSegment:
			return nil, &NotImplementedError{Kind: seg.Kind()}
		default:
			return nil, &NotImplementedError{Kind: seg.Kind()}
		}
	}

	return d.entitySet(ctx, req, target)
}

func (d *Dispatcher) entitySet(ctx context.Context, req *Request, seg *EntitySetSegment) (*Response, error) {
	et, err := d.provider.EntityType(seg.Type)
	if err != nil {
		return nil, err
	}
	schema, err := d.provider.Schema(seg.Type.Namespace)
	if err != nil {
		return nil, err
	}
	if schema.EntityContainer == nil {
		return nil, &metadata.NotFoundError{Kind: "entity container", Name: schema.Namespace}
	}
	set, err := d.provider.EntitySet(edm.NewFQN(schema.Namespace, schema.EntityContainer.Name), seg.EntitySet)
	if err != nil {
		return nil, err
	}
	if set.Type != seg.Type {
		return nil, errors.Wrapf(ErrInvalidRequest, "entity set '%s' exposes '%s', not '%s'", set.Name, set.Type, seg.Type)
	}
	desc, ok := d.descriptors[seg.Type]
	if !ok {
		return nil, errors.Wrapf(ErrNoController, "no descriptor for '%s'", seg.Type)
	}
	ctrl, ok := d.registry.lookup(desc.Type)
	if !ok {
		return nil, errors.Wrapf(ErrNoController, "entity '%s'", seg.Type)
	}
	keys, err := normalizeKeys(et, seg.Keys)
	if err != nil {
		return nil, err
	}

	log := d.logger.With(
		zap.String("entity_set", seg.EntitySet),
		zap.Stringer("operation", req.Operation),
		zap.Any("keys", keys.Map()))
	log.Debug("dispatch")

	resp := &Response{EntitySet: set, EntityType: et}
	switch req.Operation {
	case OpRead:
		if len(keys) == 0 {
			resp.Collection, err = d.list(ctx, et, desc, ctrl)
		} else {
			resp.Entity, err = d.read(ctx, et, desc, ctrl, keys)
		}
	case OpCreate:
		resp.Entity, err = d.create(ctx, req, et, desc, ctrl, keys)
	case OpUpdate:
		resp.Entity, err = d.update(ctx, req, et, desc, ctrl, keys)
	case OpDelete:
		err = d.delete(ctx, desc, ctrl, keys)
	default:
		err = errors.Wrapf(ErrUnsupportedOperation, "operation %d", req.Operation)
	}
	if err != nil {
		log.Warn("dispatch failed", zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) list(ctx context.Context, et *edm.EntityType, desc *descriptor.EntityDescriptor, ctrl binding) (*edm.EntityCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, ok, err := ctrl.list(ctx)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedOperation, "listing '%s'", desc.Name)
	}
	if err != nil {
		return nil, err
	}
	return serializer.SerializeCollection(et, desc, items)
}

func (d *Dispatcher) read(ctx context.Context, et *edm.EntityType, desc *descriptor.EntityDescriptor, ctrl binding, keys Keys) (*edm.Entity, error) {
	obj, err := d.find(ctx, desc, ctrl, keys)
	if err != nil {
		return nil, err
	}
	return serializer.Serialize(et, desc, obj)
}

func (d *Dispatcher) find(ctx context.Context, desc *descriptor.EntityDescriptor, ctrl binding, keys Keys) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, err := ctrl.read(ctx, keys)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, &metadata.NotFoundError{Kind: "entity", Name: desc.Name.String() + keys.String()}
	}
	return obj, nil
}

func (d *Dispatcher) create(ctx context.Context, req *Request, et *edm.EntityType, desc *descriptor.EntityDescriptor, ctrl binding, keys Keys) (*edm.Entity, error) {
	if len(keys) > 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "create does not take key predicates")
	}
	rec, err := d.decode(ctx, req, et)
	if err != nil {
		return nil, err
	}
	obj, err := serializer.Deserialize(desc, rec)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created, err := ctrl.create(ctx, obj)
	if err != nil {
		return nil, err
	}
	return serializer.Serialize(et, desc, created)
}

func (d *Dispatcher) update(ctx context.Context, req *Request, et *edm.EntityType, desc *descriptor.EntityDescriptor, ctrl binding, keys Keys) (*edm.Entity, error) {
	if len(keys) == 0 {
		return nil, errors.Wrap(ErrInvalidRequest, "update requires key predicates")
	}
	rec, err := d.decode(ctx, req, et)
	if err != nil {
		return nil, err
	}
	existing, err := d.find(ctx, desc, ctrl, keys)
	if err != nil {
		return nil, err
	}
	if err := serializer.Apply(desc, existing, rec, et.IsKey); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	updated, err := ctrl.update(ctx, existing)
	if err != nil {
		return nil, err
	}
	return serializer.Serialize(et, desc, updated)
}

func (d *Dispatcher) delete(ctx context.Context, desc *descriptor.EntityDescriptor, ctrl binding, keys Keys) error {
	if len(keys) == 0 {
		return errors.Wrap(ErrInvalidRequest, "delete requires key predicates")
	}
	existing, err := d.find(ctx, desc, ctrl, keys)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deleted, err := ctrl.delete(ctx, existing)
	if err != nil {
		return err
	}
	if !deleted {
		return &metadata.NotFoundError{Kind: "entity", Name: desc.Name.String() + keys.String()}
	}
	return nil
}

func (d *Dispatcher) decode(ctx context.Context, req *Request, et *edm.EntityType) (*edm.Entity, error) {
	if d.decoder == nil {
		return nil, errors.Wrap(ErrUnsupportedOperation, "no payload decoder configured")
	}
	return d.decoder.Decode(ctx, et, req.Operation, req.ContentType, req.Payload)
}

// normalizeKeys checks predicates against the entity key and fills the name
// of the single-key shorthand.
func normalizeKeys(et *edm.EntityType, keys Keys) (Keys, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) == 1 && keys[0].Name == "" {
		if len(et.Key) != 1 {
			return nil, errors.Wrapf(ErrInvalidRequest, "entity '%s' has a composite key", et.Name)
		}
		return Keys{{Name: et.Key[0].Name, Value: keys[0].Value}}, nil
	}
	if len(keys) != len(et.Key) {
		return nil, errors.Wrapf(ErrInvalidRequest, "expected %d key predicates, got %d", len(et.Key), len(keys))
	}
	out := make(Keys, 0, len(keys))
	for _, ref := range et.Key {
		v, ok := keys.Get(ref.Name)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidRequest, "missing key predicate '%s'", ref.Name)
		}
		out = append(out, KeyPredicate{Name: ref.Name, Value: v})
	}
	return out, nil
}

func (k Keys) String() string {
	parts := make([]string, 0, len(k))
	for _, p := range k {
		parts = append(parts, p.Name+"="+formatKey(p.Value))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func formatKey(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return fmt.Sprint(v)
}

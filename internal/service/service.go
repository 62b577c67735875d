// Package service wires registration, schema build and dispatch together.
// Registration and Build are two disjoint phases: Build runs exactly once.
package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/descriptor"
	"odatagate/internal/dispatch"
	"odatagate/internal/edm"
	"odatagate/internal/metadata"
)

var ErrAlreadyBuilt = errors.New("service already built")

// Service is the immutable result of Build.
type Service struct {
	Container   string
	Schemas     []*edm.Schema
	Descriptors []*descriptor.EntityDescriptor
	Provider    *metadata.Provider
	Dispatcher  *dispatch.Dispatcher
}

type Builder struct {
	container string
	schema    *metadata.Builder
	registry  *dispatch.Registry
	decoder   dispatch.PayloadDecoder
	logger    *zap.Logger
	built     bool
}

func NewBuilder(container string, decoder dispatch.PayloadDecoder, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		container: container,
		schema:    metadata.NewBuilder(logger.Named("metadata")),
		registry:  dispatch.NewRegistry(),
		decoder:   decoder,
		logger:    logger,
	}
}

// Register adds T under namespace.name, exposed as entitySet and served by c.
// A failed call leaves the builder unchanged. Registering a qualified name
// again replaces both the entity and the controller of T.
func Register[T any](b *Builder, namespace, name, entitySet string, c dispatch.Controller[T]) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	if c == nil {
		return errors.Errorf("nil controller for %s.%s", namespace, name)
	}
	d, err := descriptor.For[T](namespace, name, entitySet)
	if err != nil {
		return errors.Wrapf(err, "describe %s.%s", namespace, name)
	}
	if err := b.schema.AddEntity(d); err != nil {
		return err
	}
	if err := dispatch.Rebind(b.registry, c); err != nil {
		return err
	}
	b.logger.Debug("entity registered",
		zap.Stringer("entity", d.Name),
		zap.String("entity_set", entitySet),
		zap.Stringer("host_type", d.Type))
	return nil
}

// AddEntity adds T to the schema without a controller. Requests against its
// set fail with dispatch.ErrNoController.
func AddEntity[T any](b *Builder, namespace, name, entitySet string) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	d, err := descriptor.For[T](namespace, name, entitySet)
	if err != nil {
		return errors.Wrapf(err, "describe %s.%s", namespace, name)
	}
	return b.schema.AddEntity(d)
}

func (b *Builder) AddEnumType(namespace string, e edm.EnumType) error {
	if b.built {
		return ErrAlreadyBuilt
	}
	return b.schema.AddEnumType(namespace, e)
}

// Build derives the schema set. It can be called once; a failed build is
// final as well.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, ErrAlreadyBuilt
	}
	b.built = true

	schemas, err := b.schema.CreateSchema(b.container)
	if err != nil {
		return nil, err
	}
	descriptors := b.schema.Descriptors()
	provider := metadata.NewProvider(schemas)
	svc := &Service{
		Container:   b.container,
		Schemas:     schemas,
		Descriptors: descriptors,
		Provider:    provider,
		Dispatcher:  dispatch.New(provider, descriptors, b.registry, b.decoder, b.logger.Named("dispatch")),
	}
	b.logger.Info("service built",
		zap.String("container", b.container),
		zap.Int("schemas", len(schemas)),
		zap.Int("entities", len(descriptors)))
	return svc, nil
}

// Descriptor returns the descriptor registered under name.
func (s *Service) Descriptor(name edm.FullQualifiedName) (*descriptor.EntityDescriptor, bool) {
	for _, d := range s.Descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

package metadata

import (
	"fmt"
	"reflect"

	"odatagate/internal/edm"
)

// SchemaBuildError aborts CreateSchema. Field is empty for entity-level
// failures such as a missing key or entity set name.
type SchemaBuildError struct {
	Type  edm.FullQualifiedName
	Field string
	Err   error
}

func (e *SchemaBuildError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("cannot build entity '%s': %v", e.Type, e.Err)
	}
	return fmt.Sprintf("cannot process property '%s' of entity '%s': %v", e.Field, e.Type, e.Err)
}

func (e *SchemaBuildError) Unwrap() error { return e.Err }

// TypeResolutionError reports a field whose element type is neither a
// primitive nor a registered entity.
type TypeResolutionError struct {
	Field string
	Type  reflect.Type
}

func (e *TypeResolutionError) Error() string {
	return fmt.Sprintf("could not determine type for field '%s': '%s' is neither primitive nor a registered entity", e.Field, e.Type)
}

// RelationshipResolutionError reports a relationship field without a
// determinable partner.
type RelationshipResolutionError struct {
	Owner  edm.FullQualifiedName
	Field  string
	Reason string
}

func (e *RelationshipResolutionError) Error() string {
	return fmt.Sprintf("cannot determine mapping partner for field '%s' of '%s': %s", e.Field, e.Owner, e.Reason)
}

// NotFoundError is returned by every Provider lookup miss.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

func notFound(kind string, name fmt.Stringer) error {
	return &NotFoundError{Kind: kind, Name: name.String()}
}

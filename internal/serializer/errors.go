package serializer

import "fmt"

// SerializationError names the property that could not be read.
type SerializationError struct {
	Entity   string
	Property string
	Err      error
}

func (e *SerializationError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("cannot serialize entity '%s': %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("cannot access property '%s' of '%s': %v", e.Property, e.Entity, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError names the property that could not be set. Property
// is empty when the host type cannot be instantiated.
type DeserializationError struct {
	Entity   string
	Property string
	Err      error
}

func (e *DeserializationError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("cannot instantiate entity '%s': %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("cannot set property '%s' of '%s': %v", e.Property, e.Entity, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

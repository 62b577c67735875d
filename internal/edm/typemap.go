package edm

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// EdmNamespace is the namespace of the built-in primitive types.
const EdmNamespace = "Edm"

var (
	EdmString         = NewFQN(EdmNamespace, "String")
	EdmBoolean        = NewFQN(EdmNamespace, "Boolean")
	EdmSByte          = NewFQN(EdmNamespace, "SByte")
	EdmByte           = NewFQN(EdmNamespace, "Byte")
	EdmInt16          = NewFQN(EdmNamespace, "Int16")
	EdmInt32          = NewFQN(EdmNamespace, "Int32")
	EdmInt64          = NewFQN(EdmNamespace, "Int64")
	EdmSingle         = NewFQN(EdmNamespace, "Single")
	EdmDouble         = NewFQN(EdmNamespace, "Double")
	EdmDecimal        = NewFQN(EdmNamespace, "Decimal")
	EdmDate           = NewFQN(EdmNamespace, "Date")
	EdmDateTimeOffset = NewFQN(EdmNamespace, "DateTimeOffset")
	EdmTimeOfDay      = NewFQN(EdmNamespace, "TimeOfDay")
	EdmDuration       = NewFQN(EdmNamespace, "Duration")
	EdmBinary         = NewFQN(EdmNamespace, "Binary")
	EdmGuid           = NewFQN(EdmNamespace, "Guid")
	EdmStream         = NewFQN(EdmNamespace, "Stream")
)

// primitiveTypes is populated once at package init and only read afterwards.
var primitiveTypes = map[reflect.Type]FullQualifiedName{
	reflect.TypeOf(""):               EdmString,
	reflect.TypeOf(false):            EdmBoolean,
	reflect.TypeOf(int8(0)):          EdmSByte,
	reflect.TypeOf(uint8(0)):         EdmByte,
	reflect.TypeOf(int16(0)):         EdmInt16,
	reflect.TypeOf(uint16(0)):        EdmInt32,
	reflect.TypeOf(int32(0)):         EdmInt32,
	reflect.TypeOf(uint32(0)):        EdmInt64,
	reflect.TypeOf(int(0)):           EdmInt64,
	reflect.TypeOf(int64(0)):         EdmInt64,
	reflect.TypeOf(uint(0)):          EdmInt64,
	reflect.TypeOf(uint64(0)):        EdmInt64,
	reflect.TypeOf(float32(0)):       EdmSingle,
	reflect.TypeOf(float64(0)):       EdmDouble,
	reflect.TypeOf([]byte(nil)):      EdmBinary,
	reflect.TypeOf(time.Time{}):      EdmDateTimeOffset,
	reflect.TypeOf(time.Duration(0)): EdmDuration,
	reflect.TypeOf(uuid.UUID{}):      EdmGuid,
	reflect.TypeOf(ulid.ULID{}):      EdmString,
}

// LookupPrimitive maps a host type to its primitive type. A miss is not an
// error: callers fall through to entity type resolution.
func LookupPrimitive(t reflect.Type) (FullQualifiedName, bool) {
	if t == nil {
		return FullQualifiedName{}, false
	}
	fqn, ok := primitiveTypes[t]
	return fqn, ok
}

// IsPrimitive reports whether the name belongs to the Edm namespace.
func IsPrimitive(n FullQualifiedName) bool { return n.Namespace == EdmNamespace }

// IsIntegral reports whether the primitive holds whole numbers.
func IsIntegral(n FullQualifiedName) bool {
	switch n {
	case EdmSByte, EdmByte, EdmInt16, EdmInt32, EdmInt64:
		return true
	}
	return false
}

// IsFloating reports whether the primitive holds fractional numbers.
func IsFloating(n FullQualifiedName) bool {
	switch n {
	case EdmSingle, EdmDouble, EdmDecimal:
		return true
	}
	return false
}

package dispatch

import "odatagate/internal/edm"

// SegmentKind tags a resource path segment.
type SegmentKind int

const (
	KindEntitySet SegmentKind = iota
	KindNavigation
	KindPrimitiveProperty
	KindComplexProperty
	KindValue
	KindCount
	KindAction
	KindFunction
	KindRef
	KindSingleton
	KindLambdaAll
	KindLambdaAny
	KindLambdaVariable
	KindRoot
	KindIt
)

var kindNames = [...]string{
	KindEntitySet:         "entitySet",
	KindNavigation:        "navigationProperty",
	KindPrimitiveProperty: "primitiveProperty",
	KindComplexProperty:   "complexProperty",
	KindValue:             "value",
	KindCount:             "count",
	KindAction:            "action",
	KindFunction:          "function",
	KindRef:               "ref",
	KindSingleton:         "singleton",
	KindLambdaAll:         "lambdaAll",
	KindLambdaAny:         "lambdaAny",
	KindLambdaVariable:    "lambdaVariable",
	KindRoot:              "root",
	KindIt:                "it",
}

func (k SegmentKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Segment is one parsed step of a resource path. The set of implementations
// is closed; Dispatch switches over all of them.
type Segment interface {
	Kind() SegmentKind
	segment()
}

// KeyPredicate is one key value of an entity-set segment. Name may be empty
// for the single-key shorthand "(5)".
type KeyPredicate struct {
	Name  string
	Value any
}

// Keys is an ordered list of key predicates.
type Keys []KeyPredicate

// Get returns the value of the named key.
func (k Keys) Get(name string) (any, bool) {
	for _, p := range k {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Map returns the keys as a map.
func (k Keys) Map() map[string]any {
	out := make(map[string]any, len(k))
	for _, p := range k {
		out[p.Name] = p.Value
	}
	return out
}

type (
	EntitySetSegment struct {
		EntitySet string
		Type      edm.FullQualifiedName
		Keys      Keys
	}
	NavigationSegment        struct{ Property string }
	PrimitivePropertySegment struct{ Property string }
	ComplexPropertySegment   struct{ Property string }
	ValueSegment             struct{}
	CountSegment             struct{}
	ActionSegment            struct{ Action edm.FullQualifiedName }
	FunctionSegment          struct{ Function edm.FullQualifiedName }
	RefSegment               struct{}
	SingletonSegment         struct{ Name string }
	LambdaAllSegment         struct{ Variable string }
	LambdaAnySegment         struct{ Variable string }
	LambdaVariableSegment    struct{ Name string }
	RootSegment              struct{}
	ItSegment                struct{}
)

func (EntitySetSegment) Kind() SegmentKind         { return KindEntitySet }
func (NavigationSegment) Kind() SegmentKind        { return KindNavigation }
func (PrimitivePropertySegment) Kind() SegmentKind { return KindPrimitiveProperty }
func (ComplexPropertySegment) Kind() SegmentKind   { return KindComplexProperty }
func (ValueSegment) Kind() SegmentKind             { return KindValue }
func (CountSegment) Kind() SegmentKind             { return KindCount }
func (ActionSegment) Kind() SegmentKind            { return KindAction }
func (FunctionSegment) Kind() SegmentKind          { return KindFunction }
func (RefSegment) Kind() SegmentKind               { return KindRef }
func (SingletonSegment) Kind() SegmentKind         { return KindSingleton }
func (LambdaAllSegment) Kind() SegmentKind         { return KindLambdaAll }
func (LambdaAnySegment) Kind() SegmentKind         { return KindLambdaAny }
func (LambdaVariableSegment) Kind() SegmentKind    { return KindLambdaVariable }
func (RootSegment) Kind() SegmentKind              { return KindRoot }
func (ItSegment) Kind() SegmentKind                { return KindIt }

func (EntitySetSegment) segment()         {}
func (NavigationSegment) segment()        {}
func (PrimitivePropertySegment) segment() {}
func (ComplexPropertySegment) segment()   {}
func (ValueSegment) segment()             {}
func (CountSegment) segment()             {}
func (ActionSegment) segment()            {}
func (FunctionSegment) segment()          {}
func (RefSegment) segment()               {}
func (SingletonSegment) segment()         {}
func (LambdaAllSegment) segment()         {}
func (LambdaAnySegment) segment()         {}
func (LambdaVariableSegment) segment()    {}
func (RootSegment) segment()              {}
func (ItSegment) segment()                {}

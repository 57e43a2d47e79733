package event

import "github.com/balbirthomas/operator/internal/ir"

// Kind identifies an event variant.
// Convention: "relation.<state>".
type Kind string

const (
	KindAvailable Kind = "relation.available"
	KindInvalid   Kind = "relation.invalid"
	KindBroken    Kind = "relation.broken"
)

// Kinds lists every event kind in declaration order.
var Kinds = []Kind{KindAvailable, KindInvalid, KindBroken}

// Short returns the kind without its category prefix ("available").
func (k Kind) Short() string {
	switch k {
	case KindAvailable:
		return "available"
	case KindInvalid:
		return "invalid"
	case KindBroken:
		return "broken"
	}
	return string(k)
}

// ParseKind accepts either the full or the short form of a kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if s == string(k) || s == k.Short() {
			return k, true
		}
	}
	return "", false
}

// Event is the sealed event variant. Only types in this package implement it.
type Event interface {
	Kind() Kind
	Relation() ir.RelationDescriptor
	isEvent()
}

// Available reports that the provider on a relation instance offers every
// required capability at the exact required version.
type Available struct {
	Rel      ir.RelationDescriptor
	Config   string
	Ready    bool
	Provides ir.CapabilitySet
}

// Invalid reports that the provider's payload is absent, undecodable or does
// not satisfy the required capabilities.
type Invalid struct {
	Rel ir.RelationDescriptor
}

// Broken reports that the relation instance was torn down. It is terminal.
type Broken struct {
	Rel ir.RelationDescriptor
}

func (Available) Kind() Kind { return KindAvailable }
func (Invalid) Kind() Kind   { return KindInvalid }
func (Broken) Kind() Kind    { return KindBroken }

func (e Available) Relation() ir.RelationDescriptor { return e.Rel }
func (e Invalid) Relation() ir.RelationDescriptor   { return e.Rel }
func (e Broken) Relation() ir.RelationDescriptor    { return e.Rel }

func (Available) isEvent() {}
func (Invalid) isEvent()   {}
func (Broken) isEvent()    {}

// Data returns the event's persisted attributes. Only Available carries any.
func Data(e Event) map[string]any {
	a, ok := e.(Available)
	if !ok {
		return nil
	}
	provides := make(map[string]any, len(a.Provides))
	for name, version := range a.Provides {
		provides[name] = version
	}
	return map[string]any{
		"config":   a.Config,
		"ready":    a.Ready,
		"provides": provides,
	}
}

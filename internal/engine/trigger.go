package engine

import (
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
)

// TriggerKind names a lifecycle trigger.
type TriggerKind string

const (
	// TriggerRelationJoined fires when a remote unit joins a relation instance.
	TriggerRelationJoined TriggerKind = "relation-joined"
	// TriggerRelationChanged fires when an application bucket on a relation
	// instance changes. Trigger.App names the application that wrote.
	TriggerRelationChanged TriggerKind = "relation-changed"
	// TriggerRelationBroken fires once when a relation instance is torn down.
	TriggerRelationBroken TriggerKind = "relation-broken"
	// TriggerUpgrade fires after the local application is upgraded.
	TriggerUpgrade TriggerKind = "upgrade"
	// TriggerLeaderElected fires when the local unit becomes leader.
	TriggerLeaderElected TriggerKind = "leader-elected"
)

// TriggerKinds lists every trigger kind.
var TriggerKinds = []TriggerKind{
	TriggerRelationJoined,
	TriggerRelationChanged,
	TriggerRelationBroken,
	TriggerUpgrade,
	TriggerLeaderElected,
}

// Valid reports whether k is a known trigger kind.
func (k TriggerKind) Valid() bool {
	for _, known := range TriggerKinds {
		if k == known {
			return true
		}
	}
	return false
}

// RelationScoped reports whether triggers of this kind target one relation
// instance.
func (k TriggerKind) RelationScoped() bool {
	switch k {
	case TriggerRelationJoined, TriggerRelationChanged, TriggerRelationBroken:
		return true
	}
	return false
}

// Trigger is one lifecycle occurrence delivered to handlers.
type Trigger struct {
	// ID and Seq are assigned by the engine when empty.
	ID  string `json:"id"`
	Seq int64  `json:"seq"`

	Kind TriggerKind `json:"kind"`

	// Relation is zero for upgrade and leader-elected.
	Relation ir.RelationDescriptor `json:"relation"`

	// App is the application whose data changed (relation-changed only).
	App string `json:"app,omitempty"`

	// Unit is the remote unit that joined (relation-joined only).
	Unit string `json:"unit,omitempty"`
}

func (t Trigger) String() string {
	if t.Kind.RelationScoped() {
		return fmt.Sprintf("%s(%s)", t.Kind, t.Relation)
	}
	return string(t.Kind)
}

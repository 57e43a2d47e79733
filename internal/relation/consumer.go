package relation

import (
	"context"
	"log/slog"

	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/event"
	"github.com/balbirthomas/operator/internal/ir"
)

// State is a Consumer's view of one relation instance.
type State int

const (
	StateUnset State = iota
	StateAvailable
	StateInvalid
	// StateBroken is terminal.
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateUnset:
		return "unset"
	case StateAvailable:
		return "available"
	case StateInvalid:
		return "invalid"
	case StateBroken:
		return "broken"
	}
	return "unknown"
}

// Consumer validates a provider's published capabilities against the
// capabilities the local application requires, and emits one event per
// relation instance per trigger.
type Consumer struct {
	bus          *Bus
	relationName string
	required     ir.CapabilitySet
	emitter      *event.Emitter
	states       map[int]State
	logger       *slog.Logger
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the logger (default slog.Default()).
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = l }
}

// WithEmitter delivers events through an existing emitter instead of a new one.
func WithEmitter(em *event.Emitter) ConsumerOption {
	return func(c *Consumer) { c.emitter = em }
}

// NewConsumer creates a consumer of relationName requiring the given
// capabilities. Observers subscribe via On().
func NewConsumer(bus *Bus, relationName string, required ir.CapabilitySet, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		bus:          bus,
		relationName: relationName,
		required:     required.Clone(),
		states:       make(map[int]State),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.emitter == nil {
		c.emitter = event.NewEmitter(c.logger)
	}
	c.logger = c.logger.With("relation", relationName, "app", bus.App(), "role", "consumer")
	return c
}

// Name implements engine.Handler.
func (c *Consumer) Name() string { return "consumer:" + c.relationName }

// On returns the emitter observers subscribe to.
func (c *Consumer) On() *event.Emitter { return c.emitter }

// Required returns a copy of the required capability set.
func (c *Consumer) Required() ir.CapabilitySet { return c.required.Clone() }

// SetRequired replaces the required set. It takes effect at the next
// evaluation; nothing is re-evaluated here.
func (c *Consumer) SetRequired(required ir.CapabilitySet) {
	c.required = required.Clone()
}

// State returns the last state derived for a relation instance.
func (c *Consumer) State(relationID int) State {
	return c.states[relationID]
}

// HandleTrigger implements engine.Handler.
//
//   - relation-changed by the remote application: evaluate that instance
//   - relation-broken: emit Broken once
//   - upgrade: re-evaluate every live instance
//
// Triggers for broken instances are ignored, including instances torn down
// before this Consumer was created.
func (c *Consumer) HandleTrigger(ctx context.Context, t engine.Trigger) error {
	switch t.Kind {
	case engine.TriggerRelationChanged:
		if t.Relation.Name != c.relationName {
			return nil
		}
		if broken, err := c.broken(ctx, t.Relation.ID); err != nil || broken {
			return err
		}
		// Our own bucket changing says nothing about the provider.
		if t.App != "" && t.App != t.Relation.RemoteApp {
			return nil
		}
		return c.evaluate(ctx, t.Relation)

	case engine.TriggerRelationBroken:
		if t.Relation.Name != c.relationName {
			return nil
		}
		if broken, err := c.broken(ctx, t.Relation.ID); err != nil || broken {
			return err
		}
		c.states[t.Relation.ID] = StateBroken
		c.logger.Info("relation broken", "relation_id", t.Relation.ID)
		c.emitter.Emit(event.Broken{Rel: t.Relation})
		return nil

	case engine.TriggerUpgrade:
		rels, err := c.bus.Relations(ctx, c.relationName)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			if c.states[rel.ID] == StateBroken {
				continue
			}
			if err := c.evaluate(ctx, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

// broken reports whether rel is in the terminal state, consulting the bus for
// instances this Consumer has not seen torn down. The bus flag is set by the
// host after relation-broken is handled.
func (c *Consumer) broken(ctx context.Context, relationID int) (bool, error) {
	if c.states[relationID] == StateBroken {
		return true, nil
	}
	broken, err := c.bus.Broken(ctx, relationID)
	if err != nil {
		return false, err
	}
	if broken {
		c.states[relationID] = StateBroken
	}
	return broken, nil
}

// evaluate reads the provider's payload on rel and emits the resulting event.
// Only bus failures are returned; bad data yields Invalid.
func (c *Consumer) evaluate(ctx context.Context, rel ir.RelationDescriptor) error {
	log := c.logger.With("relation_id", rel.ID, "remote_app", rel.RemoteApp)

	data, _, err := c.bus.ReadApplicationData(ctx, rel.ID, rel.RemoteApp)
	if err != nil {
		return err
	}

	raw, ok := data[ir.ProviderDataField]
	if !ok {
		log.Error("provider data invalid", "error", &PayloadDecodeError{Field: ir.ProviderDataField, Reason: DecodeAbsent})
		c.invalid(rel)
		return nil
	}

	payload, err := DecodePayload(raw)
	if err != nil {
		log.Error("provider data invalid", "error", err)
		c.invalid(rel)
		return nil
	}

	verdict := Evaluate(payload.Provides, c.required)
	if verdict.Kind == VerdictInvalid {
		for _, m := range verdict.Mismatches {
			log.Error("capability version mismatch",
				"capability", m.Capability,
				"required", m.Required,
				"offered", m.Offered,
				"missing", m.Missing,
			)
		}
		log.Debug("provider rejected", "mismatches", mismatchSummary(verdict.Mismatches))
		c.invalid(rel)
		return nil
	}

	c.states[rel.ID] = StateAvailable
	log.Info("provider available", "ready", payload.Ready)
	c.emitter.Emit(event.Available{
		Rel:      rel,
		Config:   payload.Config,
		Ready:    payload.Ready,
		Provides: payload.Provides,
	})
	return nil
}

func (c *Consumer) invalid(rel ir.RelationDescriptor) {
	c.states[rel.ID] = StateInvalid
	c.emitter.Emit(event.Invalid{Rel: rel})
}

var _ engine.Handler = (*Consumer)(nil)

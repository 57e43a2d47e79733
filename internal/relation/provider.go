package relation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/ir"
)

// Provider publishes the local application's capabilities on every live
// instance of one relation name.
//
// State changes (ready flag, capabilities, config token) publish immediately.
// Publishing is silently skipped on non-leader units.
type Provider struct {
	bus          *Bus
	relationName string
	capabilities ir.CapabilitySet
	ready        bool
	config       string
	logger       *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithReady sets the initial ready flag (default false).
func WithReady(ready bool) ProviderOption {
	return func(p *Provider) { p.ready = ready }
}

// WithConfig sets the initial config token (default empty).
func WithConfig(token string) ProviderOption {
	return func(p *Provider) { p.config = token }
}

// WithProviderLogger sets the logger (default slog.Default()).
func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(p *Provider) { p.logger = l }
}

// NewProvider creates a provider for relationName offering capabilities.
// Nothing is published until a trigger or setter asks for it.
func NewProvider(bus *Bus, relationName string, capabilities ir.CapabilitySet, opts ...ProviderOption) *Provider {
	p := &Provider{
		bus:          bus,
		relationName: relationName,
		capabilities: capabilities.Clone(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("relation", relationName, "app", bus.App(), "role", "provider")
	return p
}

// Name implements engine.Handler.
func (p *Provider) Name() string { return "provider:" + p.relationName }

// Payload returns the state that would be published now.
func (p *Provider) Payload() ir.ProviderPayload {
	return ir.ProviderPayload{
		Provides: p.capabilities.Clone(),
		Ready:    p.ready,
		Config:   p.config,
	}
}

// IsReady reports the local ready flag.
func (p *Provider) IsReady() bool { return p.ready }

// SetReady updates the ready flag and publishes.
func (p *Provider) SetReady(ctx context.Context, ready bool) error {
	p.ready = ready
	return p.Publish(ctx)
}

// Ready marks the provider ready and publishes.
func (p *Provider) Ready(ctx context.Context) error { return p.SetReady(ctx, true) }

// Unready marks the provider not ready and publishes.
func (p *Provider) Unready(ctx context.Context) error { return p.SetReady(ctx, false) }

// SetCapabilities replaces the offered capability set and publishes.
func (p *Provider) SetCapabilities(ctx context.Context, capabilities ir.CapabilitySet) error {
	p.capabilities = capabilities.Clone()
	return p.Publish(ctx)
}

// SetCapability offers name at version, replacing any previous version, and
// publishes.
func (p *Provider) SetCapability(ctx context.Context, name, version string) error {
	if name == "" {
		return fmt.Errorf("set capability: empty name")
	}
	p.capabilities[name] = version
	return p.Publish(ctx)
}

// SetConfig replaces the opaque config token and publishes.
func (p *Provider) SetConfig(ctx context.Context, token string) error {
	p.config = token
	return p.Publish(ctx)
}

// Publish writes the current payload to every live relation instance.
// Skipped without error when the local unit is not leader.
func (p *Provider) Publish(ctx context.Context) error {
	if !p.bus.IsLeader() {
		p.logger.Debug("publish skipped: not leader")
		return nil
	}
	rels, err := p.bus.Relations(ctx, p.relationName)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := p.publishTo(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) publishTo(ctx context.Context, rel ir.RelationDescriptor) error {
	payload := p.Payload()
	value, err := EncodePayload(payload)
	if err != nil {
		return err
	}
	digest, err := ir.PayloadDigest(payload)
	if err != nil {
		return err
	}

	// Leadership is re-checked inside the write; losing it here is not a failure.
	err = p.bus.WriteApplicationData(ctx, rel.ID, ir.ProviderDataField, value)
	if IsNotLeader(err) {
		p.logger.Debug("publish skipped: not leader", "relation_id", rel.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("publish to %s: %w", rel, err)
	}

	p.logger.Info("provider data published",
		"relation_id", rel.ID,
		"ready", p.ready,
		"capabilities", len(p.capabilities),
		"digest", ir.ShortDigest(digest),
	)
	return nil
}

// HandleTrigger implements engine.Handler.
//
//   - relation-joined: publish to that instance
//   - leader-elected, upgrade: republish everywhere
func (p *Provider) HandleTrigger(ctx context.Context, t engine.Trigger) error {
	switch t.Kind {
	case engine.TriggerRelationJoined:
		if t.Relation.Name != p.relationName {
			return nil
		}
		if !p.bus.IsLeader() {
			p.logger.Debug("publish skipped: not leader", "relation_id", t.Relation.ID)
			return nil
		}
		return p.publishTo(ctx, t.Relation)
	case engine.TriggerLeaderElected, engine.TriggerUpgrade:
		return p.Publish(ctx)
	}
	return nil
}

var _ engine.Handler = (*Provider)(nil)

package harness

import (
	"context"
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/relation"
)

// Run executes a scenario against a fresh in-memory store and evaluates its
// assertions. The returned error covers failures to execute a step; failed
// assertions are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	opts = append([]Option{WithLeader(scenario.Leader)}, opts...)
	h, err := New(scenario.RoleConfig(), opts...)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	ctx := context.Background()
	aliases := make(map[string]int)
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, aliases); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	result := NewResult()
	result.Trace = h.Trace()
	actx := &AssertionContext{Ctx: ctx, Harness: h, Relations: aliases}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step, aliases map[string]int) error {
	relID := aliases[step.Relation]

	switch step.Action {
	case StepAddRelation:
		id, err := h.AddRelation(ctx, h.role.Relation.Name, step.RemoteApp)
		if err != nil {
			return err
		}
		aliases[step.Relation] = id
		return nil

	case StepAddUnit:
		return h.AddRelationUnit(ctx, relID, step.Unit)

	case StepUpdateData:
		app := step.App
		if app == "" {
			rel, err := h.store.ReadRelation(ctx, relID)
			if err != nil {
				return err
			}
			app = rel.RemoteApp
		}
		data := step.Data
		if step.Payload != nil {
			encoded, err := relation.EncodePayload(ir.ProviderPayload{
				Provides: ir.CapabilitySet(step.Payload.Provides),
				Ready:    step.Payload.Ready,
				Config:   step.Payload.Config,
			})
			if err != nil {
				return err
			}
			data = map[string]string{ir.ProviderDataField: encoded}
		}
		return h.UpdateRelationData(ctx, relID, app, data)

	case StepSetReady:
		return h.provider.SetReady(ctx, *step.Ready)

	case StepSetCapabilities:
		return h.provider.SetCapabilities(ctx, ir.CapabilitySet(step.Capabilities))

	case StepSetConfig:
		return h.provider.SetConfig(ctx, *step.Config)

	case StepSetRequired:
		h.consumer.SetRequired(ir.CapabilitySet(step.Capabilities))
		return nil

	case StepSetLeader:
		return h.SetLeader(ctx, *step.Leader)

	case StepUpgrade:
		return h.Upgrade(ctx)

	case StepRemoveRelation:
		return h.RemoveRelation(ctx, relID)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

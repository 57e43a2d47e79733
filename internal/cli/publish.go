package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balbirthomas/operator/internal/config"
	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/relation"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	RoleFile   string
	RelationID int
	Leader     bool

	// IDs overrides the trigger ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.TriggerIDGenerator
}

// PublishedRelation is the provider_data left on one relation.
type PublishedRelation struct {
	Relation string `json:"relation"`
	Value    string `json:"value,omitempty"`
}

// PublishResult describes one publish run.
type PublishResult struct {
	App       string              `json:"app"`
	TriggerID string              `json:"trigger_id"`
	Trigger   string              `json:"trigger"`
	Skipped   bool                `json:"skipped"`
	Relations []PublishedRelation `json:"relations"`
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PublishOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a provider's capabilities to the database",
		Long: `Host the provider described by a role file against the relation
database and publish its payload.

With --relation-id the provider handles relation-joined for that relation
only; otherwise it handles upgrade and republishes to every live relation
with its relation name. Nothing is written unless --leader is given.

Examples:
  relnego publish --role provider.cue --relation-id 1 --leader
  relnego publish --db ./relnego.db --role provider.toml --leader --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RoleFile, "role", "", "provider role file (required)")
	cmd.Flags().IntVar(&opts.RelationID, "relation-id", 0, "publish to this relation only")
	cmd.Flags().BoolVar(&opts.Leader, "leader", false, "act as the application leader")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runPublish(opts *PublishOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()

	role, err := loadRole(opts.RoleFile, config.RoleProvider)
	if err != nil {
		return err
	}
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := relation.NewBus(st, relation.LeaderFunc(func() bool { return opts.Leader }), role.App)
	provider := relation.NewProvider(bus, role.Relation.Name, role.CapabilitySet(),
		relation.WithReady(role.Ready),
		relation.WithConfig(role.Config),
		relation.WithProviderLogger(logger.With("app", role.App)),
	)

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDs))
	}
	eng := engine.New(engineOpts...)
	eng.Register(provider)

	trigger := engine.Trigger{Kind: engine.TriggerUpgrade}
	var targets []ir.RelationDescriptor
	if opts.RelationID != 0 {
		rel, err := st.ReadRelation(ctx, opts.RelationID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read relation", err)
		}
		if rel.Broken {
			return NewExitError(ExitCommandError, fmt.Sprintf("relation %s is broken", rel.RelationDescriptor))
		}
		if rel.Name != role.Relation.Name {
			return NewExitError(ExitCommandError, fmt.Sprintf("relation %s is not a %q relation", rel.RelationDescriptor, role.Relation.Name))
		}
		trigger = engine.Trigger{Kind: engine.TriggerRelationJoined, Relation: rel.RelationDescriptor}
		targets = []ir.RelationDescriptor{rel.RelationDescriptor}
	} else {
		targets, err = bus.Relations(ctx, role.Relation.Name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list relations", err)
		}
	}

	dispatched, err := eng.Dispatch(ctx, trigger)
	if err != nil {
		return WrapExitError(ExitFailure, "publish failed", err)
	}

	result := PublishResult{
		App:       role.App,
		TriggerID: dispatched.ID,
		Trigger:   dispatched.String(),
		Skipped:   !opts.Leader,
		Relations: make([]PublishedRelation, 0, len(targets)),
	}
	for _, rel := range targets {
		data, _, err := bus.ReadApplicationData(ctx, rel.ID, role.App)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read back relation data", err)
		}
		result.Relations = append(result.Relations, PublishedRelation{
			Relation: rel.String(),
			Value:    data[ir.ProviderDataField],
		})
	}

	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).
		Success(result, publishText(result))
}

func publishText(r PublishResult) string {
	if r.Skipped {
		return fmt.Sprintf("%s is not leader: nothing published", r.App)
	}
	if len(r.Relations) == 0 {
		return fmt.Sprintf("%s has no live relations", r.App)
	}
	var sb strings.Builder
	for i, rel := range r.Relations {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s %s=%s", rel.Relation, ir.ProviderDataField, rel.Value)
	}
	return sb.String()
}

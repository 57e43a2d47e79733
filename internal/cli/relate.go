package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balbirthomas/operator/internal/config"
	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/store"
)

// RelateOptions holds flags for the relate command.
type RelateOptions struct {
	*RootOptions
	Name      string
	Interface string
	RemoteApp string
	Units     []string
}

// RelateResult describes the relation instance that was created.
type RelateResult struct {
	Relation ir.RelationDescriptor `json:"relation"`
	Units    []string              `json:"units"`
}

// NewRelateCommand creates the relate command.
func NewRelateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relate",
		Short: "Establish a relation instance in the database",
		Long: `Create a relation instance towards a remote application and record
the remote units that joined it. The new relation id is printed.

Examples:
  relnego relate --db ./relnego.db --name service --interface svc --remote-app webapp
  relnego relate --name service --interface svc --remote-app webapp --unit webapp/0 --unit webapp/1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "relation name (required)")
	cmd.Flags().StringVar(&opts.Interface, "interface", "", "relation interface (required)")
	cmd.Flags().StringVar(&opts.RemoteApp, "remote-app", "", "remote application (required)")
	cmd.Flags().StringSliceVar(&opts.Units, "unit", nil, "remote unit that joined (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("interface")
	_ = cmd.MarkFlagRequired("remote-app")

	return cmd
}

func runRelate(opts *RelateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	rel, err := st.CreateRelation(ctx, opts.Name, opts.Interface, opts.RemoteApp)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create relation", err)
	}
	units := []string{}
	for _, unit := range opts.Units {
		if err := st.AddRelationUnit(ctx, rel.ID, unit); err != nil {
			return WrapExitError(ExitCommandError, "failed to add unit", err)
		}
		units = append(units, unit)
	}
	opts.logger().Info("relation created", "relation", rel.String(), "remote_app", rel.RemoteApp, "units", len(units))

	text := fmt.Sprintf("%d", rel.ID)
	if opts.Verbose {
		text = fmt.Sprintf("%d (%s towards %s; units: %s)", rel.ID, rel, rel.RemoteApp, strings.Join(units, ", "))
	}
	return newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()).
		Success(RelateResult{Relation: rel, Units: units}, text)
}

// openStore opens the relation database named by the settings.
func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.dbPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// loadRole loads a role file and checks it hosts the wanted role.
func loadRole(path string, want config.Role) (*config.RoleConfig, error) {
	role, err := config.LoadRole(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid role file", err)
	}
	if want != "" && role.Role != want {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("role file %s describes a %s, want %s", path, role.Role, want))
	}
	return role, nil
}

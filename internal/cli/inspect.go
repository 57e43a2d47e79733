package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Relation string // relation name filter
	App      string // event log filter
}

// RelationView is one live relation instance with its units and data.
type RelationView struct {
	ir.RelationDescriptor
	Units     []string                     `json:"units"`
	Data      map[string]map[string]string `json:"data"`
	Revisions map[string]map[string]int64  `json:"revisions"`
}

// InspectResult is the database content shown by inspect.
type InspectResult struct {
	Relations []RelationView      `json:"relations"`
	Events    []store.EventRecord `json:"events"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show relations, relation data and recorded events",
		Long: `Print every live relation instance in the database with its
remote units and each application's bucket, followed by the event log
recorded by consumer applications.

Examples:
  relnego inspect --db ./relnego.db
  relnego inspect --relation service --app webapp --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Relation, "relation", "", "only show relations with this name")
	cmd.Flags().StringVar(&opts.App, "app", "", "only show events recorded by this application")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := collectInspect(ctx, st, opts.Relation, opts.App)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read database", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if formatter.JSON() {
		return formatter.Success(result, "")
	}
	return writeInspectText(cmd, result)
}

func collectInspect(ctx context.Context, st *store.Store, name, app string) (InspectResult, error) {
	rels, err := st.ListRelations(ctx, name)
	if err != nil {
		return InspectResult{}, err
	}

	result := InspectResult{Relations: make([]RelationView, 0, len(rels))}
	for _, rel := range rels {
		units, err := st.ReadRelationUnits(ctx, rel.ID)
		if err != nil {
			return InspectResult{}, err
		}
		data, err := st.ReadRelationData(ctx, rel.ID)
		if err != nil {
			return InspectResult{}, err
		}
		revisions := make(map[string]map[string]int64, len(data))
		for app, bucket := range data {
			revisions[app] = make(map[string]int64, len(bucket))
			for field := range bucket {
				rev, err := st.ReadFieldRevision(ctx, rel.ID, app, field)
				if err != nil {
					return InspectResult{}, err
				}
				revisions[app][field] = rev
			}
		}
		result.Relations = append(result.Relations, RelationView{
			RelationDescriptor: rel,
			Units:              units,
			Data:               data,
			Revisions:          revisions,
		})
	}

	result.Events, err = st.ReadEvents(ctx, app)
	if err != nil {
		return InspectResult{}, err
	}
	return result, nil
}

func writeInspectText(cmd *cobra.Command, result InspectResult) error {
	w := cmd.OutOrStdout()
	if len(result.Relations) == 0 {
		fmt.Fprintln(w, "No live relations.")
	}
	for _, rel := range result.Relations {
		fmt.Fprintf(w, "%s interface=%s remote_app=%s units=%v\n", rel.RelationDescriptor, rel.Interface, rel.RemoteApp, rel.Units)
		for _, app := range slices.Sorted(maps.Keys(rel.Data)) {
			bucket := rel.Data[app]
			for _, field := range slices.Sorted(maps.Keys(bucket)) {
				fmt.Fprintf(w, "  %s.%s = %s (rev %d)\n", app, field, bucket[field], rel.Revisions[app][field])
			}
		}
	}

	fmt.Fprintln(w)
	if len(result.Events) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tAPP\tRELATION\tEVENT\tDATA")
	for _, ev := range result.Events {
		data := "-"
		if len(ev.Data) > 0 {
			encoded, err := ir.MarshalCanonical(ev.Data)
			if err != nil {
				return err
			}
			data = string(encoded)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", ev.Seq, ev.App, ev.RelationID, ev.Kind, data)
	}
	return tw.Flush()
}

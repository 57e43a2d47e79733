package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/balbirthomas/operator/internal/config"
	"github.com/balbirthomas/operator/internal/engine"
	"github.com/balbirthomas/operator/internal/event"
	"github.com/balbirthomas/operator/internal/relation"
	"github.com/balbirthomas/operator/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RoleFile string
	Leader   bool

	// IDs overrides the trigger ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.TriggerIDGenerator
}

// TriggerLine is one trigger read from input.
type TriggerLine struct {
	Kind       string `json:"kind"`
	RelationID int    `json:"relation_id,omitempty"`
	App        string `json:"app,omitempty"`
	Unit       string `json:"unit,omitempty"`
}

// RunResult summarizes a run.
type RunResult struct {
	App      string              `json:"app"`
	Role     string              `json:"role"`
	Triggers int                 `json:"triggers"`
	Events   []store.EventRecord `json:"events"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Host an application and feed it lifecycle triggers",
		Long: `Host the provider or consumer described by a role file against the
relation database, and dispatch lifecycle triggers read from standard
input, one JSON object per line:

  {"kind": "relation-joined", "relation_id": 1, "unit": "webapp/0"}
  {"kind": "relation-changed", "relation_id": 1, "app": "database"}
  {"kind": "relation-broken", "relation_id": 1}
  {"kind": "upgrade"}
  {"kind": "leader-elected"}

Triggers are queued and dispatched one at a time in arrival order. Joined
units are recorded, broken relations are marked broken, and leader-elected
makes the host leader. Consumer events are printed and appended to the
event log. The run ends at end of input or on interrupt.

Example:
  relnego run --db ./relnego.db --role consumer.yaml < triggers.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RoleFile, "role", "", "role file (required)")
	cmd.Flags().BoolVar(&opts.Leader, "leader", false, "start as the application leader")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

// host applies the lifecycle side of each trigger around the application.
type host struct {
	store    *store.Store
	leader   bool
	triggers int
}

func (h *host) IsLeader() bool { return h.leader }

// before runs ahead of the application's handler.
func (h *host) before(ctx context.Context, t engine.Trigger) error {
	h.triggers++
	switch t.Kind {
	case engine.TriggerLeaderElected:
		h.leader = true
	case engine.TriggerRelationJoined:
		if t.Unit != "" {
			return h.store.AddRelationUnit(ctx, t.Relation.ID, t.Unit)
		}
	}
	return nil
}

// after runs once the application has handled the trigger.
func (h *host) after(ctx context.Context, t engine.Trigger) error {
	if t.Kind == engine.TriggerRelationBroken {
		return h.store.MarkRelationBroken(ctx, t.Relation.ID)
	}
	return nil
}

func runHost(opts *RunOptions, cmd *cobra.Command) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := opts.logger()
	role, err := loadRole(opts.RoleFile, "")
	if err != nil {
		return err
	}
	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Resume numbering so the event log stays ordered across runs.
	lastSeq, err := st.MaxEventSeq(ctx, role.App)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read event log", err)
	}
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithClock(engine.NewClockAt(lastSeq)),
	}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDs))
	}
	eng := engine.New(engineOpts...)

	h := &host{store: st, leader: opts.Leader}
	appLogger := logger.With("app", role.App)
	bus := relation.NewBus(st, h, role.App)
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := RunResult{App: role.App, Role: string(role.Role), Events: []store.EventRecord{}}

	eng.Register(engine.HandlerFunc{Label: "host", Fn: h.before})
	switch role.Role {
	case config.RoleProvider:
		eng.Register(relation.NewProvider(bus, role.Relation.Name, role.CapabilitySet(),
			relation.WithReady(role.Ready),
			relation.WithConfig(role.Config),
			relation.WithProviderLogger(appLogger),
		))
	case config.RoleConsumer:
		consumer := relation.NewConsumer(bus, role.Relation.Name, role.CapabilitySet(),
			relation.WithConsumerLogger(appLogger),
		)
		consumer.On().SubscribeAll(func(ev event.Event) {
			rec := store.EventRecord{
				App:        role.App,
				RelationID: ev.Relation().ID,
				Kind:       ev.Kind().Short(),
				Data:       event.Data(ev),
				Seq:        eng.Clock().Current(),
			}
			id, err := st.AppendEvent(ctx, rec)
			if err != nil {
				logger.Error("failed to record event", "event", ev.Kind(), "error", err)
			}
			rec.ID = id
			if rec.Data == nil {
				rec.Data = map[string]any{}
			}
			result.Events = append(result.Events, rec)
			if !formatter.JSON() {
				fmt.Fprintf(formatter.Writer, "%s %s\n", ev.Kind().Short(), ev.Relation())
			}
		})
		eng.Register(consumer)
	}
	eng.Register(engine.HandlerFunc{Label: "host-teardown", Fn: h.after})

	fed := make(chan error, 1)
	go func() {
		fed <- feedTriggers(ctx, cmd.InOrStdin(), st, eng)
		eng.Stop()
	}()

	logger.Info("host started", "app", role.App, "role", role.Role, "db", opts.dbPath())
	if err := eng.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("host stopped by signal")
			return nil
		}
		return WrapExitError(ExitFailure, "engine error", err)
	}
	if err := <-fed; err != nil {
		return WrapExitError(ExitCommandError, "invalid trigger input", err)
	}
	result.Triggers = h.triggers

	text := fmt.Sprintf("Dispatched %d trigger(s), %d event(s).", result.Triggers, len(result.Events))
	return formatter.Success(result, text)
}

// feedTriggers reads trigger lines until end of input and enqueues them.
// Blank lines and lines starting with # are skipped.
func feedTriggers(ctx context.Context, r io.Reader, st *store.Store, eng *engine.Engine) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		t, err := parseTriggerLine(ctx, line, st)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !eng.Enqueue(t) {
			return nil
		}
	}
	return scanner.Err()
}

func parseTriggerLine(ctx context.Context, line string, st *store.Store) (engine.Trigger, error) {
	var tl TriggerLine
	dec := json.NewDecoder(strings.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tl); err != nil {
		return engine.Trigger{}, fmt.Errorf("parse trigger: %w", err)
	}

	kind := engine.TriggerKind(tl.Kind)
	if !kind.Valid() {
		return engine.Trigger{}, fmt.Errorf("unknown trigger kind %q", tl.Kind)
	}
	t := engine.Trigger{Kind: kind, App: tl.App, Unit: tl.Unit}
	if !kind.RelationScoped() {
		return t, nil
	}

	if tl.RelationID == 0 {
		return engine.Trigger{}, fmt.Errorf("%s requires relation_id", kind)
	}
	rel, err := st.ReadRelation(ctx, tl.RelationID)
	if err != nil {
		return engine.Trigger{}, err
	}
	t.Relation = rel.RelationDescriptor
	return t, nil
}

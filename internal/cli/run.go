package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/petrijr/taskflow/internal/definition"
	"github.com/petrijr/taskflow/internal/engine"
	"github.com/petrijr/taskflow/pkg/api"
	"github.com/petrijr/taskflow/pkg/natsexport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	Store string
	DSN   string

	Actor       string
	BusinessKey string
	Name        string
	Variables   map[string]string

	// Complete completes every task the actor is assigned until the
	// instance ends or waits for someone else.
	Complete bool

	NATSURL string
}

// RunResult is the JSON result of the run command.
type RunResult struct {
	Instance InstanceView         `json:"instance"`
	Events   []natsexport.Message `json:"events"`
}

// InstanceView is the JSON form of a process instance.
type InstanceView struct {
	ID              string         `json:"id"`
	DefinitionKey   string         `json:"definition_key"`
	BusinessKey     string         `json:"business_key,omitempty"`
	Name            string         `json:"name,omitempty"`
	Initiator       string         `json:"initiator"`
	Status          string         `json:"status"`
	CurrentActivity string         `json:"current_activity"`
	Variables       map[string]any `json:"variables,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <definition.yaml>",
		Short: "Start a process instance and print its event trace",
		Long: `Deploy a process definition, start one instance of it and print every
runtime event it emits.

Example:
  taskflow run ./usertask.yaml --actor user1 --complete
  taskflow run ./approval.yaml --store sqlite --dsn ./taskflow.db --var amount=10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Store, "store", "memory", "backend (memory|sqlite|postgres|redis|mongo)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "sqlite file, postgres/mongo connection string or redis address")
	cmd.Flags().StringVar(&opts.Actor, "actor", "user1", "actor starting the process")
	cmd.Flags().StringVar(&opts.BusinessKey, "business-key", "", "business key of the instance")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name of the instance")
	cmd.Flags().StringToStringVar(&opts.Variables, "var", nil, "process variable (key=value, repeatable)")
	cmd.Flags().BoolVar(&opts.Complete, "complete", false, "complete the actor's tasks until the process stops")
	cmd.Flags().StringVar(&opts.NATSURL, "nats-url", "", "also publish events to this NATS server")

	return cmd
}

func runProcess(ctx context.Context, opts *RunOptions, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	// Diagnostics go to stderr so they never corrupt JSON output.
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if !isValidStore(opts.Store) {
		return WrapExitError(ExitCommandError, "invalid flag",
			fmt.Errorf("unknown store %q: must be one of %v", opts.Store, ValidStores))
	}

	def, err := definition.LoadFile(file, definition.BuiltinActions())
	if err != nil {
		_ = out.Error(ErrCodeInvalidDefinition, err.Error())
		return WrapExitError(ExitFailure, "invalid definition", err)
	}

	p, closeStore, err := openPersistence(ctx, opts.Store, opts.DSN)
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error())
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer closeStore()
	logger.Debug("store opened", "store", opts.Store)

	rt := engine.NewEngineWithConfig(engine.Config{Persistence: p, Logger: logger})
	if opts.Verbose {
		rt.RegisterListener(api.NewLoggingListener(logger))
	}
	if opts.NATSURL != "" {
		nc, err := natsexport.Connect(opts.NATSURL, logger)
		if err != nil {
			_ = out.Error(ErrCodeStore, err.Error())
			return WrapExitError(ExitCommandError, "connect nats", err)
		}
		defer nc.Close()
		rt.RegisterListener(natsexport.New(nc))
	}

	if err := rt.Deploy(def); err != nil {
		_ = out.Error(ErrCodeInvalidDefinition, err.Error())
		return WrapExitError(ExitFailure, "deploy", err)
	}

	inst, err := drive(ctx, rt, def.Key, opts)
	if err != nil {
		_ = out.Error(ErrCodeRuntime, err.Error())
		return WrapExitError(ExitFailure, "run process", err)
	}

	events := rt.Events()
	if out.JSON() {
		msgs := make([]natsexport.Message, len(events))
		for i, ev := range events {
			msgs[i] = natsexport.NewMessage(ev)
		}
		return out.Success(RunResult{Instance: newInstanceView(inst), Events: msgs})
	}

	for _, ev := range events {
		out.Printf("%s %s\n", ev.Type, describe(ev))
	}
	out.Printf("instance %s at %s\n", inst.Status, inst.CurrentActivity)
	return nil
}

// drive starts the instance and, with --complete, works off the actor's
// tasks for it.
func drive(ctx context.Context, rt api.Runtime, key string, opts *RunOptions) (*api.ProcessInstance, error) {
	inst, err := rt.Start(ctx, opts.Actor, api.StartPayload{
		DefinitionKey: key,
		BusinessKey:   opts.BusinessKey,
		Name:          opts.Name,
		Variables:     parseVariables(opts.Variables),
	})
	if err != nil {
		return nil, err
	}

	for opts.Complete && inst.Status == api.ProcessRunning {
		task, ok, err := nextTask(ctx, rt, opts.Actor, inst.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if _, err := rt.Complete(ctx, opts.Actor, api.CompletePayload{TaskID: task.ID}); err != nil {
			return nil, err
		}
		if inst, err = rt.ProcessInstance(ctx, opts.Actor, inst.ID); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func nextTask(ctx context.Context, rt api.Runtime, actor, instanceID string) (*api.Task, bool, error) {
	page, err := rt.Tasks(ctx, actor, api.PageOf(0, 100))
	if err != nil {
		return nil, false, err
	}
	for _, t := range page.Content {
		if t.ProcessInstanceID == instanceID {
			return t, true, nil
		}
	}
	return nil, false, nil
}

// describe renders the subject of an event without any generated IDs, so
// traces are stable across runs.
func describe(ev api.RuntimeEvent) string {
	switch ev.Kind() {
	case api.KindActivity:
		return fmt.Sprintf("%s (%s)", ev.ActivityID, ev.ActivityType)
	case api.KindSequenceFlow:
		return fmt.Sprintf("%s %s -> %s", ev.FlowID, ev.SourceActivityID, ev.TargetActivityID)
	case api.KindTask:
		if ev.Assignee == "" {
			return ev.ActivityID
		}
		return fmt.Sprintf("%s assignee=%s", ev.ActivityID, ev.Assignee)
	default:
		return ev.ProcessDefinitionKey
	}
}

// parseVariables turns --var values into typed process variables: integers,
// floats and booleans are converted, anything else stays a string.
func parseVariables(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	vars := make(map[string]any, len(raw))
	for k, v := range raw {
		if n, err := strconv.Atoi(v); err == nil {
			vars[k] = n
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			vars[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			vars[k] = b
		} else {
			vars[k] = v
		}
	}
	return vars
}

func newInstanceView(inst *api.ProcessInstance) InstanceView {
	return InstanceView{
		ID:              inst.ID,
		DefinitionKey:   inst.DefinitionKey,
		BusinessKey:     inst.BusinessKey,
		Name:            inst.Name,
		Initiator:       inst.Initiator,
		Status:          string(inst.Status),
		CurrentActivity: inst.CurrentActivity,
		Variables:       inst.Variables,
	}
}

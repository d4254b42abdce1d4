package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/voltbridge/internal/bridge"
	"github.com/roach88/voltbridge/internal/harness"
	"github.com/roach88/voltbridge/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// SessionGenerator allows overriding the session id generator (for testing).
	// If nil, journaled runs use UUIDv7Generator and in-memory runs use the
	// scenario's fixed id.
	SessionGenerator bridge.SessionIDGenerator
}

// RunResult is the run command's JSON payload.
type RunResult struct {
	Scenario string `json:"scenario"`
	Journal  string `json:"journal,omitempty"`
	*harness.Result
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario against the bridge",
		Long: `Run a single scenario file against a live bridge and print the trace.

Every host call the scenario makes is delivered on the bridge's delivery
loop. With --db (or journal.path in the config) the session is journaled to
SQLite under a fresh UUIDv7 session id and can be inspected with
"voltbridge trace".

Exit codes:
  0 - All assertions passed
  1 - One or more assertions failed
  2 - Command error (unreadable scenario, bad config, journal error)

Examples:
  voltbridge run ./scenarios/basic_session.yaml
  voltbridge run --db ./voltbridge.db ./scenarios/basic_session.yaml
  voltbridge run ./scenarios/basic_session.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (overrides journal.path)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger, err := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{
		harness.WithConfig(cfg),
		harness.WithLogger(logger),
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Journal.Path
	}
	if dbPath != "" {
		logger.Info("opening journal", "path", dbPath)
		j, err := journal.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithJournal(j))

		ids := opts.SessionGenerator
		if ids == nil {
			ids = bridge.UUIDv7Generator{}
		}
		runOpts = append(runOpts, harness.WithSessionIDGenerator(ids))
	} else if opts.SessionGenerator != nil {
		runOpts = append(runOpts, harness.WithSessionIDGenerator(opts.SessionGenerator))
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := RunResult{Scenario: scenario.Name, Journal: dbPath, Result: result}
	if opts.Format == "json" {
		return outputRunJSON(cmd, out)
	}
	return outputRunText(cmd, out, opts.Verbose)
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(cmd *cobra.Command, out RunResult) error {
	response := CLIResponse{Status: "ok", Data: out, Session: out.Session}
	if !out.Pass {
		response = failureResponse(out, out.Session, "E_ASSERTION_FAILED",
			fmt.Sprintf("%d assertion(s) failed", len(out.Errors)))
	}

	if err := writeResponse(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}

// outputRunText outputs the run result as text.
func outputRunText(cmd *cobra.Command, out RunResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario: %s\n", out.Scenario)
	fmt.Fprintf(w, "Session:  %s\n", out.Session)
	if out.Journal != "" {
		fmt.Fprintf(w, "Journal:  %s\n", out.Journal)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	for _, e := range out.Trace {
		writeTraceEvent(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Steps ===")
	for _, s := range out.Steps {
		fmt.Fprintf(w, "  [%d] %s%s\n", s.Index, s.Kind, stepSummary(s))
	}
	fmt.Fprintln(w)

	if !out.Pass {
		fmt.Fprintf(w, "✗ %s\n", out.Scenario)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}

	fmt.Fprintf(w, "✓ %s\n", out.Scenario)
	return nil
}

func writeTraceEvent(w io.Writer, e harness.TraceEvent, verbose bool) {
	if verbose && len(e.Args) > 0 {
		fmt.Fprintf(w, "  [%d] %s %s\n", e.Seq, e.Call, formatArgs(e.Args))
		return
	}
	fmt.Fprintf(w, "  [%d] %s\n", e.Seq, e.Call)
}

// stepSummary renders the answer a step returned to the host.
func stepSummary(s harness.StepResult) string {
	switch {
	case s.Error != "":
		return " error=" + s.Error
	case s.Consumed != nil:
		return fmt.Sprintf(" consumed=%t", *s.Consumed)
	case s.Delivered != nil:
		return fmt.Sprintf(" delivered=%t", *s.Delivered)
	case s.Began != nil:
		return fmt.Sprintf(" began=%t", *s.Began)
	case s.Value != nil:
		return fmt.Sprintf(" value=%v", s.Value)
	default:
		return ""
	}
}

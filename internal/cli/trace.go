package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/voltbridge/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Kind     string // optional - filter to one entry kind
}

// TraceEntry represents a single entry in the session timeline.
type TraceEntry struct {
	Seq    int64          `json:"seq"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Detail map[string]any `json:"detail,omitempty"`
}

// TraceResult holds the complete trace output for one session.
type TraceResult struct {
	Session  string       `json:"session"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEntries int            `json:"total_entries"`
	ByKind       map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a journaled session",
		Long: `Show the journal timeline of a bridge session.

Without --session, lists every session in the journal. With --session,
prints the session's entries in delivery order: lifecycle phases, key and
motion dispatches, device hot-plug, cloud loads and update broadcasts.

Examples:
  voltbridge trace --db ./voltbridge.db
  voltbridge trace --db ./voltbridge.db --session 0190a6b2-...
  voltbridge trace --db ./voltbridge.db --session 0190a6b2-... --kind key
  voltbridge trace --db ./voltbridge.db --session 0190a6b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to show (lists sessions when empty)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one entry kind (lifecycle, key, motion, device, cloud, update, sign_in)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer j.Close()

	if opts.Session == "" {
		return listSessions(ctx, j, opts, cmd)
	}

	entries, err := j.ReadEntries(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	if len(entries) == 0 {
		if opts.Format == "json" {
			return outputTraceJSON(cmd, TraceResult{
				Session:  opts.Session,
				Timeline: []TraceEntry{},
				Stats:    TraceStats{ByKind: map[string]int{}},
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No entries found for session: %s\n", opts.Session)
		return nil
	}

	result := buildTrace(opts.Session, entries, opts.Kind)
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTrace converts journal entries to a timeline, keeping only entries of
// kindFilter when it is set. Stats always count the whole session.
func buildTrace(session string, entries []journal.Entry, kindFilter string) TraceResult {
	result := TraceResult{
		Session:  session,
		Timeline: []TraceEntry{},
		Stats: TraceStats{
			TotalEntries: len(entries),
			ByKind:       map[string]int{},
		},
	}
	for _, e := range entries {
		result.Stats.ByKind[e.Kind]++
		if kindFilter != "" && e.Kind != kindFilter {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:    e.Seq,
			Kind:   e.Kind,
			Name:   e.Name,
			Detail: e.Detail,
		})
	}
	return result
}

func listSessions(ctx context.Context, j *journal.Journal, opts *TraceOptions, cmd *cobra.Command) error {
	sessions, err := j.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Format == "json" {
		return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: sessions})
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions in journal.")
		return nil
	}
	fmt.Fprintln(w, "=== Sessions ===")
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %d entries\n", s.ID, s.Entries)
	}
	return nil
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	return writeResponse(cmd.OutOrStdout(), CLIResponse{
		Status:  "ok",
		Data:    result,
		Session: result.Session,
	})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Session: %s\n", result.Session)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	} else {
		for _, e := range result.Timeline {
			formatTimelineEntry(w, e, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Entries: %d\n", result.Stats.TotalEntries)
	kinds := make([]string, 0, len(result.Stats.ByKind))
	for k := range result.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-14s %d\n", k+":", result.Stats.ByKind[k])
	}

	return nil
}

// formatTimelineEntry formats a single timeline entry for text output.
func formatTimelineEntry(w io.Writer, e TraceEntry, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s\n", e.Seq, e.Kind, e.Name)
	if verbose && len(e.Detail) > 0 {
		fmt.Fprintf(w, "       Detail: %s\n", formatArgs(e.Detail))
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

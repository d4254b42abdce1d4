package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/voltbridge/internal/input"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	*RootOptions
	Kind    string
	Sources []string
	Action  string
}

// ClassifyResult is the classify command's JSON payload.
type ClassifyResult struct {
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Sources  string `json:"sources"`
	Action   string `json:"action"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single input event",
		Long: `Print the dispatch category of one input event.

An event without --sources has absent capabilities and is always
unclassified. The action defaults to down for key events and move for
motion events.

Examples:
  voltbridge classify --kind key --sources gamepad
  voltbridge classify --kind motion --sources joystick --action move
  voltbridge classify --kind key --sources keyboard,touch_navigation --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "key", "event kind (key|motion)")
	cmd.Flags().StringSliceVar(&opts.Sources, "sources", nil, "device input sources (keyboard, dpad, gamepad, touchscreen, mouse, touchpad, touch_navigation, joystick)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "event action (down, up, move, cancel, hover_move, scroll, button_press, button_release)")

	return cmd
}

func runClassify(opts *ClassifyOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	event, err := classifyEvent(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid event", err)
	}

	category := input.Classify(&event)
	formatter.VerboseLog("kind=%s capabilities=%s action=%s", event.Kind, event.Capabilities, event.Action)

	if opts.Format != "json" {
		return formatter.Success(category.String())
	}
	return formatter.Success(ClassifyResult{
		Category: category.String(),
		Kind:     event.Kind.String(),
		Sources:  event.Capabilities.String(),
		Action:   event.Action.String(),
	})
}

func classifyEvent(opts *ClassifyOptions) (input.Event, error) {
	kind, err := input.ParseKind(opts.Kind)
	if err != nil {
		return input.Event{}, err
	}

	action := input.ActionDown
	if kind == input.KindMotion {
		action = input.ActionMove
	}
	if opts.Action != "" {
		action, err = input.ParseAction(opts.Action)
		if err != nil {
			return input.Event{}, err
		}
	}

	caps := input.Absent()
	if len(opts.Sources) > 0 {
		mask, err := input.ParseSources(opts.Sources)
		if err != nil {
			return input.Event{}, err
		}
		caps = input.Known(mask)
	}

	return input.Event{Kind: kind, Capabilities: caps, Action: action}, nil
}

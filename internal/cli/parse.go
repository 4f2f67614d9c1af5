package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/marbles/internal/ir"
	"github.com/roach88/marbles/internal/marble"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Values       []string
	ErrorValue   string
	Factor       int64
	MaxFrame     int64
	Subscription bool
}

// ParseResult is the JSON payload of a parsed message diagram.
type ParseResult struct {
	Diagram     string          `json:"diagram"`
	Messages    json.RawMessage `json:"messages"`
	Fingerprint string          `json:"fingerprint"`

	msgs   []ir.TimedMessage
	factor int64
}

func (r ParseResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", ir.FormatMessages(r.msgs))
	fmt.Fprintf(&b, "rendered:    %s\n", marble.Describe(r.msgs, r.factor))
	fmt.Fprintf(&b, "fingerprint: %s", r.Fingerprint)
	return b.String()
}

// SubscriptionResult is the JSON payload of a parsed subscription diagram.
type SubscriptionResult struct {
	Diagram string          `json:"diagram"`
	Window  json.RawMessage `json:"window"`

	window ir.SubscriptionWindow
}

func (r SubscriptionResult) String() string {
	return r.window.String()
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <diagram>",
		Short: "Parse a marble diagram into timed messages",
		Long: `Parse a marble diagram and print the timed messages it describes.

Value tokens map to payloads with --values; each payload is read as YAML,
so a=1 is a number and a=x is a string. With --subscription the diagram
is read as a subscription marble and its window is printed.

Diagrams usually start with '-', so pass flags first and separate the
diagram with "--".

Examples:
  marbles parse -- "-a-b-|"
  marbles parse --values a=1,b=true,c=hello --error boom -- "-a-(bc)-#"
  marbles parse --subscription -- "--^---!"
  marbles parse --factor 10 --format json -- "-a-|"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&opts.Values, "values", nil, "token payloads as token=yaml pairs")
	cmd.Flags().StringVar(&opts.ErrorValue, "error", "", "payload of the '#' token")
	cmd.Flags().Int64Var(&opts.Factor, "factor", marble.DefaultFrameTimeFactor, "frames per diagram character")
	cmd.Flags().Int64Var(&opts.MaxFrame, "max-frame", 0, "drop notifications after this frame (default 1000 x factor)")
	cmd.Flags().BoolVar(&opts.Subscription, "subscription", false, "parse a subscription diagram instead")

	return cmd
}

func runParse(cmd *cobra.Command, opts *ParseOptions, diagram string) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	if opts.Factor <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--factor must be positive, got %d", opts.Factor))
	}
	if opts.MaxFrame < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--max-frame must be non-negative, got %d", opts.MaxFrame))
	}

	if opts.Subscription {
		window, err := marble.ParseSubscription(diagram, opts.Factor, ir.Frame(opts.MaxFrame))
		if err != nil {
			return parseFailure(formatter, err)
		}
		raw, err := ir.MarshalCanonical(window)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode window", err)
		}
		return formatter.Success(SubscriptionResult{Diagram: diagram, Window: raw, window: window})
	}

	values, err := parseValueFlags(opts.Values)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --values", err)
	}

	cfg := marble.Config{
		Values:          values,
		ExpandNested:    true,
		FrameTimeFactor: opts.Factor,
		MaxFrame:        ir.Frame(opts.MaxFrame),
	}
	if opts.ErrorValue != "" {
		cfg.ErrorValue = decodeYAMLScalar(opts.ErrorValue)
	}

	msgs, err := marble.Parse(diagram, cfg)
	if err != nil {
		return parseFailure(formatter, err)
	}
	logger.Debug("parsed diagram", "diagram", diagram, "messages", len(msgs))

	raw, err := ir.MarshalCanonical(msgs)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode messages", err)
	}
	fp, err := ir.Fingerprint(msgs)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint messages", err)
	}

	return formatter.Success(ParseResult{
		Diagram:     diagram,
		Messages:    raw,
		Fingerprint: fp,
		msgs:        msgs,
		factor:      opts.Factor,
	})
}

// parseFailure reports a diagram error and exits with ExitFailure.
func parseFailure(formatter *OutputFormatter, err error) error {
	var details any
	var pe *marble.ParseError
	if errors.As(err, &pe) {
		details = map[string]any{
			"code":     pe.Code,
			"position": pe.Position,
		}
	}
	if outErr := formatter.Error(ErrCodeParse, err.Error(), details); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, "invalid diagram", err)
}

// parseValueFlags turns token=yaml pairs into payloads.
func parseValueFlags(pairs []string) (ir.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(ir.Values, len(pairs))
	for _, pair := range pairs {
		token, payload, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected token=value", pair)
		}
		if utf8.RuneCountInString(token) != 1 {
			return nil, fmt.Errorf("%q: token must be a single character", pair)
		}
		r, _ := utf8.DecodeRuneInString(token)
		values[r] = ir.V(decodeYAMLScalar(payload))
	}
	return values, nil
}

// decodeYAMLScalar reads s as YAML, falling back to the raw string when it
// does not decode.
func decodeYAMLScalar(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Scenario defines a marble scenario.
// Sources are created on one scheduler, observers record them, and the
// expectations are checked against the recordings after a flush.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file and
	// seeds the scheduler ID.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// FrameTimeFactor scales each diagram character. Zero means 1.
	FrameTimeFactor int64 `yaml:"frame_time_factor,omitempty" json:"frame_time_factor,omitempty"`

	// MaxFrameValue caps how many characters of any diagram are run.
	// Zero means 1000.
	MaxFrameValue int64 `yaml:"max_frame_value,omitempty" json:"max_frame_value,omitempty"`

	// Sources are the hot and cold observables under test.
	Sources []SourceSpec `yaml:"sources" json:"sources"`

	// Observe attaches recorders to sources.
	Observe []ObserveSpec `yaml:"observe" json:"observe"`

	// Expect lists the checks run after the scheduler is flushed.
	Expect []Expectation `yaml:"expect" json:"expect"`
}

// SourceSpec declares a hot or cold source.
type SourceSpec struct {
	Name string `yaml:"name" json:"name"`

	// Kind is SourceHot or SourceCold.
	Kind string `yaml:"kind" json:"kind"`

	// Marble is the source diagram.
	Marble string `yaml:"marble" json:"marble"`

	// Values maps single-character tokens to payloads. A map with a
	// "marble" key is a nested diagram: {marble, values, error}.
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty"`

	// Error is the payload of '#'. Empty means "error".
	Error any `yaml:"error,omitempty" json:"error,omitempty"`
}

// ObserveSpec records one subscription to a source.
type ObserveSpec struct {
	Name   string `yaml:"name" json:"name"`
	Source string `yaml:"source" json:"source"`

	// Subscription is a subscription diagram ("^--!"). Empty subscribes at
	// frame 0 and never unsubscribes.
	Subscription string `yaml:"subscription,omitempty" json:"subscription,omitempty"`
}

// Expectation checks either an observer's recording (Observe + Marble) or a
// source's subscription log (Source + Subscriptions).
type Expectation struct {
	Observe string         `yaml:"observe,omitempty" json:"observe,omitempty"`
	Marble  string         `yaml:"marble,omitempty" json:"marble,omitempty"`
	Values  map[string]any `yaml:"values,omitempty" json:"values,omitempty"`
	Error   any            `yaml:"error,omitempty" json:"error,omitempty"`

	Source        string   `yaml:"source,omitempty" json:"source,omitempty"`
	Subscriptions []string `yaml:"subscriptions,omitempty" json:"subscriptions,omitempty"`
}

// Source kinds.
const (
	SourceHot  = "hot"
	SourceCold = "cold"
)

// LoadScenario reads and parses a scenario file.
// Files ending in .cue are evaluated with CUE; everything else is YAML.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if filepath.Ext(path) == ".cue" {
		scenario, err = ParseCUE(path, data)
	} else {
		scenario, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseYAML decodes a scenario with strict field validation
// (catches typos like "expects:" vs "expect:"). It does not validate.
func ParseYAML(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// ParseCUE evaluates a CUE scenario and decodes its concrete JSON export
// through the strict YAML decoder, so both formats reject the same unknown
// fields. filename is used in CUE error positions only.
func ParseCUE(filename string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE scenario is not concrete: %w", err)
	}

	exported, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}

	scenario, err := ParseYAML(exported)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CUE export: %w", err)
	}
	return scenario, nil
}

// validateScenario checks that required fields are present and that every
// reference between sources, observers and expectations resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.FrameTimeFactor < 0 {
		return fmt.Errorf("frame_time_factor must be non-negative")
	}

	if s.MaxFrameValue < 0 {
		return fmt.Errorf("max_frame_value must be non-negative")
	}

	if len(s.Sources) == 0 {
		return fmt.Errorf("sources list is required and must be non-empty")
	}

	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}

	sources := make(map[string]bool, len(s.Sources))
	for i, src := range s.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if sources[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name)
		}
		sources[src.Name] = true

		if src.Kind != SourceHot && src.Kind != SourceCold {
			return fmt.Errorf("sources[%d]: kind must be %q or %q, got %q", i, SourceHot, SourceCold, src.Kind)
		}
		if src.Marble == "" {
			return fmt.Errorf("sources[%d]: marble is required", i)
		}
		if _, err := convertValues(src.Values); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}

	observers := make(map[string]bool, len(s.Observe))
	for i, obs := range s.Observe {
		if obs.Name == "" {
			return fmt.Errorf("observe[%d]: name is required", i)
		}
		if observers[obs.Name] {
			return fmt.Errorf("observe[%d]: duplicate name %q", i, obs.Name)
		}
		observers[obs.Name] = true

		if !sources[obs.Source] {
			return fmt.Errorf("observe[%d]: unknown source %q", i, obs.Source)
		}
	}

	for i, e := range s.Expect {
		if err := validateExpectation(i, &e, sources, observers); err != nil {
			return err
		}
	}

	return nil
}

// validateExpectation validates a single expectation based on its target.
func validateExpectation(index int, e *Expectation, sources, observers map[string]bool) error {
	switch {
	case e.Observe != "" && e.Source != "":
		return fmt.Errorf("expect[%d]: observe and source are mutually exclusive", index)
	case e.Observe != "":
		if !observers[e.Observe] {
			return fmt.Errorf("expect[%d]: unknown observer %q", index, e.Observe)
		}
		if e.Marble == "" {
			return fmt.Errorf("expect[%d]: marble is required for observe", index)
		}
		if e.Subscriptions != nil {
			return fmt.Errorf("expect[%d]: subscriptions are only valid with source", index)
		}
		if _, err := convertValues(e.Values); err != nil {
			return fmt.Errorf("expect[%d]: %w", index, err)
		}
	case e.Source != "":
		if !sources[e.Source] {
			return fmt.Errorf("expect[%d]: unknown source %q", index, e.Source)
		}
		if e.Subscriptions == nil {
			return fmt.Errorf("expect[%d]: subscriptions list is required for source (use [] for none)", index)
		}
		if e.Marble != "" || e.Values != nil || e.Error != nil {
			return fmt.Errorf("expect[%d]: marble, values and error are only valid with observe", index)
		}
	default:
		return fmt.Errorf("expect[%d]: observe or source is required", index)
	}
	return nil
}

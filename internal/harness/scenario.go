package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/balbirthomas/operator/internal/config"
	"github.com/balbirthomas/operator/internal/event"
)

// Scenario describes one hosted application, a sequence of lifecycle steps
// applied to it, and assertions on what it did.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// The hosted application, as in a role file.
	App          string                `yaml:"app"`
	Role         config.Role           `yaml:"role"`
	Relation     config.RelationConfig `yaml:"relation"`
	Capabilities map[string]string     `yaml:"capabilities,omitempty"`
	Ready        bool                  `yaml:"ready,omitempty"`
	Config       string                `yaml:"config,omitempty"`

	// Leader is the initial leadership of the local unit.
	Leader bool `yaml:"leader,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// RoleConfig returns the hosted application's role configuration.
func (s *Scenario) RoleConfig() *config.RoleConfig {
	return &config.RoleConfig{
		App:          s.App,
		Role:         s.Role,
		Relation:     s.Relation,
		Capabilities: s.Capabilities,
		Ready:        s.Ready,
		Config:       s.Config,
	}
}

// Step is one lifecycle action. Which fields apply depends on Action.
type Step struct {
	Action string `yaml:"action"`

	// Relation is a scenario-local alias, bound by add_relation.
	Relation  string `yaml:"relation,omitempty"`
	RemoteApp string `yaml:"remote_app,omitempty"`
	Unit      string `yaml:"unit,omitempty"`

	// App whose bucket update_data writes (default: the remote application).
	App     string            `yaml:"app,omitempty"`
	Data    map[string]string `yaml:"data,omitempty"`
	Payload *PayloadSpec      `yaml:"payload,omitempty"`

	Ready        *bool             `yaml:"ready,omitempty"`
	Leader       *bool             `yaml:"leader,omitempty"`
	Config       *string           `yaml:"config,omitempty"`
	Capabilities map[string]string `yaml:"capabilities,omitempty"`
}

// PayloadSpec is a structured provider_data value, encoded canonically
// before it is written.
type PayloadSpec struct {
	Provides map[string]string `yaml:"provides"`
	Ready    bool              `yaml:"ready"`
	Config   string            `yaml:"config"`
}

// Step actions.
const (
	StepAddRelation     = "add_relation"
	StepAddUnit         = "add_unit"
	StepUpdateData      = "update_data"
	StepSetReady        = "set_ready"
	StepSetCapabilities = "set_capabilities"
	StepSetConfig       = "set_config"
	StepSetRequired     = "set_required"
	StepSetLeader       = "set_leader"
	StepUpgrade         = "upgrade"
	StepRemoveRelation  = "remove_relation"
)

// Assertion checks the outcome of a scenario. Which fields apply depends on
// Type.
type Assertion struct {
	Type string `yaml:"type"`

	// Relation alias filter or target.
	Relation string `yaml:"relation,omitempty"`

	// Kind filters events by kind (event_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (event_count, error_logs).
	Count *int `yaml:"count,omitempty"`

	// Kinds is the exact expected sequence of event kinds (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Index selects an event (event_config); negative counts from the end.
	// Defaults to the last event.
	Index *int `yaml:"index,omitempty"`

	Config   *string           `yaml:"config,omitempty"`
	Ready    *bool             `yaml:"ready,omitempty"`
	Provides map[string]string `yaml:"provides,omitempty"`

	// State is the expected consumer state (state).
	State string `yaml:"state,omitempty"`
}

// Assertion types.
const (
	AssertEventCount    = "event_count"
	AssertEventOrder    = "event_order"
	AssertEventConfig   = "event_config"
	AssertPayload       = "payload"
	AssertPayloadAbsent = "payload_absent"
	AssertErrorLogs     = "error_logs"
	AssertState         = "state"
)

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml/.yml files under dir in lexical order,
// optionally filtered by a glob on the base name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(filepath.Base(path), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if errs := s.RoleConfig().Validate(); len(errs) > 0 {
		return errs
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	aliases := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(s.Role, step, aliases); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(s.Role, a, aliases); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(role config.Role, step Step, aliases map[string]bool) error {
	knownAlias := func() error {
		if step.Relation == "" {
			return fmt.Errorf("%s: relation is required", step.Action)
		}
		if !aliases[step.Relation] {
			return fmt.Errorf("%s: unknown relation %q (add it with add_relation first)", step.Action, step.Relation)
		}
		return nil
	}
	requireRole := func(want config.Role) error {
		if role != want {
			return fmt.Errorf("%s: only valid for a %s application", step.Action, want)
		}
		return nil
	}

	switch step.Action {
	case StepAddRelation:
		if step.Relation == "" || step.RemoteApp == "" {
			return fmt.Errorf("add_relation: relation and remote_app are required")
		}
		if aliases[step.Relation] {
			return fmt.Errorf("add_relation: relation %q already defined", step.Relation)
		}
		aliases[step.Relation] = true
	case StepAddUnit:
		if err := knownAlias(); err != nil {
			return err
		}
		if step.Unit == "" {
			return fmt.Errorf("add_unit: unit is required")
		}
	case StepUpdateData:
		if err := knownAlias(); err != nil {
			return err
		}
		if (step.Data == nil) == (step.Payload == nil) {
			return fmt.Errorf("update_data: exactly one of data or payload is required")
		}
	case StepSetReady:
		if step.Ready == nil {
			return fmt.Errorf("set_ready: ready is required")
		}
		return requireRole(config.RoleProvider)
	case StepSetCapabilities:
		if step.Capabilities == nil {
			return fmt.Errorf("set_capabilities: capabilities is required")
		}
		return requireRole(config.RoleProvider)
	case StepSetConfig:
		if step.Config == nil {
			return fmt.Errorf("set_config: config is required")
		}
		return requireRole(config.RoleProvider)
	case StepSetRequired:
		if step.Capabilities == nil {
			return fmt.Errorf("set_required: capabilities is required")
		}
		return requireRole(config.RoleConsumer)
	case StepSetLeader:
		if step.Leader == nil {
			return fmt.Errorf("set_leader: leader is required")
		}
	case StepUpgrade:
	case StepRemoveRelation:
		return knownAlias()
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

func validateAssertion(role config.Role, a Assertion, aliases map[string]bool) error {
	if a.Relation != "" && !aliases[a.Relation] {
		return fmt.Errorf("%s: unknown relation %q", a.Type, a.Relation)
	}
	consumerOnly := func() error {
		if role != config.RoleConsumer {
			return fmt.Errorf("%s: only valid for a consumer application", a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertEventCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("event_count: non-negative count is required")
		}
		if a.Kind != "" && !validEventKind(a.Kind) {
			return fmt.Errorf("event_count: unknown event kind %q", a.Kind)
		}
		return consumerOnly()
	case AssertEventOrder:
		for _, k := range a.Kinds {
			if !validEventKind(k) {
				return fmt.Errorf("event_order: unknown event kind %q", k)
			}
		}
		return consumerOnly()
	case AssertEventConfig:
		if a.Config == nil && a.Ready == nil && a.Provides == nil {
			return fmt.Errorf("event_config: at least one of config, ready or provides is required")
		}
		return consumerOnly()
	case AssertPayload:
		if a.Relation == "" {
			return fmt.Errorf("payload: relation is required")
		}
		if a.Config == nil && a.Ready == nil && a.Provides == nil {
			return fmt.Errorf("payload: at least one of config, ready or provides is required")
		}
	case AssertPayloadAbsent:
		if a.Relation == "" {
			return fmt.Errorf("payload_absent: relation is required")
		}
	case AssertErrorLogs:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("error_logs: non-negative count is required")
		}
	case AssertState:
		if a.Relation == "" || a.State == "" {
			return fmt.Errorf("state: relation and state are required")
		}
		if _, ok := parseState(a.State); !ok {
			return fmt.Errorf("state: unknown state %q", a.State)
		}
		return consumerOnly()
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func validEventKind(s string) bool {
	_, ok := event.ParseKind(s)
	return ok
}

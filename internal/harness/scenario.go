package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/healthpass/internal/config"
)

// Scenario defines a chaincode scenario: steps to run and what must hold
// afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the ledger backend. Empty means memory.
	Backend string `yaml:"backend,omitempty"`

	// TxPrefix prefixes the deterministic tx ids. Empty means "tx".
	TxPrefix string `yaml:"tx_prefix,omitempty"`

	// Setup contains invocations run before the flow. They must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the traced invocations.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the final ledger state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one invocation.
type Step struct {
	// Invoke is the operation name.
	Invoke string `yaml:"invoke"`

	// Args are the positional string arguments.
	Args []string `yaml:"args"`

	// Expect specifies the expected outcome. Nil means the step must
	// succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Code is StatusOK or an error code such as NOT_FOUND.
	Code string `yaml:"code"`

	// Payload is matched against the decoded payload. Maps match as
	// subsets, lists element-wise, scalars exactly.
	Payload any `yaml:"payload,omitempty"`
}

// Assertion validates the trace or the final ledger state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Operation is used by trace_count.
	Operation string `yaml:"operation,omitempty"`

	// Operations is used by trace_order.
	Operations []string `yaml:"operations,omitempty"`

	// Count is used by trace_count and history_count.
	Count int `yaml:"count,omitempty"`

	// ID is used by final_state and history_count.
	ID string `yaml:"id,omitempty"`

	// Expect holds the record fields checked by final_state.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Country and IDs are used by index_contains.
	Country string   `yaml:"country,omitempty"`
	IDs     []string `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertFinalState    = "final_state"
	AssertHistoryCount  = "history_count"
	AssertIndexContains = "index_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Backend {
	case "", config.BackendMemory, config.BackendSQLite, config.BackendLevelDB:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Invoke == "" {
			return fmt.Errorf("setup[%d]: invoke is required", i)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if step.Expect != nil && step.Expect.Code == "" {
			return fmt.Errorf("flow[%d].expect: code is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceCount:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Operations) == 0 {
			return fmt.Errorf("assertions[%d]: operations list is required for trace_order", index)
		}
	case AssertFinalState:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertHistoryCount:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for history_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	case AssertIndexContains:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for index_contains (use [] for none)", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios compile a fixture program, run the analyzer over it, and
// assert on the findings it reports.
type Scenario struct {
	// Name uniquely identifies this scenario. Also used as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the path to the CUE fixture file, relative to the
	// scenario file location.
	Fixture string `yaml:"fixture"`

	// Program selects one program from the fixture. If empty, the
	// fixture must declare exactly one program.
	Program string `yaml:"program,omitempty"`

	// Expect lists the findings the analyzer must report. Each entry
	// must match at least one actual finding.
	Expect []ExpectedFinding `yaml:"expect"`

	// Exact requires the actual finding count to equal len(Expect).
	// Without it, extra findings are tolerated.
	Exact bool `yaml:"exact,omitempty"`

	// ExpectDefects lists structural defect codes the run must report.
	ExpectDefects []string `yaml:"expect_defects,omitempty"`
}

// ExpectedFinding matches one reported finding. Rule and Instruction
// are required; the rest are subset matches checked only when set.
type ExpectedFinding struct {
	Rule        string `yaml:"rule"`
	Instruction string `yaml:"instruction"`
	Location    string `yaml:"location,omitempty"`
	Severity    string `yaml:"severity,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields. The fixture
// path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) {
		scenario.Fixture = filepath.Join(filepath.Dir(path), scenario.Fixture)
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

	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
		return fmt.Errorf("fixture file not found: %s", s.Fixture)
	}

	for i, exp := range s.Expect {
		if exp.Rule == "" {
			return fmt.Errorf("expect[%d]: rule is required", i)
		}
		if exp.Instruction == "" {
			return fmt.Errorf("expect[%d]: instruction is required", i)
		}
	}

	return nil
}

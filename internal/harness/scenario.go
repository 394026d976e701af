package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/geochunk/internal/geo"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Job is the inline job document. Exactly one of Job and JobFile is set.
	Job yaml.Node `yaml:"job,omitempty"`

	// JobFile is a CUE or YAML job path, relative to the scenario file.
	JobFile string `yaml:"job_file,omitempty"`

	// Matrix overrides dispatch parameters (chunks, buffer, workers); every
	// combination becomes one case.
	Matrix map[string][]int `yaml:"matrix,omitempty"`

	// Assertions are evaluated for every case.
	Assertions []Assertion `yaml:"assertions"`

	// path is the file the scenario was loaded from, if any.
	path string
}

// Assertion validates one case outcome.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Code is the expected error code (error_code).
	Code string `yaml:"code,omitempty"`

	// Ranges and Cores are expected [lo, hi) pairs (chunk_ranges).
	Ranges [][]int `yaml:"ranges,omitempty"`
	Cores  [][]int `yaml:"cores,omitempty"`

	// Tasks is the expected delay order by task name (task_order).
	Tasks []string `yaml:"tasks,omitempty"`
}

// Assertion type constants.
const (
	AssertEqualsSerial = "equals_serial"
	AssertRoundTrip    = "round_trip"
	AssertChunkRanges  = "chunk_ranges"
	AssertErrorCode    = "error_code"
	AssertTaskOrder    = "task_order"
)

var matrixKeys = map[string]bool{"chunks": true, "buffer": true, "workers": true}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Filter keeps scenarios whose name contains substr. An empty substr keeps
// all of them.
func Filter(scenarios []*Scenario, substr string) []*Scenario {
	if substr == "" {
		return scenarios
	}
	kept := geo.Select[*Scenario](geo.List[*Scenario](scenarios), func(s *Scenario) bool {
		return strings.Contains(s.Name, substr)
	})
	return []*Scenario(kept.(geo.List[*Scenario]))
}

// jobSource returns the job document and the filename used to choose its
// format.
func (s *Scenario) jobSource() (string, []byte, error) {
	if s.JobFile != "" {
		path := s.JobFile
		if !filepath.IsAbs(path) && s.path != "" {
			path = filepath.Join(filepath.Dir(s.path), path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read job file: %w", err)
		}
		return path, data, nil
	}
	data, err := yaml.Marshal(&s.Job)
	if err != nil {
		return "", nil, fmt.Errorf("encode inline job: %w", err)
	}
	return s.Name + ".yaml", data, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasInline := !s.Job.IsZero()
	switch {
	case hasInline && s.JobFile != "":
		return fmt.Errorf("job and job_file are mutually exclusive")
	case !hasInline && s.JobFile == "":
		return fmt.Errorf("job or job_file is required")
	case hasInline && s.Job.Kind != yaml.MappingNode:
		return fmt.Errorf("job must be a mapping")
	}

	for key, values := range s.Matrix {
		if !matrixKeys[key] {
			return fmt.Errorf("matrix key %q: want chunks, buffer or workers", key)
		}
		if len(values) == 0 {
			return fmt.Errorf("matrix key %q has no values", key)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}

	return nil
}

// validateAssertion checks that an assertion has required fields for its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEqualsSerial, AssertRoundTrip:
		return nil
	case AssertChunkRanges:
		if len(a.Ranges) == 0 && len(a.Cores) == 0 {
			return fmt.Errorf("chunk_ranges requires ranges or cores")
		}
		for _, pair := range append(append([][]int(nil), a.Ranges...), a.Cores...) {
			if len(pair) != 2 {
				return fmt.Errorf("chunk_ranges entries must be [lo, hi] pairs, got %v", pair)
			}
		}
		return nil
	case AssertErrorCode:
		if a.Code == "" {
			return fmt.Errorf("error_code requires code")
		}
		return nil
	case AssertTaskOrder:
		if len(a.Tasks) == 0 {
			return fmt.Errorf("task_order requires tasks")
		}
		return nil
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

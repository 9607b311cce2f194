package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/trackvec/track"
)

// File is one scenario file.
type File struct {
	Version   string     `yaml:"version"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is a sequence of steps against one fresh vector.
type Scenario struct {
	Name    string `yaml:"name"`
	Init    []int  `yaml:"init,omitempty"`
	Reserve int    `yaml:"reserve,omitempty"`
	Steps   []Step `yaml:"steps"`
}

// Step is a single operation or expectation.
type Step struct {
	Op     string `yaml:"op"`
	Name   string `yaml:"name,omitempty"`
	From   string `yaml:"from,omitempty"`
	Index  *int   `yaml:"index,omitempty"`
	Count  *int   `yaml:"count,omitempty"`
	Value  *int   `yaml:"value,omitempty"`
	Values []int  `yaml:"values,omitempty"`
	Valid  *bool  `yaml:"valid,omitempty"`
	Len    *int   `yaml:"len,omitempty"`
	Cap    *int   `yaml:"cap,omitempty"`
}

var errEmptyFile = errors.New("no scenarios")

// LoadFile reads and validates a scenario file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates scenario file contents.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}

	if !track.Compatible(f.Version) {
		return nil, fmt.Errorf("scenario version %q is not compatible with track %s", f.Version, track.Version)
	}
	if len(f.Scenarios) == 0 {
		return nil, errEmptyFile
	}

	for i, s := range f.Scenarios {
		if s.Name == "" {
			return nil, fmt.Errorf("scenario %d: missing name", i)
		}
		if s.Reserve < 0 {
			return nil, fmt.Errorf("scenario %q: negative reserve", s.Name)
		}
		for j, st := range s.Steps {
			if err := st.validate(); err != nil {
				return nil, fmt.Errorf("scenario %q step %d: %w", s.Name, j, err)
			}
		}
	}

	return &f, nil
}

func (st Step) validate() error {
	need := func(ok bool, field string) error {
		if !ok {
			return fmt.Errorf("%s: missing %s", st.Op, field)
		}
		return nil
	}

	switch st.Op {
	case "bind", "cursor":
		return errors.Join(need(st.Name != "", "name"), need(st.Index != nil, "index"))
	case "derive":
		return errors.Join(need(st.Name != "", "name"), need(st.From != "", "from"))
	case "append":
		return need(len(st.Values) > 0 || st.Value != nil, "values")
	case "insert":
		return errors.Join(need(st.Index != nil, "index"), need(len(st.Values) > 0 || st.Value != nil, "values"))
	case "erase":
		return need(st.Index != nil, "index")
	case "set":
		return errors.Join(need(st.Index != nil, "index"), need(st.Value != nil, "value"))
	case "store":
		return errors.Join(need(st.Name != "", "name"), need(st.Value != nil, "value"))
	case "resize", "reserve":
		return need(st.Count != nil, "count")
	case "clear", "destroy":
		return nil
	case "expect":
		if st.Name == "" {
			return need(st.Len != nil || st.Cap != nil, "name, len or cap")
		}
		return need(st.Valid != nil || st.Value != nil, "valid or value")
	case "":
		return errors.New("missing op")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
}

// values returns Values, or the single Value.
func (st Step) values() []int {
	if len(st.Values) > 0 {
		return st.Values
	}
	if st.Value != nil {
		return []int{*st.Value}
	}
	return nil
}

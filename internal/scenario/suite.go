// Package scenario loads YAML test suites and runs them against browser
// pages, one healing session per scenario.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"selfheal/internal/pages"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionGoto       = "goto"
	ActionFill       = "fill"
	ActionClick      = "click"
	ActionExpectText = "expect_text"
)

// Step is one scenario instruction. Field is unused by goto; Value is used by
// fill (text to type) and expect_text (substring to find).
type Step struct {
	Action string `yaml:"action"`
	Page   string `yaml:"page"`
	Field  string `yaml:"field,omitempty"`
	Value  string `yaml:"value,omitempty"`
}

func (s Step) String() string {
	switch s.Action {
	case ActionGoto:
		return fmt.Sprintf("goto %s", s.Page)
	case ActionFill:
		return fmt.Sprintf("fill %s/%s", s.Page, s.Field)
	default:
		return fmt.Sprintf("%s %s/%s", s.Action, s.Page, s.Field)
	}
}

// Scenario is a named list of steps.
type Scenario struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Suite is the document loaded from a suite file.
type Suite struct {
	Pages     []pages.Definition `yaml:"pages,omitempty"`
	Scenarios []Scenario         `yaml:"scenarios"`
}

// builtinPages are available to every suite without being declared.
func builtinPages() map[string]pages.Definition {
	login := pages.LoginPage()
	return map[string]pages.Definition{login.Name: login}
}

// PageDefinitions returns declared pages merged over the built-ins.
func (s *Suite) PageDefinitions() map[string]pages.Definition {
	defs := builtinPages()
	for _, p := range s.Pages {
		defs[p.Name] = p
	}
	return defs
}

// Validate checks page definitions and that every step references a known
// page, field and action.
func (s *Suite) Validate() error {
	seen := make(map[string]bool)
	for _, p := range s.Pages {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("page %q declared twice", p.Name)
		}
		seen[p.Name] = true
	}

	if len(s.Scenarios) == 0 {
		return errors.New("suite has no scenarios")
	}
	defs := s.PageDefinitions()
	names := make(map[string]bool)
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario %d has no name", i+1)
		}
		if names[sc.Name] {
			return fmt.Errorf("scenario %q declared twice", sc.Name)
		}
		names[sc.Name] = true
		if len(sc.Steps) == 0 {
			return fmt.Errorf("scenario %q has no steps", sc.Name)
		}
		for j, st := range sc.Steps {
			if err := validateStep(st, defs); err != nil {
				return fmt.Errorf("scenario %q step %d: %w", sc.Name, j+1, err)
			}
		}
	}
	return nil
}

func validateStep(st Step, defs map[string]pages.Definition) error {
	def, ok := defs[st.Page]
	if !ok {
		return fmt.Errorf("unknown page %q", st.Page)
	}
	switch st.Action {
	case ActionGoto:
		if def.URL == "" {
			return fmt.Errorf("page %q has no url", st.Page)
		}
		return nil
	case ActionFill, ActionClick, ActionExpectText:
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	if _, ok := def.Fields[st.Field]; !ok {
		return fmt.Errorf("%w %q on %s", pages.ErrUnknownField, st.Field, st.Page)
	}
	return nil
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the suite as YAML.
func (s *Suite) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create suite directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal suite: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// SampleSuite returns the login scenario written by `selfheal init`.
func SampleSuite() *Suite {
	const page = "login page"
	return &Suite{
		Scenarios: []Scenario{{
			Name: "Successful login",
			Steps: []Step{
				{Action: ActionGoto, Page: page},
				{Action: ActionFill, Page: page, Field: pages.FieldUsername, Value: "standard_user"},
				{Action: ActionFill, Page: page, Field: pages.FieldPassword, Value: "secret_sauce"},
				{Action: ActionClick, Page: page, Field: pages.FieldLoginButton},
				{Action: ActionExpectText, Page: page, Field: pages.FieldSuccessMessage, Value: "Welcome"},
			},
		}},
	}
}

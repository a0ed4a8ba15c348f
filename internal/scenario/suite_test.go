package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"selfheal/internal/pages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteYAML = `
pages:
  - name: search page
    url: https://example.test/search
    fields:
      query:
        primary: input[name="q"]
        backups: ["#search", "//input[@type='search']"]
      submit:
        primary: button[type="submit"]
scenarios:
  - name: Search
    steps:
      - {action: goto, page: search page}
      - {action: fill, page: search page, field: query, value: gophers}
      - {action: click, page: search page, field: submit}
  - name: Login
    steps:
      - {action: goto, page: login page}
      - {action: expect_text, page: login page, field: success message, value: Welcome}
`

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	s, err := Load(writeSuite(t, suiteYAML))
	require.NoError(t, err)

	require.Len(t, s.Scenarios, 2)
	assert.Equal(t, "Search", s.Scenarios[0].Name)
	assert.Equal(t, Step{Action: ActionFill, Page: "search page", Field: "query", Value: "gophers"}, s.Scenarios[0].Steps[1])

	defs := s.PageDefinitions()
	assert.Contains(t, defs, "login page", "built-in pages stay available")
	assert.Equal(t, []string{"#search", "//input[@type='search']"}, defs["search page"].Fields["query"].Backups)
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "scenarios:\n  - name: x\n    stepz: []\n",
		"no scenarios":     "scenarios: []\n",
		"unknown page":     "scenarios:\n  - name: x\n    steps:\n      - {action: click, page: nowhere, field: f}\n",
		"unknown field":    "scenarios:\n  - name: x\n    steps:\n      - {action: click, page: login page, field: captcha}\n",
		"unknown action":   "scenarios:\n  - name: x\n    steps:\n      - {action: hover, page: login page, field: login button}\n",
		"duplicate name":   "scenarios:\n  - name: x\n    steps: [{action: goto, page: login page}]\n  - name: x\n    steps: [{action: goto, page: login page}]\n",
		"no steps":         "scenarios:\n  - name: x\n    steps: []\n",
		"missing primary":  "pages:\n  - name: p\n    fields:\n      f: {backups: ['#f']}\nscenarios:\n  - name: x\n    steps: [{action: click, page: p, field: f}]\n",
		"goto without url": "pages:\n  - name: p\n    fields:\n      f: {primary: '#f'}\nscenarios:\n  - name: x\n    steps: [{action: goto, page: p}]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeSuite(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSampleSuite_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suites", "login.yaml")
	require.NoError(t, SampleSuite().Save(path))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SampleSuite(), s)
}

func TestValidate_UnknownFieldIsTyped(t *testing.T) {
	s := &Suite{Scenarios: []Scenario{{
		Name:  "x",
		Steps: []Step{{Action: ActionClick, Page: "login page", Field: "captcha"}},
	}}}
	assert.ErrorIs(t, s.Validate(), pages.ErrUnknownField)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "goto login page", Step{Action: ActionGoto, Page: "login page"}.String())
	assert.Equal(t, "click login page/login button", Step{Action: ActionClick, Page: "login page", Field: "login button"}.String())
}

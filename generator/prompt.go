package generator

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a named system/user prompt pair with {{ placeholder }} tokens.
type Template struct {
	System string `yaml:"system_prompt"`
	User   string `yaml:"user_prompt"`
}

// PromptBook holds the templates loaded at startup. Read-only after construction.
type PromptBook struct {
	templates map[string]Template
}

type promptFile struct {
	Prompts map[string]Template `yaml:"prompts"`
}

// LoadPromptBook reads a prompts.yml file.
func LoadPromptBook(path string) (*PromptBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	book, err := ParsePromptBook(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return book, nil
}

// ParsePromptBook parses the YAML layout `prompts: {name: {system_prompt, user_prompt}}`.
func ParsePromptBook(data []byte) (*PromptBook, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if len(f.Prompts) == 0 {
		return nil, fmt.Errorf("parse prompts: no templates under 'prompts'")
	}
	for name, t := range f.Prompts {
		if strings.TrimSpace(t.User) == "" {
			return nil, fmt.Errorf("prompt %q has empty user_prompt", name)
		}
	}
	return &PromptBook{templates: f.Prompts}, nil
}

// Template returns the named template.
func (b *PromptBook) Template(name string) (Template, error) {
	t, ok := b.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("prompt template %q not found", name)
	}
	return t, nil
}

// Require fails when any of the named templates is missing.
func (b *PromptBook) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := b.templates[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prompt templates missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (b *PromptBook) Names() []string {
	names := make([]string, 0, len(b.templates))
	for n := range b.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Request renders both halves of the template into a Request bound to schema.
func (t Template) Request(vars map[string]string, schema *Schema) Request {
	return Request{
		System: RenderTemplate(t.System, vars),
		User:   RenderTemplate(t.User, vars),
		Schema: schema,
	}
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate replaces {{key}} / {{ key }} placeholders in one pass; substituted
// values are never re-expanded and unknown keys are left untouched.
func RenderTemplate(tmpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

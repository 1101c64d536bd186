package engine

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/user/leadscope/pkg/logger"
)

//go:embed remediation/*.yaml
var remediationFS embed.FS

// RemediationTemplate describes how to fix one finding code
type RemediationTemplate struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Issue       string   `yaml:"issue"`
	Risk        string   `yaml:"risk"`
	Severity    int      `yaml:"severity"`
	Standard    string   `yaml:"standard"`
	Description string   `yaml:"description"`
	Fix         string   `yaml:"fix"`
	Validation  string   `yaml:"validation"`
	Variables   []string `yaml:"variables"`
}

// RemediationCatalog holds remediation templates keyed by finding code
type RemediationCatalog struct {
	Templates map[string]RemediationTemplate
}

var (
	defaultCatalog     *RemediationCatalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *RemediationCatalog {
	defaultCatalogOnce.Do(func() {
		c := NewRemediationCatalog()
		if err := c.LoadTemplates(remediationFS, "remediation"); err != nil {
			logger.Warnf("remediation catalog: %v", err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// NewRemediationCatalog creates an empty catalog
func NewRemediationCatalog() *RemediationCatalog {
	return &RemediationCatalog{Templates: make(map[string]RemediationTemplate)}
}

// LoadTemplates reads YAML templates from a directory of fsys
func (c *RemediationCatalog) LoadTemplates(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		var t RemediationTemplate
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}
		if t.ID == "" {
			return fmt.Errorf("template %s has no id", entry.Name())
		}
		c.Templates[t.ID] = t
		logger.Debugf("Loaded remediation template: %s", t.ID)
	}
	return nil
}

// ListTemplates returns "id: name" for every template, sorted by id
func (c *RemediationCatalog) ListTemplates() []string {
	list := make([]string, 0, len(c.Templates))
	for _, t := range c.Templates {
		list = append(list, fmt.Sprintf("%s: %s", t.ID, t.Name))
	}
	sort.Strings(list)
	return list
}

// Hint renders the one-line fix for a finding code.
func (c *RemediationCatalog) Hint(id string, vars map[string]string) (string, error) {
	t, ok := c.Templates[id]
	if !ok {
		return "", fmt.Errorf("template not found: %s", id)
	}
	return renderString(id+"/description", t.Description, vars)
}

// GeneratePlan creates a remediation plan from a template and variables
func (c *RemediationCatalog) GeneratePlan(id string, vars map[string]string) (string, error) {
	tmpl, ok := c.Templates[id]
	if !ok {
		return "", fmt.Errorf("template not found: %s", id)
	}

	for _, requiredVar := range tmpl.Variables {
		if _, exists := vars[requiredVar]; !exists {
			return "", fmt.Errorf("missing required variable: %s", requiredVar)
		}
	}

	fix, err := renderString("fix", tmpl.Fix, vars)
	if err != nil {
		return "", err
	}
	validate, err := renderString("validate", tmpl.Validation, vars)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("[FIX PLAN]\n")
	sb.WriteString(fmt.Sprintf("Issue: %s\n", tmpl.Issue))
	sb.WriteString(fmt.Sprintf("Risk: %s\n", tmpl.Risk))
	sb.WriteString(fmt.Sprintf("Standard: %s\n\n", tmpl.Standard))

	sb.WriteString("Suggested Fix:\n")
	sb.WriteString(strings.TrimSpace(fix) + "\n\n")

	sb.WriteString("Validation:\n")
	sb.WriteString(strings.TrimSpace(validate) + "\n")

	return sb.String(), nil
}

func renderString(name, tmplStr string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

package task

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlTask is the YAML structure for task definitions.
type yamlTask struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Version     string     `yaml:"version"`
	Author      string     `yaml:"author"`
	StartURL    string     `yaml:"startUrl"`
	Steps       []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Action            string   `yaml:"action"`
	URL               string   `yaml:"url,omitempty"`
	Selector          string   `yaml:"selector,omitempty"`
	Text              string   `yaml:"text,omitempty"`
	Script            string   `yaml:"script,omitempty"`
	Attribute         string   `yaml:"attribute,omitempty"`
	Format            string   `yaml:"format,omitempty"`
	FullPage          bool     `yaml:"fullPage,omitempty"`
	Label             string   `yaml:"label,omitempty"`
	Duration          duration `yaml:"duration,omitempty"`
	Timeout           duration `yaml:"timeout,omitempty"`
	ContinueOnFailure bool     `yaml:"continueOnFailure,omitempty"`
}

// duration is a wrapper for time.Duration that handles YAML parsing.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// Loader handles loading task definitions from various sources.
type Loader struct {
	registry *Registry
}

// NewLoader creates a new task loader that populates the given registry.
func NewLoader(registry *Registry) *Loader {
	return &Loader{registry: registry}
}

// LoadFromFS loads task definitions from an embedded or real filesystem.
// It expects YAML files in a "tasks" subdirectory.
func (l *Loader) LoadFromFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, "tasks")
	if err != nil {
		return fmt.Errorf("failed to read tasks directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		if err := l.loadFile(fsys, "tasks/"+entry.Name()); err != nil {
			return err
		}
	}

	return nil
}

// loadFile loads and validates a single task definition file.
func (l *Loader) loadFile(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("failed to read task file %s: %w", path, err)
	}

	var yt yamlTask
	if err := yaml.Unmarshal(data, &yt); err != nil {
		return fmt.Errorf("failed to parse task file %s: %w", path, err)
	}

	t := convertYAMLTask(&yt)
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task file %s: %w", path, err)
	}
	l.registry.Register(t)

	return nil
}

// convertYAMLTask converts a YAML task to a domain Task.
func convertYAMLTask(yt *yamlTask) *Task {
	t := &Task{
		Name:        yt.Name,
		Description: yt.Description,
		Version:     yt.Version,
		Author:      yt.Author,
		StartURL:    yt.StartURL,
		Steps:       make([]Step, len(yt.Steps)),
	}

	for i, ys := range yt.Steps {
		t.Steps[i] = Step{
			Action:            ActionType(ys.Action),
			URL:               ys.URL,
			Selector:          ys.Selector,
			Text:              ys.Text,
			Script:            ys.Script,
			Attribute:         ys.Attribute,
			Format:            ys.Format,
			FullPage:          ys.FullPage,
			Label:             ys.Label,
			Duration:          time.Duration(ys.Duration),
			Timeout:           time.Duration(ys.Timeout),
			ContinueOnFailure: ys.ContinueOnFailure,
		}
	}

	return t
}

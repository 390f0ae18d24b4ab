package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrTemplateNotFound = errors.New("template not found")

// Template is a named, versioned POL field mapping. Fields hold the default
// values that every merged record starts from.
type Template struct {
	Name        string
	Description string
	Version     string
	Fields      map[string]any
}

// Store is the read-only template collection, loaded once per run from a
// directory of *.json / *.yaml documents. The _description and
// _template_version keys are metadata and never reach the merged record.
type Store struct {
	templates map[string]Template
}

func LoadStore(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}

	store := &Store{templates: make(map[string]Template)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}

		var fields map[string]any
		if ext == ".json" {
			err = json.Unmarshal(raw, &fields)
		} else {
			err = yaml.Unmarshal(raw, &fields)
		}
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ext)
		tmpl := Template{Name: name, Fields: fields}
		if desc, ok := fields["_description"].(string); ok {
			tmpl.Description = desc
		}
		if ver, ok := fields["_template_version"].(string); ok {
			tmpl.Version = ver
		}
		delete(fields, "_description")
		delete(fields, "_template_version")

		store.templates[name] = tmpl
	}

	if len(store.templates) == 0 {
		return nil, fmt.Errorf("no templates found in %s", dir)
	}
	return store, nil
}

// NewStore builds a store from in-memory templates.
func NewStore(tmpls ...Template) *Store {
	store := &Store{templates: make(map[string]Template, len(tmpls))}
	for _, t := range tmpls {
		store.templates[t.Name] = t
	}
	return store
}

func (s *Store) Get(name string) (Template, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return tmpl, nil
}

// List returns templates sorted by name, for the operator API.
func (s *Store) List() []Template {
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

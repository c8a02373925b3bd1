// Package bundle loads form bundles: directories pairing a Lua driver script
// with a form.yaml manifest describing it.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/birocrat"
)

// ErrFormNotFound is returned by Registry.Get for unknown form names.
var ErrFormNotFound = errors.New("form not found")

// ManifestName is the file every bundle directory must contain.
const ManifestName = "form.yaml"

// Manifest describes a form bundle.
type Manifest struct {
	// Name identifies the form; defaults to the directory name.
	Name        string `yaml:"name"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`

	// Script is the driver script path, relative to the bundle directory.
	Script string `yaml:"script"`

	// Params are default driver parameters; callers may override per session.
	Params map[string]any `yaml:"params"`
}

// Bundle is a loaded form bundle.
type Bundle struct {
	Manifest Manifest

	// Dir is the bundle directory.
	Dir string
}

// Load reads a bundle from a directory.
func Load(dir string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading bundle manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing bundle manifest: %w", err)
	}
	if m.Script == "" {
		return nil, fmt.Errorf("bundle %s: manifest does not name a script", dir)
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}

	scriptPath := filepath.Join(dir, m.Script)
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("bundle %s: script %s: %w", dir, m.Script, err)
	}

	return &Bundle{Manifest: m, Dir: dir}, nil
}

// ScriptPath returns the absolute-ish path of the driver script.
func (b *Bundle) ScriptPath() string {
	return filepath.Join(b.Dir, b.Manifest.Script)
}

// Script reads the driver script source.
func (b *Bundle) Script() (string, error) {
	data, err := os.ReadFile(b.ScriptPath())
	if err != nil {
		return "", fmt.Errorf("reading bundle script: %w", err)
	}
	return string(data), nil
}

// NewForm creates a fresh form from the bundle. Params given here are merged
// over the manifest defaults.
func (b *Bundle) NewForm(params map[string]any, opts ...birocrat.Option) (*birocrat.Form, error) {
	merged := b.mergeParams(params)

	formOpts := []birocrat.Option{birocrat.WithName(b.Manifest.Name)}
	if merged != nil {
		formOpts = append(formOpts, birocrat.WithParams(merged))
	}
	formOpts = append(formOpts, opts...)

	return birocrat.NewFromFile(b.ScriptPath(), formOpts...)
}

func (b *Bundle) mergeParams(params map[string]any) map[string]any {
	if len(b.Manifest.Params) == 0 && len(params) == 0 {
		return nil
	}
	merged := make(map[string]any, len(b.Manifest.Params)+len(params))
	for k, v := range b.Manifest.Params {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// Registry locates bundles under a root directory, one bundle per
// subdirectory containing a manifest.
type Registry struct {
	Root string
}

// NewRegistry creates a registry over the given root directory.
func NewRegistry(root string) *Registry {
	return &Registry{Root: root}
}

// List loads every bundle under the root, sorted by name.
func (r *Registry) List() ([]*Bundle, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, fmt.Errorf("reading bundle root: %w", err)
	}

	var bundles []*Bundle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.Root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, ManifestName)); err != nil {
			continue
		}
		b, err := Load(dir)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}

	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].Manifest.Name < bundles[j].Manifest.Name
	})
	return bundles, nil
}

// Get loads the bundle with the given name.
func (r *Registry) Get(name string) (*Bundle, error) {
	bundles, err := r.List()
	if err != nil {
		return nil, err
	}
	for _, b := range bundles {
		if b.Manifest.Name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q under %s", ErrFormNotFound, name, r.Root)
}

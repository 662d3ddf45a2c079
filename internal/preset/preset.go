// Package preset stores named ROI sets in YAML or JSON files.
//
// A file holds any number of presets; each preset is a list of roi.Record
// projections. Loading resolves every record through roi.FromRecord with the
// configured radius rules, so annulus inner radii are always clamped.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"gopkg.in/yaml.v3"
)

// FormatVersion is written to every saved file.
const FormatVersion = 1

var (
	ErrNotFound          = errors.New("preset not found")
	ErrUnsupportedFormat = errors.New("unsupported preset format")
)

// Preset is a named ROI set.
type Preset struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	ROIs        []roi.Record `yaml:"rois" json:"rois"`
}

// File is the on-disk layout.
type File struct {
	Version int      `yaml:"version" json:"version"`
	Presets []Preset `yaml:"presets" json:"presets"`
}

// Store is an in-memory preset collection bound to radius rules.
type Store struct {
	rules   roi.Radii
	presets []Preset
}

// NewStore returns an empty store.
func NewStore(rules roi.Radii) *Store {
	return &Store{rules: rules}
}

// Load reads a preset file. The format follows the extension: .yaml and .yml
// are YAML, .json is JSON.
func Load(path string, rules roi.Radii) (*Store, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: preset path is user input
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("preset file version %d is newer than %d", f.Version, FormatVersion)
	}

	s := NewStore(rules)
	for _, p := range f.Presets {
		if p.Name == "" {
			return nil, fmt.Errorf("%s: preset without name", path)
		}
		if _, err := s.resolve(p); err != nil {
			return nil, fmt.Errorf("%s: preset %q: %w", path, p.Name, err)
		}
		s.upsert(p)
	}
	return s, nil
}

// Save writes the store to path in the format chosen by the extension.
func (s *Store) Save(path string) error {
	f := File{Version: FormatVersion, Presets: s.presets}
	if f.Presets == nil {
		f.Presets = []Preset{}
	}
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
	case ".json":
		data, err = json.MarshalIndent(f, "", "  ")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create preset dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Names lists preset names in file order.
func (s *Store) Names() []string {
	out := make([]string, len(s.presets))
	for i, p := range s.presets {
		out[i] = p.Name
	}
	return out
}

// Get resolves the named preset into fresh models.
func (s *Store) Get(name string) ([]roi.Model, error) {
	i := s.index(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s.resolve(s.presets[i])
}

// Role returns the first ROI with role in the named preset.
func (s *Store) Role(name string, role roi.Role) (roi.Model, error) {
	models, err := s.Get(name)
	if err != nil {
		return roi.Model{}, err
	}
	for _, m := range models {
		if m.Role == role {
			return m, nil
		}
	}
	return roi.Model{}, fmt.Errorf("%w: no %s roi in %q", ErrNotFound, role, name)
}

// Put stores models under name, replacing an existing preset.
func (s *Store) Put(name, description string, models []roi.Model) {
	p := Preset{Name: name, Description: description, ROIs: make([]roi.Record, len(models))}
	for i, m := range models {
		p.ROIs[i] = m.Record()
	}
	s.upsert(p)
}

// Delete removes the named preset and reports whether it existed.
func (s *Store) Delete(name string) bool {
	i := s.index(name)
	if i < 0 {
		return false
	}
	s.presets = slices.Delete(s.presets, i, i+1)
	return true
}

func (s *Store) resolve(p Preset) ([]roi.Model, error) {
	out := make([]roi.Model, 0, len(p.ROIs))
	for i, rec := range p.ROIs {
		m, err := roi.FromRecord(rec, s.rules)
		if err != nil {
			return nil, fmt.Errorf("roi %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) index(name string) int {
	return slices.IndexFunc(s.presets, func(p Preset) bool { return p.Name == name })
}

func (s *Store) upsert(p Preset) {
	if i := s.index(p.Name); i >= 0 {
		s.presets[i] = p
		return
	}
	s.presets = append(s.presets, p)
}

// Package collection loads bundled and user-defined problem collections.
package collection

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.json
var bundled embed.FS

// ErrUnknown is returned for a collection name with no bundled or user list.
var ErrUnknown = errors.New("unknown collection")

// Record is one problem of a static collection.
type Record struct {
	Href       string `json:"href" yaml:"href"`
	Text       string `json:"text" yaml:"text"`
	Difficulty string `json:"difficulty" yaml:"difficulty"`
	IsPremium  bool   `json:"isPremium" yaml:"isPremium"`
}

// Source resolves collection names. User lists in dir shadow bundled ones.
type Source struct {
	dir string
}

// NewSource returns a Source reading user lists from dir. An empty dir disables user lists.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Names lists every available collection, sorted.
func (s *Source) Names() ([]string, error) {
	set := map[string]struct{}{}
	entries, err := fs.ReadDir(bundled, "data")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		set[strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))] = struct{}{}
	}
	if s.dir != "" {
		userEntries, err := os.ReadDir(s.dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read collection directory: %w", err)
		}
		for _, entry := range userEntries {
			if entry.IsDir() {
				continue
			}
			ext := filepath.Ext(entry.Name())
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			set[strings.TrimSuffix(entry.Name(), ext)] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load returns the records of the named collection.
func (s *Source) Load(name string) ([]Record, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if s.dir != "" {
		for _, ext := range []string{".yaml", ".yml"} {
			records, err := loadYAML(filepath.Join(s.dir, name+ext))
			if err == nil {
				return records, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}
	data, err := bundled.ReadFile(path.Join("data", name+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", name, err)
	}
	return records, nil
}

func loadYAML(p string) ([]Record, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p, err)
	}
	for i, r := range records {
		if strings.TrimSpace(r.Href) == "" {
			return nil, fmt.Errorf("%s: record %d has no href", p, i)
		}
	}
	return records, nil
}

package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest overrides discovered scenario metadata. Entries are keyed by
// file stem ("test_03_error_spike") or by prefix ("test_03").
//
//	scenarios:
//	  test_03:
//	    name: Critical Error Spike
//	    allow_partial_failure: true
//	  test_07:
//	    skip: true
type Manifest struct {
	Scenarios map[string]ManifestEntry `yaml:"scenarios"`
}

type ManifestEntry struct {
	Name                string `yaml:"name"`
	AllowPartialFailure *bool  `yaml:"allow_partial_failure"`
	Skip                bool   `yaml:"skip"`
}

// LoadManifest reads a manifest file. A missing file is an empty manifest.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

func (m Manifest) lookup(s Scenario) (ManifestEntry, bool) {
	if e, ok := m.Scenarios[s.Name]; ok {
		return e, true
	}
	e, ok := m.Scenarios[s.Key]
	return e, ok
}

// Apply returns scenarios with overrides applied and skipped entries removed.
func (m Manifest) Apply(scenarios []Scenario) []Scenario {
	if len(m.Scenarios) == 0 {
		return scenarios
	}
	out := make([]Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		e, ok := m.lookup(s)
		if !ok {
			out = append(out, s)
			continue
		}
		if e.Skip {
			continue
		}
		if e.Name != "" {
			s.DisplayName = e.Name
		}
		if e.AllowPartialFailure != nil {
			s.AllowPartialFailure = *e.AllowPartialFailure
		}
		out = append(out, s)
	}
	return out
}

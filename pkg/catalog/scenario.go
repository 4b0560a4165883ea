package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Well-known file names inside the scripts directory.
const (
	BackgroundScript = "background_normal_traffic.sql"
	CleanupScript    = "test_cleanup.sql"
	ManifestFile     = "scenarios.yaml"
	scenarioGlob     = "test_[0-9]*.sql"
)

// Kind selects how a scenario is executed.
type Kind string

const (
	KindScript     Kind = "script"
	KindBruteForce Kind = "bruteforce"
)

// Scenario is one anomaly burst.
type Scenario struct {
	// Ordinal is the 1-based position in the run order.
	Ordinal int `json:"ordinal"`
	// Key is the "test_NN" prefix of the source file.
	Key         string `json:"key"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Source      string `json:"source,omitempty"`
	// AllowPartialFailure scenarios tolerate every statement failure.
	AllowPartialFailure bool `json:"allow_partial_failure"`
	Kind                Kind `json:"kind"`
}

var builtinNames = map[string]string{
	"test_01": "Data Exfiltration",
	"test_02": "Mass Destructive Operations",
	"test_03": "Critical Error Spike",
	"test_04": "Privilege Escalation",
	"test_05": "Cross-Schema Reconnaissance",
	"test_06": "Deep Schema Enumeration",
	"test_07": "ML Baseline Deviation",
}

// Discover lists the anomaly scripts (test_<digit>*.sql) in dir in
// lexicographic order and applies scenarios.yaml when present.
func Discover(dir string) ([]Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, scenarioGlob))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]Scenario, 0, len(paths))
	for _, p := range paths {
		scenarios = append(scenarios, fromPath(p))
	}

	manifest, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	return Renumber(manifest.Apply(scenarios)), nil
}

func fromPath(path string) Scenario {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	key := scenarioKey(stem)
	name, ok := builtinNames[key]
	if !ok {
		name = base
	}
	return Scenario{
		Key:                 key,
		Name:                stem,
		DisplayName:         name,
		Source:              path,
		AllowPartialFailure: strings.Contains(base, "error_spike"),
		Kind:                KindScript,
	}
}

func scenarioKey(stem string) string {
	parts := strings.SplitN(stem, "_", 3)
	if len(parts) < 2 {
		return stem
	}
	return parts[0] + "_" + parts[1]
}

// BruteForceScenario is the synthetic failed-login burst.
func BruteForceScenario() Scenario {
	return Scenario{
		Key:                 "bruteforce",
		Name:                "bruteforce",
		DisplayName:         "Brute Force Login",
		AllowPartialFailure: true,
		Kind:                KindBruteForce,
	}
}

// Renumber assigns ordinals by position.
func Renumber(scenarios []Scenario) []Scenario {
	for i := range scenarios {
		scenarios[i].Ordinal = i + 1
	}
	return scenarios
}

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScripts(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("SELECT 1;\n"), 0o644))
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir,
		"test_02_mass_delete.sql",
		"test_01_data_exfiltration.sql",
		"test_03_error_spike.sql",
		"test_10_custom.sql",
		"test_cleanup.sql",
		BackgroundScript,
		"notes.sql",
	)

	scenarios, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 4)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
		assert.Equal(t, i+1, s.Ordinal)
		assert.Equal(t, KindScript, s.Kind)
	}
	assert.Equal(t, []string{
		"test_01_data_exfiltration",
		"test_02_mass_delete",
		"test_03_error_spike",
		"test_10_custom",
	}, names)

	assert.Equal(t, "Data Exfiltration", scenarios[0].DisplayName)
	assert.Equal(t, "Critical Error Spike", scenarios[2].DisplayName)
	assert.Equal(t, "test_10_custom.sql", scenarios[3].DisplayName)

	assert.False(t, scenarios[0].AllowPartialFailure)
	assert.True(t, scenarios[2].AllowPartialFailure)
}

func TestDiscover_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeScripts(t, dir, "test_01_a.sql", "test_02_b.sql", "test_03_c.sql")
	manifest := `
scenarios:
  test_01:
    name: Bulk Export
  test_02_b:
    skip: true
  test_03:
    allow_partial_failure: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644))

	scenarios, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, "Bulk Export", scenarios[0].DisplayName)
	assert.Equal(t, "test_03_c", scenarios[1].Name)
	assert.Equal(t, 2, scenarios[1].Ordinal)
	assert.True(t, scenarios[1].AllowPartialFailure)
}

func TestDiscover_BadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("scenarios: [oops"), 0o644))

	_, err := Discover(dir)
	assert.Error(t, err)
}

func TestDiscover_Empty(t *testing.T) {
	scenarios, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}

func TestBruteForceScenario(t *testing.T) {
	s := BruteForceScenario()
	assert.Equal(t, KindBruteForce, s.Kind)
	assert.True(t, s.AllowPartialFailure)

	all := Renumber([]Scenario{{Name: "a"}, s})
	assert.Equal(t, 2, all[1].Ordinal)
}

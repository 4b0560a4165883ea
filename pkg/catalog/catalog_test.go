package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) string {
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "-- Query %d\nSELECT %d;\n", i, i)
	}
	return sb.String()
}

func TestParse_Positional(t *testing.T) {
	c, err := Parse(numbered(13))
	require.NoError(t, err)

	assert.False(t, c.Tagged)
	assert.Equal(t, [4]int{5, 2, 3, 3}, c.Sizes())
	assert.Equal(t, []string{"SELECT 1", "SELECT 2", "SELECT 3", "SELECT 4", "SELECT 5"}, c.Selects)
	assert.Equal(t, []string{"SELECT 6", "SELECT 7"}, c.Transactional)
	assert.Equal(t, []string{"SELECT 8", "SELECT 9", "SELECT 10"}, c.Analytical)
	assert.Equal(t, []string{"SELECT 11", "SELECT 12", "SELECT 13"}, c.Errors)
}

func TestParse_PositionalTooShort(t *testing.T) {
	c, err := Parse(numbered(12))
	require.NoError(t, err)

	assert.True(t, c.Empty())
	assert.Equal(t, [4]int{0, 0, 0, 0}, c.Sizes())
	assert.Equal(t, 12, c.Total)
}

func TestParse_PositionalIgnoresExtra(t *testing.T) {
	c, err := Parse(numbered(15))
	require.NoError(t, err)

	assert.Equal(t, [4]int{5, 2, 3, 3}, c.Sizes())
	assert.Equal(t, 15, c.Total)
}

func TestParse_Tagged(t *testing.T) {
	script := `
-- Normal traffic for the demo database
-- @category: selects
SELECT * FROM sales.customer LIMIT 10;
SELECT count(*) FROM production.product;

-- @category: transactional
UPDATE sales.customer SET modifieddate = now() WHERE customerid = 1;

-- @CATEGORY: Analytical
SELECT territoryid, sum(totaldue) FROM sales.salesorderheader GROUP BY 1;

-- @category: errors
SELECT * FROM table_that_does_not_exist;
SELECT 1/0;
`
	c, err := Parse(script)
	require.NoError(t, err)

	assert.True(t, c.Tagged)
	assert.Equal(t, [4]int{2, 1, 1, 2}, c.Sizes())
	assert.Equal(t, 6, c.Total)
	assert.Equal(t, "SELECT 1/0", c.Errors[1])
}

func TestParse_TaggedMissingCategoryIsEmpty(t *testing.T) {
	c, err := Parse("-- @category: selects\nSELECT 1;\n")
	require.NoError(t, err)

	assert.Equal(t, [4]int{1, 0, 0, 0}, c.Sizes())
	assert.Empty(t, c.Get(CategoryErrors))
}

func TestParse_TaggedErrors(t *testing.T) {
	_, err := Parse("-- @category: deletes\nDELETE FROM t;\n")
	assert.ErrorContains(t, err, "unknown category")

	_, err = Parse("SELECT 0;\n-- @category: selects\nSELECT 1;\n")
	assert.ErrorContains(t, err, "before the first @category tag")
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadCatalog(filepath.Join(dir, BackgroundScript), nil)
	require.NoError(t, err)
	assert.True(t, c.Empty(), "missing script yields empty catalog")

	path := filepath.Join(dir, BackgroundScript)
	require.NoError(t, os.WriteFile(path, []byte(numbered(13)), 0o644))
	c, err = LoadCatalog(path, nil)
	require.NoError(t, err)
	assert.Equal(t, [4]int{5, 2, 3, 3}, c.Sizes())
}

func TestLoadStatements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_01_exfil.sql")
	require.NoError(t, os.WriteFile(path, []byte("-- dump\nSELECT * FROM person.person;\nSELECT * FROM sales.creditcard;\n"), 0o644))

	stmts, err := LoadStatements(path)
	require.NoError(t, err)
	assert.Len(t, stmts, 2)

	_, err = LoadStatements(filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(t, err)
}

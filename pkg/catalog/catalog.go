package catalog

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/rmax-ai/pganomaly/pkg/sqlexec"
)

// Category is one of the four background workload statement groups.
type Category string

const (
	CategorySelects       Category = "selects"
	CategoryTransactional Category = "transactional"
	CategoryAnalytical    Category = "analytical"
	CategoryErrors        Category = "errors"
)

// Categories lists the categories in script order.
var Categories = []Category{CategorySelects, CategoryTransactional, CategoryAnalytical, CategoryErrors}

// PositionalSize is the statement count an untagged script must reach for
// the positional layout: 5 selects, 2 transactional, 3 analytical, 3 errors.
const PositionalSize = 13

var tagPattern = regexp.MustCompile(`(?i)^\s*--\s*@category\s*:\s*([a-z_]+)\s*$`)

// Catalog is the background workload: four ordered statement groups.
// An empty group is legal and disables that part of the traffic.
type Catalog struct {
	Selects       []string `json:"selects"`
	Transactional []string `json:"transactional"`
	Analytical    []string `json:"analytical"`
	Errors        []string `json:"errors"`

	// Tagged is false when the positional layout was used.
	Tagged bool `json:"tagged"`
	// Total counts the statements found in the script.
	Total int `json:"total"`
}

// Get returns the statements of one category.
func (c Catalog) Get(cat Category) []string {
	switch cat {
	case CategorySelects:
		return c.Selects
	case CategoryTransactional:
		return c.Transactional
	case CategoryAnalytical:
		return c.Analytical
	case CategoryErrors:
		return c.Errors
	}
	return nil
}

// Sizes returns the group sizes in Categories order.
func (c Catalog) Sizes() [4]int {
	return [4]int{len(c.Selects), len(c.Transactional), len(c.Analytical), len(c.Errors)}
}

// Empty reports whether no group has statements.
func (c Catalog) Empty() bool {
	return c.Sizes() == [4]int{}
}

func (c *Catalog) add(cat Category, stmts []string) {
	switch cat {
	case CategorySelects:
		c.Selects = append(c.Selects, stmts...)
	case CategoryTransactional:
		c.Transactional = append(c.Transactional, stmts...)
	case CategoryAnalytical:
		c.Analytical = append(c.Analytical, stmts...)
	case CategoryErrors:
		c.Errors = append(c.Errors, stmts...)
	}
}

// FromStatements applies the positional layout: the first 13 statements are
// sliced [0:5] [5:7] [7:10] [10:13]. Fewer than 13 leaves every group empty;
// statements past the 13th are ignored.
func FromStatements(stmts []string) Catalog {
	c := Catalog{Total: len(stmts)}
	if len(stmts) < PositionalSize {
		return c
	}
	c.Selects = clone(stmts[0:5])
	c.Transactional = clone(stmts[5:7])
	c.Analytical = clone(stmts[7:10])
	c.Errors = clone(stmts[10:13])
	return c
}

// Parse reads a workload script. Lines of the form
//
//	-- @category: selects
//
// switch the group for the statements that follow. A script without any
// tag falls back to FromStatements.
func Parse(script string) (Catalog, error) {
	var (
		c        Catalog
		current  Category
		tagged   bool
		section  strings.Builder
		preamble []string
	)
	flush := func() {
		stmts := sqlexec.SplitStatements(section.String())
		section.Reset()
		if current == "" {
			preamble = append(preamble, stmts...)
			return
		}
		c.add(current, stmts)
		c.Total += len(stmts)
	}

	for lineNo, line := range strings.Split(script, "\n") {
		m := tagPattern.FindStringSubmatch(line)
		if m == nil {
			section.WriteString(line)
			section.WriteByte('\n')
			continue
		}
		flush()
		cat := Category(strings.ToLower(m[1]))
		if !validCategory(cat) {
			return Catalog{}, fmt.Errorf("line %d: unknown category %q", lineNo+1, m[1])
		}
		current = cat
		tagged = true
	}
	flush()

	if !tagged {
		return FromStatements(preamble), nil
	}
	if len(preamble) > 0 {
		return Catalog{}, fmt.Errorf("%d statement(s) before the first @category tag", len(preamble))
	}
	c.Tagged = true
	return c, nil
}

// LoadCatalog reads the background workload script at path. A missing file
// yields an empty catalog, which disables background statements.
func LoadCatalog(path string, logger *zap.Logger) (Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("background_script_missing", zap.String("path", path))
		return Catalog{}, nil
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read background script: %w", err)
	}

	c, err := Parse(string(data))
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	sizes := c.Sizes()
	fields := []zap.Field{
		zap.String("path", path),
		zap.Bool("tagged", c.Tagged),
		zap.Int("selects", sizes[0]),
		zap.Int("transactional", sizes[1]),
		zap.Int("analytical", sizes[2]),
		zap.Int("errors", sizes[3]),
	}
	switch {
	case !c.Tagged && c.Total < PositionalSize:
		logger.Warn("background_script_too_short", append(fields, zap.Int("statements", c.Total))...)
	case !c.Tagged && c.Total > PositionalSize:
		logger.Warn("background_script_extra_statements_ignored", append(fields, zap.Int("statements", c.Total))...)
	default:
		logger.Info("background_catalog_loaded", fields...)
	}
	return c, nil
}

// LoadStatements reads a script file and splits it into statements.
func LoadStatements(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return sqlexec.SplitStatements(string(data)), nil
}

func validCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

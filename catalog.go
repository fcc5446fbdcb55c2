package dvfs

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

//go:embed catalog.yaml
var bundledCatalog []byte

// CatalogEntry maps a chip class token to its marketing name.
type CatalogEntry struct {
	Chip string `yaml:"chip"`
	CPU  string `yaml:"cpu"`
}

type catalogFile struct {
	Chips []CatalogEntry `yaml:"chips"`
}

// Catalog resolves chip class tokens to display names. It is used for
// presentation only and has no influence on frequency scaling.
type Catalog struct {
	names map[string]string
}

// DefaultCatalog returns the catalog bundled with the package.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(bundledCatalog)
	if err != nil {
		panic(fmt.Sprintf("dvfs: bundled catalog: %v", err))
	}
	return c
}

// LoadCatalog returns the bundled catalog with the entries of path merged on top.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	extra, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for chip, name := range extra.names {
		c.names[chip] = name
	}
	return c, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	c := &Catalog{names: make(map[string]string, len(file.Chips))}
	for _, entry := range file.Chips {
		if entry.Chip == "" {
			return nil, fmt.Errorf("catalog entry %q has no chip", entry.CPU)
		}
		c.names[entry.Chip] = entry.CPU
	}
	return c, nil
}

// CPUModel returns the marketing name for chip, falling back to the token itself.
func (c *Catalog) CPUModel(chip string) string {
	if c != nil {
		if name, ok := c.names[chip]; ok {
			return name
		}
	}
	return chip
}

// Len reports the number of known chips.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

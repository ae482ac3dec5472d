// Package catalog provides read-only access to the MCP server listing catalog.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Really-Cool/mcpapi/pkg/models"
)

//go:embed catalog.yaml
var catalogRawData []byte

// ErrNotFound is returned by ByID when no listing has the requested id.
var ErrNotFound = errors.New("catalog: listing not found")

// catalogFile is the top-level structure of the catalog YAML.
type catalogFile struct {
	Sections []models.Section `yaml:"sections"`
}

// Catalog provides lazy-loaded access to the listing catalog.
type Catalog struct {
	raw []byte

	once     sync.Once
	sections []models.Section
	entries  []models.Listing
	byID     map[string]int
	err      error
}

// NewCatalog creates a Catalog that will parse the embedded YAML on first access.
func NewCatalog() *Catalog {
	return &Catalog{raw: catalogRawData}
}

// NewCatalogFromYAML creates a Catalog backed by the given YAML document
// instead of the embedded one.
func NewCatalogFromYAML(data []byte) *Catalog {
	return &Catalog{raw: data}
}

// Load forces parsing and reports any error. Accessors call it implicitly.
func (c *Catalog) Load() error {
	c.once.Do(c.load)
	return c.err
}

// Sections returns a copy of all sections in document order.
func (c *Catalog) Sections() ([]models.Section, error) {
	if err := c.Load(); err != nil {
		return nil, err
	}
	cp := make([]models.Section, len(c.sections))
	for i, s := range c.sections {
		s.Items = append([]models.Listing(nil), s.Items...)
		cp[i] = s
	}
	return cp, nil
}

// Entries returns a copy of all listings flattened in section order.
func (c *Catalog) Entries() ([]models.Listing, error) {
	if err := c.Load(); err != nil {
		return nil, err
	}
	cp := make([]models.Listing, len(c.entries))
	copy(cp, c.entries)
	return cp, nil
}

// ByID returns the listing with the given id.
func (c *Catalog) ByID(id string) (models.Listing, error) {
	if err := c.Load(); err != nil {
		return models.Listing{}, err
	}
	i, ok := c.byID[id]
	if !ok {
		return models.Listing{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.entries[i], nil
}

// Len returns the number of listings, or 0 if the catalog failed to load.
func (c *Catalog) Len() int {
	if c.Load() != nil {
		return 0
	}
	return len(c.entries)
}

// load parses the catalog YAML and indexes listings by id.
func (c *Catalog) load() {
	var f catalogFile
	if err := yaml.Unmarshal(c.raw, &f); err != nil {
		c.err = fmt.Errorf("catalog: parse yaml: %w", err)
		return
	}

	byID := make(map[string]int)
	var entries []models.Listing
	for _, s := range f.Sections {
		for _, item := range s.Items {
			if item.ID == "" {
				c.err = fmt.Errorf("catalog: section %q has a listing without an id", s.ID)
				return
			}
			if _, dup := byID[item.ID]; dup {
				c.err = fmt.Errorf("catalog: duplicate listing id %q", item.ID)
				return
			}
			byID[item.ID] = len(entries)
			entries = append(entries, item)
		}
	}

	c.sections = f.Sections
	c.entries = entries
	c.byID = byID
}

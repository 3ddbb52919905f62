package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

//go:embed categories.yaml
var defaultTable []byte

type file struct {
	Categories []domain.Category `yaml:"categories"`
}

// Registry is an immutable, ordered category table.
type Registry struct {
	categories []domain.Category
}

// Default returns the embedded table.
func Default() (*Registry, error) {
	return Parse(defaultTable)
}

// Load reads the table from path, or the embedded default when path is empty.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if err := validate(f.Categories); err != nil {
		return nil, err
	}
	return &Registry{categories: f.Categories}, nil
}

// Categories returns a copy in match order.
func (r *Registry) Categories() []domain.Category {
	out := make([]domain.Category, len(r.categories))
	for i, c := range r.categories {
		c.KnownFiles = append([]string(nil), c.KnownFiles...)
		out[i] = c
	}
	return out
}

func (r *Registry) Lookup(id string) (domain.Category, bool) {
	for _, c := range r.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

func validate(categories []domain.Category) error {
	if len(categories) == 0 {
		return errors.New("categories: table is empty")
	}
	seen := make(map[string]struct{}, len(categories))
	for i, c := range categories {
		if c.ID == "" {
			return fmt.Errorf("categories[%d]: missing id", i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("categories[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = struct{}{}

		switch c.Format {
		case domain.FormatMarkup, domain.FormatRecordList:
		default:
			return fmt.Errorf("category %s: unknown format %q", c.ID, c.Format)
		}
		if len(c.KnownFiles) == 0 {
			return fmt.Errorf("category %s: known_files is empty", c.ID)
		}
		if c.ExtractionFile() == "" {
			return fmt.Errorf("category %s: no %s data file", c.ID, c.Format)
		}
	}
	return nil
}

package cards

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CatalogFile is the top-level YAML structure of a catalog.
type CatalogFile struct {
	Cards []CatalogEntry `yaml:"cards"`
}

// CatalogEntry declares how many copies of one card definition a deck holds.
type CatalogEntry struct {
	Type   Type   `yaml:"type"`
	Color  Color  `yaml:"color,omitempty"`
	Effect Effect `yaml:"effect,omitempty"`
	Count  int    `yaml:"count"`
}

// Catalog is a validated deck composition.
type Catalog struct {
	entries []CatalogEntry
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cf CatalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}
	if len(cf.Cards) == 0 {
		return nil, fmt.Errorf("catalog has no cards")
	}
	for i, entry := range cf.Cards {
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return &Catalog{entries: cf.Cards}, nil
}

func (e CatalogEntry) validate() error {
	if e.Count <= 0 {
		return fmt.Errorf("count must be positive, got %d", e.Count)
	}
	switch e.Type {
	case TypeModule, TypeBug, TypePatch:
		if !validColor(e.Color) {
			return fmt.Errorf("%s needs a valid color, got %q", e.Type, e.Color)
		}
		if e.Effect != "" {
			return fmt.Errorf("%s cannot carry an effect", e.Type)
		}
	case TypeOperation:
		if !validEffect(e.Effect) {
			return fmt.Errorf("operation needs a valid effect, got %q", e.Effect)
		}
		if e.Color != "" {
			return fmt.Errorf("operation cannot carry a color")
		}
	default:
		return fmt.Errorf("unknown card type %q", e.Type)
	}
	return nil
}

func validColor(c Color) bool {
	if c == ColorMulticolor {
		return true
	}
	for _, mc := range ModuleColors {
		if c == mc {
			return true
		}
	}
	return false
}

func validEffect(e Effect) bool {
	for _, known := range Effects {
		if e == known {
			return true
		}
	}
	return false
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded card catalog is invalid: %v", err))
	}
	return c
})

// LoadCatalog reads a catalog file. An empty path yields DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the standard game composition.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// Size returns the number of cards a deck built from the catalog holds.
func (c *Catalog) Size() int {
	total := 0
	for _, e := range c.entries {
		total += e.Count
	}
	return total
}

// BuildDeck returns one instance of every card in catalog order. The
// composition is fixed; callers shuffle it.
func (c *Catalog) BuildDeck() []Card {
	deck := make([]Card, 0, c.Size())
	for _, e := range c.entries {
		name, desc := nameKey(e.Type, e.Color, e.Effect)
		for i := 0; i < e.Count; i++ {
			deck = append(deck, Card{
				ID:          uuid.New().String(),
				Type:        e.Type,
				Color:       e.Color,
				Effect:      e.Effect,
				Name:        name,
				Description: desc,
			})
		}
	}
	return deck
}

// BuildDeck builds a deck from the default catalog.
func BuildDeck() []Card {
	return DefaultCatalog().BuildDeck()
}

// Shuffle returns a uniformly random permutation of deck using Fisher-Yates.
// The input slice is left untouched.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

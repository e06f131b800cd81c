package phrase

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed curated.yaml
var curatedYAML []byte

// Catalog is an ordered, read-only list of phrases.
type Catalog struct {
	items []Phrase
}

// NewCatalog builds a catalog over a copy of items.
func NewCatalog(items []Phrase) *Catalog {
	cp := make([]Phrase, len(items))
	copy(cp, items)
	return &Catalog{items: cp}
}

// LoadCatalog decodes a YAML list of phrases and assigns course ids by position.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var raw []Phrase
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	items := make([]Phrase, 0, len(raw))
	for i, p := range raw {
		d, err := ParseDifficulty(string(p.Difficulty))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i+1, err)
		}
		p.Difficulty = d
		p.ID = CourseID(i)
		items = append(items, p)
	}
	return &Catalog{items: items}, nil
}

// CourseID returns the id of the curated phrase at zero-based position i.
func CourseID(i int) string {
	return fmt.Sprintf("core-1k-%04d", i+1)
}

var curated = sync.OnceValue(func() *Catalog {
	c, err := LoadCatalog(bytes.NewReader(curatedYAML))
	if err != nil {
		panic(fmt.Sprintf("phrase: embedded catalog: %v", err))
	}
	return c
})

// Curated returns the embedded course catalog.
func Curated() *Catalog {
	return curated()
}

// Len returns the number of phrases.
func (c *Catalog) Len() int {
	return len(c.items)
}

// At returns the phrase at position i modulo the catalog length.
func (c *Catalog) At(i int) Phrase {
	return c.items[c.wrap(i)]
}

// All returns a copy of every phrase.
func (c *Catalog) All() []Phrase {
	out := make([]Phrase, len(c.items))
	copy(out, c.items)
	return out
}

// Batch returns exactly count phrases starting at index, wrapping around
// the end of the list as many times as needed. It never fails for an
// out-of-range index. An empty catalog or a non-positive count yields nil.
func (c *Catalog) Batch(index, count int) []Phrase {
	if len(c.items) == 0 || count <= 0 {
		return nil
	}
	start := c.wrap(index)
	out := make([]Phrase, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, c.items[(start+i)%len(c.items)])
	}
	return out
}

// Random samples up to count distinct phrases.
func (c *Catalog) Random(count int, rng *rand.Rand) []Phrase {
	if count <= 0 || len(c.items) == 0 {
		return nil
	}
	if count > len(c.items) {
		count = len(c.items)
	}
	perm := rng.Perm(len(c.items))
	out := make([]Phrase, count)
	for i := 0; i < count; i++ {
		out[i] = c.items[perm[i]]
	}
	return out
}

// Filter returns the phrases of one difficulty tier.
func (c *Catalog) Filter(d Difficulty) []Phrase {
	var out []Phrase
	for _, p := range c.items {
		if p.Difficulty == d {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) wrap(i int) int {
	n := len(c.items)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

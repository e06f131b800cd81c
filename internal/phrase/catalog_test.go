package phrase

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) *Catalog {
	items := make([]Phrase, n)
	for i := range items {
		items[i] = Phrase{ID: fmt.Sprint(i), English: fmt.Sprintf("phrase %d", i), Difficulty: Easy}
	}
	return NewCatalog(items)
}

func ids(ps []Phrase) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestCatalog_BatchWrapsAroundEnd(t *testing.T) {
	c := numbered(100)
	assert.Equal(t, []string{"97", "98", "99", "0", "1"}, ids(c.Batch(97, 5)))
}

func TestCatalog_BatchAlwaysReturnsCount(t *testing.T) {
	c := numbered(7)

	tests := []struct {
		name  string
		index int
		count int
		want  []string
	}{
		{"inside", 1, 3, []string{"1", "2", "3"}},
		{"exact end", 4, 3, []string{"4", "5", "6"}},
		{"crosses end", 5, 4, []string{"5", "6", "0", "1"}},
		{"index beyond length", 23, 2, []string{"2", "3"}},
		{"whole list", 3, 7, []string{"3", "4", "5", "6", "0", "1", "2"}},
		{"negative index", -1, 2, []string{"6", "0"}},
		{"more than length", 6, 9, []string{"6", "0", "1", "2", "3", "4", "5", "6", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Batch(tt.index, tt.count)
			assert.Len(t, got, tt.count)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestCatalog_BatchEdgeCases(t *testing.T) {
	assert.Nil(t, numbered(3).Batch(0, 0))
	assert.Nil(t, NewCatalog(nil).Batch(5, 3))
}

func TestCatalog_RandomIsDistinct(t *testing.T) {
	c := numbered(20)
	got := c.Random(5, rand.New(rand.NewSource(7)))
	require.Len(t, got, 5)

	seen := map[string]bool{}
	for _, p := range got {
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
	}

	assert.Len(t, c.Random(50, rand.New(rand.NewSource(1))), 20)
}

func TestCurated_Embedded(t *testing.T) {
	c := Curated()
	require.Equal(t, 137, c.Len())

	first := c.At(0)
	assert.Equal(t, "core-1k-0001", first.ID)
	assert.Equal(t, "I am happy to be here.", first.English)
	assert.Equal(t, Easy, first.Difficulty)

	last := c.At(c.Len() - 1)
	assert.Equal(t, "core-1k-0137", last.ID)

	for _, p := range c.All() {
		assert.True(t, p.Valid(), p.ID)
	}
}

func TestLoadCatalog_RejectsUnknownDifficulty(t *testing.T) {
	_, err := LoadCatalog(strings.NewReader("- english: Hi\n  portuguese: Oi\n  difficulty: extreme\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDifficulty)
}

func TestParseDifficulty(t *testing.T) {
	d, err := ParseDifficulty(" Hard ")
	require.NoError(t, err)
	assert.Equal(t, Hard, d)
	assert.Equal(t, "Difícil", d.Label())

	_, err = ParseDifficulty("")
	assert.ErrorIs(t, err, ErrUnknownDifficulty)
}

func TestIsTopic(t *testing.T) {
	assert.True(t, IsTopic("Travel & Airport"))
	assert.True(t, IsTopic(MixTopic))
	assert.False(t, IsTopic("Astrophysics"))
	assert.Len(t, Topics, 15)
}

package propagation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/classflow/internal/image"
)

func TestTypeStackPushLocalRoundTrips(t *testing.T) {
	p := newFixtureProgram(t)
	s := NewTypeStack(-1, 4, WordsPerType(p.ClassCount()))

	s.PushSmi(p)
	require.True(t, s.Local(0).Contains(p.SmiClass()))

	s.PushString(p)
	require.True(t, s.Local(0).Contains(p.StringClass()))
	require.True(t, s.Local(1).Contains(p.SmiClass()))
}

func TestTypeStackMergeGrowsOnNewClass(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())

	a := NewTypeStack(-1, 2, words)
	a.PushSmi(p)

	b := NewTypeStack(-1, 2, words)
	b.PushString(p)

	require.True(t, a.Merge(b))
	require.True(t, a.Local(0).Contains(p.SmiClass()))
	require.True(t, a.Local(0).Contains(p.StringClass()))

	// A second merge of the same stack contributes nothing new.
	require.False(t, a.Merge(b))
}

func TestTypeStackMergeAgreeingBlocksDoesNotPanic(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())
	block := newBlockTemplate(image.Method{Arity: 1, IsBlock: true}, 0, words)

	a := NewTypeStack(-1, 1, words)
	a.PushBlock(block)

	b := NewTypeStack(-1, 1, words)
	b.PushBlock(block)

	require.NotPanics(t, func() { a.Merge(b) })
}

func TestTypeStackMergeDisagreeingBlocksPanics(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())
	one := newBlockTemplate(image.Method{Arity: 1, IsBlock: true}, 0, words)
	two := newBlockTemplate(image.Method{Arity: 1, IsBlock: true}, 0, words)

	a := NewTypeStack(-1, 1, words)
	a.PushBlock(one)

	b := NewTypeStack(-1, 1, words)
	b.PushBlock(two)

	require.Panics(t, func() { a.Merge(b) })
}

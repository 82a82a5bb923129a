package propagation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/classflow/internal/image"
)

func newFixtureProgram(t *testing.T) *image.MutableProgram {
	t.Helper()
	p := image.NewMutableProgram(8)
	p.SetWellKnownClasses(0, 1, 2, 3, 4, 5, 6, 7, 7, 0, 0, 0)
	return p
}

func TestTypeSetAddContainsIsMonotone(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())
	ts := NewTypeSet(words)

	require.True(t, ts.IsEmpty(p))
	require.True(t, ts.AddSmi(p))
	require.False(t, ts.IsEmpty(p))
	require.True(t, ts.Contains(p.SmiClass()))

	// Adding an already-present class reports no growth.
	require.False(t, ts.AddSmi(p))
}

func TestTypeSetAddAllIsCommutative(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())

	a := NewTypeSet(words)
	a.AddSmi(p)
	b := NewTypeSet(words)
	b.AddString(p)

	ab := a.Copy()
	ab.AddAll(b)
	ba := b.Copy()
	ba.AddAll(a)

	require.True(t, ab.ContainsAll(ba))
	require.True(t, ba.ContainsAll(ab))
}

func TestTypeSetAnyContainsEveryClass(t *testing.T) {
	p := newFixtureProgram(t)
	ts := NewTypeSet(WordsPerType(p.ClassCount()))
	ts.AddAny(p.ClassCount())

	require.True(t, ts.IsAny(p))
	for id := image.ClassID(0); int(id) < p.ClassCount(); id++ {
		require.True(t, ts.Contains(id))
	}
}

func TestTypeSetIteratorVisitsAddedClasses(t *testing.T) {
	p := newFixtureProgram(t)
	ts := NewTypeSet(WordsPerType(p.ClassCount()))
	ts.AddSmi(p)
	ts.AddString(p)

	seen := map[image.ClassID]bool{}
	it := ts.Iterator()
	for it.HasNext() {
		seen[it.Next()] = true
	}
	require.True(t, seen[p.SmiClass()])
	require.True(t, seen[p.StringClass()])
	require.Len(t, seen, 2)
}

func TestTypeSetBlockIsMutuallyExclusiveWithClasses(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())
	ts := NewTypeSet(words)
	require.False(t, ts.IsBlock())

	block := &BlockTemplate{}
	ts.SetBlock(block)
	require.True(t, ts.IsBlock())
	require.Same(t, block, ts.Block())
}

func TestTypeSetCopyIsIndependent(t *testing.T) {
	p := newFixtureProgram(t)
	ts := NewTypeSet(WordsPerType(p.ClassCount()))
	ts.AddSmi(p)

	cp := ts.Copy()
	cp.AddString(p)

	require.False(t, ts.Contains(p.StringClass()))
	require.True(t, cp.Contains(p.StringClass()))
}

func TestTypeSetAsJSONDistinguishesBlocksFromClasses(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())

	classes := NewTypeSet(words)
	classes.AddSmi(p)
	require.Equal(t, "[3]", classes.AsJSON(p))

	any := NewTypeSet(words)
	any.AddAny(p.ClassCount())
	require.Equal(t, `"*"`, any.AsJSON(p))

	blocks := NewTypeSet(words)
	blocks.SetBlock(&BlockTemplate{})
	require.Equal(t, `"[]"`, blocks.AsJSON(p))
}

func TestTypeSetPrintRendersClassesAndBlocksDistinctly(t *testing.T) {
	p := newFixtureProgram(t)
	words := WordsPerType(p.ClassCount())

	classes := NewTypeSet(words)
	classes.AddSmi(p)
	classes.AddString(p)
	require.Equal(t, "TypeSet(arg0) = { 3, 6 }", classes.Print(p, "arg0"))

	empty := NewTypeSet(words)
	require.Equal(t, "TypeSet(arg1) = { }", empty.Print(p, "arg1"))

	block := &BlockTemplate{}
	blocks := NewTypeSet(words)
	blocks.SetBlock(block)
	require.Contains(t, blocks.Print(p, "arg2"), "block=0x")
}

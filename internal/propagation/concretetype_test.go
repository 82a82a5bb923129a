package propagation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/classflow/internal/image"
)

func TestConcreteTypeMatches(t *testing.T) {
	a := ClassType(3)
	b := ClassType(3)
	c := ClassType(4)

	require.True(t, a.Matches(b))
	require.False(t, a.Matches(c))
	require.True(t, AnyType().Matches(AnyType()))
	require.False(t, a.Matches(AnyType()))
}

func TestConcreteTypeBlocksMatchByIdentity(t *testing.T) {
	method := image.Method{Arity: 1, IsBlock: true}
	x := newBlockTemplate(method, 1, 2)
	y := newBlockTemplate(method, 1, 2)

	require.True(t, BlockType(x).Matches(BlockType(x)))
	require.False(t, BlockType(x).Matches(BlockType(y)))
	require.True(t, BlockType(x).MatchesIgnoringBlocks(BlockType(y)))
}

func TestConcreteTypeClassPanicsOnBlockOrAny(t *testing.T) {
	require.Panics(t, func() { AnyType().Class() })
	require.Panics(t, func() { BlockType(&BlockTemplate{}).Class() })
}

func TestConcreteTypeTupleEquals(t *testing.T) {
	x := ConcreteTypeTuple{ClassType(1), ClassType(2)}
	y := ConcreteTypeTuple{ClassType(1), ClassType(2)}
	z := ConcreteTypeTuple{ClassType(1), ClassType(3)}

	require.True(t, x.Equals(y, false))
	require.False(t, x.Equals(z, false))
	require.False(t, x.Equals(ConcreteTypeTuple{ClassType(1)}, false))
}

func TestConcreteTypeTupleHashStableForEqualTuples(t *testing.T) {
	x := ConcreteTypeTuple{ClassType(1), AnyType(), ClassType(image.ClassID(5))}
	y := ConcreteTypeTuple{ClassType(1), AnyType(), ClassType(image.ClassID(5))}

	require.Equal(t, x.Hash(42, false), y.Hash(42, false))
}

func TestConcreteTypeTupleHashIgnoresBlockIdentityWhenAsked(t *testing.T) {
	a := &BlockTemplate{id: 1}
	b := &BlockTemplate{id: 2}
	x := ConcreteTypeTuple{BlockType(a)}
	y := ConcreteTypeTuple{BlockType(b)}

	require.NotEqual(t, x.Hash(0, false), y.Hash(0, false))
	require.Equal(t, x.Hash(0, true), y.Hash(0, true))
}

package propagation

import "github.com/emberlang/classflow/internal/image"

// ConcreteType is one entry of a Cartesian-Product-Algorithm argument
// tuple: either a concrete class, a specific block (by reference
// identity, since a block's behavior depends on the lexical closure it
// was created from, not any type), or Any (the argument was never
// specialized, i.e. a megamorphic call site).
type ConcreteType struct {
	class image.ClassID
	block *BlockTemplate
	any   bool
}

// AnyType is the top-of-lattice argument: a call site specializes no
// further on this position.
func AnyType() ConcreteType { return ConcreteType{any: true} }

// ClassType is a concrete single-class argument.
func ClassType(id image.ClassID) ConcreteType { return ConcreteType{class: id} }

// BlockType is a concrete block-literal argument, identified by the
// BlockTemplate created at its LOAD_BLOCK site.
func BlockType(tpl *BlockTemplate) ConcreteType { return ConcreteType{block: tpl} }

func (c ConcreteType) IsBlock() bool { return c.block != nil }
func (c ConcreteType) IsAny() bool   { return c.any }

// Matches reports whether c and other are the exact same concrete type.
func (c ConcreteType) Matches(other ConcreteType) bool {
	if c.any || other.any {
		return c.any == other.any
	}
	if c.IsBlock() || other.IsBlock() {
		return c.block == other.block
	}
	return c.class == other.class
}

// MatchesIgnoringBlocks reports whether c and other match, treating any
// two blocks as equivalent regardless of identity. Used when a template
// lookup only needs to know "some block was passed here", as for a
// method specialized once per block-or-not rather than once per block
// literal.
func (c ConcreteType) MatchesIgnoringBlocks(other ConcreteType) bool {
	if c.IsBlock() {
		return other.IsBlock()
	}
	return c.Matches(other)
}

// Class returns the concrete class of a non-block, non-any type. It
// panics otherwise.
func (c ConcreteType) Class() image.ClassID {
	if c.IsBlock() || c.any {
		panic("propagation: Class called on a block or any ConcreteType")
	}
	return c.class
}

// Block returns the referenced BlockTemplate. It panics if c is not a
// block type.
func (c ConcreteType) Block() *BlockTemplate {
	if !c.IsBlock() {
		panic("propagation: Block called on a non-block ConcreteType")
	}
	return c.block
}

// ConcreteTypeTuple is a CPA specialization key: the argument types of
// one call, in order (receiver first).
type ConcreteTypeTuple []ConcreteType

// Equals reports whether x and y are the same specialization, under the
// same ignoreBlocks policy as ConcreteType.Matches /
// MatchesIgnoringBlocks.
func (x ConcreteTypeTuple) Equals(y ConcreteTypeTuple, ignoreBlocks bool) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		var ok bool
		if ignoreBlocks {
			ok = x[i].MatchesIgnoringBlocks(y[i])
		} else {
			ok = x[i].Matches(y[i])
		}
		if !ok {
			return false
		}
	}
	return true
}

// Hash computes a bucket key for a method template table, combining the
// defining method's header position with every argument's contribution.
// Two tuples that Equals (under the same ignoreBlocks policy) always
// hash equal; collisions beyond that are resolved by a linear scan
// within the bucket (see MethodTemplate).
func (x ConcreteTypeTuple) Hash(headerBCP int, ignoreBlocks bool) uint32 {
	result := (uint32(len(x)) << 13) ^ uint32(headerBCP)
	for _, t := range x {
		var part uint32
		switch {
		case t.IsBlock():
			if ignoreBlocks {
				part = 0xdeadcafe
			} else {
				part = blockIdentity(t.block)
			}
		case t.any:
			part = 0xbeefbabe
		default:
			part = uint32(t.class) * 31
		}
		result = (result * 37) ^ part
	}
	return result
}

// blockIdentity gives a stable hash contribution per distinct
// *BlockTemplate without exposing pointer values in the analysis
// output; it is only ever used as an opaque hash bucket contributor.
func blockIdentity(b *BlockTemplate) uint32 {
	if b == nil {
		return 0
	}
	return uint32(b.id)
}

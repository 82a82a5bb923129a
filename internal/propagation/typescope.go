package propagation

// frameSize is the number of stack slots this port reserves below a
// method's locals window (analogous to a saved return address and
// saved frame pointer in a real activation record). Bytecode emission
// is out of scope, so the exact frame layout is this port's own and
// only needs to be self-consistent.
const frameSize = 2

// TypeScope is a stack of TypeStacks, one per lexically enclosing block
// level, representing the full operand-stack state reachable from one
// point in the program (the current block's stack plus every outer
// block's stack, needed to resolve LOAD_OUTER/STORE_OUTER).
//
// Levels are copy-on-write: a scope created via CopyLazily shares
// TypeStack pointers with its source until a mutation forces a level to
// be materialized, which keeps cheap lazily-created scopes (one per
// worklist position) from paying for a full deep copy unless they are
// actually merged into.
type TypeScope struct {
	wordsPerType int
	level        int
	method       *MethodTemplate
	outer        *TypeScope
	stacks       []*TypeStack
	owned        []bool
}

// NewMethodScope returns the entry scope of a method activation, with
// its single (level 0) stack seeded from the method's CPA argument
// types.
func NewMethodScope(method *MethodTemplate) *TypeScope {
	p := method.propagator
	wordsPerType := p.wordsPerType
	m := method.method
	sp := m.Arity + frameSize
	stack := NewTypeStack(sp-1, sp+m.MaxHeight+1, wordsPerType)
	for i := 0; i < m.Arity; i++ {
		t := stack.Get(i)
		arg := method.Argument(i)
		switch {
		case arg.IsBlock():
			t.SetBlock(arg.Block())
		case arg.IsAny():
			t.AddAny(p.program.ClassCount())
		default:
			t.Add(arg.Class())
		}
		stack.Set(i, t)
	}
	return &TypeScope{
		wordsPerType: wordsPerType,
		level:        0,
		method:       method,
		stacks:       []*TypeStack{stack},
		owned:        []bool{true},
	}
}

// NewBlockScope returns the scope for entering block's body from outer,
// sharing (copy-on-write) outer's levels and pushing one new level for
// the block's own stack, seeded with the block's receiver (itself, as a
// block TypeSet) and its captured argument TypeVariables.
func NewBlockScope(block *BlockTemplate, outer *TypeScope) *TypeScope {
	level := outer.level + 1
	stacks := make([]*TypeStack, level+1)
	owned := make([]bool, level+1)
	for i := 0; i <= outer.level; i++ {
		stacks[i] = outer.stacks[i]
		owned[i] = false
	}

	m := block.method
	sp := m.Arity + frameSize
	stack := NewTypeStack(sp-1, sp+m.MaxHeight+1, outer.wordsPerType)
	receiver := stack.Get(0)
	receiver.SetBlock(block)
	stack.Set(0, receiver)
	for i := 1; i < m.Arity; i++ {
		stack.Set(i, block.Argument(i).Type())
	}
	stacks[level] = stack
	owned[level] = true

	return &TypeScope{
		wordsPerType: outer.wordsPerType,
		level:        level,
		method:       outer.method,
		outer:        outer,
		stacks:       stacks,
		owned:        owned,
	}
}

// Level returns the current block nesting depth (0 for the method's own
// scope).
func (s *TypeScope) Level() int { return s.level }

// Method returns the MethodTemplate this scope activation belongs to.
func (s *TypeScope) Method() *MethodTemplate { return s.method }

// Outer returns the enclosing scope this one was created from, or nil
// for a method's own top-level scope.
func (s *TypeScope) Outer() *TypeScope { return s.outer }

func (s *TypeScope) mutableAt(n int) *TypeStack {
	if !s.owned[n] {
		s.stacks[n] = s.stacks[n].Copy()
		s.owned[n] = true
	}
	return s.stacks[n]
}

// Top returns the current (innermost) block's stack, materializing it
// if it was still shared.
func (s *TypeScope) Top() *TypeStack { return s.mutableAt(s.level) }

// At returns the stack at nesting level n, materializing it if needed.
func (s *TypeScope) At(n int) *TypeStack { return s.mutableAt(n) }

// LoadOuter reads local `index` from the stack owned by the block
// referenced by the block TypeSet.
func (s *TypeScope) LoadOuter(block TypeSet, index int) TypeSet {
	return s.At(block.Block().level).Local(index)
}

// StoreOuter writes local `index` on the stack owned by the block
// referenced by the block TypeSet.
func (s *TypeScope) StoreOuter(block TypeSet, index int, value TypeSet) {
	s.At(block.Block().level).SetLocal(index, value)
}

// Copy returns a fully independent deep copy of s.
func (s *TypeScope) Copy() *TypeScope {
	stacks := make([]*TypeStack, s.level+1)
	owned := make([]bool, s.level+1)
	for i := 0; i <= s.level; i++ {
		stacks[i] = s.stacks[i].Copy()
		owned[i] = true
	}
	return &TypeScope{
		wordsPerType: s.wordsPerType,
		level:        s.level,
		method:       s.method,
		outer:        s.outer,
		stacks:       stacks,
		owned:        owned,
	}
}

// CopyLazily returns a scope sharing s's levels without copying,
// deferring materialization to the first mutation of each level. Used
// by Worklist to hand out a position's merged scope cheaply.
func (s *TypeScope) CopyLazily() *TypeScope {
	stacks := make([]*TypeStack, s.level+1)
	owned := make([]bool, s.level+1)
	for i := 0; i <= s.level; i++ {
		stacks[i] = s.stacks[i]
		owned[i] = false
	}
	return &TypeScope{
		wordsPerType: s.wordsPerType,
		level:        s.level,
		method:       s.method,
		outer:        s.outer,
		stacks:       stacks,
		owned:        owned,
	}
}

// Merge merges every level s and other have in common into s (s's own
// level bounds the merge, so returning out of block levels the callee
// entered naturally discards them) and reports whether s grew.
func (s *TypeScope) Merge(other *TypeScope) bool {
	limit := s.level
	if limit > other.level {
		limit = other.level
	}
	grew := false
	for i := 0; i <= limit; i++ {
		if s.mutableAt(i).Merge(other.stacks[i]) {
			grew = true
		}
	}
	return grew
}

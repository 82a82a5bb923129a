package propagation

import "github.com/emberlang/classflow/internal/image"

// TypeStack is a fixed-capacity operand stack of TypeSets for one method
// or block activation. Slots above sp are not zeroed between pushes;
// callers only ever read slots at or below sp.
type TypeStack struct {
	sp           int
	wordsPerType int
	slots        []TypeSet
}

// NewTypeStack returns a stack with the given initial stack pointer and
// capacity, every slot initialized to an empty TypeSet.
func NewTypeStack(sp, size, wordsPerType int) *TypeStack {
	slots := make([]TypeSet, size)
	for i := range slots {
		slots[i] = NewTypeSet(wordsPerType)
	}
	return &TypeStack{sp: sp, wordsPerType: wordsPerType, slots: slots}
}

// SP returns the current stack pointer (index of the top element).
func (s *TypeStack) SP() int { return s.sp }

// Get returns the TypeSet at absolute slot index.
func (s *TypeStack) Get(index int) TypeSet { return s.slots[index] }

// Set overwrites the TypeSet at absolute slot index with a copy of t.
func (s *TypeStack) Set(index int, t TypeSet) { s.slots[index] = t.Copy() }

// Local returns the TypeSet `index` slots below the top of the stack;
// Local(0) is the top.
func (s *TypeStack) Local(index int) TypeSet { return s.Get(s.sp - index) }

// SetLocal overwrites the slot `index` below the top of the stack.
func (s *TypeStack) SetLocal(index int, t TypeSet) { s.Set(s.sp-index, t) }

// DropArguments removes the arity operands below the top of the stack,
// keeping the top element (the call result) in place at the new top.
func (s *TypeStack) DropArguments(arity int) {
	if arity == 0 {
		return
	}
	top := s.Local(0)
	s.SetLocal(arity, top)
	s.sp -= arity
}

// Push grows the stack by one slot holding a copy of t.
func (s *TypeStack) Push(t TypeSet) {
	s.sp++
	s.SetLocal(0, t)
}

// MergeTop merges t into the TypeSet at the top of the stack and reports
// whether it grew.
func (s *TypeStack) MergeTop(t TypeSet) bool {
	top := s.Local(0)
	grew := top.AddAll(t)
	s.SetLocal(0, top)
	return grew
}

// PushEmpty pushes a fresh, empty TypeSet and returns it for the caller
// to populate in place via the returned slot's mutating methods -- since
// Set/SetLocal copy, callers mutate the slot directly through the
// returned pointer.
func (s *TypeStack) PushEmpty() *TypeSet {
	s.sp++
	s.slots[s.sp].Clear()
	return &s.slots[s.sp]
}

func (s *TypeStack) PushAny(p image.Program)   { s.PushEmpty().AddAny(p.ClassCount()) }
func (s *TypeStack) PushNull(p image.Program)  { s.PushEmpty().AddNull(p) }
func (s *TypeStack) PushSmi(p image.Program)   { s.PushEmpty().AddSmi(p) }
func (s *TypeStack) PushInt(p image.Program)   { s.PushEmpty().AddInt(p) }
func (s *TypeStack) PushFloat(p image.Program) { s.PushEmpty().AddFloat(p) }
func (s *TypeStack) PushString(p image.Program) { s.PushEmpty().AddString(p) }
func (s *TypeStack) PushArray(p image.Program) { s.PushEmpty().AddArray(p) }
func (s *TypeStack) PushByteArray(p image.Program, nullable bool) {
	t := s.PushEmpty()
	t.AddByteArray(p)
	if nullable {
		t.AddNull(p)
	}
}
func (s *TypeStack) PushBool(p image.Program) { s.PushEmpty().AddBool(p) }
func (s *TypeStack) PushBoolSpecific(p image.Program, value bool) {
	t := s.PushEmpty()
	if value {
		t.Add(p.TrueClass())
	} else {
		t.Add(p.FalseClass())
	}
}
func (s *TypeStack) PushInstance(id image.ClassID) { s.PushEmpty().Add(id) }
func (s *TypeStack) PushBlock(tpl *BlockTemplate)  { s.PushEmpty().SetBlock(tpl) }

// Pop discards the top element.
func (s *TypeStack) Pop() { s.sp-- }

// Merge merges other into s slot-by-slot and reports whether s grew.
// Block-holding slots are never merged -- the two stacks must agree on
// which block occupies a given slot, since block identity (not type)
// is what block slots track.
func (s *TypeStack) Merge(other *TypeStack) bool {
	if s.sp != other.sp {
		panic("propagation: Merge on stacks with different stack pointers")
	}
	grew := false
	for i := 0; i <= s.sp; i++ {
		existing := s.Get(i)
		o := other.Get(i)
		if existing.IsBlock() {
			invariant(o.IsBlock() && o.Block() == existing.Block(), "Merge on stacks disagreeing about which block occupies a slot")
			continue
		}
		if existing.AddAll(o) {
			grew = true
		}
	}
	return grew
}

// MergeRequired reports whether merging other into s would grow s,
// without mutating either stack.
func (s *TypeStack) MergeRequired(other *TypeStack) bool {
	if s.sp != other.sp {
		panic("propagation: MergeRequired on stacks with different stack pointers")
	}
	for i := 0; i <= s.sp; i++ {
		existing := s.Get(i)
		if existing.IsBlock() {
			continue
		}
		if !existing.ContainsAll(other.Get(i)) {
			return true
		}
	}
	return false
}

// Copy returns an independent deep copy of s.
func (s *TypeStack) Copy() *TypeStack {
	slots := make([]TypeSet, len(s.slots))
	for i := 0; i <= s.sp; i++ {
		slots[i] = s.slots[i].Copy()
	}
	for i := s.sp + 1; i < len(s.slots); i++ {
		slots[i] = NewTypeSet(s.wordsPerType)
	}
	return &TypeStack{sp: s.sp, wordsPerType: s.wordsPerType, slots: slots}
}

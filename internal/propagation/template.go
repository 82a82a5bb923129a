package propagation

import "github.com/emberlang/classflow/internal/image"

// MethodTemplate is one Cartesian-Product-Algorithm specialization of a
// method: the method itself plus one concrete argument-type tuple.
// Every call site whose CPA-resolved arguments match an existing
// template's tuple shares that template's analysis and return-type
// TypeVariable; a call with a new tuple gets its own template.
type MethodTemplate struct {
	propagator *Propagator
	method     image.Method
	arguments  ConcreteTypeTuple
	result     *TypeVariable
	enqueued   bool
	blocks     map[int]*BlockTemplate
}

func newMethodTemplate(p *Propagator, method image.Method, arguments ConcreteTypeTuple) *MethodTemplate {
	return &MethodTemplate{
		propagator: p,
		method:     method,
		arguments:  arguments,
		result:     NewTypeVariable(p.wordsPerType),
		blocks:     make(map[int]*BlockTemplate),
	}
}

// Arity returns the number of CPA-specialized arguments.
func (m *MethodTemplate) Arity() int { return len(m.arguments) }

// Argument returns the concrete type this template was specialized for
// at the given argument index.
func (m *MethodTemplate) Argument(index int) ConcreteType { return m.arguments[index] }

// MethodID is the position this template's method is emitted at in the
// result JSON (the absolute bytecode index of its header).
func (m *MethodTemplate) MethodID() int { return m.propagator.program.AbsoluteBCI(m.method.HeaderBCP) }

// Matches reports whether this template already covers a call to target
// with the given CPA arguments.
func (m *MethodTemplate) Matches(target image.Method, arguments ConcreteTypeTuple) bool {
	if target.HeaderBCP != m.method.HeaderBCP {
		return false
	}
	if len(arguments) != len(m.arguments) {
		return false
	}
	for i := range arguments {
		if !arguments[i].Matches(m.arguments[i]) {
			return false
		}
	}
	return true
}

// Call records user (and, if site is non-negative, the call site) as a
// reader of this template's return type and returns its current type.
func (m *MethodTemplate) Call(p *Propagator, user *MethodTemplate, site int) TypeSet {
	return m.result.Use(p, user, site)
}

// Ret merges the top of stack into the template's return type and pops
// it.
func (m *MethodTemplate) Ret(p *Propagator, stack *TypeStack) {
	top := stack.Local(0)
	m.result.Merge(p, top)
	stack.Pop()
}

// FindBlock returns the BlockTemplate created at site within this
// method template, creating it (and subscribing its argument variables
// to this template, so a change in a captured argument's type
// re-triggers analysis) the first time the LOAD_BLOCK_METHOD at site is
// reached.
func (m *MethodTemplate) FindBlock(method image.Method, level int, site int) *BlockTemplate {
	if block, ok := m.blocks[site]; ok {
		return block
	}
	block := newBlockTemplate(method, level, m.propagator.wordsPerType)
	for i := 1; i < method.Arity; i++ {
		block.Argument(i).Use(m.propagator, m, -1)
	}
	m.blocks[site] = block
	return block
}

// CollectBlocks appends every block template created within m, grouped
// by creation site, into dst.
func (m *MethodTemplate) CollectBlocks(dst map[int][]*BlockTemplate) {
	for site, block := range m.blocks {
		dst[site] = append(dst[site], block)
	}
}

// Propagate runs the abstract interpreter over m's body from scratch,
// starting from a fresh argument-seeded scope. Re-running it after a
// dependency grows (global, field, outer, or a callee's return type) is
// always sound because every external store it reads from is
// monotonic and memoized.
func (m *MethodTemplate) Propagate() {
	scope := NewMethodScope(m)
	worklist := NewWorklist(m.method.Body(), scope)
	for worklist.HasNext() {
		item := worklist.Next()
		m.propagator.process(m, item.BCP, item.Scope, worklist)
	}
}

// BlockTemplate is the analysis state for one block literal (one
// LOAD_BLOCK_METHOD site within one MethodTemplate): unlike a method,
// a block is never CPA-specialized per call -- all calls to it widen
// the same per-parameter TypeVariables, since closures are normally
// invoked many times with the compiler relying on flow, not dispatch,
// to keep them monomorphic.
type BlockTemplate struct {
	method    image.Method
	level     int
	arguments []*TypeVariable
	result    *TypeVariable
	id        int
}

var blockTemplateSeq int

func newBlockTemplate(method image.Method, level int, wordsPerType int) *BlockTemplate {
	blockTemplateSeq++
	args := make([]*TypeVariable, method.Arity)
	for i := range args {
		args[i] = NewTypeVariable(wordsPerType)
	}
	return &BlockTemplate{
		method:    method,
		level:     level,
		arguments: args,
		result:    NewTypeVariable(wordsPerType),
		id:        blockTemplateSeq,
	}
}

// MethodID is the position this block is emitted at in the result JSON.
func (b *BlockTemplate) MethodID(p image.Program) int { return p.AbsoluteBCI(b.method.HeaderBCP) }

// Level returns the block nesting depth it captures its outer scope at.
func (b *BlockTemplate) Level() int { return b.level }

// Arity returns the block's declared arity (including its implicit
// receiver slot at index 0).
func (b *BlockTemplate) Arity() int { return b.method.Arity }

// Argument returns the TypeVariable tracking the block's parameter at
// index (index 0 is the block's own receiver slot and is never read).
func (b *BlockTemplate) Argument(index int) *TypeVariable { return b.arguments[index] }

// Use records user as a reader of this block's return type and returns
// its current type.
func (b *BlockTemplate) Use(p *Propagator, user *MethodTemplate, site int) TypeSet {
	return b.result.Use(p, user, site)
}

// Ret merges the top of stack into the block's return type and pops it.
func (b *BlockTemplate) Ret(p *Propagator, stack *TypeStack) {
	top := stack.Local(0)
	b.result.Merge(p, top)
	stack.Pop()
}

// Propagate runs the abstract interpreter over b's body, entered from
// context's activation with outer as the enclosing scope at the point
// of the LOAD_BLOCK_METHOD that created b.
func (b *BlockTemplate) Propagate(p *Propagator, context *MethodTemplate, outer *TypeScope) {
	inner := NewBlockScope(b, outer)
	worklist := NewWorklist(b.method.Body(), inner)
	for worklist.HasNext() {
		item := worklist.Next()
		p.process(context, item.BCP, item.Scope, worklist)
	}
}

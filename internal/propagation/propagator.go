package propagation

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/emberlang/classflow/internal/config"
	"github.com/emberlang/classflow/internal/image"
)

// Options tunes side channels of a run that never affect the computed
// types themselves. Currently that is only where verbose tracing goes;
// the run id that diagnostics are stamped with is generated by
// NewPropagator.
type Options struct {
	// Trace receives one line per template instantiation and per
	// dequeue-loop iteration when non-nil. Defaults to io.Discard.
	Trace io.Writer
}

// Propagator drives the whole-program CPA fixpoint: it owns every
// method/block specialization reached so far, the TypeVariables backing
// globals, fields, and outer-local usage sites, and the worklist of
// templates still needing another analysis pass.
type Propagator struct {
	program      image.Program
	config       config.Config
	options      Options
	wordsPerType int
	runID        uuid.UUID

	templates map[int]map[uint32][]*MethodTemplate
	globals   map[int]*TypeVariable
	fields    map[image.ClassID]map[int]*TypeVariable
	outers    map[int]*TypeVariable
	sites     map[int]map[*TypeVariable]struct{}
	enqueued  []*MethodTemplate

	diagnostics Diagnostics
}

// NewPropagator returns a Propagator ready to run over program. Every
// run gets its own uuid so diagnostics from overlapping runs (e.g. a
// long-lived host re-analyzing an evolving image) can be told apart.
func NewPropagator(program image.Program, cfg config.Config, opts Options) *Propagator {
	if opts.Trace == nil {
		opts.Trace = io.Discard
	}
	return &Propagator{
		program:      program,
		config:       cfg,
		options:      opts,
		wordsPerType: WordsPerType(program.ClassCount()),
		runID:        uuid.New(),
		templates:    make(map[int]map[uint32][]*MethodTemplate),
		globals:      make(map[int]*TypeVariable),
		fields:       make(map[image.ClassID]map[int]*TypeVariable),
		outers:       make(map[int]*TypeVariable),
		sites:        make(map[int]map[*TypeVariable]struct{}),
	}
}

// RunID identifies this Propagator's run, stable for its whole lifetime.
func (p *Propagator) RunID() uuid.UUID { return p.runID }

// Program returns the image this Propagator analyzes, for callers that
// need it to render TypeSet values (TypeSet.Print, TypeSet.AsJSON).
func (p *Propagator) Program() image.Program { return p.program }

// Diagnostics returns the non-fatal notices recorded while propagating,
// each prefixed with this run's id.
func (p *Propagator) Diagnostics() []string { return p.diagnostics.Entries() }

func (p *Propagator) trace(format string, args ...any) {
	fmt.Fprintf(p.options.Trace, "[%s] "+format+"\n", append([]any{p.runID}, args...)...)
}

func (p *Propagator) diagnose(message string) {
	p.diagnostics.add(fmt.Sprintf("[%s] %s", p.runID, message))
}

// GlobalVariable returns the TypeVariable tracking global index,
// creating it on first reference.
func (p *Propagator) GlobalVariable(index int) *TypeVariable {
	if v, ok := p.globals[index]; ok {
		return v
	}
	v := NewTypeVariable(p.wordsPerType)
	p.globals[index] = v
	return v
}

// Field returns the TypeVariable tracking field index of class,
// creating it on first reference.
func (p *Propagator) Field(class image.ClassID, index int) *TypeVariable {
	byIndex, ok := p.fields[class]
	if !ok {
		byIndex = make(map[int]*TypeVariable)
		p.fields[class] = byIndex
	}
	if v, ok := byIndex[index]; ok {
		return v
	}
	v := NewTypeVariable(p.wordsPerType)
	byIndex[index] = v
	return v
}

// outer returns the TypeVariable accumulating the types observed for
// the LOAD_OUTER access at site, for output purposes only -- it is
// never itself consulted by the analysis, which always reads the
// outer local's live value straight off the owning block's stack.
func (p *Propagator) outer(site int) *TypeVariable {
	if v, ok := p.outers[site]; ok {
		return v
	}
	v := NewTypeVariable(p.wordsPerType)
	p.outers[site] = v
	p.addSite(site, v)
	return v
}

func (p *Propagator) enqueue(m *MethodTemplate) {
	if m == nil || m.enqueued {
		return
	}
	m.enqueued = true
	p.enqueued = append(p.enqueued, m)
}

func (p *Propagator) addSite(site int, result *TypeVariable) {
	set, ok := p.sites[site]
	if !ok {
		set = make(map[*TypeVariable]struct{})
		p.sites[site] = set
	}
	set[result] = struct{}{}
}

// find returns the template matching target and arguments, instantiating
// (and running a first analysis pass over) a new one if none of the
// templates registered for target's header position matches yet. The
// linear scan for an exact match is kept (megamorphic call sites widen
// to Any well before a bucket grows large), but it only ever walks the
// templates sharing arguments' hash rather than every template at this
// header position, so a hot call site with many distinct specializations
// does not degrade to quadratic rescanning.
func (p *Propagator) find(target image.Method, arguments ConcreteTypeTuple) *MethodTemplate {
	key := target.HeaderBCP
	hash := arguments.Hash(key, false)
	buckets := p.templates[key]
	for _, candidate := range buckets[hash] {
		if candidate.Matches(target, arguments) {
			return candidate
		}
	}
	result := p.instantiate(target, arguments)
	p.trace("instantiate method at %d with %d argument(s)", p.program.AbsoluteBCI(key), len(arguments))
	if buckets == nil {
		buckets = make(map[uint32][]*MethodTemplate)
		p.templates[key] = buckets
	}
	buckets[hash] = append(buckets[hash], result)
	result.Propagate()
	return result
}

func (p *Propagator) instantiate(target image.Method, arguments ConcreteTypeTuple) *MethodTemplate {
	return newMethodTemplate(p, target, arguments)
}

// appendConcreteType returns a fresh tuple with x appended, never
// aliasing base's backing array -- callers recurse over sibling branches
// of the Cartesian product and a shared backing array would let a
// later sibling's append corrupt a branch still unwinding above it.
func appendConcreteType(base ConcreteTypeTuple, x ConcreteType) ConcreteTypeTuple {
	out := make(ConcreteTypeTuple, len(base)+1)
	copy(out, base)
	out[len(base)] = x
	return out
}

// CallMethod is the heart of the Cartesian Product Algorithm: for every
// argument position not yet fixed in arguments, it branches once per
// distinct concrete type the corresponding stack slot may hold (with
// cutoffs for blocks, which specialize by identity, and megamorphic
// slots, which widen to Any past the configured threshold), eventually
// resolving one MethodTemplate per combination and merging its result
// into the top of stack.
func (p *Propagator) CallMethod(caller *MethodTemplate, stack *TypeStack, site int, target image.Method, arguments ConcreteTypeTuple) {
	arity := target.Arity
	index := len(arguments)
	if index == arity {
		callee := p.find(target, arguments)
		result := callee.Call(p, caller, site)
		stack.MergeTop(result)
		return
	}

	t := stack.Local(arity - index)
	switch {
	case t.IsBlock():
		p.CallMethod(caller, stack, site, target, appendConcreteType(arguments, BlockType(t.Block())))
	case t.Size(p.program) > p.config.MegamorphicThreshold:
		p.CallMethod(caller, stack, site, target, appendConcreteType(arguments, AnyType()))
	default:
		for id := image.ClassID(0); int(id) < p.program.ClassCount(); id++ {
			if !t.Contains(id) {
				continue
			}
			p.CallMethod(caller, stack, site, target, appendConcreteType(arguments, ClassType(id)))
		}
	}
}

// CallStatic resolves a direct call to target, dropping its arguments
// off the stack once every specialization's result has been merged into
// the slot CallMethod leaves on top.
func (p *Propagator) CallStatic(caller *MethodTemplate, stack *TypeStack, site int, target image.Method) {
	stack.PushEmpty()
	p.CallMethod(caller, stack, site, target, nil)
	stack.DropArguments(target.Arity)
}

// CallVirtual resolves a dynamically dispatched call with arity operands
// (the receiver plus arity-1 explicit arguments) against the dispatch
// table at offset, instantiating one specialization per concrete
// receiver class that actually implements the selector there.
func (p *Propagator) CallVirtual(caller *MethodTemplate, stack *TypeStack, site int, arity int, offset int) {
	receiver := stack.Local(arity - 1)
	stack.PushEmpty()

	for id := image.ClassID(0); int(id) < p.program.ClassCount(); id++ {
		if !receiver.Contains(id) {
			continue
		}
		entry := p.program.DispatchEntry(int(id) + offset)
		if entry == -1 {
			continue
		}
		target := image.DecodeMethod(p.program, entry)
		if target.SelectorOffset != offset {
			continue
		}
		p.CallMethod(caller, stack, site, target, ConcreteTypeTuple{ClassType(id)})
	}

	stack.DropArguments(arity)
}

// LoadField reads field index off the instance(s) on top of stack,
// merging the union of every concrete receiver class's field type onto
// the stack in its place.
func (p *Propagator) LoadField(user *MethodTemplate, stack *TypeStack, site int, index int) {
	instance := stack.Local(0)
	stack.PushEmpty()

	for id := image.ClassID(0); int(id) < p.program.ClassCount(); id++ {
		if !instance.Contains(id) {
			continue
		}
		result := p.Field(id, index).Use(p, user, site)
		stack.MergeTop(result)
	}

	stack.DropArguments(1)
}

// StoreField merges the value on top of stack into field index of every
// concrete class the receiver below it may be.
func (p *Propagator) StoreField(stack *TypeStack, index int) {
	value := stack.Local(0)
	instance := stack.Local(1)

	for id := image.ClassID(0); int(id) < p.program.ClassCount(); id++ {
		if !instance.Contains(id) {
			continue
		}
		p.Field(id, index).Merge(p, value)
	}

	stack.DropArguments(1)
}

// LoadOuter reads local index off the stack owned by the block
// referenced at the top of scope's own stack, replacing it there.
func (p *Propagator) LoadOuter(scope *TypeScope, site int, index int) {
	stack := scope.Top()
	block := stack.Local(0)
	value := scope.LoadOuter(block, index)
	stack.Pop()
	stack.Push(value)
	if value.IsBlock() {
		return
	}
	p.outer(site).Merge(p, value)
}

// Run seeds the analysis (global variables, Task_ and Exception_
// fields), instantiates the program's entry method, drains the dequeue
// loop to a fixpoint, and returns the resulting TypeDatabase.
func (p *Propagator) Run() *TypeDatabase {
	p.seed()

	entryMethod := image.DecodeMethod(p.program, p.program.EntryMethod())
	entryArgs := ConcreteTypeTuple{ClassType(p.program.TaskClass())}
	entry := p.instantiate(entryMethod, entryArgs)
	p.templates[entryMethod.HeaderBCP] = map[uint32][]*MethodTemplate{
		entryArgs.Hash(entryMethod.HeaderBCP, false): {entry},
	}
	p.trace("entry method at %d", p.program.AbsoluteBCI(entryMethod.HeaderBCP))
	p.enqueue(entry)

	for len(p.enqueued) > 0 {
		n := len(p.enqueued) - 1
		last := p.enqueued[n]
		p.enqueued = p.enqueued[:n]
		last.enqueued = false
		p.trace("propagate method at %d", last.MethodID())
		last.Propagate()
	}

	return p.collect()
}

func (p *Propagator) seed() {
	program := p.program

	for i := 0; i < program.GlobalVariableCount(); i++ {
		value := program.GlobalVariable(i)
		if value.IsLazyInitializer {
			continue
		}
		t := NewTypeSet(p.wordsPerType)
		t.Add(value.Class)
		p.GlobalVariable(i).Merge(p, t)
	}

	taskFields := program.InstanceFieldCount(program.TaskClass())
	for i := 0; i < taskFields; i++ {
		if i == image.TaskStackFieldIndex {
			continue
		}
		t := NewTypeSet(p.wordsPerType)
		if i == image.TaskIDFieldIndex {
			t.AddSmi(program)
		} else {
			t.AddNull(program)
		}
		p.Field(program.TaskClass(), i).Merge(p, t)
	}

	invariant(program.InstanceFieldCount(program.ExceptionClass()) == 2, "Exception_ must declare exactly two fields")
	value := NewTypeSet(p.wordsPerType)
	value.AddAny(program.ClassCount())
	p.Field(program.ExceptionClass(), image.ExceptionValueFieldIndex).Merge(p, value)

	trace := NewTypeSet(p.wordsPerType)
	trace.AddByteArray(program)
	trace.AddNull(program)
	p.Field(program.ExceptionClass(), image.ExceptionTraceFieldIndex).Merge(p, trace)
}

// collect walks every recorded usage site and every reached method/block
// specialization and renders them into a TypeDatabase.
func (p *Propagator) collect() *TypeDatabase {
	db := newTypeDatabase(p.program)

	siteKeys := make([]int, 0, len(p.sites))
	for site := range p.sites {
		siteKeys = append(siteKeys, site)
	}
	sort.Ints(siteKeys)
	for _, site := range siteKeys {
		t := NewTypeSet(p.wordsPerType)
		for variable := range p.sites[site] {
			t.AddAll(variable.Type())
		}
		db.addUsage(p.program.AbsoluteBCI(site), t)
	}

	blocksBySite := make(map[int][]*BlockTemplate)

	methodKeys := make([]int, 0, len(p.templates))
	for key := range p.templates {
		methodKeys = append(methodKeys, key)
	}
	sort.Ints(methodKeys)
	for _, key := range methodKeys {
		var group []*MethodTemplate
		for _, bucket := range p.templates[key] {
			group = append(group, bucket...)
		}
		for _, tmpl := range group {
			tmpl.CollectBlocks(blocksBySite)
		}

		first := group[0]
		arity := first.Arity()
		args := make([]TypeSet, arity)
		for n := 0; n < arity; n++ {
			t := NewTypeSet(p.wordsPerType)
			for _, tmpl := range group {
				argType := tmpl.Argument(n)
				if argType.IsBlock() {
					break
				}
				if argType.IsAny() {
					t.AddAny(p.program.ClassCount())
					break
				}
				t.Add(argType.Class())
			}
			args[n] = t
		}
		db.addMethod(first.MethodID(), first.method, args)
	}

	blockSiteKeys := make([]int, 0, len(blocksBySite))
	for site := range blocksBySite {
		blockSiteKeys = append(blockSiteKeys, site)
	}
	sort.Ints(blockSiteKeys)
	for _, site := range blockSiteKeys {
		blocks := blocksBySite[site]
		first := blocks[0]
		arity := first.Arity()
		args := make([]TypeSet, arity)

		receiver := NewTypeSet(p.wordsPerType)
		receiver.SetBlock(first)
		args[0] = receiver

		for n := 1; n < arity; n++ {
			t := NewTypeSet(p.wordsPerType)
			for _, block := range blocks {
				t.AddAll(block.Argument(n).Type())
			}
			args[n] = t
		}
		db.addMethod(first.MethodID(p.program), first.method, args)
	}

	return db
}

package image

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// fixtureProgram is the on-disk shape of a JSON program fixture: a
// flat, assembler-level description of a Program, hand-written for
// tests or produced by a small external tool. It intentionally stays
// close to Builder's own vocabulary rather than inventing a richer
// source-level format -- turning actual class/method declarations into
// this shape is a frontend concern, out of scope here same as it is
// for Builder.
type fixtureProgram struct {
	ClassCount       int                 `json:"classCount"`
	WellKnownClasses fixtureWellKnown    `json:"wellKnownClasses"`
	InstanceFields   map[string]int      `json:"instanceFields"`
	Literals         []fixtureValue      `json:"literals"`
	Globals          []fixtureValue      `json:"globals"`
	ClassCheckRanges [][2]int32          `json:"classCheckRanges"`
	InterfaceOffsets []int               `json:"interfaceCheckOffsets"`
	InvokeOffsets    map[string]int      `json:"invokeOffsets"`
	Methods          []fixtureMethod     `json:"methods"`
	Dispatch         map[string]int      `json:"dispatch"`
	EntryMethod      int                 `json:"entryMethod"`
}

type fixtureWellKnown struct {
	Null, True, False                     int32
	Smi, LargeInteger, Float               int32
	String, Array, ByteArray               int32
	Task, Exception, LambdaBox             int32
}

type fixtureValue struct {
	Class       int32 `json:"class"`
	Lazy        bool  `json:"lazy"`
	Initializer int   `json:"initializer"`
}

type fixtureMethod struct {
	Arity          int                 `json:"arity"`
	MaxHeight      int                 `json:"maxHeight"`
	SelectorOffset int                 `json:"selectorOffset"`
	IsBlock        bool                `json:"isBlock"`
	Instructions   []fixtureInstruction `json:"instructions"`
}

type fixtureInstruction struct {
	Op     string `json:"op"`
	A      int    `json:"a"`
	B      int    `json:"b"`
	Method int    `json:"method"` // for LOAD_BLOCK_METHOD: index into Methods
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// LoadFixture decodes a JSON program fixture into a ready-to-run
// MutableProgram. It is meant for tests that would rather author a
// small literal program than drive Builder by hand, and for any
// golden-file regression fixtures checked into the test tree.
func LoadFixture(data []byte) (*MutableProgram, error) {
	var f fixtureProgram
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("image: decoding fixture: %w", err)
	}

	b := NewBuilder(f.ClassCount)
	p := b.Program
	p.SetWellKnownClasses(
		ClassID(f.WellKnownClasses.Null), ClassID(f.WellKnownClasses.True), ClassID(f.WellKnownClasses.False),
		ClassID(f.WellKnownClasses.Smi), ClassID(f.WellKnownClasses.LargeInteger), ClassID(f.WellKnownClasses.Float),
		ClassID(f.WellKnownClasses.String), ClassID(f.WellKnownClasses.Array), ClassID(f.WellKnownClasses.ByteArray),
		ClassID(f.WellKnownClasses.Task), ClassID(f.WellKnownClasses.Exception), ClassID(f.WellKnownClasses.LambdaBox),
	)

	for classIDText, count := range f.InstanceFields {
		var id int32
		if _, err := fmt.Sscanf(classIDText, "%d", &id); err != nil {
			return nil, fmt.Errorf("image: instanceFields key %q: %w", classIDText, err)
		}
		p.SetInstanceFields(ClassID(id), count)
	}

	for _, v := range f.Literals {
		p.AddLiteral(valueFromFixture(v))
	}
	for _, v := range f.Globals {
		p.AddGlobal(valueFromFixture(v))
	}
	for _, r := range f.ClassCheckRanges {
		p.AddClassCheckRange(ClassID(r[0]), ClassID(r[1]))
	}
	for _, offset := range f.InterfaceOffsets {
		p.AddInterfaceCheckOffset(offset)
	}
	for name, offset := range f.InvokeOffsets {
		op, ok := opcodeByName[name]
		if !ok {
			return nil, fmt.Errorf("image: invokeOffsets: unknown opcode %q", name)
		}
		p.SetInvokeBytecodeOffset(op, offset)
	}

	methodBCPs := make([]int, len(f.Methods))
	type patch struct {
		at         int
		methodIdx  int
	}
	var patches []patch

	for i, fm := range f.Methods {
		mb := b.BeginMethod(fm.Arity, fm.MaxHeight, fm.SelectorOffset, fm.IsBlock)
		methodBCPs[i] = mb.HeaderBCP
		for _, inst := range fm.Instructions {
			op, ok := opcodeByName[inst.Op]
			if !ok {
				return nil, fmt.Errorf("image: method %d: unknown opcode %q", i, inst.Op)
			}
			if op == LoadBlockMethod {
				at := mb.OpU32(LoadBlockMethod, 0)
				patches = append(patches, patch{at: at, methodIdx: inst.Method})
				continue
			}
			if err := emitFixtureInstruction(mb, op, inst); err != nil {
				return nil, fmt.Errorf("image: method %d: %w", i, err)
			}
		}
	}

	for _, pt := range patches {
		if pt.methodIdx < 0 || pt.methodIdx >= len(methodBCPs) {
			return nil, fmt.Errorf("image: LOAD_BLOCK_METHOD references out-of-range method %d", pt.methodIdx)
		}
		binary.LittleEndian.PutUint32(p.code[pt.at+1:pt.at+5], uint32(methodBCPs[pt.methodIdx]))
	}

	for selectorText, methodIdx := range f.Dispatch {
		var selector int
		if _, err := fmt.Sscanf(selectorText, "%d", &selector); err != nil {
			return nil, fmt.Errorf("image: dispatch key %q: %w", selectorText, err)
		}
		if methodIdx < 0 || methodIdx >= len(methodBCPs) {
			return nil, fmt.Errorf("image: dispatch[%d] references out-of-range method %d", selector, methodIdx)
		}
		p.SetDispatch(selector, methodBCPs[methodIdx])
	}

	if f.EntryMethod < 0 || f.EntryMethod >= len(methodBCPs) {
		return nil, fmt.Errorf("image: entryMethod %d out of range", f.EntryMethod)
	}
	p.SetEntryMethod(methodBCPs[f.EntryMethod])

	return p, nil
}

func valueFromFixture(v fixtureValue) Value {
	return Value{
		Class:                 ClassID(v.Class),
		IsLazyInitializer:     v.Lazy,
		LazyInitializerMethod: v.Initializer,
	}
}

// emitFixtureInstruction encodes one instruction using the same
// per-opcode operand widths Decode expects, so a fixture round-trips
// through Decode exactly like bytecode assembled via MethodBuilder
// directly.
func emitFixtureInstruction(m *MethodBuilder, op Opcode, inst fixtureInstruction) error {
	switch op {
	case LoadLocal0, LoadLocal1, LoadLocal2, LoadLocal3, LoadLocal4, LoadLocal5,
		LoadNull, LoadSmi0, LoadSmi1, Pop1,
		LoadGlobalVarDynamic, StoreGlobalVarDynamic, InvokeInitializerTail, InvokeLambdaTail,
		Throw, Return, ReturnNull, NonLocalBranch, Identical,
		Link, Unlink, Unwind, Halt,
		IntrinsicSmiRepeat, IntrinsicArrayDo, IntrinsicHashDo, IntrinsicHashFind,
		InvokeEq, InvokeLt, InvokeLte, InvokeGt, InvokeGte,
		InvokeBitOr, InvokeBitXor, InvokeBitAnd,
		InvokeAdd, InvokeSub, InvokeMul, InvokeDiv, InvokeMod,
		InvokeBitShl, InvokeBitShr, InvokeBitUshr, InvokeAt, InvokeAtPut:
		m.Op(op)

	case LoadLocal, PopLoadLocal, StoreLocal, StoreLocalPop,
		LoadOuter, StoreOuter, LoadOuterBlock,
		LoadField, LoadFieldLocal, PopLoadFieldLocal, StoreField, StoreFieldPop,
		LoadLiteral, LoadSmis0, LoadSmiU8,
		LoadGlobalVar, LoadGlobalVarLazy, StoreGlobalVar,
		LoadBlock, Pop, Allocate, IsClass, IsInterface, AsClass, AsInterface, AsLocal,
		NonLocalReturn, InvokeBlock:
		m.Op1(op, byte(inst.A))

	case LoadLocalWide, LoadFieldWide, StoreFieldWide, LoadLiteralWide, LoadSmiU16,
		LoadGlobalVarWide, LoadGlobalVarLazyWide, StoreGlobalVarWide,
		AllocateWide, IsClassWide, IsInterfaceWide, AsClassWide, AsInterfaceWide,
		InvokeStatic, InvokeStaticTail, InvokeVirtualGet, InvokeVirtualSet,
		NonLocalReturnWide, Branch, BranchIfTrue, BranchIfFalse,
		BranchBack, BranchBackIfTrue, BranchBackIfFalse:
		m.OpU16(op, uint16(inst.A))

	case InvokeVirtual:
		m.InvokeVirtual(byte(inst.A), uint16(inst.B))

	case InvokeVirtualWide:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint16(buf[0:2], uint16(inst.A))
		binary.LittleEndian.PutUint16(buf[2:4], uint16(inst.B))
		m.emit(InvokeVirtualWide, buf)

	case Primitive:
		m.PrimitiveOp(byte(inst.A), uint16(inst.B))

	case LoadSmiU32:
		m.OpU32(op, uint32(inst.A))

	default:
		return fmt.Errorf("unsupported fixture opcode %s", op)
	}
	return nil
}

package image

import "encoding/binary"

// Instruction is a decoded bytecode at some position. A and B hold the
// operands in the meaning documented per opcode below; which fields are
// populated depends on Op.
type Instruction struct {
	Op     Opcode
	Length int
	A      int
	B      int
}

// Decode reads the instruction at bcp in bytecodes. It never reads past
// the end of bytecodes for a well-formed image; malformed input is a
// host bug (section 7) and Decode panics via a slice out-of-range, which
// is intentionally not recovered here.
func Decode(bytecodes []byte, bcp int) Instruction {
	op := Opcode(bytecodes[bcp])
	switch op {
	case LoadLocal0, LoadLocal1, LoadLocal2, LoadLocal3, LoadLocal4, LoadLocal5,
		LoadNull, LoadSmi0, LoadSmi1, Pop1,
		LoadGlobalVarDynamic, StoreGlobalVarDynamic, InvokeInitializerTail, InvokeLambdaTail,
		Throw, Return, ReturnNull, NonLocalBranch, Identical,
		Link, Unlink, Unwind, Halt,
		IntrinsicSmiRepeat, IntrinsicArrayDo, IntrinsicHashDo, IntrinsicHashFind:
		return Instruction{Op: op, Length: 1}

	case LoadLocal, PopLoadLocal, StoreLocal, StoreLocalPop,
		LoadOuter, StoreOuter, LoadOuterBlock,
		LoadField, LoadFieldLocal, PopLoadFieldLocal, StoreField, StoreFieldPop,
		LoadLiteral, LoadSmis0, LoadSmiU8,
		LoadGlobalVar, LoadGlobalVarLazy, StoreGlobalVar,
		LoadBlock, Pop, Allocate, IsClass, IsInterface, AsClass, AsInterface, AsLocal,
		NonLocalReturn:
		return Instruction{Op: op, Length: 2, A: int(bytecodes[bcp+1])}

	case LoadLocalWide, LoadFieldWide, StoreFieldWide, LoadLiteralWide, LoadSmiU16,
		LoadGlobalVarWide, LoadGlobalVarLazyWide, StoreGlobalVarWide,
		AllocateWide, IsClassWide, IsInterfaceWide, AsClassWide, AsInterfaceWide,
		InvokeStatic, InvokeStaticTail, InvokeVirtualGet, InvokeVirtualSet,
		NonLocalReturnWide:
		return Instruction{Op: op, Length: 3, A: int(binary.LittleEndian.Uint16(bytecodes[bcp+1 : bcp+3]))}

	case Branch, BranchIfTrue, BranchIfFalse, BranchBack, BranchBackIfTrue, BranchBackIfFalse:
		return Instruction{Op: op, Length: 3, A: int(binary.LittleEndian.Uint16(bytecodes[bcp+1 : bcp+3]))}

	case InvokeVirtual:
		arity := int(bytecodes[bcp+1])
		offset := int(binary.LittleEndian.Uint16(bytecodes[bcp+2 : bcp+4]))
		return Instruction{Op: op, Length: 4, A: arity, B: offset}

	case InvokeVirtualWide:
		arity := int(binary.LittleEndian.Uint16(bytecodes[bcp+1 : bcp+3]))
		offset := int(binary.LittleEndian.Uint16(bytecodes[bcp+3 : bcp+5]))
		return Instruction{Op: op, Length: 5, A: arity, B: offset}

	case InvokeEq, InvokeLt, InvokeLte, InvokeGt, InvokeGte,
		InvokeBitOr, InvokeBitXor, InvokeBitAnd,
		InvokeAdd, InvokeSub, InvokeMul, InvokeDiv, InvokeMod,
		InvokeBitShl, InvokeBitShr, InvokeBitUshr, InvokeAt, InvokeAtPut:
		return Instruction{Op: op, Length: 1}

	case InvokeBlock:
		return Instruction{Op: op, Length: 2, A: int(bytecodes[bcp+1])}

	case LoadSmiU32:
		return Instruction{Op: op, Length: 5, A: int(binary.LittleEndian.Uint32(bytecodes[bcp+1 : bcp+5]))}

	case LoadBlockMethod:
		return Instruction{Op: op, Length: 5, A: int(binary.LittleEndian.Uint32(bytecodes[bcp+1 : bcp+5]))}

	case Primitive:
		module := int(bytecodes[bcp+1])
		index := int(binary.LittleEndian.Uint16(bytecodes[bcp+2 : bcp+4]))
		return Instruction{Op: op, Length: 4, A: module, B: index}

	default:
		panic("image: unknown opcode in bytecode stream")
	}
}

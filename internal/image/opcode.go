// Package image describes the compiled program that the propagation
// analyzer consumes: a class hierarchy, a flat bytecode stream, a
// dispatch table, and literal/global pools (spec section 6). Lexing,
// parsing, bytecode emission and image serialization are external
// collaborators and have no representation here -- this package only
// adapts an already-built program to the narrow surface the analyzer
// needs.
package image

// Opcode identifies a bytecode instruction. The encoding used by this
// port is our own (bytecode emission is out of scope for the analyzer),
// but the opcode families mirror the ones enumerated in the
// specification: stack shuffles, outer access, field load/store,
// literals, globals, allocation, type checks, calls, branches,
// primitives, returns, and the try/unwind bracket.
type Opcode byte

const (
	LoadLocal Opcode = iota
	LoadLocalWide
	LoadLocal0
	LoadLocal1
	LoadLocal2
	LoadLocal3
	LoadLocal4
	LoadLocal5
	PopLoadLocal
	StoreLocal
	StoreLocalPop

	LoadOuter
	StoreOuter
	LoadOuterBlock

	LoadField
	LoadFieldWide
	LoadFieldLocal
	PopLoadFieldLocal
	StoreField
	StoreFieldWide
	StoreFieldPop

	LoadLiteral
	LoadLiteralWide
	LoadNull
	LoadSmi0
	LoadSmis0
	LoadSmi1
	LoadSmiU8
	LoadSmiU16
	LoadSmiU32

	LoadBlockMethod
	LoadBlock

	LoadGlobalVar
	LoadGlobalVarWide
	LoadGlobalVarDynamic
	LoadGlobalVarLazy
	LoadGlobalVarLazyWide
	StoreGlobalVar
	StoreGlobalVarWide
	StoreGlobalVarDynamic

	Pop
	Pop1

	Allocate
	AllocateWide

	IsClass
	IsClassWide
	IsInterface
	IsInterfaceWide
	AsClass
	AsClassWide
	AsInterface
	AsInterfaceWide
	AsLocal

	InvokeStatic
	InvokeStaticTail
	InvokeBlock
	InvokeInitializerTail

	InvokeVirtual
	InvokeVirtualWide
	InvokeVirtualGet
	InvokeVirtualSet

	InvokeEq
	InvokeLt
	InvokeLte
	InvokeGt
	InvokeGte
	InvokeBitOr
	InvokeBitXor
	InvokeBitAnd
	InvokeAdd
	InvokeSub
	InvokeMul
	InvokeDiv
	InvokeMod
	InvokeBitShl
	InvokeBitShr
	InvokeBitUshr
	InvokeAt
	InvokeAtPut

	Branch
	BranchIfTrue
	BranchIfFalse
	BranchBack
	BranchBackIfTrue
	BranchBackIfFalse

	InvokeLambdaTail
	Primitive
	Throw

	Return
	ReturnNull
	NonLocalReturn
	NonLocalReturnWide
	NonLocalBranch

	Identical
	Link
	Unlink
	Unwind
	Halt

	IntrinsicSmiRepeat
	IntrinsicArrayDo
	IntrinsicHashDo
	IntrinsicHashFind

	numOpcodes
)

// binaryVirtualOpcodes lists the INVOKE_* opcodes that dispatch a fixed
// two-operand virtual call (receiver plus one argument) at a selector
// offset obtained from the program rather than encoded inline.
var binaryVirtualOpcodes = map[Opcode]bool{
	InvokeEq: true, InvokeLt: true, InvokeLte: true, InvokeGt: true, InvokeGte: true,
	InvokeBitOr: true, InvokeBitXor: true, InvokeBitAnd: true,
	InvokeAdd: true, InvokeSub: true, InvokeMul: true, InvokeDiv: true, InvokeMod: true,
	InvokeBitShl: true, InvokeBitShr: true, InvokeBitUshr: true, InvokeAt: true,
}

// IsBinaryVirtual reports whether op is one of the fixed-arity binary
// INVOKE_* opcodes handled uniformly by call_virtual with arity 2.
func IsBinaryVirtual(op Opcode) bool { return binaryVirtualOpcodes[op] }

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN_OPCODE"
}

var opcodeNames = map[Opcode]string{
	LoadLocal: "LOAD_LOCAL", LoadLocalWide: "LOAD_LOCAL_WIDE",
	LoadLocal0: "LOAD_LOCAL_0", LoadLocal1: "LOAD_LOCAL_1", LoadLocal2: "LOAD_LOCAL_2",
	LoadLocal3: "LOAD_LOCAL_3", LoadLocal4: "LOAD_LOCAL_4", LoadLocal5: "LOAD_LOCAL_5",
	PopLoadLocal: "POP_LOAD_LOCAL", StoreLocal: "STORE_LOCAL", StoreLocalPop: "STORE_LOCAL_POP",
	LoadOuter: "LOAD_OUTER", StoreOuter: "STORE_OUTER", LoadOuterBlock: "LOAD_OUTER_BLOCK",
	LoadField: "LOAD_FIELD", LoadFieldWide: "LOAD_FIELD_WIDE",
	LoadFieldLocal: "LOAD_FIELD_LOCAL", PopLoadFieldLocal: "POP_LOAD_FIELD_LOCAL",
	StoreField: "STORE_FIELD", StoreFieldWide: "STORE_FIELD_WIDE", StoreFieldPop: "STORE_FIELD_POP",
	LoadLiteral: "LOAD_LITERAL", LoadLiteralWide: "LOAD_LITERAL_WIDE",
	LoadNull: "LOAD_NULL", LoadSmi0: "LOAD_SMI_0", LoadSmis0: "LOAD_SMIS_0",
	LoadSmi1: "LOAD_SMI_1", LoadSmiU8: "LOAD_SMI_U8", LoadSmiU16: "LOAD_SMI_U16", LoadSmiU32: "LOAD_SMI_U32",
	LoadBlockMethod: "LOAD_BLOCK_METHOD", LoadBlock: "LOAD_BLOCK",
	LoadGlobalVar: "LOAD_GLOBAL_VAR", LoadGlobalVarWide: "LOAD_GLOBAL_VAR_WIDE",
	LoadGlobalVarDynamic: "LOAD_GLOBAL_VAR_DYNAMIC",
	LoadGlobalVarLazy:     "LOAD_GLOBAL_VAR_LAZY", LoadGlobalVarLazyWide: "LOAD_GLOBAL_VAR_LAZY_WIDE",
	StoreGlobalVar: "STORE_GLOBAL_VAR", StoreGlobalVarWide: "STORE_GLOBAL_VAR_WIDE",
	StoreGlobalVarDynamic: "STORE_GLOBAL_VAR_DYNAMIC",
	Pop:                   "POP", Pop1: "POP_1",
	Allocate: "ALLOCATE", AllocateWide: "ALLOCATE_WIDE",
	IsClass: "IS_CLASS", IsClassWide: "IS_CLASS_WIDE",
	IsInterface: "IS_INTERFACE", IsInterfaceWide: "IS_INTERFACE_WIDE",
	AsClass: "AS_CLASS", AsClassWide: "AS_CLASS_WIDE",
	AsInterface: "AS_INTERFACE", AsInterfaceWide: "AS_INTERFACE_WIDE",
	AsLocal:               "AS_LOCAL",
	InvokeStatic:          "INVOKE_STATIC",
	InvokeStaticTail:      "INVOKE_STATIC_TAIL",
	InvokeBlock:           "INVOKE_BLOCK",
	InvokeInitializerTail: "INVOKE_INITIALIZER_TAIL",
	InvokeVirtual:         "INVOKE_VIRTUAL", InvokeVirtualWide: "INVOKE_VIRTUAL_WIDE",
	InvokeVirtualGet: "INVOKE_VIRTUAL_GET", InvokeVirtualSet: "INVOKE_VIRTUAL_SET",
	InvokeEq: "INVOKE_EQ", InvokeLt: "INVOKE_LT", InvokeLte: "INVOKE_LTE",
	InvokeGt: "INVOKE_GT", InvokeGte: "INVOKE_GTE",
	InvokeBitOr: "INVOKE_BIT_OR", InvokeBitXor: "INVOKE_BIT_XOR", InvokeBitAnd: "INVOKE_BIT_AND",
	InvokeAdd: "INVOKE_ADD", InvokeSub: "INVOKE_SUB", InvokeMul: "INVOKE_MUL",
	InvokeDiv: "INVOKE_DIV", InvokeMod: "INVOKE_MOD",
	InvokeBitShl: "INVOKE_BIT_SHL", InvokeBitShr: "INVOKE_BIT_SHR", InvokeBitUshr: "INVOKE_BIT_USHR",
	InvokeAt: "INVOKE_AT", InvokeAtPut: "INVOKE_AT_PUT",
	Branch: "BRANCH", BranchIfTrue: "BRANCH_IF_TRUE", BranchIfFalse: "BRANCH_IF_FALSE",
	BranchBack: "BRANCH_BACK", BranchBackIfTrue: "BRANCH_BACK_IF_TRUE", BranchBackIfFalse: "BRANCH_BACK_IF_FALSE",
	InvokeLambdaTail: "INVOKE_LAMBDA_TAIL", Primitive: "PRIMITIVE", Throw: "THROW",
	Return: "RETURN", ReturnNull: "RETURN_NULL",
	NonLocalReturn: "NON_LOCAL_RETURN", NonLocalReturnWide: "NON_LOCAL_RETURN_WIDE",
	NonLocalBranch: "NON_LOCAL_BRANCH",
	Identical:      "IDENTICAL", Link: "LINK", Unlink: "UNLINK", Unwind: "UNWIND", Halt: "HALT",
	IntrinsicSmiRepeat: "INTRINSIC_SMI_REPEAT", IntrinsicArrayDo: "INTRINSIC_ARRAY_DO",
	IntrinsicHashDo: "INTRINSIC_HASH_DO", IntrinsicHashFind: "INTRINSIC_HASH_FIND",
}

// unimplementedOpcodes are the ones the specification calls out as
// having no concrete semantics yet (section 9, open questions). The
// interpreter treats them as path-terminating rather than guessing.
var unimplementedOpcodes = map[Opcode]bool{
	LoadGlobalVarDynamic:  true,
	StoreGlobalVarDynamic: true,
	InvokeInitializerTail: true,
	InvokeLambdaTail:      true,
	NonLocalBranch:        true,
}

// IsUnimplemented reports whether op is one of the opcodes the
// specification leaves unimplemented pending concrete frontend
// semantics.
func IsUnimplemented(op Opcode) bool { return unimplementedOpcodes[op] }

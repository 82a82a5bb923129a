package propagation

import "github.com/emberlang/classflow/internal/image"

// primitiveSummary is a hand-written transfer function for one VM
// primitive: given the current program, it fills in the primitive's
// result type (out) and, for primitives whose result type depends on
// whether the call can fail, its failure type (failure). Both start
// out empty. The interpreter merges out into the method's return type;
// if failure is still empty the path then terminates, otherwise it
// falls through into the method body with failure on top of the stack.
type primitiveSummary func(p image.Program, out, failure *TypeSet)

// primitiveKey identifies a primitive by its module and its index
// within that module, mirroring how PRIMITIVE bytecodes address them.
type primitiveKey struct {
	module byte
	index  uint16
}

// Primitive modules. The concrete numbering is this port's own --
// bytecode emission and the VM's primitive table are both out of
// scope -- but the small set below is enough to exercise every
// TypeSet constructor a primitive summary plausibly needs, and new
// entries can be added the same way.
const (
	PrimitiveModuleCore byte = iota
	PrimitiveModuleCollections
)

const (
	CorePrimitiveSmiAdd uint16 = iota
	CorePrimitiveSmiCompare
	CorePrimitiveStringLength
	CorePrimitiveStringAt
)

const (
	CollectionsPrimitiveArrayNew uint16 = iota
	CollectionsPrimitiveArrayAt
	CollectionsPrimitiveArrayAtPut
)

var primitiveSummaries = map[primitiveKey]primitiveSummary{
	{PrimitiveModuleCore, CorePrimitiveSmiAdd}: func(p image.Program, out, failure *TypeSet) {
		out.AddInt(p)
		failure.AddString(p)
	},
	{PrimitiveModuleCore, CorePrimitiveSmiCompare}: func(p image.Program, out, failure *TypeSet) {
		out.AddBool(p)
	},
	{PrimitiveModuleCore, CorePrimitiveStringLength}: func(p image.Program, out, failure *TypeSet) {
		out.AddSmi(p)
	},
	{PrimitiveModuleCore, CorePrimitiveStringAt}: func(p image.Program, out, failure *TypeSet) {
		out.AddInt(p)
		out.AddNull(p)
	},
	{PrimitiveModuleCollections, CollectionsPrimitiveArrayNew}: func(p image.Program, out, failure *TypeSet) {
		out.AddArray(p)
	},
	{PrimitiveModuleCollections, CollectionsPrimitiveArrayAt}: func(p image.Program, out, failure *TypeSet) {
		out.AddAny(p.ClassCount())
	},
	{PrimitiveModuleCollections, CollectionsPrimitiveArrayAtPut}: func(p image.Program, out, failure *TypeSet) {
		out.AddAny(p.ClassCount())
	},
}

// lookupPrimitive returns the summary registered for (module, index), or
// nil if none is known. An unknown primitive is treated exactly like
// the unimplemented opcodes: the call site's path terminates rather
// than guessing a type.
func lookupPrimitive(module byte, index uint16) primitiveSummary {
	return primitiveSummaries[primitiveKey{module: module, index: index}]
}

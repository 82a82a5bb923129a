package image

// ClassID identifies a class in the program's dense [0, N) id space.
type ClassID int32

// Value describes one entry of the literal pool or the global variable
// pool. The analyzer only ever needs to know a value's class -- and, for
// lazy globals, the header position of the initializer method (section
// 4.6, "Seeding") -- never its actual runtime representation.
type Value struct {
	Class ClassID

	// IsLazyInitializer marks a global whose initial value is a
	// lazy-initializer record; its type is injected later by the first
	// LOAD_GLOBAL_VAR_LAZY rather than seeded up front.
	IsLazyInitializer bool

	// LazyInitializerMethod is the header bcp of the method that
	// lazily computes the global's value, valid when IsLazyInitializer.
	LazyInitializerMethod int
}

// Program is the compiled image the propagator runs over (spec section
// 6). Everything about how it was produced is external to this package.
type Program interface {
	Bytecodes() []byte

	LiteralCount() int
	Literal(index int) Value

	GlobalVariableCount() int
	GlobalVariable(index int) Value

	// DispatchEntry returns the method header bcp bound at the given
	// dispatch table index, or -1 if nothing is bound there.
	DispatchEntry(index int) int

	ClassCount() int

	// ClassCheckRange returns the contiguous class-id subrange used by
	// the compile-time class check at classCheckIndex.
	ClassCheckRange(classCheckIndex int) (start, end ClassID)

	// InterfaceCheckOffset returns the dispatch-table selector offset
	// associated with an interface check index.
	InterfaceCheckOffset(selectorIndex int) int

	InstanceSize(class ClassID) int
	InstanceFieldCount(class ClassID) int

	// InvokeBytecodeOffset returns the fixed dispatch-table selector
	// offset that a binary INVOKE_* opcode (INVOKE_ADD, INVOKE_EQ, ...)
	// resolves against.
	InvokeBytecodeOffset(op Opcode) int

	AbsoluteBCI(bcp int) int
	BCPFromAbsolute(bci int) int

	NullClass() ClassID
	TrueClass() ClassID
	FalseClass() ClassID
	SmiClass() ClassID
	LargeIntegerClass() ClassID
	FloatClass() ClassID
	StringClass() ClassID
	ArrayClass() ClassID
	ByteArrayClass() ClassID
	TaskClass() ClassID
	ExceptionClass() ClassID
	LambdaBoxClass() ClassID

	// EntryMethod is the header bcp of the program's entry point, called
	// with a single Task argument.
	EntryMethod() int
}

// The Task*FieldIndex and Exception*FieldIndex constants name the well-known field
// offsets seeded explicitly by the propagator (spec section 4.6).
const (
	TaskIDFieldIndex    = 0
	TaskStackFieldIndex = 1

	ExceptionValueFieldIndex = 0
	ExceptionTraceFieldIndex = 1
)

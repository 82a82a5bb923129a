package image

import "encoding/binary"

// MutableProgram is a minimal, fully in-memory Program implementation.
// It exists for tests and small host programs that assemble a Program by
// hand rather than loading one from a real frontend/serializer (both are
// out of scope here, see the package doc).
type MutableProgram struct {
	code     []byte
	literals []Value
	globals  []Value
	dispatch []int

	classCheckRanges      [][2]ClassID
	interfaceCheckOffsets []int
	instanceSizes         map[ClassID]int
	instanceFields        map[ClassID]int
	invokeOffsets         map[Opcode]int

	classCount int
	entry      int

	nullClass, trueClass, falseClass                      ClassID
	smiClass, largeIntClass, floatClass                    ClassID
	stringClass, arrayClass, byteArrayClass                ClassID
	taskClass, exceptionClass, lambdaBoxClass               ClassID
}

// NewMutableProgram returns an empty program with classCount classes.
// Callers set the well-known class ids with SetWellKnownClasses and fill
// in instance sizes, field counts, dispatch entries and bytecode via
// Builder before use.
func NewMutableProgram(classCount int) *MutableProgram {
	return &MutableProgram{
		classCount:     classCount,
		instanceSizes:  make(map[ClassID]int),
		instanceFields: make(map[ClassID]int),
		invokeOffsets:  make(map[Opcode]int),
	}
}

func (p *MutableProgram) Bytecodes() []byte { return p.code }

func (p *MutableProgram) LiteralCount() int      { return len(p.literals) }
func (p *MutableProgram) Literal(i int) Value    { return p.literals[i] }
func (p *MutableProgram) AddLiteral(v Value) int { p.literals = append(p.literals, v); return len(p.literals) - 1 }

func (p *MutableProgram) GlobalVariableCount() int   { return len(p.globals) }
func (p *MutableProgram) GlobalVariable(i int) Value { return p.globals[i] }
func (p *MutableProgram) AddGlobal(v Value) int {
	p.globals = append(p.globals, v)
	return len(p.globals) - 1
}

func (p *MutableProgram) DispatchEntry(index int) int {
	if index < 0 || index >= len(p.dispatch) {
		return -1
	}
	return p.dispatch[index]
}

// SetDispatch grows the dispatch table as needed and binds index to
// methodHeaderBCP.
func (p *MutableProgram) SetDispatch(index, methodHeaderBCP int) {
	for len(p.dispatch) <= index {
		p.dispatch = append(p.dispatch, -1)
	}
	p.dispatch[index] = methodHeaderBCP
}

func (p *MutableProgram) ClassCount() int { return p.classCount }

func (p *MutableProgram) ClassCheckRange(index int) (ClassID, ClassID) {
	r := p.classCheckRanges[index]
	return r[0], r[1]
}

func (p *MutableProgram) AddClassCheckRange(start, end ClassID) int {
	p.classCheckRanges = append(p.classCheckRanges, [2]ClassID{start, end})
	return len(p.classCheckRanges) - 1
}

func (p *MutableProgram) InterfaceCheckOffset(index int) int { return p.interfaceCheckOffsets[index] }
func (p *MutableProgram) AddInterfaceCheckOffset(offset int) int {
	p.interfaceCheckOffsets = append(p.interfaceCheckOffsets, offset)
	return len(p.interfaceCheckOffsets) - 1
}

func (p *MutableProgram) InstanceSize(c ClassID) int       { return p.instanceSizes[c] }
func (p *MutableProgram) InstanceFieldCount(c ClassID) int { return p.instanceFields[c] }
func (p *MutableProgram) SetInstanceFields(c ClassID, count int) {
	p.instanceSizes[c] = count
	p.instanceFields[c] = count
}

func (p *MutableProgram) InvokeBytecodeOffset(op Opcode) int { return p.invokeOffsets[op] }
func (p *MutableProgram) SetInvokeBytecodeOffset(op Opcode, offset int) {
	p.invokeOffsets[op] = offset
}

func (p *MutableProgram) AbsoluteBCI(bcp int) int   { return bcp }
func (p *MutableProgram) BCPFromAbsolute(bci int) int { return bci }

func (p *MutableProgram) NullClass() ClassID       { return p.nullClass }
func (p *MutableProgram) TrueClass() ClassID       { return p.trueClass }
func (p *MutableProgram) FalseClass() ClassID      { return p.falseClass }
func (p *MutableProgram) SmiClass() ClassID        { return p.smiClass }
func (p *MutableProgram) LargeIntegerClass() ClassID { return p.largeIntClass }
func (p *MutableProgram) FloatClass() ClassID      { return p.floatClass }
func (p *MutableProgram) StringClass() ClassID     { return p.stringClass }
func (p *MutableProgram) ArrayClass() ClassID      { return p.arrayClass }
func (p *MutableProgram) ByteArrayClass() ClassID  { return p.byteArrayClass }
func (p *MutableProgram) TaskClass() ClassID       { return p.taskClass }
func (p *MutableProgram) ExceptionClass() ClassID  { return p.exceptionClass }
func (p *MutableProgram) LambdaBoxClass() ClassID  { return p.lambdaBoxClass }
func (p *MutableProgram) EntryMethod() int         { return p.entry }
func (p *MutableProgram) SetEntryMethod(bcp int)   { p.entry = bcp }

// SetWellKnownClasses assigns the twelve well-known class ids named in
// spec section 3.
func (p *MutableProgram) SetWellKnownClasses(null, true_, false_, smi, largeInt, float_, str, array, byteArray, task, exception, lambdaBox ClassID) {
	p.nullClass, p.trueClass, p.falseClass = null, true_, false_
	p.smiClass, p.largeIntClass, p.floatClass = smi, largeInt, float_
	p.stringClass, p.arrayClass, p.byteArrayClass = str, array, byteArray
	p.taskClass, p.exceptionClass, p.lambdaBoxClass = task, exception, lambdaBox
}

// Builder assembles bytecode into a MutableProgram.
type Builder struct {
	Program *MutableProgram
}

func NewBuilder(classCount int) *Builder {
	return &Builder{Program: NewMutableProgram(classCount)}
}

// MethodBuilder appends instructions for a single method or block body.
type MethodBuilder struct {
	b         *Builder
	HeaderBCP int
}

// BeginMethod reserves a header and returns a builder for its body.
// maxHeight must be large enough for the deepest stack the body reaches;
// test fixtures size it generously since it only bounds TypeStack
// allocation, not correctness.
func (b *Builder) BeginMethod(arity, maxHeight, selectorOffset int, isBlock bool) *MethodBuilder {
	headerBCP := len(b.Program.code)
	flags := byte(0)
	if isBlock {
		flags = flagIsBlock
	}
	so := selectorOffset
	if so < 0 {
		so = NoSelectorOffset
	}
	header := make([]byte, MethodHeaderSize)
	header[0] = byte(arity)
	header[1] = flags
	binary.LittleEndian.PutUint16(header[2:4], uint16(maxHeight))
	binary.LittleEndian.PutUint16(header[4:6], uint16(so))
	b.Program.code = append(b.Program.code, header...)
	return &MethodBuilder{b: b, HeaderBCP: headerBCP}
}

func (m *MethodBuilder) pos() int { return len(m.b.Program.code) }

func (m *MethodBuilder) emit(op Opcode, operand []byte) int {
	at := m.pos()
	m.b.Program.code = append(m.b.Program.code, byte(op))
	m.b.Program.code = append(m.b.Program.code, operand...)
	return at
}

func (m *MethodBuilder) Op(op Opcode) int { return m.emit(op, nil) }

func (m *MethodBuilder) Op1(op Opcode, a byte) int { return m.emit(op, []byte{a}) }

func (m *MethodBuilder) OpU16(op Opcode, a uint16) int {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, a)
	return m.emit(op, buf)
}

func (m *MethodBuilder) OpU32(op Opcode, a uint32) int {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, a)
	return m.emit(op, buf)
}

// InvokeVirtual emits a narrow INVOKE_VIRTUAL with the given operand
// count (receiver included) and selector offset.
func (m *MethodBuilder) InvokeVirtual(arity byte, offset uint16) int {
	buf := make([]byte, 3)
	buf[0] = arity
	binary.LittleEndian.PutUint16(buf[1:], offset)
	return m.emit(InvokeVirtual, buf)
}

func (m *MethodBuilder) PrimitiveOp(module byte, index uint16) int {
	buf := make([]byte, 3)
	buf[0] = module
	binary.LittleEndian.PutUint16(buf[1:], index)
	return m.emit(Primitive, buf)
}

// BranchForward reserves a forward branch and returns its position so
// PatchForward can later fill in the offset once the target is known.
func (m *MethodBuilder) BranchForward(op Opcode) int {
	return m.emit(op, []byte{0, 0})
}

// PatchForward patches the branch at 'at' (as returned by BranchForward)
// to target the current position.
func (m *MethodBuilder) PatchForward(at int) {
	delta := uint16(m.pos() - at)
	binary.LittleEndian.PutUint16(m.b.Program.code[at+1:at+3], delta)
}

// BranchBackTo emits a backward branch to a previously recorded position.
func (m *MethodBuilder) BranchBackTo(op Opcode, target int) int {
	at := m.pos()
	delta := uint16(at - target)
	return m.emit(op, []byte{byte(delta), byte(delta >> 8)})
}

// Pos exposes the current write position, used as a branch target.
func (m *MethodBuilder) Pos() int { return m.pos() }

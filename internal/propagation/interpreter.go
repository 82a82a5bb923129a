package propagation

import (
	"fmt"

	"github.com/emberlang/classflow/internal/image"
)

// process interprets straight-line bytecode starting at bcp within
// method's context, using scope's current (innermost) stack, until it
// reaches an unconditional branch, a call whose result is still empty,
// a return, or any other bytecode that ends this activation of the
// path; conditional branches register their target and continue. Branch
// targets are registered with worklist rather than followed directly --
// they get their own process() call once worklist.Next() hands them
// out, each with the merged scope of every path that reached them.
//
// linked is local to one process() call, mirroring the original
// interpreter's local variable of the same name: LINK/UNLINK/UNWIND
// never nest (spec section 4.5), so a fresh try/finally bracket never
// needs to see a value left over from a previous activation of this
// same method position.
func (p *Propagator) process(method *MethodTemplate, entryBCP int, scope *TypeScope, worklist *Worklist) {
	bytecodes := p.program.Bytecodes()
	stack := scope.Top()
	linked := false
	bcp := entryBCP

	for {
		inst := image.Decode(bytecodes, bcp)

		switch inst.Op {
		case image.LoadLocal, image.LoadLocalWide:
			stack.Push(stack.Local(inst.A))
		case image.LoadLocal0:
			stack.Push(stack.Local(0))
		case image.LoadLocal1:
			stack.Push(stack.Local(1))
		case image.LoadLocal2:
			stack.Push(stack.Local(2))
		case image.LoadLocal3:
			stack.Push(stack.Local(3))
		case image.LoadLocal4:
			stack.Push(stack.Local(4))
		case image.LoadLocal5:
			stack.Push(stack.Local(5))
		case image.PopLoadLocal:
			stack.SetLocal(0, stack.Local(inst.A+1))
		case image.StoreLocal:
			stack.SetLocal(inst.A, stack.Local(0))
		case image.StoreLocalPop:
			stack.SetLocal(inst.A, stack.Local(0))
			stack.Pop()

		case image.LoadOuter:
			p.LoadOuter(scope, bcp, inst.A)
		case image.StoreOuter:
			value := stack.Local(0)
			block := stack.Local(1)
			scope.StoreOuter(block, inst.A, value)
			stack.Pop()
			stack.Pop()
			stack.Push(value)
		case image.LoadOuterBlock:
			p.LoadOuter(scope, bcp, inst.A)
			invariant(stack.Local(0).IsBlock(), "LOAD_OUTER_BLOCK operand is not a block")

		case image.LoadField, image.LoadFieldWide:
			p.LoadField(method, stack, bcp, inst.A)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.LoadFieldLocal:
			local := inst.A & 0x0f
			fieldIndex := inst.A >> 4
			stack.Push(stack.Local(local))
			p.LoadField(method, stack, bcp, fieldIndex)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.PopLoadFieldLocal:
			local := inst.A & 0x0f
			fieldIndex := inst.A >> 4
			stack.SetLocal(0, stack.Local(local+1))
			p.LoadField(method, stack, bcp, fieldIndex)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.StoreField, image.StoreFieldWide:
			p.StoreField(stack, inst.A)
		case image.StoreFieldPop:
			p.StoreField(stack, inst.A)
			stack.Pop()

		case image.LoadLiteral, image.LoadLiteralWide:
			literal := p.program.Literal(inst.A)
			t := NewTypeSet(p.wordsPerType)
			t.Add(literal.Class)
			stack.Push(t)
		case image.LoadNull:
			stack.PushNull(p.program)
		case image.LoadSmi0, image.LoadSmi1, image.LoadSmiU8, image.LoadSmiU16, image.LoadSmiU32:
			stack.PushSmi(p.program)
		case image.LoadSmis0:
			for i := 0; i < inst.A; i++ {
				stack.PushSmi(p.program)
			}

		case image.LoadBlockMethod:
			inner := image.DecodeMethod(p.program, inst.A)
			block := method.FindBlock(inner, scope.Level(), bcp)
			stack.PushBlock(block)
			block.Propagate(p, method, scope)
		case image.LoadBlock:
			block := stack.Local(inst.A)
			invariant(block.IsBlock(), "LOAD_BLOCK operand is not a block")
			stack.Push(block)

		case image.LoadGlobalVar, image.LoadGlobalVarWide:
			variable := p.GlobalVariable(inst.A)
			stack.Push(variable.Use(p, method, bcp))
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.LoadGlobalVarLazy, image.LoadGlobalVarLazyWide:
			initializer := p.program.GlobalVariable(inst.A)
			target := image.DecodeMethod(p.program, initializer.LazyInitializerMethod)
			p.CallStatic(method, stack, bcp, target)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.StoreGlobalVar, image.StoreGlobalVarWide:
			p.GlobalVariable(inst.A).Merge(p, stack.Local(0))

		case image.Pop:
			for i := 0; i < inst.A; i++ {
				stack.Pop()
			}
		case image.Pop1:
			stack.Pop()

		case image.Allocate, image.AllocateWide:
			classID := image.ClassID(inst.A)
			fields := p.program.InstanceFieldCount(classID)
			for i := 0; i < fields; i++ {
				stack.PushNull(p.program)
				p.Field(classID, i).Merge(p, stack.Local(0))
				stack.Pop()
			}
			stack.PushInstance(classID)

		case image.IsClass, image.IsClassWide, image.IsInterface, image.IsInterfaceWide:
			stack.Pop()
			stack.PushBool(p.program)
		case image.AsClass, image.AsClassWide:
			classIndex := inst.A >> 1
			nullable := inst.A&1 != 0
			top := stack.Local(0)
			if !top.RemoveTypecheckClass(p.program, classIndex, nullable) {
				return
			}
		case image.AsInterface, image.AsInterfaceWide:
			selectorIndex := inst.A >> 1
			nullable := inst.A&1 != 0
			top := stack.Local(0)
			if !top.RemoveTypecheckInterface(p.program, selectorIndex, nullable) {
				return
			}
		case image.AsLocal:
			stackOffset := inst.A >> 5
			classIndex := inst.A & 0x1f
			local := stack.Local(stackOffset)
			if !local.RemoveTypecheckClass(p.program, classIndex, false) {
				return
			}

		case image.InvokeStatic:
			target := image.DecodeMethod(p.program, p.program.DispatchEntry(inst.A))
			p.CallStatic(method, stack, bcp, target)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.InvokeStaticTail:
			target := image.DecodeMethod(p.program, p.program.DispatchEntry(inst.A))
			p.CallStatic(method, stack, bcp, target)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
			returnFromActivation(p, method, scope, stack)
			return

		case image.InvokeBlock:
			arity := inst.A
			receiver := stack.Local(arity - 1)
			block := receiver.Block()
			for i := 1; i < block.Arity(); i++ {
				argument := stack.Local(arity - (i + 1))
				block.Argument(i).Merge(p, argument)
			}
			for i := 0; i < arity; i++ {
				stack.Pop()
			}
			value := block.Use(p, method, bcp)
			if value.IsEmpty(p.program) {
				if !linked {
					return
				}
				reason := stack.Local(1)
				reason.AddSmi(p.program)
			}
			stack.Push(value)

		case image.InvokeVirtual, image.InvokeVirtualWide:
			p.CallVirtual(method, stack, bcp, inst.A, inst.B)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.InvokeVirtualGet:
			p.CallVirtual(method, stack, bcp, 1, inst.A)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.InvokeVirtualSet:
			p.CallVirtual(method, stack, bcp, 2, inst.A)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}
		case image.InvokeAtPut:
			offset := p.program.InvokeBytecodeOffset(image.InvokeAtPut)
			p.CallVirtual(method, stack, bcp, 3, offset)

		case image.Branch:
			worklist.Add(bcp+inst.A, scope)
			return
		case image.BranchIfTrue, image.BranchIfFalse:
			stack.Pop()
			worklist.Add(bcp+inst.A, scope)
		case image.BranchBack:
			worklist.Add(bcp-inst.A, scope)
			return
		case image.BranchBackIfTrue, image.BranchBackIfFalse:
			stack.Pop()
			worklist.Add(bcp-inst.A, scope)

		case image.Primitive:
			summary := lookupPrimitive(byte(inst.A), uint16(inst.B))
			if summary == nil {
				return
			}
			fallthroughSlot := stack.PushEmpty()
			resultSlot := stack.PushEmpty()
			summary(p.program, resultSlot, fallthroughSlot)
			method.Ret(p, stack)
			if stack.Local(0).IsEmpty(p.program) {
				return
			}

		case image.Throw:
			return

		case image.Return:
			returnFromActivation(p, method, scope, stack)
			return
		case image.ReturnNull:
			stack.PushNull(p.program)
			returnFromActivation(p, method, scope, stack)
			return
		case image.NonLocalReturn, image.NonLocalReturnWide:
			stack.Pop()
			method.Ret(p, stack)
			return

		case image.Identical:
			stack.Pop()
			stack.Pop()
			stack.PushBool(p.program)

		case image.Link:
			stack.PushInstance(p.program.ExceptionClass())
			stack.PushEmpty()
			stack.PushEmpty()
			stack.PushSmi(p.program)
			invariant(!linked, "LINK while already linked")
			linked = true
		case image.Unlink:
			stack.Pop()
			linked = false
		case image.Unwind:
			reason := stack.Local(0)
			if !reason.IsEmpty(p.program) {
				return
			}
			stack.Pop()
			stack.Pop()
			stack.Pop()

		case image.Halt:
			return

		case image.IntrinsicSmiRepeat, image.IntrinsicArrayDo, image.IntrinsicHashDo:
			stack.Pop()
		case image.IntrinsicHashFind:
			for i := 0; i < 7; i++ {
				stack.Pop()
			}

		default:
			if image.IsBinaryVirtual(inst.Op) {
				offset := p.program.InvokeBytecodeOffset(inst.Op)
				p.CallVirtual(method, stack, bcp, 2, offset)
				if stack.Local(0).IsEmpty(p.program) {
					return
				}
				break
			}
			if image.IsUnimplemented(inst.Op) {
				err := &UnsupportedOpcodeError{Op: inst.Op, Position: p.program.AbsoluteBCI(bcp)}
				p.diagnose(err.Error())
				return
			}
			panic(&InvariantError{Message: fmt.Sprintf("unhandled opcode %s", inst.Op)})
		}

		bcp += inst.Length
	}
}

// returnFromActivation implements the RETURN / RETURN_NULL / tail-call
// epilogue shared by several opcodes: a block activation merges its
// return value upward into the enclosing scope it was entered from, a
// method activation merges it into its own MethodTemplate's result.
func returnFromActivation(p *Propagator, method *MethodTemplate, scope *TypeScope, stack *TypeStack) {
	if scope.Level() > 0 {
		receiver := stack.Get(0)
		block := receiver.Block()
		block.Ret(p, stack)
		scope.Outer().Merge(scope)
		return
	}
	method.Ret(p, stack)
}

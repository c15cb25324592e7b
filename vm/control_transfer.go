package vm

// Frame bookkeeping: each activation pushes, above its arguments and
// locals, a fixed two-word linkage recording where control returns to and how large the
// frame was — the interpreter needs the latter since Smi-shaped return
// addresses are indistinguishable from ordinary Smis by tag and can
// only be told apart by knowing the frame layout that put them there.
type frameLinkage struct {
	returnBCP Value // Smi-shaped, see value.go
	frameSize int
}

// pushFrame records linkage for a call about to be made: the caller
// pushes its own continuation bcp and current frame size just above the
// callee's arguments and padded locals.
func pushFrame(stack *StackObject, returnBCP Value, frameSize int) {
	stack.Push(returnBCP)
	stack.Push(SmiFromInt64(int64(frameSize)))
}

// popFrame reverses pushFrame, used by Return/SubroutineReturn.
func popFrame(stack *StackObject) frameLinkage {
	frameSize := int(stack.Pop().SmiValue())
	returnBCP := stack.Pop()
	return frameLinkage{returnBCP: returnBCP, frameSize: frameSize}
}

// reconstructSelectorAtReturn rebuilds the selector a call site used, by
// reading backward from the return address: EnterNoSuchMethod recovers
// the selector by reading the operand bytes immediately preceding the
// return address. It deliberately preserves a known quirk for the
// vtable call-site shape: that branch treats the row *offset* as if it
// were a selector id, rather than reversing the class.ID+offset
// addition back to a real selector, since doing that would need
// compiler cooperation this core doesn't have.
func reconstructSelectorAtReturn(fn *Function, returnBCP Value) (selector int, wasVtable bool) {
	localOffset := fn.LocalOffset(returnBCP)
	code := fn.Bytecode()

	// The call site may be either a 5-byte (opcode + one wide operand)
	// or a 9-byte (opcode + two wide operands) invoke form; try the
	// shorter back-distance first since it's the more common site shape.
	if opPos := localOffset - 5; opPos >= 0 {
		switch Opcode(code[opPos]) {
		case OpInvokeMethod, OpInvokeTest:
			return int(decodeWide(code, opPos+1)), false
		}
	}
	if opPos := localOffset - 9; opPos >= 0 {
		switch Opcode(code[opPos]) {
		case OpInvokeMethodFast, OpInvokeTestFast:
			// two wide operands: [dispatchIndex, selector]; the selector
			// is the second one.
			return int(decodeWide(code, opPos+5)), false
		case OpInvokeMethodVtable, OpInvokeTestVtable:
			// deliberately returns the *offset* operand (the call
			// site's first wide operand), not a real selector id,
			// rather than recovering a true selector, which would need
			// compiler cooperation this core doesn't have.
			offset := int(decodeWide(code, opPos+1))
			return offset, true
		}
	}
	Fatal("reconstructSelectorAtReturn: return address does not follow an invoke opcode")
	return 0, false
}

// unwindToHandler walks up from the current frame looking for a handler
// that protects the throwing bcp, crossing coroutine boundaries on a
// miss, grounded on StackWalker::ComputeCatchBlock. It returns the coroutine and
// function-relative handler offset to resume at, or ok=false if the
// exception is uncaught anywhere in the coroutine chain.
func (p *Process) unwindToHandler(thrownAt Value) (coro *Coroutine, handlerLocalOffset int, ok bool) {
	c := p.coro
	bcp := thrownAt

	for {
		fn := p.program.functionFromBCP(bcp)
		localOffset := fn.LocalOffset(bcp)
		if handler, found := fn.CatchBlockFor(localOffset); found {
			p.UpdateCoroutine(c)
			return c, handler, true
		}

		stack := c.Stack()
		// frameSize 0 is the sentinel enterFrame pushes for a call made
		// with no Go-tracked caller above it (a coroutine's root frame):
		// nothing real is left to pop here, so cross to whichever
		// coroutine resumed this one rather than reading the sentinel's
		// returnBCP as a real bytecode pointer.
		if stack.Len() < 2 || int(stack.At(0).SmiValue()) == 0 {
			if !c.HasCaller() {
				c.markDone()
				return nil, 0, false
			}
			caller := c.Caller()
			c.markDone()
			c = caller
			bcp = c.Stack().SavedBCP()
			continue
		}
		linkage := popFrame(stack)
		bcp = linkage.returnBCP
	}
}

package vm

// InterruptKind is everything Run can return control to the embedder
// for: a normal completion, a debugger breakpoint, an
// explicit termination request, a cooperative yield, a yield tied to a
// locked Port ("target yield"), an asynchronous interrupt flag, or an
// exception nothing in the coroutine chain caught.
type InterruptKind int

const (
	InterruptReady InterruptKind = iota
	InterruptBreakPoint
	InterruptTerminate
	InterruptYield
	InterruptTargetYield
	InterruptInterrupt
	InterruptUncaughtException
)

func (k InterruptKind) String() string {
	switch k {
	case InterruptReady:
		return "ready"
	case InterruptBreakPoint:
		return "breakpoint"
	case InterruptTerminate:
		return "terminate"
	case InterruptYield:
		return "yield"
	case InterruptTargetYield:
		return "target_yield"
	case InterruptInterrupt:
		return "interrupt"
	case InterruptUncaughtException:
		return "uncaught_exception"
	default:
		return "interrupt(?)"
	}
}

// frameState is the interpreter's own call-frame bookkeeping. It mirrors
// (but is not a substitute for) the return-address/frame-size pair
// pushed onto the VM-visible StackObject by pushFrame: every call here
// pushes both, in lockstep, so unwindToHandler's independent walk of the
// StackObject (used for cross-coroutine exception propagation, where no
// Go call stack exists to unwind) sees the same frame boundaries this
// slice does within a single coroutine's execution.
type frameState struct {
	fn   *Function
	pc   int // next instruction to execute, function-relative
	base int // index into the stack's slots where Local(0) lives
}

// Interpreter runs bytecode against one Process. A fresh Interpreter (or
// a reused one — it carries no state across Run calls beyond the
// optional fast-engine hook) is cheap to construct.
type Interpreter struct {
	process *Process
	hook    FastEngineHook

	frames []frameState

	// pendingPort is set by InvokeNativeYield when a native hands back a
	// locked Port to wait on; Run surfaces it via LastPort after
	// returning InterruptTargetYield.
	pendingPort *Port
}

// NewInterpreter creates an interpreter for p. hook may be nil, in which
// case builtin-alias opcodes always take the generic path.
func NewInterpreter(p *Process, hook FastEngineHook) *Interpreter {
	return &Interpreter{process: p, hook: hook}
}

// LastPort returns the Port a just-completed Run parked on, valid only
// immediately after a InterruptTargetYield result.
func (it *Interpreter) LastPort() *Port { return it.pendingPort }

// Run executes entry with args on the process's currently active
// coroutine until it returns, yields, throws uncaught, or is otherwise
// interrupted. The loop runs no safepoint check before dispatch: it
// never observes a debugger breakpoint or an external interrupt, and
// never returns InterruptBreakPoint or InterruptInterrupt.
func (it *Interpreter) Run(entry *Function, args []Value) (Value, InterruptKind) {
	p := it.process
	p.TakeLookupCache()
	defer p.ReleaseLookupCache()

	s := it.stack()
	for _, a := range args {
		s.Push(a)
	}

	it.frames = it.frames[:0]
	it.enterFrame(entry, len(args))

	return it.loop()
}

func (it *Interpreter) stack() *StackObject { return it.process.coro.Stack() }

// enterFrame assumes argCount values are already sitting on top of the
// stack (the call's arguments, receiver included where applicable) and
// finishes building the callee's activation: pad locals up to FrameSize,
// push the return linkage, and push a new frameState.
func (it *Interpreter) enterFrame(fn *Function, argCount int) {
	s := it.stack()
	if !s.Reserve(fn.FrameSize + 2) {
		it.process.HandleStackOverflow(fn.FrameSize + 2)
	}
	base := s.Len() - argCount
	for i := argCount; i < fn.FrameSize; i++ {
		s.Push(it.process.program.NullObject)
	}
	var returnBCP Value
	var callerFrameSize int
	if len(it.frames) > 0 {
		caller := &it.frames[len(it.frames)-1]
		returnBCP = caller.fn.BCP(caller.pc)
		callerFrameSize = caller.fn.FrameSize
	}
	pushFrame(s, returnBCP, callerFrameSize)
	it.frames = append(it.frames, frameState{fn: fn, pc: 0, base: base})
}

// loop is the dispatch trampoline: decode, execute, repeat until a frame
// pop empties it.frames (normal completion) or a handler requests an
// InterruptKind other than Ready.
func (it *Interpreter) loop() (Value, InterruptKind) {
	p := it.process

	for {
		if len(it.frames) == 0 {
			return it.stack().Pop(), InterruptReady
		}
		f := &it.frames[len(it.frames)-1]
		s := it.stack()
		code := f.fn.Bytecode()
		op := Opcode(code[f.pc])

		switch op {
		case OpLoadLocal:
			idx := int(code[f.pc+1])
			s.Push(s.Slot(f.base + idx))
			f.pc += 2
		case OpLoadLocalWide:
			idx := int(decodeWide(code, f.pc+1))
			s.Push(s.Slot(f.base + idx))
			f.pc += 5
		case OpLoadBoxed:
			idx := int(code[f.pc+1])
			s.Push(s.Slot(f.base + idx).asBoxed().Slot)
			f.pc += 2
		case OpLoadStatic:
			id := int(decodeWide(code, f.pc+1))
			s.Push(p.program.StaticAt(id))
			f.pc += 5
		case OpLoadStaticInit:
			id := int(decodeWide(code, f.pc+1))
			v := p.program.StaticAt(id)
			if v == p.program.NullObject {
				Fatal("LoadStaticInit: static %d never initialized", id)
			}
			s.Push(v)
			f.pc += 5
		case OpLoadField:
			idx := int(code[f.pc+1])
			recv := s.Pop()
			s.Push(recv.asInstance().Slots[idx])
			f.pc += 2
		case OpLoadConst:
			id := int(decodeWide(code, f.pc+1))
			s.Push(p.program.ConstantAt(id))
			f.pc += 5
		case OpLoadNull:
			s.Push(p.program.NullObject)
			f.pc++
		case OpLoadTrue:
			s.Push(p.program.TrueObject)
			f.pc++
		case OpLoadFalse:
			s.Push(p.program.FalseObject)
			f.pc++
		case OpLoadSmi0:
			s.Push(SmiFromInt64(0))
			f.pc++
		case OpLoadSmi1:
			s.Push(SmiFromInt64(1))
			f.pc++
		case OpStoreLocal:
			idx := int(code[f.pc+1])
			s.SetSlot(f.base+idx, s.Top())
			f.pc += 2
		case OpStoreBoxed:
			idx := int(code[f.pc+1])
			s.Slot(f.base + idx).asBoxed().Slot = s.Top()
			f.pc += 2
		case OpStoreStatic:
			id := int(decodeWide(code, f.pc+1))
			p.program.SetStaticAt(id, s.Top())
			f.pc += 5
		case OpStoreField:
			idx := int(code[f.pc+1])
			val := s.Pop()
			recv := s.Pop()
			recv.asInstance().Slots[idx] = val
			s.Push(val)
			f.pc += 2
		case OpPop:
			s.Pop()
			f.pc++
		case OpDup:
			s.Push(s.Top())
			f.pc++

		case OpInvokeMethod:
			sel := Selector(decodeWide(code, f.pc+1))
			f.pc += 5
			it.dispatchNormal(f, sel)
		case OpInvokeMethodFast:
			idx := int(decodeWide(code, f.pc+1))
			sel := Selector(decodeWide(code, f.pc+5))
			f.pc += 9
			it.dispatchFast(f, idx, sel)
		case OpInvokeMethodVtable:
			offset := int(decodeWide(code, f.pc+1))
			sel := Selector(decodeWide(code, f.pc+5))
			f.pc += 9
			it.dispatchVtable(f, offset, sel)
		case OpInvokeStatic:
			id := int(decodeWide(code, f.pc+1))
			f.pc += 5
			target := p.program.StaticMethodAt(id)
			it.enterFrame(target, target.ArityIncl)
		case OpInvokeFactory:
			id := int(decodeWide(code, f.pc+1))
			f.pc += 5
			target := p.program.StaticMethodAt(id)
			it.enterFrame(target, target.ArityIncl)
		case OpInvokeTest:
			sel := Selector(decodeWide(code, f.pc+1))
			f.pc += 5
			recv := s.Pop()
			entry := p.LookupEntry(recv, int(sel))
			s.Push(boolValue(p, entry.Tag != TagNoSuchMethod))
		case OpInvokeTestFast:
			idx := int(decodeWide(code, f.pc+1))
			f.pc += 9
			recv := s.Pop()
			site := p.program.DispatchTable.Site(idx)
			_, found := site.Resolve(p.classOf(recv).ID)
			s.Push(boolValue(p, found))
		case OpInvokeTestVtable:
			offset := int(decodeWide(code, f.pc+1))
			f.pc += 9
			recv := s.Pop()
			s.Push(boolValue(p, !p.program.VTable.IsAbsent(p.classOf(recv).ID, offset)))
		case OpInvokeNative:
			id := int(code[f.pc+1])
			argCount := int(code[f.pc+2])
			argBase := s.Len() - argCount
			res := p.InvokeNative(id, argBase, argCount)
			if res.Failure == RetryAfterGC {
				p.CollectGarbage()
				continue // retry the same InvokeNative from scratch, operand stack unchanged
			}
			s.Truncate(argBase)
			if res.IsValue {
				s.Push(res.Value)
			} else {
				s.Push(p.program.ObjectFromFailure(res.Failure))
			}
			f.pc += 3
		case OpInvokeNativeYield:
			id := int(code[f.pc+1])
			argCount := int(code[f.pc+2])
			argBase := s.Len() - argCount
			res, port, yield := p.InvokeNativeYield(id, argBase, argCount)
			if yield {
				// f.pc is left pointing at this instruction, but the
				// frames are not kept across Run calls: a later Run
				// starts its entry function again from offset 0.
				it.pendingPort = port
				return 0, InterruptTargetYield
			}
			if res.Failure == RetryAfterGC {
				p.CollectGarbage()
				continue
			}
			s.Truncate(argBase)
			if res.IsValue {
				s.Push(res.Value)
			} else {
				s.Push(p.program.ObjectFromFailure(res.Failure))
			}
			f.pc += 3

		case OpInvokeAdd, OpInvokeSub, OpInvokeMul, OpInvokeMod,
			OpInvokeEq, OpInvokeLt, OpInvokeLe, OpInvokeGt, OpInvokeGe,
			OpInvokeBitAnd, OpInvokeBitOr, OpInvokeBitXor, OpInvokeBitShl, OpInvokeBitShr:
			arg := s.Pop()
			recv := s.Pop()
			if it.hook != nil {
				if result, outcome, handled := it.hook.TryInvoke(p, op, recv, arg); handled {
					s.Push(result)
					if outcome != InterruptReady {
						return 0, outcome
					}
					f.pc++
					continue
				}
			}
			result, failure := evalBuiltinBinary(p, op, recv, arg)
			if failure == RetryAfterGC {
				p.CollectGarbage()
				s.Push(recv)
				s.Push(arg)
				continue // retry with the operand stack restored
			}
			if failure != 0 {
				s.Push(p.program.ObjectFromFailure(failure))
			} else {
				s.Push(result)
			}
			f.pc++
		case OpInvokeBitNot:
			recv := s.Pop()
			result, failure := evalBuiltinUnary(p, recv)
			if failure == RetryAfterGC {
				p.CollectGarbage()
				s.Push(recv)
				continue
			}
			if failure != 0 {
				s.Push(p.program.ObjectFromFailure(failure))
			} else {
				s.Push(result)
			}
			f.pc++

		case OpBranch:
			f.pc = int(code[f.pc+1])
		case OpBranchWide:
			f.pc = int(decodeWide(code, f.pc+1))
		case OpBranchIfTrue:
			target := int(code[f.pc+1])
			if s.Top() == p.program.TrueObject {
				f.pc = target
			} else {
				f.pc += 2
			}
		case OpBranchIfFalse:
			target := int(code[f.pc+1])
			if s.Top() == p.program.FalseObject {
				f.pc = target
			} else {
				f.pc += 2
			}
		case OpPopAndBranchIfTrue:
			target := int(code[f.pc+1])
			if s.Pop() == p.program.TrueObject {
				f.pc = target
			} else {
				f.pc += 2
			}
		case OpPopAndBranchIfFalse:
			target := int(code[f.pc+1])
			if s.Pop() == p.program.FalseObject {
				f.pc = target
			} else {
				f.pc += 2
			}
		case OpBranchBack:
			target := int(code[f.pc+1])
			it.checkBackBranch(f)
			f.pc = target
		case OpBranchBackIfTrue:
			target := int(code[f.pc+1])
			if s.Pop() == p.program.TrueObject {
				it.checkBackBranch(f)
				f.pc = target
			} else {
				f.pc += 2
			}
		case OpBranchBackIfFalse:
			target := int(code[f.pc+1])
			if s.Pop() == p.program.FalseObject {
				it.checkBackBranch(f)
				f.pc = target
			} else {
				f.pc += 2
			}
		case OpReturn:
			retVal := s.Pop()
			it.popFrameReturning(retVal)
		case OpReturnNull:
			it.popFrameReturning(p.program.NullObject)
		case OpThrow:
			exc := s.Pop()
			thrownAt := f.fn.BCP(f.pc)
			if outcome, ok := it.unwind(thrownAt, exc); ok {
				continue
			} else {
				return exc, outcome
			}
		case OpSubroutineCall:
			target := int(code[f.pc+1])
			s.Push(f.fn.BCP(f.pc + 2))
			f.pc = target
		case OpSubroutineReturn:
			retAddr := s.Pop()
			f.pc = f.fn.LocalOffset(retAddr)

		case OpAllocate, OpAllocateImmutable:
			classID := int(decodeWide(code, f.pc+1))
			immutable := op == OpAllocateImmutable
			class := p.program.ClassAt(classID)
			v, failure := p.NewInstance(class, immutable)
			if failure == RetryAfterGC {
				p.CollectGarbage()
				continue // retry the same Allocate from scratch, operand stack unchanged
			}
			for i := class.NumInstanceFields - 1; i >= 0; i-- {
				v.asInstance().Slots[i] = s.Pop()
			}
			s.Push(v)
			f.pc += 5
		case OpAllocateBoxed:
			initial := s.Pop()
			v, failure := p.NewBoxed(initial)
			if failure == RetryAfterGC {
				p.CollectGarbage()
				s.Push(initial)
				continue
			}
			s.Push(v)
			f.pc++
		case OpAllocateArray:
			length := int(s.Pop().SmiValue())
			v, failure := p.NewArray(length)
			if failure == RetryAfterGC {
				p.CollectGarbage()
				s.Push(SmiFromInt64(int64(length)))
				continue
			}
			s.Push(v)
			f.pc++
		case OpNegate:
			v := s.Pop()
			s.Push(negateValue(p, v))
			f.pc++

		case OpIdentical:
			b := s.Pop()
			a := s.Pop()
			s.Push(boolValue(p, identical(a, b)))
			f.pc++
		case OpIdenticalNonNumeric:
			b := s.Pop()
			a := s.Pop()
			s.Push(boolValue(p, a == b))
			f.pc++
		case OpStackOverflowCheck:
			frameSize := int(decodeWide(code, f.pc+1))
			if !s.Reserve(frameSize) {
				p.HandleStackOverflow(frameSize)
			}
			f.pc += 5
		case OpProcessYield:
			f.pc++
			return 0, InterruptYield
		case OpCoroutineChange:
			to := s.Pop().asCoroutine()
			f.pc++
			// Record where this coroutine should resume if a callee's
			// uncaught exception ever unwinds into it, since the Go
			// frame stack won't exist by the time that search reaches
			// it (see unwindToHandler).
			s.SetSavedBCP(f.fn.BCP(f.pc))
			p.UpdateCoroutine(to)
			// resuming a different coroutine means the interpreter's Go
			// frame stack no longer describes what's executing; the
			// embedder is expected to start a fresh Run against the
			// newly active coroutine rather than continue this one.
			return 0, InterruptYield
		case OpEnterNoSuchMethod:
			caller := &it.frames[len(it.frames)-2]
			sel, wasVtable := reconstructSelectorAtReturn(caller.fn, caller.fn.BCP(caller.pc))
			if wasVtable {
				p.noteVtableSelectorBug()
			}
			s.Push(SmiFromInt64(int64(sel)))
			f.pc++
		case OpExitNoSuchMethod:
			selVal := s.Pop()
			sel := Selector(selVal.SmiValue())
			if sel.Kind() == SelectorSetter {
				s.Push(s.Slot(f.base + sel.Arity())) // the last argument: the assigned value
			} else {
				s.Push(p.program.ObjectFromNoSuchMethod(int(sel)))
			}
			f.pc++
		case OpFrameSize:
			f.pc += 5 // informational only; FrameSize is already known from Function metadata
		case OpMethodEnd:
			f.pc++

		default:
			logFatalContext("unknown opcode", op, f.fn.BCP(f.pc), len(it.frames))
			Fatal("unknown opcode %d at function %s+%d", byte(op), f.fn.Name, f.pc)
		}
	}
}

// checkBackBranch runs the safepoint original_source performs on every
// backward branch: a loop that never calls out can otherwise run
// forever without ever reaching a StackOverflowCheck or safepoint,
// so back-branches get their own check.
func (it *Interpreter) checkBackBranch(f *frameState) {
	if !it.stack().Reserve(1) {
		it.process.HandleStackOverflow(f.fn.FrameSize)
	}
}

// popFrameReturning pops the current frame, recording retVal as its
// result on the caller's expression stack (or ending Run entirely if
// this was the root frame).
func (it *Interpreter) popFrameReturning(retVal Value) {
	s := it.stack()
	cur := it.frames[len(it.frames)-1]
	s.Truncate(cur.base + cur.fn.FrameSize + 2)
	popFrame(s) // discard this frame's linkage words
	s.Truncate(cur.base)
	s.Push(retVal)
	it.frames = it.frames[:len(it.frames)-1]
}

// unwind looks for a handler for exc thrown at thrownAt, first within
// the interpreter's own Go-tracked frames (cheap, no coroutine
// crossing), falling back to Process.unwindToHandler (which can cross
// coroutines) only once this coroutine's own frames are exhausted.
func (it *Interpreter) unwind(thrownAt Value, exc Value) (InterruptKind, bool) {
	s := it.stack()
	for len(it.frames) > 0 {
		top := &it.frames[len(it.frames)-1]
		localOffset := top.fn.LocalOffset(thrownAt)
		if handler, found := top.fn.CatchBlockFor(localOffset); found {
			s.Truncate(top.base + top.fn.FrameSize + 2)
			top.pc = handler
			s.Push(exc)
			return InterruptReady, true
		}
		if len(it.frames) == 1 {
			break
		}
		s.Truncate(top.base + top.fn.FrameSize + 2)
		popFrame(s)
		s.Truncate(top.base)
		thrownAt = it.frames[len(it.frames)-2].fn.BCP(it.frames[len(it.frames)-2].pc)
		it.frames = it.frames[:len(it.frames)-1]
	}
	// Exhausted this coroutine's frames without a catch: cross to the
	// caller coroutine, if any, via the shared Process-level walker.
	_, _, ok := it.process.unwindToHandler(thrownAt)
	if !ok {
		return InterruptUncaughtException, false
	}
	// A caller coroutine caught it; this Run is done from this
	// coroutine's perspective, and the embedder resumes on the coroutine
	// unwindToHandler left active.
	return InterruptUncaughtException, false
}

func (it *Interpreter) dispatchNormal(f *frameState, sel Selector) {
	p := it.process
	s := it.stack()
	arity := sel.Arity()
	recv := s.At(arity)
	entry := p.LookupEntry(recv, int(sel))
	it.enterFrame(entry.Target, arity+1)
}

func (it *Interpreter) dispatchFast(f *frameState, siteIndex int, sel Selector) {
	p := it.process
	s := it.stack()
	arity := sel.Arity()
	recv := s.At(arity)
	class := p.classOf(recv)
	site := p.program.DispatchTable.Site(siteIndex)
	row, found := site.Resolve(class.ID)
	var target *Function
	if found {
		target = row.Target
	} else {
		target = p.program.NoSuchMethodTrampoline
	}
	it.enterFrame(target, arity+1)
}

func (it *Interpreter) dispatchVtable(f *frameState, offset int, sel Selector) {
	p := it.process
	s := it.stack()
	arity := sel.Arity()
	recv := s.At(arity)
	class := p.classOf(recv)
	row := p.program.VTable.Lookup(class.ID, offset)
	it.enterFrame(row.Target, arity+1)
}

// identical implements the Identical opcode's NaN-aware numeric
// equality: any two Double operands holding NaN are identical to each
// other (unlike Go's float64 ==, which says false for NaN vs NaN); other
// Double pairs compare with IEEE ==, and LargeIntegers by value.
func identical(a, b Value) bool {
	if a == b {
		return true
	}
	ak, aok := a.kind()
	bk, bok := b.kind()
	if aok && bok && ak == KindDouble && bk == KindDouble {
		return a.asDouble().F == b.asDouble().F ||
			(a.asDouble().F != a.asDouble().F && b.asDouble().F != b.asDouble().F) // both NaN
	}
	if aok && bok && ak == KindLargeInteger && bk == KindLargeInteger {
		return a.asLargeInteger().Big.Cmp(b.asLargeInteger().Big) == 0
	}
	return false
}

// negateValue implements Negate's boolean-only semantics: true_object
// and false_object flip into each other, and anything else is a fatal
// implementation error rather than a recoverable Failure — there is no
// general arithmetic negation opcode, matching original_source's
// Negate handler (interpreter.cc), which compares against
// true_object/false_object and calls UNIMPLEMENTED() on anything else.
func negateValue(p *Process, v Value) Value {
	switch v {
	case p.program.TrueObject:
		return p.program.FalseObject
	case p.program.FalseObject:
		return p.program.TrueObject
	default:
		Fatal("Negate: operand is not a boolean")
		return 0
	}
}

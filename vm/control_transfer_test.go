package vm

import "testing"

func TestPushFramePopFrameRoundTrip(t *testing.T) {
	s := NewStackObject()
	returnBCP := Value(1234)

	pushFrame(s, returnBCP, 7)
	linkage := popFrame(s)

	if linkage.returnBCP != returnBCP {
		t.Fatalf("returnBCP = %v, want %v", linkage.returnBCP, returnBCP)
	}
	if linkage.frameSize != 7 {
		t.Fatalf("frameSize = %d, want 7", linkage.frameSize)
	}
	if s.Len() != 0 {
		t.Fatalf("stack not empty after popFrame: Len() = %d", s.Len())
	}
}

func TestReconstructSelectorAtReturnForEachInvokeShape(t *testing.T) {
	program := NewProgram()
	mb := newMethodBuilder()
	mb.opSelector(OpInvokeMethod, PackSelector(1, SelectorMethod, 99))
	mb.opTwoWide(OpInvokeMethodFast, 3, int32(PackSelector(0, SelectorMethod, 55)))
	mb.opTwoWide(OpInvokeMethodVtable, 7, int32(PackSelector(0, SelectorMethod, 11)))
	mb.op(OpReturnNull)
	fn, code := mb.build("caller", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	// Return address right after the 5-byte OpInvokeMethod.
	if sel, wasVtable := reconstructSelectorAtReturn(fn, fn.BCP(5)); wasVtable || sel != int(PackSelector(1, SelectorMethod, 99)) {
		t.Fatalf("InvokeMethod: got (%d, %v), want (%d, false)", sel, wasVtable, PackSelector(1, SelectorMethod, 99))
	}
	// Return address right after the 9-byte OpInvokeMethodFast.
	if sel, wasVtable := reconstructSelectorAtReturn(fn, fn.BCP(14)); wasVtable || sel != int(PackSelector(0, SelectorMethod, 55)) {
		t.Fatalf("InvokeMethodFast: got (%d, %v), want (%d, false)", sel, wasVtable, PackSelector(0, SelectorMethod, 55))
	}
	// Return address right after the 9-byte OpInvokeMethodVtable: the
	// bug-compatible reconstruction returns the *offset* operand (7), not
	// the selector (11).
	if sel, wasVtable := reconstructSelectorAtReturn(fn, fn.BCP(23)); !wasVtable || sel != 7 {
		t.Fatalf("InvokeMethodVtable: got (%d, %v), want (7, true)", sel, wasVtable)
	}
}

func TestUnwindToHandlerCrossesCoroutines(t *testing.T) {
	program := NewStandardProgram()

	calleeMB := newMethodBuilder()
	calleeMB.op(OpReturnNull)
	calleeFn, calleeCode := calleeMB.build("callee", 0, 0)
	program.AppendFunction(calleeFn, calleeCode)

	callerMB := newMethodBuilder()
	callerMB.op(OpLoadNull)       // offset 0
	callerMB.op(OpCoroutineChange) // offset 1
	callerMB.op(OpPop)            // offset 2: where execution resumes, protected
	callerMB.op(OpReturnNull)     // offset 3: handler target
	callerFn, callerCode := callerMB.build("caller", 0, 0)
	callerFn.Exception = []ExceptionTableEntry{{Start: 0, End: 4, Handler: 3}}
	program.AppendFunction(callerFn, callerCode)
	program.Finalize()

	process := NewProcess(program, 1024)
	callerCoro := process.coro
	// Simulate OpCoroutineChange having recorded its resume point before
	// switching away, the way the interpreter's handler does.
	callerCoro.Stack().SetSavedBCP(callerFn.BCP(2))

	calleeCoro := NewCoroutine(process, callerCoro, 0)
	process.UpdateCoroutine(calleeCoro)

	thrownAt := calleeFn.BCP(0)
	coro, handler, ok := process.unwindToHandler(thrownAt)
	if !ok {
		t.Fatal("expected a handler to be found by crossing into the caller coroutine")
	}
	if coro != callerCoro {
		t.Fatal("expected the handler coroutine to be the caller, got a different coroutine")
	}
	if handler != 3 {
		t.Fatalf("handler offset = %d, want 3", handler)
	}
	if !calleeCoro.IsDone() {
		t.Fatal("callee coroutine should be marked done after unwinding off its own stack")
	}
	if calleeCoro.Stack() != nil {
		t.Fatal("a done coroutine's stack reference should be cleared")
	}
	if process.Coroutine() != callerCoro {
		t.Fatal("process should now be running the caller coroutine")
	}
}

func TestUnwindToHandlerUncaughtAtRootCoroutine(t *testing.T) {
	program := NewStandardProgram()
	mb := newMethodBuilder()
	mb.op(OpReturnNull)
	fn, code := mb.build("root", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	process := NewProcess(program, 1024)
	_, _, ok := process.unwindToHandler(fn.BCP(0))
	if ok {
		t.Fatal("expected no handler: the root coroutine has no caller to cross into")
	}
}

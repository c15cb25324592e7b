package vm

import (
	"math"
	"testing"
)

func TestArithmeticYieldsWithResultOnStack(t *testing.T) {
	program := NewStandardProgram()
	a := program.AddConstant(SmiFromInt64(20))
	b := program.AddConstant(SmiFromInt64(21))

	mb := newMethodBuilder()
	mb.opWide(OpLoadConst, int32(a))
	mb.opWide(OpLoadConst, int32(b))
	mb.op(OpInvokeAdd)
	mb.op(OpProcessYield)
	fn, code := mb.build("arith", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	process := NewProcess(program, 1024)
	it := NewInterpreter(process, SmiFastEngine{})

	_, outcome := it.Run(fn, nil)
	if outcome != InterruptYield {
		t.Fatalf("outcome = %v, want yield", outcome)
	}
	// ProcessYield suspends mid-expression without surfacing its operand
	// through Run's return value, so the result is read off the stack.
	if got := it.stack().Top().SmiValue(); got != 41 {
		t.Fatalf("stack top = %d, want 41", got)
	}
}

func TestAllocateRetriesAfterGCWithOperandStackPreserved(t *testing.T) {
	program := NewStandardProgram()
	class := NewClass(20, "Box", nil, 1)
	program.AddClass(class)

	valueConst := program.AddConstant(SmiFromInt64(41))
	mb := newMethodBuilder()
	mb.opWide(OpLoadConst, int32(valueConst))
	mb.opWide(OpAllocate, int32(class.ID))
	mb.op(OpReturn)
	fn, code := mb.build("main", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	process := NewProcess(program, 1)
	// Exhaust the budget with a throwaway instance nothing keeps alive,
	// so the first Allocate retries and the GC it triggers reclaims it.
	if _, failure := process.NewInstance(class, false); failure != 0 {
		t.Fatalf("setup allocation failed: %v", failure)
	}

	it := NewInterpreter(process, nil)
	result, outcome := it.Run(fn, nil)
	if outcome != InterruptReady {
		t.Fatalf("Run returned %v, want ready", outcome)
	}
	if process.GCCount() != 1 {
		t.Fatalf("GCCount() = %d, want exactly 1", process.GCCount())
	}
	inst := result.asInstance()
	if got := inst.Slots[0].SmiValue(); got != 41 {
		t.Fatalf("Slots[0] = %d, want 41 (the operand pushed before the retry)", got)
	}
}

func TestNoSuchMethodViaVtableFallsBackToTrampoline(t *testing.T) {
	program := NewStandardProgram()

	const offset = 5
	sel := PackSelector(0, SelectorMethod, 42)
	constID := program.AddConstant(SmiFromInt64(7))

	mb := newMethodBuilder()
	mb.opWide(OpLoadConst, int32(constID))
	mb.opTwoWide(OpInvokeMethodVtable, int32(offset), int32(sel))
	mb.op(OpReturn)
	fn, code := mb.build("main", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	// The receiver (a Smi) has no row installed at (SmiClass.ID, offset),
	// so VTable.Lookup falls back to the reserved noSuchMethod row.
	process := NewProcess(program, 1024)
	it := NewInterpreter(process, nil)

	result, outcome := it.Run(fn, nil)
	if outcome != InterruptReady {
		t.Fatalf("Run returned %v, want ready", outcome)
	}
	k, ok := result.kind()
	if !ok || k != KindInstance {
		t.Fatalf("expected a NoSuchMethod exception instance, got %#v", result)
	}
	inst := result.asInstance()
	// Bug-compatible reconstruction (see control_transfer.go): the
	// exception carries the vtable call site's *offset*, not sel's id.
	if got := inst.Slots[0].SmiValue(); got != offset {
		t.Fatalf("reconstructed selector = %d, want the vtable offset %d", got, offset)
	}
}

func TestDispatchFormsAgreeOnTarget(t *testing.T) {
	program := NewStandardProgram()
	class := NewClass(10, "Widget", nil, 0)
	program.AddClass(class)

	target := NewFunction("widget_method", 1, 1)
	program.AppendFunction(target, []byte{byte(OpReturnNull)})

	sel := PackSelector(0, SelectorMethod, 77)
	class.AddMethod(sel.ID(), target)

	const dispatchIndex = 5
	const vtableOffset = 3
	program.DispatchTable.Sites[dispatchIndex] = &DispatchTableSite{
		Selector: sel.ID(),
		Rows: []DispatchRow{
			{Lo: class.ID, Hi: class.ID + 1, Target: target},
			{Lo: class.ID + 1, Hi: maxClassID, Target: program.NoSuchMethodTrampoline},
		},
	}
	program.VTable.Set(class.ID, vtableOffset, target)
	program.Finalize()

	process := NewProcess(program, 1024)
	recv, failure := process.NewInstance(class, false)
	if failure != 0 {
		t.Fatalf("allocation failed: %v", failure)
	}

	it := NewInterpreter(process, nil)

	check := func(name string, dispatch func()) {
		t.Helper()
		it.frames = it.frames[:0]
		it.stack().Truncate(0)
		it.stack().Push(recv)

		dispatch()

		got := it.frames[len(it.frames)-1].fn
		if got != target {
			t.Fatalf("%s dispatched to %q, want %q", name, got.Name, target.Name)
		}
	}

	check("normal", func() { it.dispatchNormal(nil, sel) })
	check("fast", func() { it.dispatchFast(nil, dispatchIndex, sel) })
	check("vtable", func() { it.dispatchVtable(nil, vtableOffset, sel) })
}

func TestIdenticalIsNaNAware(t *testing.T) {
	process := NewProcess(NewStandardProgram(), 1024)

	a, failure := process.NewDouble(math.NaN())
	if failure != 0 {
		t.Fatalf("NewDouble failed: %v", failure)
	}
	b, failure := process.NewDouble(math.NaN())
	if failure != 0 {
		t.Fatalf("NewDouble failed: %v", failure)
	}

	if !identical(a, b) {
		t.Fatal("expected two NaN Doubles to be identical, unlike IEEE ==")
	}
	if a.asDouble().F == b.asDouble().F {
		t.Fatal("sanity check failed: Go's == should already report NaN != NaN")
	}
}

func TestNegateFlipsBoolean(t *testing.T) {
	program := NewStandardProgram()

	mb := newMethodBuilder()
	mb.op(OpLoadTrue)
	mb.op(OpNegate)
	mb.op(OpProcessYield)
	fn, code := mb.build("negateTrue", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	process := NewProcess(program, 1024)
	it := NewInterpreter(process, nil)

	if _, outcome := it.Run(fn, nil); outcome != InterruptYield {
		t.Fatalf("outcome = %v, want yield", outcome)
	}
	if got := it.stack().Top(); got != program.FalseObject {
		t.Fatalf("Negate(true) = %v, want FalseObject", got)
	}

	if got := negateValue(process, program.FalseObject); got != program.TrueObject {
		t.Fatalf("negateValue(false) = %v, want TrueObject", got)
	}
}

func TestBackBranchGrowsStackWhenFull(t *testing.T) {
	program := NewStandardProgram()
	fn := NewFunction("loop", 0, 4)
	program.AppendFunction(fn, []byte{byte(OpReturnNull)})
	program.Finalize()

	process := NewProcess(program, 1024)
	it := NewInterpreter(process, nil)
	it.frames = append(it.frames, frameState{fn: fn, pc: 0, base: 0})

	s := it.stack()
	for s.Reserve(1) {
		s.Push(SmiFromInt64(1))
	}
	lenBefore := len(s.slots)
	topBefore := s.top

	it.checkBackBranch(&it.frames[0])

	if len(s.slots) <= lenBefore {
		t.Fatalf("expected the backing array to grow past %d slots, got %d", lenBefore, len(s.slots))
	}
	if s.top != topBefore {
		t.Fatalf("checkBackBranch must not move top: got %d, want %d", s.top, topBefore)
	}
	if !s.Reserve(1) {
		t.Fatal("expected at least one free slot after growth")
	}
}

package vm

import "testing"

func TestInvokeNativeRetriesAfterGCWithOperandStackPreserved(t *testing.T) {
	program := NewStandardProgram()
	class := NewClass(21, "Pool", nil, 1)
	program.AddClass(class)

	attempts := 0
	program.RegisterNative(0, func(p *Process, args NativeArgs) NativeResult {
		attempts++
		v, failure := p.NewInstance(class, false)
		if failure != 0 {
			return NativeFail(failure)
		}
		return NativeOK(v)
	})

	mb := newMethodBuilder()
	mb.opTwoByte(OpInvokeNative, 0, 0)
	mb.op(OpReturn)
	fn, code := mb.build("makeOne", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	process := NewProcess(program, 1)
	if _, failure := process.NewInstance(class, false); failure != 0 {
		t.Fatalf("setup allocation failed: %v", failure)
	}

	it := NewInterpreter(process, nil)
	result, outcome := it.Run(fn, nil)
	if outcome != InterruptReady {
		t.Fatalf("Run returned %v, want ready", outcome)
	}
	if attempts != 2 {
		t.Fatalf("native invoked %d times, want 2 (one retry after GC)", attempts)
	}
	if k, ok := result.kind(); !ok || k != KindInstance {
		t.Fatalf("expected the retried native's instance, got %#v", result)
	}
}

func TestInvokeNativeYieldParksOnPortThenResumes(t *testing.T) {
	program := NewStandardProgram()
	port := NewPort()
	port.Lock()

	program.RegisterNativeYield(0, func(p *Process, args NativeArgs) (NativeResult, *Port, bool) {
		var v int64
		if ok, err := port.Poll(&v); err == nil && ok {
			return NativeOK(SmiFromInt64(v)), nil, false
		}
		return NativeResult{}, port, true
	})

	mb := newMethodBuilder()
	mb.opTwoByte(OpInvokeNativeYield, 0, 0)
	mb.op(OpReturn)
	fn, code := mb.build("waiter", 0, 0)
	program.AppendFunction(fn, code)
	program.Finalize()

	process := NewProcess(program, 1024)
	it := NewInterpreter(process, nil)

	if _, outcome := it.Run(fn, nil); outcome != InterruptTargetYield {
		t.Fatalf("outcome = %v, want target_yield", outcome)
	}
	if it.LastPort() != port {
		t.Fatal("expected LastPort to return the port the native parked on")
	}

	if err := port.PostValue(int64(99)); err != nil {
		t.Fatalf("PostValue failed: %v", err)
	}

	// This core has no mid-function resume: re-running drives the same
	// yield-or-complete native from the top, which is exactly what the
	// single-instruction body here needs to observe the posted value.
	result, outcome := it.Run(fn, nil)
	if outcome != InterruptReady {
		t.Fatalf("resumed outcome = %v, want ready", outcome)
	}
	if got := result.SmiValue(); got != 99 {
		t.Fatalf("result = %d, want 99", got)
	}
}

package vm

// FastEngineHook is the optional pluggable specialization point: a call
// site reaching InvokeAdd/InvokeLt/etc. first offers
// the operands to a hook before falling back to the normal dispatch
// path, so an embedder can special-case hot representations (Smi+Smi
// arithmetic, for instance) without touching the dispatcher itself. This
// is explicitly not a JIT — compiling bytecode to machine code is a
// named Non-goal — it's a fixed, ahead-of-time-registered fast path the
// interpreter consults inline.
//
// A hook returns handled=false to mean "defer to normal dispatch", or
// handled=true with the result for the interpreter to push and the
// InterruptKind to continue with (InterruptReady to keep running).
type FastEngineHook interface {
	TryInvoke(p *Process, opcode Opcode, receiver, arg Value) (result Value, outcome InterruptKind, handled bool)
}

// SmiFastEngine is a reference FastEngineHook specializing seven
// builtin-alias opcodes (Add, Sub, Lt, Le, Gt, Ge, Eq) for two Smi operands —
// the single most common receiver shape, and the one place a fast path
// pays for the dispatch overhead it avoids. Anything else (mixed types,
// overflow) defers to the normal builtin handlers in interpreter.go,
// which already know how to promote to LargeInteger or Double.
type SmiFastEngine struct{}

func (SmiFastEngine) TryInvoke(p *Process, opcode Opcode, receiver, arg Value) (Value, InterruptKind, bool) {
	if !receiver.IsSmi() || !arg.IsSmi() {
		return 0, 0, false
	}
	a, b := receiver.SmiValue(), arg.SmiValue()

	switch opcode {
	case OpInvokeAdd:
		sum := a + b
		if sum < MinSmi || sum > MaxSmi {
			return 0, 0, false // let the slow path promote to LargeInteger
		}
		return SmiFromInt64(sum), InterruptReady, true
	case OpInvokeSub:
		diff := a - b
		if diff < MinSmi || diff > MaxSmi {
			return 0, 0, false
		}
		return SmiFromInt64(diff), InterruptReady, true
	case OpInvokeLt:
		return boolValue(p, a < b), InterruptReady, true
	case OpInvokeLe:
		return boolValue(p, a <= b), InterruptReady, true
	case OpInvokeGt:
		return boolValue(p, a > b), InterruptReady, true
	case OpInvokeGe:
		return boolValue(p, a >= b), InterruptReady, true
	case OpInvokeEq:
		return boolValue(p, a == b), InterruptReady, true
	default:
		return 0, 0, false
	}
}

func boolValue(p *Process, b bool) Value {
	if b {
		return p.program.TrueObject
	}
	return p.program.FalseObject
}

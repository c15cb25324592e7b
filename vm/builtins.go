package vm

import "math/big"

// evalBuiltinBinary implements the builtin-alias opcodes' generic path:
// the slow fallback a FastEngineHook miss (or its absence) lands
// on. It promotes Smi arithmetic to LargeInteger on overflow and mixes
// Smi/Double/LargeInteger operands the way a numeric tower normally
// does, returning WrongArgumentType for anything else (strings, user
// instances) — those are expected to be handled by compiling to a real
// InvokeMethod against a user-defined operator method instead of one of
// these opcodes.
func evalBuiltinBinary(p *Process, op Opcode, a, b Value) (Value, Failure) {
	switch op {
	case OpInvokeEq:
		return boolValue(p, numericEqual(a, b)), 0
	}

	af, aIsFloat, aBig, aIsBig, aOK := numericView(a)
	bf, bIsFloat, bBig, bIsBig, bOK := numericView(b)
	if !aOK || !bOK {
		return 0, WrongArgumentType
	}

	if op == OpInvokeBitAnd || op == OpInvokeBitOr || op == OpInvokeBitXor ||
		op == OpInvokeBitShl || op == OpInvokeBitShr {
		return evalBitwise(p, op, a, b)
	}

	if aIsFloat || bIsFloat {
		x := af
		if !aIsFloat {
			x = toFloat(a, aBig, aIsBig)
		}
		y := bf
		if !bIsFloat {
			y = toFloat(b, bBig, bIsBig)
		}
		return evalDoubleOp(p, op, x, y)
	}

	if aIsBig || bIsBig {
		x := aBig
		if !aIsBig {
			x = big.NewInt(a.SmiValue())
		}
		y := bBig
		if !bIsBig {
			y = big.NewInt(b.SmiValue())
		}
		return evalBigOp(p, op, x, y)
	}

	return evalSmiOp(p, op, a.SmiValue(), b.SmiValue())
}

func evalBuiltinUnary(p *Process, v Value) (Value, Failure) {
	if v.IsSmi() {
		n := v.SmiValue()
		return p.ToInteger(^n)
	}
	k, ok := v.kind()
	if !ok || k != KindLargeInteger {
		return 0, WrongArgumentType
	}
	return p.NewLargeInteger(new(big.Int).Not(v.asLargeInteger().Big))
}

func evalSmiOp(p *Process, op Opcode, a, b int64) (Value, Failure) {
	switch op {
	case OpInvokeAdd:
		return promoteOrSmi(p, a+b, a, b, addOverflows)
	case OpInvokeSub:
		return promoteOrSmi(p, a-b, a, b, subOverflows)
	case OpInvokeMul:
		r := a * b
		if a != 0 && r/a != b {
			return p.NewLargeInteger(new(big.Int).Mul(big.NewInt(a), big.NewInt(b)))
		}
		return p.ToInteger(r)
	case OpInvokeMod:
		if b == 0 {
			return 0, WrongArgumentType
		}
		return p.ToInteger(a % b)
	case OpInvokeLt:
		return boolValue(p, a < b), 0
	case OpInvokeLe:
		return boolValue(p, a <= b), 0
	case OpInvokeGt:
		return boolValue(p, a > b), 0
	case OpInvokeGe:
		return boolValue(p, a >= b), 0
	default:
		return 0, WrongArgumentType
	}
}

func addOverflows(a, b, r int64) bool { return r < MinSmi || r > MaxSmi }
func subOverflows(a, b, r int64) bool { return r < MinSmi || r > MaxSmi }

func promoteOrSmi(p *Process, r, a, b int64, overflowed func(a, b, r int64) bool) (Value, Failure) {
	if overflowed(a, b, r) {
		// r itself is exact: Smi operands are at most 62 bits wide, so their
		// sum or difference cannot overflow int64.
		return p.NewLargeInteger(big.NewInt(r))
	}
	return p.ToInteger(r)
}

func evalBigOp(p *Process, op Opcode, a, b *big.Int) (Value, Failure) {
	r := new(big.Int)
	switch op {
	case OpInvokeAdd:
		r.Add(a, b)
		return p.NewLargeInteger(r)
	case OpInvokeSub:
		r.Sub(a, b)
		return p.NewLargeInteger(r)
	case OpInvokeMul:
		r.Mul(a, b)
		return p.NewLargeInteger(r)
	case OpInvokeMod:
		if b.Sign() == 0 {
			return 0, WrongArgumentType
		}
		r.Mod(a, b)
		return p.NewLargeInteger(r)
	case OpInvokeLt:
		return boolValue(p, a.Cmp(b) < 0), 0
	case OpInvokeLe:
		return boolValue(p, a.Cmp(b) <= 0), 0
	case OpInvokeGt:
		return boolValue(p, a.Cmp(b) > 0), 0
	case OpInvokeGe:
		return boolValue(p, a.Cmp(b) >= 0), 0
	default:
		return 0, WrongArgumentType
	}
}

func evalBitwise(p *Process, op Opcode, a, b Value) (Value, Failure) {
	if !a.IsSmi() || !b.IsSmi() {
		return 0, WrongArgumentType
	}
	x, y := a.SmiValue(), b.SmiValue()
	switch op {
	case OpInvokeBitAnd:
		return p.ToInteger(x & y)
	case OpInvokeBitOr:
		return p.ToInteger(x | y)
	case OpInvokeBitXor:
		return p.ToInteger(x ^ y)
	case OpInvokeBitShl:
		return p.ToInteger(x << uint(y))
	case OpInvokeBitShr:
		return p.ToInteger(x >> uint(y))
	default:
		return 0, WrongArgumentType
	}
}

func evalDoubleOp(p *Process, op Opcode, a, b float64) (Value, Failure) {
	switch op {
	case OpInvokeAdd:
		return p.NewDouble(a + b)
	case OpInvokeSub:
		return p.NewDouble(a - b)
	case OpInvokeMul:
		return p.NewDouble(a * b)
	case OpInvokeMod:
		return p.NewDouble(float64(int64(a) % int64(b)))
	case OpInvokeLt:
		return boolValue(p, a < b), 0
	case OpInvokeLe:
		return boolValue(p, a <= b), 0
	case OpInvokeGt:
		return boolValue(p, a > b), 0
	case OpInvokeGe:
		return boolValue(p, a >= b), 0
	default:
		return 0, WrongArgumentType
	}
}

// numericView classifies v for the mixed-arithmetic promotion above.
func numericView(v Value) (f float64, isFloat bool, big *big.Int, isBig bool, ok bool) {
	if v.IsSmi() {
		return 0, false, nil, false, true
	}
	k, kok := v.kind()
	if !kok {
		return 0, false, nil, false, false
	}
	switch k {
	case KindDouble:
		return v.asDouble().F, true, nil, false, true
	case KindLargeInteger:
		return 0, false, v.asLargeInteger().Big, true, true
	default:
		return 0, false, nil, false, false
	}
}

func toFloat(v Value, b *big.Int, isBig bool) float64 {
	if v.IsSmi() {
		return float64(v.SmiValue())
	}
	if isBig {
		f, _ := new(big.Float).SetInt(b).Float64()
		return f
	}
	return v.asDouble().F
}

func numericEqual(a, b Value) bool {
	if a == b {
		return true
	}
	af, aIsFloat, aBig, aIsBig, aOK := numericView(a)
	bf, bIsFloat, bBig, bIsBig, bOK := numericView(b)
	if !aOK || !bOK {
		return false
	}
	if aIsBig || bIsBig {
		x := aBig
		if !aIsBig {
			x = big.NewInt(a.SmiValue())
		}
		y := bBig
		if !bIsBig {
			y = big.NewInt(b.SmiValue())
		}
		return x.Cmp(y) == 0
	}
	x := af
	if !aIsFloat {
		x = toFloat(a, nil, false)
	}
	y := bf
	if !bIsFloat {
		y = toFloat(b, nil, false)
	}
	return x == y
}

package vm

import (
	"math/big"
	"testing"
)

func TestToIntegerPromotesToLargeIntegerOnOverflow(t *testing.T) {
	process := NewProcess(NewStandardProgram(), 1024)

	v, failure := process.ToInteger(MaxSmi + 1)
	if failure != 0 {
		t.Fatalf("ToInteger failed: %v", failure)
	}
	if v.IsSmi() {
		t.Fatal("expected a value above MaxSmi to promote to LargeInteger, got a Smi")
	}
	li := v.asLargeInteger()
	if want := big.NewInt(MaxSmi + 1); li.Big.Cmp(want) != 0 {
		t.Fatalf("LargeInteger = %v, want %v", li.Big, want)
	}
}

func TestToIntegerKeepsInRangeValuesAsSmi(t *testing.T) {
	process := NewProcess(NewStandardProgram(), 1024)

	v, failure := process.ToInteger(41)
	if failure != 0 {
		t.Fatalf("ToInteger failed: %v", failure)
	}
	if !v.IsSmi() {
		t.Fatal("expected an in-range value to stay a Smi")
	}
	if got := v.SmiValue(); got != 41 {
		t.Fatalf("SmiValue() = %d, want 41", got)
	}
}

func TestNewInstanceRetriesAfterBudgetExhausted(t *testing.T) {
	program := NewStandardProgram()
	class := NewClass(20, "Box", nil, 0)
	program.AddClass(class)

	process := NewProcess(program, 1)
	if _, failure := process.NewInstance(class, false); failure != 0 {
		t.Fatalf("first allocation failed: %v", failure)
	}
	if !process.budgetExceeded() {
		t.Fatal("expected budget to be exhausted after one allocation against a heapLimit of 1")
	}
	if _, failure := process.NewInstance(class, false); failure != RetryAfterGC {
		t.Fatalf("second allocation returned %v, want RetryAfterGC", failure)
	}
}

package vm

import "testing"

func TestVTableLookupAbsentRoutesToRowZero(t *testing.T) {
	trampoline := NewFunction("noSuchMethod", 0, 1)
	vt := NewVTable(trampoline, 4)

	// (classID, offset) = (3, 1) was never Set.
	row := vt.Lookup(3, 1)
	if row.Target != trampoline {
		t.Fatalf("Lookup on an absent row returned %v, want the trampoline", row.Target)
	}
	if !vt.IsAbsent(3, 1) {
		t.Fatal("IsAbsent(3, 1) = false, want true")
	}
}

func TestVTableLookupFindsInstalledRow(t *testing.T) {
	trampoline := NewFunction("noSuchMethod", 0, 1)
	vt := NewVTable(trampoline, 1)
	target := NewFunction("method", 1, 0)

	vt.Set(3, 1, target)

	row := vt.Lookup(3, 1)
	if row.Target != target {
		t.Fatalf("Lookup(3, 1) = %v, want %v", row.Target, target)
	}
	if vt.IsAbsent(3, 1) {
		t.Fatal("IsAbsent(3, 1) = true after Set, want false")
	}
}

func TestVTableLookupMismatchedOffsetFallsBack(t *testing.T) {
	trampoline := NewFunction("noSuchMethod", 0, 1)
	vt := NewVTable(trampoline, 1)
	target := NewFunction("method", 1, 0)
	vt.Set(3, 1, target) // occupies index 4

	// A different class whose ID also happens to land on index 4 via a
	// different offset must not see class 3's row.
	row := vt.Lookup(2, 2)
	if row.Target != trampoline {
		t.Fatalf("Lookup(2, 2) = %v, want the trampoline (stored offset belongs to a different class)", row.Target)
	}
}

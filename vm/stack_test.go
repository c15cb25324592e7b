package vm

import "testing"

func TestStackPushPopRoundTrip(t *testing.T) {
	s := NewStackObject()
	v := SmiFromInt64(42)
	s.Push(v)
	if got := s.Pop(); got != v {
		t.Fatalf("Pop() = %v, want %v", got, v)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestStackTruncateIdentity(t *testing.T) {
	s := NewStackObject()
	s.Push(SmiFromInt64(1))
	base := s.Len()
	s.Push(SmiFromInt64(2))
	s.Push(SmiFromInt64(3))

	s.Truncate(base)

	if s.Len() != base {
		t.Fatalf("Len() = %d, want %d", s.Len(), base)
	}
	if got := s.Top(); got != SmiFromInt64(1) {
		t.Fatalf("Top() after truncate = %v, want Smi(1)", got)
	}
}

func TestStackGrowForPreservesExistingSlots(t *testing.T) {
	s := NewStackObject()
	for i := 0; i < initialStackSlots; i++ {
		s.Push(SmiFromInt64(int64(i)))
	}
	s.Push(SmiFromInt64(int64(initialStackSlots))) // forces growFor

	if got := len(s.slots); got <= initialStackSlots {
		t.Fatalf("backing array didn't grow: len(slots) = %d", got)
	}
	for i := 0; i <= initialStackSlots; i++ {
		if got := s.Slot(i).SmiValue(); got != int64(i) {
			t.Fatalf("Slot(%d) = %d after growth, want %d", i, got, i)
		}
	}
}

func TestSavedBCPRoundTrip(t *testing.T) {
	s := NewStackObject()
	bcp := Value(1234)
	s.SetSavedBCP(bcp)
	if got := s.SavedBCP(); got != bcp {
		t.Fatalf("SavedBCP() = %v, want %v", got, bcp)
	}
}

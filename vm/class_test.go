package vm

import "testing"

func TestClassLookupChainWalksSuperclasses(t *testing.T) {
	base := NewClass(1, "Base", nil, 0)
	derived := NewClass(2, "Derived", base, 0)

	baseMethod := NewFunction("baseOnly", 1, 0)
	base.AddMethod(10, baseMethod)

	if got := derived.LookupChain(10); got != baseMethod {
		t.Fatalf("LookupChain found %v on derived, want the inherited %v", got, baseMethod)
	}
	if got := derived.LookupLocal(10); got != nil {
		t.Fatalf("LookupLocal should not see an inherited method, got %v", got)
	}
}

func TestClassLookupChainPrefersOwnOverride(t *testing.T) {
	base := NewClass(1, "Base", nil, 0)
	derived := NewClass(2, "Derived", base, 0)

	base.AddMethod(10, NewFunction("baseImpl", 1, 0))
	overridden := NewFunction("derivedImpl", 1, 0)
	derived.AddMethod(10, overridden)

	if got := derived.LookupChain(10); got != overridden {
		t.Fatalf("LookupChain = %v, want the override %v", got, overridden)
	}
}

func TestClassIsSubclassOf(t *testing.T) {
	base := NewClass(1, "Base", nil, 0)
	derived := NewClass(2, "Derived", base, 0)
	unrelated := NewClass(3, "Unrelated", nil, 0)

	if !derived.IsSubclassOf(base) {
		t.Fatal("expected Derived to be a subclass of Base")
	}
	if !derived.IsSubclassOf(derived) {
		t.Fatal("expected a class to be a subclass of itself")
	}
	if derived.IsSubclassOf(unrelated) {
		t.Fatal("Derived should not be a subclass of an unrelated class")
	}
}

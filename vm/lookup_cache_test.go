package vm

import "testing"

func TestLookupEntryFillsCacheOnMiss(t *testing.T) {
	program := NewStandardProgram()
	class := NewClass(30, "Thing", nil, 0)
	program.AddClass(class)

	fn := NewFunction("method", 1, 0)
	sel := PackSelector(0, SelectorMethod, 5)
	class.AddMethod(sel.ID(), fn)

	process := NewProcess(program, 1024)
	recv, failure := process.NewInstance(class, false)
	if failure != 0 {
		t.Fatalf("allocation failed: %v", failure)
	}

	if process.cache.Primary(class, int(sel)) != nil {
		t.Fatal("expected a cold cache before the first lookup")
	}

	entry := process.LookupEntry(recv, int(sel))
	if entry.Target != fn || entry.Tag != TagMethod {
		t.Fatalf("LookupEntry = %+v, want target %v tag TagMethod", entry, fn)
	}

	cached := process.cache.Primary(class, int(sel))
	if cached == nil || cached.Target != fn {
		t.Fatal("expected LookupEntry to have filled the cache")
	}
}

func TestLookupEntryRoutesUnresolvedSelectorToNoSuchMethod(t *testing.T) {
	program := NewStandardProgram()
	class := NewClass(31, "Empty", nil, 0)
	program.AddClass(class)

	process := NewProcess(program, 1024)
	recv, failure := process.NewInstance(class, false)
	if failure != 0 {
		t.Fatalf("allocation failed: %v", failure)
	}

	sel := PackSelector(0, SelectorMethod, 999)
	entry := process.LookupEntry(recv, int(sel))
	if entry.Tag != TagNoSuchMethod {
		t.Fatalf("Tag = %v, want TagNoSuchMethod", entry.Tag)
	}
	if entry.Target != program.NoSuchMethodTrampoline {
		t.Fatal("expected the noSuchMethod trampoline as the resolved target")
	}
}

package vm

import "testing"

func TestDispatchTableSiteResolvesContainingRow(t *testing.T) {
	target := NewFunction("target", 1, 0)
	site := &DispatchTableSite{
		Selector: 1,
		Rows: []DispatchRow{
			{Lo: 0, Hi: 10, Target: target},
			{Lo: 10, Hi: maxClassID, Target: NewFunction("fallback", 1, 0)},
		},
	}

	row, found := site.Resolve(5)
	if !found || row.Target != target {
		t.Fatalf("Resolve(5) = (%v, %v), want (%v, true)", row.Target, found, target)
	}
}

func TestDispatchTableCatchAllRowTerminatesScan(t *testing.T) {
	fallback := NewFunction("fallback", 1, 0)
	site := &DispatchTableSite{
		Rows: []DispatchRow{
			{Lo: 0, Hi: 10, Target: NewFunction("specific", 1, 0)},
			{Lo: 10, Hi: maxClassID, Target: fallback},
		},
	}

	row, found := site.Resolve(999999)
	if !found || row.Target != fallback {
		t.Fatalf("Resolve(999999) = (%v, %v), want the catch-all row", row.Target, found)
	}
	if !row.IsCatchAll() {
		t.Fatal("expected the resolved row to report IsCatchAll")
	}
}

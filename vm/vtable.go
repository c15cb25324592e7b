package vm

// VTableRow is one entry of Program.VTable, indexed by class.ID + offset.
// Row 0 is the reserved "absent" row that routes to the noSuchMethod
// trampoline.
type VTableRow struct {
	StoredOffset int       // the offset this row was written for
	Target       *Function // target to invoke when StoredOffset == offset
}

// VTable is the flat, class-id-indexed method table shared by every call
// site compiled to InvokeMethodVtable/InvokeTestVtable.
type VTable struct {
	Rows []VTableRow
}

// NewVTable creates a vtable with a reserved row 0 pointing at the
// noSuchMethod trampoline.
func NewVTable(trampoline *Function, size int) *VTable {
	vt := &VTable{Rows: make([]VTableRow, size)}
	vt.Rows[0] = VTableRow{StoredOffset: 0, Target: trampoline}
	return vt
}

// Set installs the method reached via class.ID+offset for the given
// offset, growing the table if needed.
func (vt *VTable) Set(classID, offset int, target *Function) {
	index := classID + offset
	if index >= len(vt.Rows) {
		grown := make([]VTableRow, index+1)
		copy(grown, vt.Rows)
		vt.Rows = grown
	}
	vt.Rows[index] = VTableRow{StoredOffset: offset, Target: target}
}

// Lookup resolves (classID, offset) to a row. If the stored offset
// doesn't match the requested offset the slot is either unused or holds
// an unrelated class's row (vtables are built densely per-class, so a
// foreign offset landing here means "this class doesn't implement this
// selector") — fall back to row 0, the noSuchMethod trampoline, exactly
// as interpreter.cc's InvokeMethodVtable does.
func (vt *VTable) Lookup(classID, offset int) VTableRow {
	index := classID + offset
	if index < 0 || index >= len(vt.Rows) {
		return vt.Rows[0]
	}
	row := vt.Rows[index]
	if row.StoredOffset != offset {
		return vt.Rows[0]
	}
	return row
}

// IsAbsent reports whether a resolved row is the noSuchMethod trampoline
// row — used by InvokeTestVtable, which only needs the yes/no answer.
func (vt *VTable) IsAbsent(classID, offset int) bool {
	index := classID + offset
	if index < 0 || index >= len(vt.Rows) {
		return true
	}
	return vt.Rows[index].StoredOffset != offset
}

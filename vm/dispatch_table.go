package vm

// DispatchTableSite is one call site's entry in Program.DispatchTable
// (InvokeMethodFast): a header carrying the call site's selector,
// followed by range rows [classIDLo, classIDHi, target) scanned in
// order. The last row's Hi is maxClassID, acting as a catch-all
// terminator — "the last row's hi is Smi::kMaxValue" in original_source.
type DispatchTableSite struct {
	Selector int
	Rows     []DispatchRow
}

// DispatchRow is one [lo, hi) class-id range mapped to a target Function.
type DispatchRow struct {
	Lo, Hi int
	Target *Function
}

// maxClassID stands in for original_source's Smi::kMaxValue terminator
// sentinel.
const maxClassID = int(^uint(0) >> 1)

// maxDispatchScanRows bounds the otherwise-unbounded linear scan:
// InvokeMethodFast's linear scan from offset 4 has no explicit upper
// bound in original_source. Here a scan that reaches this many rows is
// fatal; a shorter table with no row containing the class id (for
// example one lacking the Hi == maxClassID row) reports "not found".
const maxDispatchScanRows = 4096

// DispatchTable is the flat array of call-site tables, keyed by the
// 32-bit index operand InvokeMethodFast/InvokeTestFast carry.
type DispatchTable struct {
	Sites map[int]*DispatchTableSite
}

// NewDispatchTable creates an empty dispatch table.
func NewDispatchTable() *DispatchTable {
	return &DispatchTable{Sites: make(map[int]*DispatchTableSite)}
}

// Site returns the call site at index, or nil.
func (dt *DispatchTable) Site(index int) *DispatchTableSite {
	return dt.Sites[index]
}

// Resolve scans a call site's range rows for the row containing classID,
// matching interpreter.cc's InvokeMethodFast scan exactly (continue while
// classID is outside [lo, hi), stop at the first containing row).
func (site *DispatchTableSite) Resolve(classID int) (DispatchRow, bool) {
	for i, row := range site.Rows {
		if i >= maxDispatchScanRows {
			Fatal("dispatch table scan exceeded %d rows without a terminating row (malformed table)", maxDispatchScanRows)
		}
		if classID < row.Lo {
			continue
		}
		if classID >= row.Hi {
			continue
		}
		return row, true
	}
	return DispatchRow{}, false
}

// IsCatchAll reports whether row is the table's terminating catch-all
// range (Hi == maxClassID).
func (row DispatchRow) IsCatchAll() bool { return row.Hi == maxClassID }

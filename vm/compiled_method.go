package vm

import "sort"

// ExceptionTableEntry is one protected-range row of a Function's
// per-function exception table, grounded on StackWalker::ComputeCatchBlock
// in original_source/src/vm/interpreter.cc: a [Start, End) bytecode-offset
// range, relative to the function's own
// base offset, and the handler offset to resume at on a throw whose
// current bcp falls inside the range.
type ExceptionTableEntry struct {
	Start, End int
	Handler    int
}

// Function is a compiled method: a heap object (so it can be a receiver of
// reflection and can be stored in Class.methods / dispatch tables) whose
// bytecode lives in its Program's single concatenated code arena rather
// than in its own slice. A bcp (bytecode pointer) is then just an integer
// byte offset into that arena, which keeps it the same Smi-shaped,
// tag-bit-0 word return addresses are required to be, without needing
// a separate "which function does this raw pointer belong to" side
// table walked by true pointer arithmetic the way the C++ original does
// it — see Program.functionFromBCP for the equivalent lookup.
type Function struct {
	HeapObject

	Name       string
	Owner      *Class // non-nil for instance methods, nil for static/toplevel
	Selector   int
	ArityIncl  int // argument count including implicit receiver
	FrameSize  int // total stack slots this activation needs
	BaseOffset int // this function's first byte within Program.code
	Length     int // byte length of this function's bytecode, arena-relative

	Literals  []Value // LoadConst operands, function-local constant pool
	Exception []ExceptionTableEntry

	program *Program
}

// NewFunction allocates a toplevel/static function shell with the given
// arity and frame size, owned by no class. Callers pass the result to
// Program.AppendFunction to bind its bytecode and arena position.
func NewFunction(name string, arityIncl, frameSize int) *Function {
	return &Function{
		HeapObject: newInstanceHeader(nil, KindFunction),
		Name:       name,
		ArityIncl:  arityIncl,
		FrameSize:  frameSize,
	}
}

// Bytecode returns this function's bytecode slice, a view into the
// owning Program's code arena.
func (f *Function) Bytecode() []byte {
	return f.program.code[f.BaseOffset : f.BaseOffset+f.Length]
}

// BCP converts a local (function-relative) offset to an arena-absolute
// bytecode pointer, encoded Smi-shaped as required.
func (f *Function) BCP(localOffset int) Value {
	return Value(uintptr(f.BaseOffset+localOffset) << smiShift)
}

// LocalOffset converts an arena-absolute bcp back to an offset relative
// to this function's own base, panicking if bcp falls outside its range
// (a caller bug — see Program.functionFromBCP for the lookup that finds
// the right function in the first place).
func (f *Function) LocalOffset(bcp Value) int {
	abs := int(bcp.SmiValue())
	if abs < f.BaseOffset || abs >= f.BaseOffset+f.Length {
		panic("vm: bcp outside function range")
	}
	return abs - f.BaseOffset
}

// SetClass and SetSelector let Class.AddMethod finish wiring a Function
// after construction, since a Function can be built before its owning
// class exists (e.g. forward references during loading).
func (f *Function) SetClass(c *Class)   { f.Owner = c }
func (f *Function) SetSelector(sel int) { f.Selector = sel }

// CatchBlockFor returns the handler offset (function-relative) protecting
// localOffset, and true if one exists — the per-Function analogue of
// StackWalker::ComputeCatchBlock, consulted by control_transfer.go while
// unwinding.
func (f *Function) CatchBlockFor(localOffset int) (int, bool) {
	for _, e := range f.Exception {
		if localOffset >= e.Start && localOffset < e.End {
			return e.Handler, true
		}
	}
	return 0, false
}

func (f *Function) toValue() Value {
	return fromHeapObjectPtr(&f.HeapObject)
}

// functionFromBCP recovers the owning Function for an arena-absolute bcp
// via binary search over sorted function base offsets — the Go-native
// equivalent of original_source's ComputeCurrentFunction back-scan from
// a raw return address. functionsByOffset is appended to by
// Program.AppendFunction and sorted by BaseOffset in Program.Finalize.
func (p *Program) functionFromBCP(bcp Value) *Function {
	abs := int(bcp.SmiValue())
	fns := p.functionsByOffset
	i := sort.Search(len(fns), func(i int) bool {
		return fns[i].BaseOffset > abs
	})
	if i == 0 {
		Fatal("bcp %d does not belong to any function in this program", abs)
	}
	fn := fns[i-1]
	if abs >= fn.BaseOffset+fn.Length {
		Fatal("bcp %d does not belong to any function in this program", abs)
	}
	return fn
}

package vm

import "math/big"

// Process is one green-thread's worth of state: its coroutine chain, its
// own lookup cache, and the allocation budget/live-object registry a
// simulated GC operates over. Processes share no mutable state with
// each other except through the Program itself, whose statics table
// StoreStatic can still write after Finalize.
type Process struct {
	program *Program

	cache LookupCache

	coro *Coroutine // the currently active coroutine

	// live is the keep-alive registry every allocator registers into and
	// CollectGarbage sweeps: since Go's own GC already manages the
	// underlying memory, this registry's only job is to let
	// CollectGarbage observe "is this object still reachable from my
	// roots" without walking raw memory, matching the heap
	// original_source describes closely enough to test against while using Go's
	// allocator underneath (see gc.go for the mark phase).
	live map[*HeapObject]struct{}

	heapLimit int
	heapUsed  int

	errnoSaved int
	gcCount    int

	loggedVtableSelectorBug bool

	finalizers map[*HeapObject]func()

	// globalRoots holds embedder-pinned values that must survive
	// collection regardless of what's reachable from the coroutine
	// chain; see gc.go's PinGlobalRoot.
	globalRoots []Value

	debugInfo string
}

// NewProcess creates a process against program with the given initial
// heap budget (in allocation units, not bytes — this core counts object
// allocations, not their size, since Go's allocator already manages
// actual memory).
func NewProcess(program *Program, heapLimit int) *Process {
	p := &Process{
		program:   program,
		live:      make(map[*HeapObject]struct{}),
		heapLimit: heapLimit,
		finalizers: make(map[*HeapObject]func()),
	}
	// The root coroutine is not registered in live, so it does not use
	// up any of the heapLimit budget the caller asked for.
	p.coro = NewCoroutine(nil, nil, 0)
	return p
}

// Program returns the process's program.
func (p *Process) Program() *Program { return p.program }

// GCCount reports how many times CollectGarbage has run against this
// process, letting a caller assert a single GC-and-retry round trip
// actually triggered exactly one collection rather than looping.
func (p *Process) GCCount() int { return p.gcCount }

// classOf returns v's class: SmiClass for a Smi, or the heap object's own
// Class field.
func (p *Process) classOf(v Value) *Class {
	if v.IsSmi() {
		return p.program.SmiClass
	}
	return v.heapObjectPtr().Class
}

// register adds obj to the live-object registry, keeping it visible to
// CollectGarbage's mark phase.
func (p *Process) register(obj *HeapObject) {
	p.live[obj] = struct{}{}
	p.heapUsed++
}

func (p *Process) budgetExceeded() bool {
	return p.heapUsed >= p.heapLimit
}

// NewInstance allocates an Instance of class, or returns RetryAfterGC if
// the allocation budget is exhausted — callers must be re-dispatchable
// from scratch after a GC-and-retry, the GC_AND_RETRY_ON_ALLOCATION_FAILURE
// protocol from original_source.
func (p *Process) NewInstance(class *Class, immutable bool) (Value, Failure) {
	if p.budgetExceeded() {
		return Value(0), RetryAfterGC
	}
	slots := make([]Value, class.NumInstanceFields)
	for i := range slots {
		slots[i] = p.program.NullObject
	}
	inst := &Instance{
		HeapObject: newInstanceHeader(class, KindInstance),
		Slots:      slots,
		Immutable:  immutable,
	}
	p.register(&inst.HeapObject)
	return fromHeapObjectPtr(&inst.HeapObject), 0
}

// NewBoxed allocates a single-slot Boxed cell (used for closed-over
// locals).
func (p *Process) NewBoxed(initial Value) (Value, Failure) {
	if p.budgetExceeded() {
		return Value(0), RetryAfterGC
	}
	b := &Boxed{HeapObject: newInstanceHeader(nil, KindBoxed), Slot: initial}
	p.register(&b.HeapObject)
	return fromHeapObjectPtr(&b.HeapObject), 0
}

// NewArray allocates an Array of length elements, all null-initialized.
func (p *Process) NewArray(length int) (Value, Failure) {
	if p.budgetExceeded() {
		return Value(0), RetryAfterGC
	}
	elems := make([]Value, length)
	for i := range elems {
		elems[i] = p.program.NullObject
	}
	a := &Array{HeapObject: newInstanceHeader(nil, KindArray), Elements: elems}
	p.register(&a.HeapObject)
	return fromHeapObjectPtr(&a.HeapObject), 0
}

// ToInteger encodes n as a Smi when it fits, or promotes to a heap
// LargeInteger when it doesn't.
func (p *Process) ToInteger(n int64) (Value, Failure) {
	if v, ok := TrySmi(n); ok {
		return v, 0
	}
	return p.NewLargeInteger(big.NewInt(n))
}

// NewDouble allocates a boxed float64.
func (p *Process) NewDouble(f float64) (Value, Failure) {
	if p.budgetExceeded() {
		return Value(0), RetryAfterGC
	}
	d := &DoubleObject{HeapObject: newInstanceHeader(nil, KindDouble), F: f}
	p.register(&d.HeapObject)
	return fromHeapObjectPtr(&d.HeapObject), 0
}

// NewLargeInteger allocates a boxed arbitrary-precision integer. math/big
// is a standard-library choice here: the only decimal-arithmetic library
// reachable through this program's dependency graph (cockroachdb/apd/v3,
// pulled in transitively by cuelang.org/go) implements base-10 decimals
// for schema validation, not arbitrary-precision integer promotion, so it
// cannot serve this concern.
func (p *Process) NewLargeInteger(b *big.Int) (Value, Failure) {
	if p.budgetExceeded() {
		return Value(0), RetryAfterGC
	}
	li := &LargeIntegerObject{HeapObject: newInstanceHeader(nil, KindLargeInteger), Big: b}
	p.register(&li.HeapObject)
	return fromHeapObjectPtr(&li.HeapObject), 0
}

// NewString allocates a heap string object.
func (p *Process) NewString(s string) (Value, Failure) {
	if p.budgetExceeded() {
		return Value(0), RetryAfterGC
	}
	so := &StringObject{HeapObject: newInstanceHeader(nil, KindString), S: s}
	p.register(&so.HeapObject)
	return fromHeapObjectPtr(&so.HeapObject), 0
}

// RegisterFinalizer arranges for fn to run when obj is swept by a future
// CollectGarbage — used by natives that hold an external resource (a
// Port's socket, a native library handle) that must be released
// deterministically relative to VM-observed collection rather than left
// to Go's own runtime finalizer queue.
func (p *Process) RegisterFinalizer(obj *HeapObject, fn func()) {
	p.finalizers[obj] = fn
}

// StoreErrno and RestoreErrno keep a per-process errno value: StoreErrno
// records v and RestoreErrno returns the last value recorded. The
// interpreter does not call them around native calls; an embedder or a
// native that wants errno mirrored through the process calls them
// itself.
func (p *Process) StoreErrno(v int)   { p.errnoSaved = v }
func (p *Process) RestoreErrno() int  { return p.errnoSaved }

func (p *Process) debugInfoString() string { return p.debugInfo }
func (p *Process) setDebugInfo(s string)   { p.debugInfo = s }

// noteVtableSelectorBug logs, once per process, that EnterNoSuchMethod hit
// the preserved offset-as-selector bug-compat path for a vtable call site
// (see control_transfer.go's reconstructSelectorAtReturn).
func (p *Process) noteVtableSelectorBug() {
	if p.loggedVtableSelectorBug {
		return
	}
	p.loggedVtableSelectorBug = true
	Log.Debug("noSuchMethod reconstructed a vtable call site's offset as its selector (bug-compatible)")
}

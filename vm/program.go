package vm

// Program is the read-only, process-shared contract an embedder builds
// once and then hands to every Process it spawns. After Finalize, vm
// mutates a Program only through the dispatch/vtable growth helpers and
// through the statics table, which StoreStatic writes at run time.
type Program struct {
	code []byte // the concatenated code arena; see compiled_method.go

	functionsByOffset []*Function // sorted by BaseOffset, for functionFromBCP

	classes  []*Class
	SmiClass *Class

	NullObject  Value
	TrueObject  Value
	FalseObject Value

	constants []Value

	staticMethods []*Function
	statics       []Value

	DispatchTable *DispatchTable
	VTable        *VTable

	NoSuchMethodTrampoline *Function

	natives      []NativeFunc
	yieldNatives []NativeYieldFunc

	// roots holds a Go pointer to every Instance the Program itself
	// creates, since a tagged Value alone does not keep one alive.
	roots []*Instance
}

// NewProgram creates an empty program shell; callers populate it via
// AppendFunction/AddClass/etc. while loading, then call Finalize.
func NewProgram() *Program {
	return &Program{
		DispatchTable: NewDispatchTable(),
	}
}

// NewStandardProgram creates a Program with the handful of objects every
// running program needs before a single user class is loaded: the Smi
// pseudo-class (so classOf(smi) has somewhere to point), the singleton
// null/true/false instances, and the default noSuchMethod trampoline.
// Embedders load user classes and functions into the result before
// calling Finalize.
func NewStandardProgram() *Program {
	p := NewProgram()

	p.SmiClass = NewClass(0, "Smi", nil, 0)
	p.AddClass(p.SmiClass)

	nullClass := NewClass(1, "Null", nil, 0)
	boolClass := NewClass(2, "Boolean", nil, 0)
	p.AddClass(nullClass)
	p.AddClass(boolClass)

	nullObj := &Instance{HeapObject: newInstanceHeader(nullClass, KindInstance)}
	trueObj := &Instance{HeapObject: newInstanceHeader(boolClass, KindInstance)}
	falseObj := &Instance{HeapObject: newInstanceHeader(boolClass, KindInstance)}
	p.roots = append(p.roots, nullObj, trueObj, falseObj)
	p.NullObject = fromHeapObjectPtr(&nullObj.HeapObject)
	p.TrueObject = fromHeapObjectPtr(&trueObj.HeapObject)
	p.FalseObject = fromHeapObjectPtr(&falseObj.HeapObject)

	trampoline := NewFunction("noSuchMethod", 0, 1)
	p.AppendFunction(trampoline, []byte{
		byte(OpEnterNoSuchMethod),
		byte(OpExitNoSuchMethod),
		byte(OpReturn),
	})
	p.NoSuchMethodTrampoline = trampoline
	p.VTable = NewVTable(trampoline, 1)

	return p
}

// AppendFunction copies fn's bytecode into the arena, fixes up its
// BaseOffset/Length/program fields, and keeps functionsByOffset sorted by
// insertion order (callers are expected to load functions in
// BaseOffset order; Finalize re-sorts defensively regardless).
func (p *Program) AppendFunction(fn *Function, bytecode []byte) *Function {
	fn.BaseOffset = len(p.code)
	fn.Length = len(bytecode)
	fn.program = p
	p.code = append(p.code, bytecode...)
	p.functionsByOffset = append(p.functionsByOffset, fn)
	return fn
}

// Finalize sorts functionsByOffset (functionFromBCP's binary search
// requires it) and must be called once loading completes and before any
// Process runs against this Program.
func (p *Program) Finalize() {
	fns := p.functionsByOffset
	for i := 1; i < len(fns); i++ {
		for j := i; j > 0 && fns[j-1].BaseOffset > fns[j].BaseOffset; j-- {
			fns[j-1], fns[j] = fns[j], fns[j-1]
		}
	}
}

// AddClass registers a class at its own ID slot, growing the backing
// slice as needed.
func (p *Program) AddClass(c *Class) {
	for len(p.classes) <= c.ID {
		p.classes = append(p.classes, nil)
	}
	p.classes[c.ID] = c
}

// ClassAt returns the class registered at id, per the Program contract's
// class_at(id).
func (p *Program) ClassAt(id int) *Class {
	if id < 0 || id >= len(p.classes) {
		return nil
	}
	return p.classes[id]
}

// StaticMethodAt returns the toplevel/static function registered at id.
func (p *Program) StaticMethodAt(id int) *Function {
	if id < 0 || id >= len(p.staticMethods) {
		return nil
	}
	return p.staticMethods[id]
}

// AddStaticMethod appends fn to the static-method table, returning its id.
func (p *Program) AddStaticMethod(fn *Function) int {
	id := len(p.staticMethods)
	p.staticMethods = append(p.staticMethods, fn)
	return id
}

// ConstantAt returns the function-independent constant registered at id
// (distinct from a Function's own Literals pool — this is the program-wide
// table LoadConst can also index into for shared literals).
func (p *Program) ConstantAt(id int) Value {
	if id < 0 || id >= len(p.constants) {
		return Value(0)
	}
	return p.constants[id]
}

// AddConstant appends v to the program-wide constant pool, returning its id.
func (p *Program) AddConstant(v Value) int {
	id := len(p.constants)
	p.constants = append(p.constants, v)
	return id
}

// StaticAt and SetStaticAt read/write the global statics table LoadStatic/
// StoreStatic index into. LoadStaticInit reads the same table; its
// interpreter handler runs no initializer and treats a static that is
// still null as fatal.
func (p *Program) StaticAt(id int) Value {
	return p.statics[id]
}

func (p *Program) SetStaticAt(id int, v Value) {
	p.statics[id] = v
}

// AddStaticSlot grows the statics table by one null-initialized slot,
// returning its id.
func (p *Program) AddStaticSlot() int {
	id := len(p.statics)
	p.statics = append(p.statics, p.NullObject)
	return id
}

// ObjectFromFailure converts a non-retry Failure into a heap exception
// object a catch block can observe, matching the native boundary's
// failure-conversion step: a Failure other than retry_after_gc is
// converted to an exception object via Program.ObjectFromFailure and
// pushed without unwinding. This core represents such objects as plain
// Instances of a reserved "Failure" class so user code can pattern-match
// on class without a separate exception type hierarchy.
func (p *Program) ObjectFromFailure(f Failure) Value {
	class := p.failureClass()
	inst := &Instance{
		HeapObject: newInstanceHeader(class, KindInstance),
		Slots:      []Value{SmiFromInt64(int64(f.kindTag()))},
	}
	p.roots = append(p.roots, inst)
	return fromHeapObjectPtr(&inst.HeapObject)
}

// ObjectFromNoSuchMethod builds the exception object EnterNoSuchMethod/
// ExitNoSuchMethod's default trampoline body returns when a lookup can't
// resolve selector — carries just enough (the packed selector) for a
// catch block to report what was attempted.
func (p *Program) ObjectFromNoSuchMethod(selector int) Value {
	class := p.noSuchMethodClass()
	inst := &Instance{
		HeapObject: newInstanceHeader(class, KindInstance),
		Slots:      []Value{SmiFromInt64(int64(selector))},
	}
	p.roots = append(p.roots, inst)
	return fromHeapObjectPtr(&inst.HeapObject)
}

var sharedNoSuchMethodClass *Class

func (p *Program) noSuchMethodClass() *Class {
	if sharedNoSuchMethodClass == nil {
		sharedNoSuchMethodClass = NewClass(-2, "NoSuchMethod", nil, 1)
	}
	return sharedNoSuchMethodClass
}

var sharedFailureClass *Class

func (p *Program) failureClass() *Class {
	if sharedFailureClass == nil {
		sharedFailureClass = NewClass(-1, "Failure", nil, 1)
	}
	return sharedFailureClass
}

// kindTag maps a Failure sentinel to a small stable integer so
// ObjectFromFailure's exception objects carry a matchable discriminant.
func (f Failure) kindTag() int {
	switch f {
	case RetryAfterGC:
		return 0
	case IndexOutOfBounds:
		return 1
	case WrongArgumentType:
		return 2
	case IllegalState:
		return 3
	default:
		return -1
	}
}

package vm

// Class is itself a heap object: header + id (Smi), superclass, instance
// field count, method table. Its VTable/DispatchTable rows are
// populated by the embedder/loader before the class becomes reachable.
type Class struct {
	HeapObject

	ID                int    // Smi-valued class id, indexes Program.classes and the vtable
	Name              string // for diagnostics only
	Super             *Class // nil for the root class
	NumInstanceFields int    // total slots, including inherited ones

	// methods is the slow-path method table consulted by LookupEntrySlow
	// (the "Normal" form) when the lookup cache misses. Selector -> Function.
	methods map[int]*Function

	// VTableOffset is a per-class vtable base offset slot. InvokeMethodVtable
	// does not read it: VTable.Lookup indexes by clazz.ID + the call
	// site's offset operand.
	VTableOffset int
}

// NewClass allocates a class object. Classes are not themselves garbage
// collected in this core (they live for the lifetime of the Program), so
// they bypass the allocation-retry protocol that governs Instance/Array/
// Boxed/Double/LargeInteger allocation.
func NewClass(id int, name string, super *Class, numFields int) *Class {
	c := &Class{
		HeapObject:        newInstanceHeader(nil, KindClass),
		ID:                id,
		Name:              name,
		Super:             super,
		NumInstanceFields: numFields,
		methods:           make(map[int]*Function),
	}
	c.HeapObject.Class = c // a class's class is itself, absent a metaclass layer
	return c
}

// AddMethod installs a method for selector, used by both the slow-path
// lookup and by test/fixture code building classes directly.
func (c *Class) AddMethod(selector int, fn *Function) {
	c.methods[selector] = fn
	fn.SetClass(c)
	fn.SetSelector(selector)
}

// LookupLocal returns the method installed directly on c for selector, or
// nil.
func (c *Class) LookupLocal(selector int) *Function {
	return c.methods[selector]
}

// LookupChain walks the superclass chain, the "Normal" slow path: it
// walks the receiver's class chain for a method whose selector matches.
func (c *Class) LookupChain(selector int) *Function {
	for cur := c; cur != nil; cur = cur.Super {
		if fn := cur.methods[selector]; fn != nil {
			return fn
		}
	}
	return nil
}

// IsSubclassOf reports whether c is other or a subclass of other.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == other {
			return true
		}
	}
	return false
}

func (c *Class) toValue() Value {
	return fromHeapObjectPtr(&c.HeapObject)
}

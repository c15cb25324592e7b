package vm

// Coroutine is a cooperative green-thread within a Process: its own
// StackObject plus a caller link. Switching the active coroutine is a
// pointer swap (Process.coro reassignment), never a host thread context
// switch — this core is single-threaded per Process by construction,
// matching CoroutineChange's semantics in
// original_source/src/vm/interpreter.cc (Coroutine::has_caller,
// Process::UpdateCoroutine) rather than a goroutine-per-coroutine
// concurrency model, which assumes real OS threads and isn't the right
// shape for a single interpreter loop with explicit yield points.
type Coroutine struct {
	HeapObject

	stack  *StackObject
	caller *Coroutine // nil until this coroutine has been entered via a call

	// There is no separate "done" field: a coroutine that has unwound off
	// the top of its own stack has its caller field pointing at itself
	// (see markDone and IsDone), the same convention original_source
	// uses. fuel is recorded at construction and not read elsewhere.
	fuel int
}

// NewCoroutine creates a coroutine with a fresh stack, optionally linked
// to caller (nil for a process's root coroutine).
func NewCoroutine(p *Process, caller *Coroutine, fuel int) *Coroutine {
	c := &Coroutine{
		HeapObject: newInstanceHeader(nil, KindCoroutine),
		stack:      NewStackObject(),
		caller:     caller,
		fuel:       fuel,
	}
	if p != nil {
		p.register(&c.HeapObject)
		p.register(&c.stack.HeapObject)
	}
	return c
}

// Stack returns this coroutine's operand/frame stack.
func (c *Coroutine) Stack() *StackObject { return c.stack }

// HasCaller reports whether this coroutine was entered via a call from
// another coroutine (as opposed to being a process's root coroutine, or
// having finished unwinding and become "done").
func (c *Coroutine) HasCaller() bool { return c.caller != nil && c.caller != c }

// Caller returns the coroutine that resumed this one, or nil.
func (c *Coroutine) Caller() *Coroutine { return c.caller }

// markDone severs the caller link by pointing it at itself — the
// "done, no caller to return to" marker: clear the callee's stack
// reference to null and set its caller to itself.
func (c *Coroutine) markDone() {
	c.caller = c
	c.stack = nil
}

// IsDone reports whether this coroutine has finished and cannot be
// resumed again.
func (c *Coroutine) IsDone() bool { return c.caller == c }

func (c *Coroutine) toValue() Value { return fromHeapObjectPtr(&c.HeapObject) }

// Coroutine returns the process's currently active coroutine.
func (p *Process) Coroutine() *Coroutine { return p.coro }

// UpdateCoroutine switches the process's active coroutine — the
// CoroutineChange opcode's effect, a pointer swap with no host-thread
// involvement.
func (p *Process) UpdateCoroutine(to *Coroutine) {
	p.coro = to
}

// HandleStackOverflow is invoked by the dispatcher's StackOverflowCheck
// handler when the active coroutine's stack can't fit the frame about to
// be pushed: it grows the stack by copy-and-discard when growth is
// acceptable. This core always grows rather than modeling a fixed
// maximum stack depth, since no host-thread stack backs it. Growth is
// not charged to the process's allocation budget and never fails.
func (p *Process) HandleStackOverflow(frameSize int) {
	p.coro.Stack().GrowTo(frameSize)
}

package vm

// CollectGarbage runs one mark-and-sweep pass over the process's
// live-object registry. Go's own runtime already owns the real memory
// management; this pass only decides which entries of Process.live are
// still reachable from VM-visible roots (the coroutine chain's stacks,
// the program's statics table, and any embedder-pinned GlobalRoots) so
// that unreachable entries' finalizers run and the allocation budget is
// recomputed, without reimplementing a literal moving collector over
// raw memory.
func (p *Process) CollectGarbage() {
	p.gcCount++

	marked := make(map[*HeapObject]bool, len(p.live))

	for c := p.coro; c != nil; {
		marked[&c.HeapObject] = true
		marked[&c.stack.HeapObject] = true
		p.markStack(c.Stack(), marked)
		if !c.HasCaller() {
			break
		}
		c = c.Caller()
	}
	for _, v := range p.program.statics {
		p.markValue(v, marked)
	}
	for _, v := range p.globalRoots {
		p.markValue(v, marked)
	}

	for obj := range p.live {
		if marked[obj] {
			continue
		}
		if fn, ok := p.finalizers[obj]; ok {
			fn()
			delete(p.finalizers, obj)
		}
		delete(p.live, obj)
		p.heapUsed--
	}

	if p.heapUsed*2 >= p.heapLimit {
		p.heapLimit *= 2
	}
}

// globalRoots holds embedder-pinned values (e.g. a loaded module's
// top-level object) that must survive collection even when nothing on
// any coroutine's stack currently references them.
func (p *Process) PinGlobalRoot(v Value) {
	p.globalRoots = append(p.globalRoots, v)
}

func (p *Process) markStack(s *StackObject, marked map[*HeapObject]bool) {
	for i := 0; i < s.Len(); i++ {
		v := s.At(s.Len() - 1 - i)
		if v.IsSmi() {
			continue // also covers return-address-shaped Smis
		}
		p.markValue(v, marked)
	}
}

func (p *Process) markValue(v Value, marked map[*HeapObject]bool) {
	if !v.IsHeapObject() || v.IsFailure() {
		return
	}
	obj := v.heapObjectPtr()
	if marked[obj] {
		return
	}
	marked[obj] = true

	switch obj.Kind {
	case KindInstance:
		inst := v.asInstance()
		for _, slot := range inst.Slots {
			p.markValue(slot, marked)
		}
	case KindArray:
		arr := v.asArray()
		for _, elem := range arr.Elements {
			p.markValue(elem, marked)
		}
	case KindBoxed:
		box := v.asBoxed()
		p.markValue(box.Slot, marked)
	case KindCoroutine:
		coro := v.asCoroutine()
		p.markStack(coro.stack, marked)
		if coro.HasCaller() {
			p.markValue(coro.caller.toValue(), marked)
		}
	case KindStack:
		stk := v.asStack()
		p.markStack(stk, marked)
	}
}

package vm

// LookupTag distinguishes what a LookupCache.Entry resolved to, so the
// dispatcher can special-case field accessors and the noSuchMethod
// trampoline without a second table lookup.
type LookupTag int

const (
	TagMethod LookupTag = iota
	TagFieldAccessor
	TagNoSuchMethod
)

// LookupCacheEntry is a single resolved (class, selector) -> target
// binding, plus its classification tag.
type LookupCacheEntry struct {
	Class    *Class
	Selector int
	Target   *Function
	Tag      LookupTag
}

const lookupCacheSize = 256 // power of two, small direct-mapped cache

// LookupCache is the Process-owned cache for the "Normal" InvokeMethod
// path. It is a small direct-mapped cache: each (class, selector)
// pair hashes to one slot, so a slow-path miss simply overwrites whatever
// was there. The Process "takes" the cache into the Interpreter on entry
// and "releases" it on exit, modeled here as a simple ownership flag
// rather than a real handoff since a Process runs on exactly one
// goroutine at a time.
type LookupCache struct {
	entries [lookupCacheSize]LookupCacheEntry
	taken   bool
}

// NewLookupCache creates an empty cache.
func NewLookupCache() *LookupCache {
	return &LookupCache{}
}

func lookupCacheIndex(class *Class, selector int) int {
	h := uintptr(class.ID)*2654435761 ^ uintptr(selector)*40503
	return int(h % lookupCacheSize)
}

// Primary returns the entry that would service (class, selector) if
// present, or nil on a structural miss (empty slot or different key) —
// the fast path consulted before LookupEntrySlow.
func (lc *LookupCache) Primary(class *Class, selector int) *LookupCacheEntry {
	idx := lookupCacheIndex(class, selector)
	e := &lc.entries[idx]
	if e.Class == class && e.Selector == selector {
		return e
	}
	return nil
}

// Fill installs a resolved entry, evicting whatever occupied that slot.
func (lc *LookupCache) Fill(class *Class, selector int, target *Function, tag LookupTag) *LookupCacheEntry {
	idx := lookupCacheIndex(class, selector)
	lc.entries[idx] = LookupCacheEntry{Class: class, Selector: selector, Target: target, Tag: tag}
	return &lc.entries[idx]
}

// LookupEntry is the Process contract's primary entry point: try the
// cache, and on miss fall through to the slow path.
func (p *Process) LookupEntry(receiver Value, selector int) *LookupCacheEntry {
	class := p.classOf(receiver)
	if e := p.cache.Primary(class, selector); e != nil {
		return e
	}
	return p.LookupEntrySlow(nil, class, selector)
}

// LookupEntrySlow walks the class chain (or routes to the noSuchMethod
// trampoline on a miss) and fills the cache, matching
// interpreter.cc's HandleLookupEntry -> Process::LookupEntrySlow.
func (p *Process) LookupEntrySlow(_ *LookupCacheEntry, class *Class, selector int) *LookupCacheEntry {
	sel := Selector(selector)
	if fn := class.LookupChain(sel.ID()); fn != nil {
		return p.cache.Fill(class, selector, fn, TagMethod)
	}
	if fn := class.LookupChain(fieldAccessorSelectorID(sel)); fn != nil {
		return p.cache.Fill(class, selector, fn, TagFieldAccessor)
	}
	return p.cache.Fill(class, selector, p.program.NoSuchMethodTrampoline, TagNoSuchMethod)
}

// fieldAccessorSelectorID is a placeholder hook for compilers that want to
// route getter/setter selectors to synthetic field-accessor methods
// distinct from ordinary method selectors; this core keeps method and
// accessor selectors in the same id space; see class.go's method table.
func fieldAccessorSelectorID(sel Selector) int { return sel.ID() }

// TakeLookupCache and ReleaseLookupCache bracket a Run(): the lookup
// cache is owned by the Process and "taken" into the Interpreter on
// entry and "released" on exit, so no other code observes it during a
// run.
func (p *Process) TakeLookupCache() {
	if p.cache.taken {
		Fatal("lookup cache already taken by another run")
	}
	p.cache.taken = true
}

func (p *Process) ReleaseLookupCache() {
	p.cache.taken = false
}

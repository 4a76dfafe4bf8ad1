package message

import (
	"sync"
	"sync/atomic"
)

// contentBlock is the refcounted heap allocation backing an lmsg, pooled
// per size class the same way a NUMA-segmented buffer pool would, but
// repurposed here from socket I/O buffers to message content blocks.
type contentBlock struct {
	data     []byte
	refcount Counter
}

// Counter is a tiny atomic refcount, sized to be colocated with each
// contentBlock (ZMTP: "lmsg refcount" is an atomic counter).
type Counter struct{ n atomic.Int64 }

func (c *Counter) init(v int64)      { c.n.Store(v) }
func (c *Counter) add(d int64) int64 { return c.n.Add(d) }
func (c *Counter) load() int64       { return c.n.Load() }

// sizeClassPool recycles contentBlocks of a given capacity to cut allocator
// pressure under sustained lmsg traffic, mirroring pool.BufferPoolManager's
// per-class sync.Pool-backed design.
type sizeClassPool struct {
	pool sync.Pool
	cap  int
}

func newSizeClassPool(capacity int) *sizeClassPool {
	p := &sizeClassPool{cap: capacity}
	p.pool.New = func() any {
		return &contentBlock{data: make([]byte, capacity)}
	}
	return p
}

func (p *sizeClassPool) get() *contentBlock {
	cb := p.pool.Get().(*contentBlock)
	cb.refcount.init(1)
	return cb
}

func (p *sizeClassPool) put(cb *contentBlock) {
	if cap(cb.data) != p.cap {
		return // foreign size, let GC reclaim it
	}
	p.pool.Put(cb)
}

// contentPoolManager mirrors pool.BufferPoolManager: a registry of
// size-class pools, lazily created, keyed by rounded-up capacity.
type contentPoolManager struct {
	mu    sync.RWMutex
	pools map[int]*sizeClassPool
}

var globalContentPools = &contentPoolManager{pools: make(map[int]*sizeClassPool)}

func sizeClass(n int) int {
	c := 64
	for c < n {
		c <<= 1
	}
	return c
}

func (m *contentPoolManager) acquire(n int) *contentBlock {
	class := sizeClass(n)
	m.mu.RLock()
	p, ok := m.pools[class]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if p, ok = m.pools[class]; !ok {
			p = newSizeClassPool(class)
			m.pools[class] = p
		}
		m.mu.Unlock()
	}
	cb := p.get()
	cb.data = cb.data[:n]
	return cb
}

func (m *contentPoolManager) release(cb *contentBlock) {
	class := sizeClass(cap(cb.data))
	m.mu.RLock()
	p, ok := m.pools[class]
	m.mu.RUnlock()
	if ok {
		cb.data = cb.data[:cap(cb.data)]
		p.put(cb)
	}
}

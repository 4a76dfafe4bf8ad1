package session

import (
	"hash/fnv"
	"sync"
)

// Manager tracks every live Base keyed by its resolved endpoint, sharded
// to keep registration/lookup off a single lock under high connection
// churn. There is no ZMTP equivalent (libzmq tracks sessions
// only as children in the own_t tree); this is a sharded
// registry repurposed to give the control/diagnostics layer a way
// to enumerate active connections by endpoint without walking the
// socket's pipe table.
type Manager struct {
	shards []*shard
	mask   uint32
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Base
}

// NewManager constructs a registry with shardCount shards, rounded up to
// a power of two (0 or negative picks a default of 16).
func NewManager(shardCount int) *Manager {
	if shardCount <= 0 {
		shardCount = 16
	}
	n := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]*Base)}
	}
	return &Manager{shards: shards, mask: n - 1}
}

func (m *Manager) shardFor(endpoint string) *shard {
	h := fnv.New32a()
	h.Write([]byte(endpoint))
	return m.shards[h.Sum32()&m.mask]
}

// Register records s under its current endpoint. Overwrites any prior
// session registered under the same endpoint.
func (m *Manager) Register(s *Base) {
	endpoint := s.Endpoint()
	sh := m.shardFor(endpoint)
	sh.mu.Lock()
	sh.sessions[endpoint] = s
	sh.mu.Unlock()
}

// Unregister removes the session registered under endpoint, if it is
// still s (a newer session may have already replaced it).
func (m *Manager) Unregister(endpoint string, s *Base) {
	sh := m.shardFor(endpoint)
	sh.mu.Lock()
	if cur, ok := sh.sessions[endpoint]; ok && cur == s {
		delete(sh.sessions, endpoint)
	}
	sh.mu.Unlock()
}

// Get returns the session currently registered under endpoint.
func (m *Manager) Get(endpoint string) (*Base, bool) {
	sh := m.shardFor(endpoint)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[endpoint]
	return s, ok
}

// Range applies fn to every registered session.
func (m *Manager) Range(fn func(endpoint string, s *Base)) {
	for _, sh := range m.shards {
		sh.mu.RLock()
		for endpoint, s := range sh.sessions {
			fn(endpoint, s)
		}
		sh.mu.RUnlock()
	}
}

func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}

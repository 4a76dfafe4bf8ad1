// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug handler and probe reflector for internal inspection.

package control

import (
	"sync"

	"github.com/google/uuid"
)

// DebugProbes holds registered probe functions. Each instance carries a
// random id so DumpState output from several contexts in the same process
// (or the same context's debug snapshots over time) can be told apart.
type DebugProbes struct {
	mu       sync.RWMutex
	instance string
	probes   map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		instance: uuid.NewString(),
		probes:   make(map[string]func() any),
	}
}

// Instance returns this registry's random id.
func (dp *DebugProbes) Instance() string { return dp.instance }

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes)+1)
	out["instance_id"] = dp.instance
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}

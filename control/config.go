// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update, hot-reload propagation,
// and TOML file loading.

package control

import (
	"fmt"
	"os"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the process-wide tunable surface a context reads at startup and
// may reload at runtime: socket defaults plus the reconnect policy every
// active-side connecter inherits unless a socket overrides it.
type Config struct {
	IOThreads       int           `toml:"io_threads"`
	MaxSockets      int           `toml:"max_sockets"`
	SndHWM          int           `toml:"snd_hwm"`
	RcvHWM          int           `toml:"rcv_hwm"`
	Linger          time.Duration `toml:"linger"`
	ReconnectIVL    time.Duration `toml:"reconnect_ivl"`
	ReconnectIVLMax time.Duration `toml:"reconnect_ivl_max"`
	HandshakeIVL    time.Duration `toml:"handshake_ivl"`
}

// DefaultConfig mirrors options_t's compiled-in defaults.
func DefaultConfig() Config {
	return Config{
		IOThreads:       1,
		MaxSockets:      1024,
		SndHWM:          1000,
		RcvHWM:          1000,
		Linger:          30 * time.Second,
		ReconnectIVL:    100 * time.Millisecond,
		ReconnectIVLMax: 30 * time.Second,
		HandshakeIVL:    30 * time.Second,
	}
}

// ConfigStore holds the live Config plus arbitrary per-component overrides,
// with atomic snapshot reads and reload-listener dispatch.
type ConfigStore struct {
	mu        sync.RWMutex
	cfg       Config
	overrides map[string]any
	listeners []func()
}

// NewConfigStore initializes a store with DefaultConfig.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		cfg:       DefaultConfig(),
		overrides: make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// LoadFile reads path as TOML and replaces the store's Config. A missing
// file is not an error: the store keeps whatever Config it already holds
// (DefaultConfig on first call).
func (cs *ConfigStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("control: reading config file: %w", err)
	}

	cs.mu.RLock()
	cfg := cs.cfg
	cs.mu.RUnlock()

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("control: parsing config file: %w", err)
	}

	cs.mu.Lock()
	cs.cfg = cfg
	cs.mu.Unlock()
	cs.dispatchReload()
	return nil
}

// Config returns a copy of the current Config.
func (cs *ConfigStore) Config() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.cfg
}

// SetConfig replaces the store's Config wholesale and dispatches reload.
func (cs *ConfigStore) SetConfig(cfg Config) {
	cs.mu.Lock()
	cs.cfg = cfg
	cs.mu.Unlock()
	cs.dispatchReload()
}

// GetSnapshot returns the per-component override map alongside the active
// Config, for debug probes that want ad hoc key/value state without
// extending Config itself.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make(map[string]any, len(cs.overrides)+1)
	for k, v := range cs.overrides {
		out[k] = v
	}
	out["config"] = cs.cfg
	return out
}

// SetOverride stashes a component-specific value outside the typed Config
// surface and dispatches reload.
func (cs *ConfigStore) SetOverride(key string, value any) {
	cs.mu.Lock()
	cs.overrides[key] = value
	cs.mu.Unlock()
	cs.dispatchReload()
}

// OnReload registers a listener hook called after every LoadFile, SetConfig,
// or SetOverride.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	cs.mu.RLock()
	listeners := cs.listeners
	cs.mu.RUnlock()
	for _, fn := range listeners {
		go fn()
	}
}

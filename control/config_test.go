package control_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ulala-x/serverlink/control"
)

func TestConfigStoreDefaults(t *testing.T) {
	cs := control.NewConfigStore()
	cfg := cs.Config()
	if cfg.IOThreads != 1 {
		t.Errorf("IOThreads = %d, want 1", cfg.IOThreads)
	}
	if cfg.ReconnectIVL != 100*time.Millisecond {
		t.Errorf("ReconnectIVL = %v, want 100ms", cfg.ReconnectIVL)
	}
}

func TestConfigStoreLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serverlink.toml")
	body := "io_threads = 4\nsnd_hwm = 500\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cs := control.NewConfigStore()
	var reloaded int
	done := make(chan struct{}, 1)
	cs.OnReload(func() { reloaded++; done <- struct{}{} })

	if err := cs.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	<-done

	cfg := cs.Config()
	if cfg.IOThreads != 4 {
		t.Errorf("IOThreads = %d, want 4", cfg.IOThreads)
	}
	if cfg.SndHWM != 500 {
		t.Errorf("SndHWM = %d, want 500", cfg.SndHWM)
	}
}

func TestConfigStoreLoadFileMissingIsNotError(t *testing.T) {
	cs := control.NewConfigStore()
	if err := cs.LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("LoadFile() on missing file error = %v, want nil", err)
	}
	if cfg := cs.Config(); cfg.IOThreads != 1 {
		t.Errorf("IOThreads = %d, want default 1 after missing file", cfg.IOThreads)
	}
}

func TestConfigStoreOverride(t *testing.T) {
	cs := control.NewConfigStore()
	cs.SetOverride("region", "us-east")
	snap := cs.GetSnapshot()
	if snap["region"] != "us-east" {
		t.Errorf("GetSnapshot()[region] = %v, want us-east", snap["region"])
	}
	if _, ok := snap["config"]; !ok {
		t.Error("GetSnapshot() missing config key")
	}
}

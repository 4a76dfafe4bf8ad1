package api

import "testing"

func TestContextDebugExposesPlatformProbes(t *testing.T) {
	ctx := NewContext(DefaultConfig())
	defer ctx.Terminate()

	snapshot := ctx.Debug().DumpState()
	if _, ok := snapshot["platform.cpus"]; !ok {
		t.Fatalf("DumpState() = %v, want a platform.cpus probe", snapshot)
	}
	if _, ok := snapshot["sockets.max"]; !ok {
		t.Fatalf("DumpState() = %v, want a sockets.max probe", snapshot)
	}
	if _, ok := snapshot["instance_id"]; !ok {
		t.Fatalf("DumpState() = %v, want an instance_id", snapshot)
	}
}

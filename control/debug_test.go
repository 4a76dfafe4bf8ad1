package control

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDebugProbesInstanceIsValidUUID(t *testing.T) {
	dp := NewDebugProbes()
	_, err := uuid.Parse(dp.Instance())
	require.NoError(t, err)
}

func TestDebugProbesDumpState(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("queue_depth", func() any { return 42 })

	snapshot := dp.DumpState()
	require.Equal(t, 42, snapshot["queue_depth"])
	require.Equal(t, dp.Instance(), snapshot["instance_id"])
}

func TestDebugProbesTwoInstancesDiffer(t *testing.T) {
	a := NewDebugProbes()
	b := NewDebugProbes()
	require.NotEqual(t, a.Instance(), b.Instance())
}

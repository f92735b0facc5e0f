package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/tilegrid/dispatch"
)

func TestParseTarget(t *testing.T) {
	cases := map[string]dispatch.Target{
		"HostTask":  dispatch.HostTask,
		"task":      dispatch.HostTask,
		"hostnest":  dispatch.HostNest,
		" Batch ":   dispatch.HostBatch,
		"Devices":   dispatch.Devices,
		"device":    dispatch.Devices,
		"HOSTBATCH": dispatch.HostBatch,
	}
	for in, want := range cases {
		got, err := dispatch.ParseTarget(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := dispatch.ParseTarget("gpu")
	assert.ErrorIs(t, err, dispatch.ErrInvalidTarget)
}

func TestTarget_StringAndValid(t *testing.T) {
	assert.Equal(t, "HostNest", dispatch.HostNest.String())
	assert.Equal(t, "Target(9)", dispatch.Target(9).String())
	assert.True(t, dispatch.Devices.Valid())
	assert.False(t, dispatch.Target(4).Valid())
}

func TestNew_PanicsOnUnknownTarget(t *testing.T) {
	assert.PanicsWithValue(t, "dispatch: New: unknown target", func() { dispatch.New(dispatch.Target(7), 0) })
	d := dispatch.New(dispatch.HostNest, 2)
	assert.Equal(t, dispatch.HostNest, d.Target())
	d.Close()
	d.Close()
}

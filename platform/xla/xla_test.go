package xla

// Unit tests that don't require a PJRT plugin to be installed. End-to-end
// tests against a real plugin live in xla_plugin_test.go.

import (
	"testing"

	"github.com/gomlx/distribute/platform"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig(t *testing.T) {
	p, err := NewWithConfig("")
	require.NoError(t, err)
	require.Equal(t, "cpu", p.pluginNames[platform.CPU])
	require.Equal(t, "cuda", p.pluginNames[platform.GPU])
	require.False(t, p.growth[platform.GPU])

	p, err = NewWithConfig("gpu=rocm, growth=true")
	require.NoError(t, err)
	require.Equal(t, "rocm", p.pluginNames[platform.GPU])
	require.Equal(t, "cpu", p.pluginNames[platform.CPU])
	require.True(t, p.growth[platform.GPU])
}

func TestNewWithConfig_Errors(t *testing.T) {
	_, err := NewWithConfig("gpu")
	require.ErrorContains(t, err, "expected")
	_, err = NewWithConfig("tpu=plugin")
	require.ErrorContains(t, err, "unknown key")
	_, err = NewWithConfig("growth=maybe")
	require.ErrorContains(t, err, "invalid value")
}

func TestParseShortName(t *testing.T) {
	deviceType, idx, err := parseShortName("/gpu:1")
	require.NoError(t, err)
	require.Equal(t, platform.GPU, deviceType)
	require.Equal(t, 1, idx)

	deviceType, idx, err = parseShortName("/CPU:0")
	require.NoError(t, err)
	require.Equal(t, platform.CPU, deviceType)
	require.Equal(t, 0, idx)

	_, _, err = parseShortName("gpu:1")
	require.Error(t, err)
	_, _, err = parseShortName("/gpu")
	require.Error(t, err)
	_, _, err = parseShortName("/gpu:x")
	require.Error(t, err)
	_, _, err = parseShortName("/gpu:-1")
	require.Error(t, err)
}

func TestDeviceName(t *testing.T) {
	require.Equal(t, "/physical_device:GPU:0", deviceName(platform.GPU, 0))
	require.Equal(t, "/physical_device:CPU:3", deviceName(platform.CPU, 3))
}

func TestSetMemoryGrowthForType(t *testing.T) {
	p := New()
	require.NoError(t, p.SetMemoryGrowthForType(platform.GPU, true))
	require.True(t, p.growth[platform.GPU])

	// Simulate an already created client: growth is frozen for the type.
	p.clients[platform.GPU] = nil
	require.ErrorContains(t, p.SetMemoryGrowthForType(platform.GPU, false),
		"client already created")
	err := p.SetMemoryGrowth(platform.Device{Name: "/physical_device:GPU:0", Type: platform.GPU}, false)
	require.ErrorContains(t, err, "/physical_device:GPU:0")
}

package distribute

// Common initialization and testing tools for all test files.

import (
	"testing"

	"github.com/gomlx/distribute/platform/simulated"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// newTestManager creates a Manager over a fresh simulated platform with the
// given device counts.
func newTestManager(numCPUs, numGPUs int) (*Manager, *simulated.Platform) {
	p := simulated.New(numCPUs, numGPUs)
	return New(p), p
}

// simStrategy builds the manager's strategy and asserts it is the simulated
// implementation, so tests can inspect its shape.
func simStrategy(t *testing.T, m *Manager) *simulated.Strategy {
	strategy, err := m.Strategy()
	require.NoError(t, err)
	simulatedStrategy, ok := strategy.(*simulated.Strategy)
	require.Truef(t, ok, "expected a *simulated.Strategy, got %T", strategy)
	return simulatedStrategy
}

func TestNew(t *testing.T) {
	dm, p := newTestManager(1, 2)
	require.Same(t, p, dm.Platform())
	require.Empty(t, dm.Devices())
	require.Empty(t, dm.DeviceType())
	require.False(t, dm.Growth())
	dm.SetGrowth(true)
	require.True(t, dm.Growth())
}

func TestDevices_Snapshot(t *testing.T) {
	dm, _ := newTestManager(1, 2)
	require.NoError(t, dm.SelectGPU())
	devices := dm.Devices()
	require.Len(t, devices, 2)

	// Mutating the returned slice must not affect the Manager.
	devices[0].Name = "/physical_device:GPU:99"
	require.Equal(t, "/physical_device:GPU:0", dm.Devices()[0].Name)
}

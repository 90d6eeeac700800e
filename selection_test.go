package distribute

import (
	"testing"

	"github.com/gomlx/distribute/platform"
	"github.com/stretchr/testify/require"
)

func TestSelect_ByIndexAndAlias(t *testing.T) {
	dm, _ := newTestManager(1, 3)
	require.NoError(t, dm.SelectGPU(2, "FIRST"))
	devices := dm.Devices()
	require.Len(t, devices, 2)
	// Same order as the input identifiers.
	require.Equal(t, "/physical_device:GPU:2", devices[0].Name)
	require.Equal(t, "/physical_device:GPU:0", devices[1].Name)
	require.Equal(t, platform.GPU, dm.DeviceType())
}

func TestSelect_AliasesCaseInsensitive(t *testing.T) {
	dm, _ := newTestManager(1, 4)
	require.NoError(t, dm.SelectGPU("second", "ThIrD", "fourth"))
	devices := dm.Devices()
	require.Len(t, devices, 3)
	require.Equal(t, "/physical_device:GPU:1", devices[0].Name)
	require.Equal(t, "/physical_device:GPU:2", devices[1].Name)
	require.Equal(t, "/physical_device:GPU:3", devices[2].Name)
}

func TestSelect_All(t *testing.T) {
	dm, p := newTestManager(2, 2)
	require.NoError(t, dm.SelectGPU(All))
	available, err := p.ListPhysicalDevices(platform.GPU)
	require.NoError(t, err)
	require.Equal(t, available, dm.Devices())

	// No identifiers means All.
	require.NoError(t, dm.SelectCPU())
	require.Len(t, dm.Devices(), 2)
	require.Equal(t, platform.CPU, dm.DeviceType())
	require.Equal(t, "/physical_device:CPU:0", dm.Devices()[0].Name)
}

func TestSelect_Errors(t *testing.T) {
	dm, _ := newTestManager(1, 2)

	// Out-of-range index.
	require.ErrorContains(t, dm.SelectGPU(5), "not available")
	// Alias beyond the available devices.
	require.ErrorContains(t, dm.SelectGPU("THIRD"), "not available")
	// Unresolvable alias.
	require.ErrorContains(t, dm.SelectGPU("fifth"), "not available")
	// Unsupported identifier kind.
	require.ErrorContains(t, dm.SelectGPU(1.5), "not available")
	// A valid identifier doesn't save a call with an invalid one.
	require.ErrorContains(t, dm.SelectGPU(0, 7), "not available")
	// Unknown device type propagates from the platform.
	require.ErrorContains(t, dm.Select(platform.DeviceType("tpu"), All), "unknown device type")
}

func TestSelect_FailureLeavesSelectionUntouched(t *testing.T) {
	dm, _ := newTestManager(1, 2)
	require.NoError(t, dm.SelectGPU(0))
	strategy := simStrategy(t, dm)

	require.Error(t, dm.SelectGPU(0, 5))

	// Previous selection and its cached strategy survive.
	require.Len(t, dm.Devices(), 1)
	require.Equal(t, "/physical_device:GPU:0", dm.Devices()[0].Name)
	require.Same(t, strategy, simStrategy(t, dm))
}

func TestSelect_SecondRequiresTwoDevices(t *testing.T) {
	dm, _ := newTestManager(1, 2)
	require.NoError(t, dm.SelectGPU("SECOND"))
	require.Len(t, dm.Devices(), 1)
	require.Equal(t, "/physical_device:GPU:1", dm.Devices()[0].Name)

	short, _ := newTestManager(1, 1)
	require.ErrorContains(t, short.SelectGPU("SECOND"), "not available")
}

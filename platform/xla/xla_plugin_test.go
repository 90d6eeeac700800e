package xla

// End-to-end tests requiring a PJRT plugin installed (see
// github.com/gomlx/gopjrt for install instructions). They are skipped if the
// plugin cannot be loaded.

import (
	"flag"
	"fmt"
	"testing"

	"github.com/gomlx/distribute"
	"github.com/gomlx/distribute/platform"
	"github.com/gomlx/gopjrt/pjrt"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

var flagPluginName = flag.String("plugin", "cpu", "PJRT plugin to serve the cpu device type in tests")

func init() {
	klog.InitFlags(nil)
}

// pluginPlatform returns an XLA platform with the test plugin serving CPU
// devices, skipping the test if the plugin is not available.
func pluginPlatform(t *testing.T) *Platform {
	if _, err := pjrt.GetPlugin(*flagPluginName); err != nil {
		t.Skipf("PJRT plugin %q not available, skipping: %v", *flagPluginName, err)
	}
	p := New()
	p.pluginNames[platform.CPU] = *flagPluginName
	return p
}

func TestListPhysicalDevices(t *testing.T) {
	p := pluginPlatform(t)
	devices, err := p.ListPhysicalDevices(platform.CPU)
	require.NoError(t, err)
	require.NotEmpty(t, devices)
	fmt.Printf("%d cpu device(s):\n", len(devices))
	for _, device := range devices {
		fmt.Printf("\t%s\n", device.Name)
	}
	require.Equal(t, "/physical_device:CPU:0", devices[0].Name)
}

func TestManagerOnPlugin(t *testing.T) {
	p := pluginPlatform(t)
	dm := distribute.New(p)
	require.NoError(t, dm.SelectCPU("FIRST"))
	require.Len(t, dm.Devices(), 1)

	strategy, err := dm.Strategy()
	require.NoError(t, err)
	require.Equal(t, 1, strategy.NumReplicas())
	xlaStrategy, ok := strategy.(*Strategy)
	require.True(t, ok)
	require.NotNil(t, xlaStrategy.Client())
	require.Len(t, xlaStrategy.Devices(), 1)
	require.False(t, xlaStrategy.Mirrored())

	require.NoError(t, dm.InScope(func() error {
		require.Equal(t, 1, xlaStrategy.openScopes)
		return nil
	}))
	require.Equal(t, 0, xlaStrategy.openScopes)
}

package distribute

import (
	"fmt"
	"strings"

	"github.com/gomlx/distribute/platform"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// defaultDevice is the device a strategy is pinned to when nothing was
// selected.
const defaultDevice = "/cpu:0"

// shortNames maps fully qualified device names to the short form used for
// strategy construction: "/physical_device:GPU:2" becomes "/gpu:2".
func shortNames(devices []platform.Device) []string {
	result := make([]string, 0, len(devices))
	for _, device := range devices {
		parts := strings.Split(device.Name, ":")
		if len(parts) < 2 {
			// Not a qualified name, pass it through unchanged.
			result = append(result, device.Name)
			continue
		}
		kind := strings.ToLower(parts[len(parts)-2])
		result = append(result, fmt.Sprintf("/%s:%s", kind, parts[len(parts)-1]))
	}
	return result
}

// applyGrowth sets the memory-growth mode on all GPU devices of the
// platform. Best-effort: the mode can only be set before a device is
// initialized, so a late attempt is expected to fail, and harmlessly so --
// failures are logged and swallowed.
func (m *Manager) applyGrowth() {
	gpus, err := m.platform.ListPhysicalDevices(platform.GPU)
	if err != nil {
		klog.Warningf("Failed to list GPU devices to set memory growth on platform %q: %v",
			m.platform.Name(), err)
		return
	}
	for _, gpu := range gpus {
		if err := m.platform.SetMemoryGrowth(gpu, m.growth); err != nil {
			klog.Warningf("Failed to set memory growth=%v on %s (platform %q), "+
				"likely the device is already initialized: %v",
				m.growth, gpu.Name, m.platform.Name(), err)
			return
		}
	}
}

// Strategy returns the execution strategy for the current selection,
// building and caching it on first use after a Select call.
//
// The strategy shape follows the selection size: with two or more devices
// selected it is a mirrored strategy spanning them in selection order; with
// exactly one it is a single-device strategy pinned to it; with none it is a
// single-device strategy pinned to the default CPU device.
//
// When GPU devices are selected, the memory-growth flag is first applied to
// all GPU devices, best-effort (see SetGrowth).
func (m *Manager) Strategy() (platform.Strategy, error) {
	if m.strategy != nil {
		return m.strategy, nil
	}
	if m.deviceType == platform.GPU {
		m.applyGrowth()
	}
	names := shortNames(m.selection)
	var strategy platform.Strategy
	var err error
	switch {
	case len(names) >= 2:
		strategy, err = m.platform.NewMirroredStrategy(names)
	case len(names) == 1:
		strategy, err = m.platform.NewSingleDeviceStrategy(names[0])
	default:
		strategy, err = m.platform.NewSingleDeviceStrategy(defaultDevice)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to build strategy over %v on platform %q",
			names, m.platform.Name())
	}
	m.strategy = strategy
	return m.strategy, nil
}

// NumReplicas returns the number of parallel replicas of the current
// strategy, building it first if needed.
func (m *Manager) NumReplicas() (int, error) {
	strategy, err := m.Strategy()
	if err != nil {
		return 0, err
	}
	return strategy.NumReplicas(), nil
}

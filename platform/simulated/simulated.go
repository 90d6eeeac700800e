// Package simulated implements a pure-Go platform.Platform with a
// configurable number of simulated CPU and GPU devices.
//
// It builds no real execution context: strategies only track the devices
// they span and scopes only track acquisition/release. That makes it useful
// for tests and for exercising device-selection logic on hosts without
// accelerators.
//
// It registers itself under the name "simulated". The config string is a
// comma-separated list of "<type>=<count>" entries, e.g. "cpu=1,gpu=2".
// An empty config simulates one CPU and no GPUs.
//
// Like real hardware platforms, memory growth can only be configured before
// devices initialize: once any strategy was built, SetMemoryGrowth fails.
package simulated

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/distribute/platform"
	"github.com/pkg/errors"
)

// Name this platform is registered under.
const Name = "simulated"

func init() {
	platform.Register(Name, func(config string) (platform.Platform, error) {
		return NewWithConfig(config)
	})
}

var _ platform.Platform = &Platform{}

// Platform simulates a host runtime with a fixed set of devices.
type Platform struct {
	devices map[platform.DeviceType][]platform.Device

	// growth records the memory-growth mode per device name.
	growth map[string]bool

	// initialized is set when the first strategy is built; from then on
	// SetMemoryGrowth fails, mirroring real runtimes.
	initialized bool

	openScopes int
}

// New creates a simulated platform with the given device counts.
func New(numCPUs, numGPUs int) *Platform {
	p := &Platform{
		devices: make(map[platform.DeviceType][]platform.Device),
		growth:  make(map[string]bool),
	}
	p.devices[platform.CPU] = makeDevices(platform.CPU, numCPUs)
	p.devices[platform.GPU] = makeDevices(platform.GPU, numGPUs)
	return p
}

// NewWithConfig creates a simulated platform from a "cpu=N,gpu=M" config
// string. Missing types default to cpu=1, gpu=0.
func NewWithConfig(config string) (*Platform, error) {
	counts := map[platform.DeviceType]int{platform.CPU: 1, platform.GPU: 0}
	if config != "" {
		for _, entry := range strings.Split(config, ",") {
			key, value, found := strings.Cut(entry, "=")
			if !found {
				return nil, errors.Errorf("invalid simulated platform config entry %q in %q, "+
					"expected \"<type>=<count>\"", entry, config)
			}
			deviceType := platform.DeviceType(strings.ToLower(strings.TrimSpace(key)))
			if deviceType != platform.CPU && deviceType != platform.GPU {
				return nil, errors.Errorf("unknown device type %q in simulated platform config %q",
					key, config)
			}
			count, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || count < 0 {
				return nil, errors.Errorf("invalid device count %q for %s in simulated platform config %q",
					value, deviceType, config)
			}
			counts[deviceType] = count
		}
	}
	return New(counts[platform.CPU], counts[platform.GPU]), nil
}

// makeDevices builds count devices named the way host frameworks report
// them, e.g. "/physical_device:GPU:0".
func makeDevices(deviceType platform.DeviceType, count int) []platform.Device {
	devices := make([]platform.Device, 0, count)
	for i := 0; i < count; i++ {
		devices = append(devices, platform.Device{
			Name: fmt.Sprintf("/physical_device:%s:%d", strings.ToUpper(string(deviceType)), i),
			Type: deviceType,
		})
	}
	return devices
}

// Name implements platform.Platform.
func (p *Platform) Name() string { return Name }

// ListPhysicalDevices implements platform.Platform.
func (p *Platform) ListPhysicalDevices(deviceType platform.DeviceType) ([]platform.Device, error) {
	devices, found := p.devices[deviceType]
	if !found {
		return nil, errors.Errorf("unknown device type %q", deviceType)
	}
	return devices, nil
}

// SetMemoryGrowth implements platform.Platform. It fails once any strategy
// was built, since by then devices are initialized.
func (p *Platform) SetMemoryGrowth(device platform.Device, growth bool) error {
	if p.initialized {
		return errors.Errorf("cannot set memory growth on %s: devices already initialized", device.Name)
	}
	p.growth[device.Name] = growth
	return nil
}

// MemoryGrowth reports the memory-growth mode last set on the named device.
func (p *Platform) MemoryGrowth(deviceName string) bool {
	return p.growth[deviceName]
}

// NewSingleDeviceStrategy implements platform.Platform.
func (p *Platform) NewSingleDeviceStrategy(deviceName string) (platform.Strategy, error) {
	if deviceName == "" {
		return nil, errors.Errorf("empty device name for single-device strategy")
	}
	p.initialized = true
	return &Strategy{platform: p, deviceNames: []string{deviceName}}, nil
}

// NewMirroredStrategy implements platform.Platform.
func (p *Platform) NewMirroredStrategy(deviceNames []string) (platform.Strategy, error) {
	if len(deviceNames) == 0 {
		return nil, errors.Errorf("mirrored strategy needs at least one device")
	}
	p.initialized = true
	return &Strategy{platform: p, deviceNames: deviceNames, mirrored: true}, nil
}

// OpenScopes returns the number of currently open scopes.
func (p *Platform) OpenScopes() int { return p.openScopes }

// Strategy is a simulated execution strategy: it records the devices it
// spans and whether it is mirrored.
type Strategy struct {
	platform    *Platform
	deviceNames []string
	mirrored    bool
}

// NumReplicas implements platform.Strategy.
func (s *Strategy) NumReplicas() int { return len(s.deviceNames) }

// DeviceNames returns the short device names the strategy spans, in order.
func (s *Strategy) DeviceNames() []string { return s.deviceNames }

// Mirrored reports whether this is a mirrored (data-parallel) strategy.
func (s *Strategy) Mirrored() bool { return s.mirrored }

// Scope implements platform.Strategy. Scopes may nest.
func (s *Strategy) Scope() (platform.Scope, error) {
	s.platform.openScopes++
	return &scope{strategy: s}, nil
}

type scope struct {
	strategy *Strategy
	closed   bool
}

// Close implements platform.Scope. Closing twice is an error.
func (sc *scope) Close() error {
	if sc.closed {
		return errors.Errorf("scope already closed")
	}
	sc.closed = true
	sc.strategy.platform.openScopes--
	return nil
}

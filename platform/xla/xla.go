// Package xla implements a platform.Platform over PJRT (https://openxla.org/)
// using github.com/gomlx/gopjrt.
//
// Import it with import _ "github.com/gomlx/distribute/platform/xla" to make
// it available: it registers itself under the name "xla" during
// initialization.
//
// Each device type maps to a PJRT plugin: "cpu" to the cpu plugin and "gpu"
// to the cuda plugin by default. The config string is a comma-separated list
// of "<key>=<value>" entries overriding the defaults, e.g. "gpu=rocm" to use
// a different GPU plugin, or "growth=true" to disable GPU memory
// preallocation. Plugins are searched in PJRT_PLUGIN_LIBRARY_PATH, see
// github.com/gomlx/gopjrt/pjrt for details.
//
// Memory growth maps to the CUDA plugin's client-creation options
// ("preallocate"), so it can only be configured before the GPU client is
// created -- either with the "growth" config entry or with
// SetMemoryGrowthForType before any GPU device is listed. Later
// SetMemoryGrowth calls return an error.
package xla

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/distribute/platform"
	"github.com/gomlx/gopjrt/pjrt"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Name this platform is registered under.
const Name = "xla"

func init() {
	platform.Register(Name, func(config string) (platform.Platform, error) {
		return NewWithConfig(config)
	})
}

// defaultPlugins maps device types to the PJRT plugin serving them.
var defaultPlugins = map[platform.DeviceType]string{
	platform.CPU: "cpu",
	platform.GPU: "cuda",
}

var _ platform.Platform = &Platform{}

// Platform adapts PJRT plugins and clients to the platform.Platform API.
type Platform struct {
	// pluginNames maps device type to the PJRT plugin name to load for it.
	pluginNames map[platform.DeviceType]string

	// clients are created lazily, one per device type, when its devices are
	// first listed.
	clients map[platform.DeviceType]*pjrt.Client

	// growth holds the memory-growth mode requested per device type, to be
	// applied as client-creation options. Only meaningful for GPU plugins.
	growth map[platform.DeviceType]bool
}

// New creates an XLA platform with the default plugin mapping
// (cpu -> "cpu", gpu -> "cuda").
func New() *Platform {
	p := &Platform{
		pluginNames: make(map[platform.DeviceType]string),
		clients:     make(map[platform.DeviceType]*pjrt.Client),
		growth:      make(map[platform.DeviceType]bool),
	}
	for deviceType, pluginName := range defaultPlugins {
		p.pluginNames[deviceType] = pluginName
	}
	return p
}

// NewWithConfig creates an XLA platform from a comma-separated
// "<key>=<value>" config string. Keys "cpu" and "gpu" override the PJRT
// plugin used for that device type; key "growth" presets the GPU
// memory-growth mode.
func NewWithConfig(config string) (*Platform, error) {
	p := New()
	if config == "" {
		return p, nil
	}
	for _, entry := range strings.Split(config, ",") {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, errors.Errorf("invalid xla platform config entry %q in %q, "+
				"expected \"<key>=<value>\"", entry, config)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case string(platform.CPU), string(platform.GPU):
			p.pluginNames[platform.DeviceType(key)] = value
		case "growth":
			growth, err := strconv.ParseBool(value)
			if err != nil {
				return nil, errors.Errorf("invalid value %q for \"growth\" in xla platform config %q",
					value, config)
			}
			p.growth[platform.GPU] = growth
		default:
			return nil, errors.Errorf("unknown key %q in xla platform config %q", key, config)
		}
	}
	return p, nil
}

// Name implements platform.Platform.
func (p *Platform) Name() string { return Name }

// client returns the PJRT client for the device type, creating it on first
// use. Client-creation options carry the memory-growth mode for GPU plugins.
func (p *Platform) client(deviceType platform.DeviceType) (*pjrt.Client, error) {
	if client, found := p.clients[deviceType]; found {
		return client, nil
	}
	pluginName, found := p.pluginNames[deviceType]
	if !found {
		return nil, errors.Errorf("unknown device type %q", deviceType)
	}
	plugin, err := pjrt.GetPlugin(pluginName)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load PJRT plugin %q for %s devices",
			pluginName, deviceType)
	}
	var options pjrt.NamedValuesMap
	if deviceType == platform.GPU {
		// PJRT GPU plugins preallocate device memory upfront by default;
		// memory growth is the opposite mode.
		options = pjrt.NamedValuesMap{"preallocate": !p.growth[deviceType]}
	}
	client, err := plugin.NewClient(options)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create PJRT client on plugin %q for %s devices",
			pluginName, deviceType)
	}
	klog.V(1).Infof("created PJRT client for %s devices: %s", deviceType, client)
	p.clients[deviceType] = client
	return client, nil
}

// deviceName synthesizes the fully qualified name for the idx-th addressable
// device of a type, e.g. "/physical_device:GPU:0".
func deviceName(deviceType platform.DeviceType, idx int) string {
	return fmt.Sprintf("/physical_device:%s:%d", strings.ToUpper(string(deviceType)), idx)
}

// ListPhysicalDevices implements platform.Platform. It returns the client's
// addressable devices, in the client's order.
//
// Listing creates the PJRT client for the device type if one doesn't exist
// yet -- after that the memory-growth mode for the type is frozen.
func (p *Platform) ListPhysicalDevices(deviceType platform.DeviceType) ([]platform.Device, error) {
	client, err := p.client(deviceType)
	if err != nil {
		return nil, err
	}
	addressable := client.AddressableDevices()
	devices := make([]platform.Device, 0, len(addressable))
	for idx := range addressable {
		devices = append(devices, platform.Device{
			Name: deviceName(deviceType, idx),
			Type: deviceType,
		})
	}
	return devices, nil
}

// SetMemoryGrowthForType presets the memory-growth mode for a whole device
// type. It must be called before any device of that type is listed (i.e.
// before its client exists).
func (p *Platform) SetMemoryGrowthForType(deviceType platform.DeviceType, growth bool) error {
	if _, found := p.clients[deviceType]; found {
		return errors.Errorf("cannot set memory growth for %s devices: PJRT client already created",
			deviceType)
	}
	p.growth[deviceType] = growth
	return nil
}

// SetMemoryGrowth implements platform.Platform. PJRT only takes the
// preallocation mode at client creation, so this fails once the client for
// the device's type exists.
func (p *Platform) SetMemoryGrowth(device platform.Device, growth bool) error {
	return errors.WithMessagef(p.SetMemoryGrowthForType(device.Type, growth),
		"setting memory growth on %s", device.Name)
}

// parseShortName splits a short device name like "/gpu:1" into device type
// and index.
func parseShortName(name string) (platform.DeviceType, int, error) {
	trimmed, found := strings.CutPrefix(name, "/")
	if !found {
		return "", 0, errors.Errorf("invalid device name %q, expected \"/<type>:<index>\"", name)
	}
	kind, indexStr, found := strings.Cut(trimmed, ":")
	if !found {
		return "", 0, errors.Errorf("invalid device name %q, expected \"/<type>:<index>\"", name)
	}
	idx, err := strconv.Atoi(indexStr)
	if err != nil || idx < 0 {
		return "", 0, errors.Errorf("invalid device index in name %q", name)
	}
	return platform.DeviceType(strings.ToLower(kind)), idx, nil
}

// resolve maps a short device name to the PJRT client and device backing it.
func (p *Platform) resolve(name string) (*pjrt.Client, *pjrt.Device, error) {
	deviceType, idx, err := parseShortName(name)
	if err != nil {
		return nil, nil, err
	}
	client, err := p.client(deviceType)
	if err != nil {
		return nil, nil, err
	}
	addressable := client.AddressableDevices()
	if idx >= len(addressable) {
		return nil, nil, errors.Errorf("device %q not available: only %d %s device(s) addressable",
			name, len(addressable), deviceType)
	}
	return client, addressable[idx], nil
}

// NewSingleDeviceStrategy implements platform.Platform.
func (p *Platform) NewSingleDeviceStrategy(deviceName string) (platform.Strategy, error) {
	client, device, err := p.resolve(deviceName)
	if err != nil {
		return nil, errors.WithMessagef(err, "building single-device strategy")
	}
	return &Strategy{
		platform:    p,
		client:      client,
		devices:     []*pjrt.Device{device},
		deviceNames: []string{deviceName},
	}, nil
}

// NewMirroredStrategy implements platform.Platform. All device names must
// resolve on the same PJRT client.
func (p *Platform) NewMirroredStrategy(deviceNames []string) (platform.Strategy, error) {
	if len(deviceNames) == 0 {
		return nil, errors.Errorf("mirrored strategy needs at least one device")
	}
	var client *pjrt.Client
	devices := make([]*pjrt.Device, 0, len(deviceNames))
	for _, name := range deviceNames {
		deviceClient, device, err := p.resolve(name)
		if err != nil {
			return nil, errors.WithMessagef(err, "building mirrored strategy over %v", deviceNames)
		}
		if client == nil {
			client = deviceClient
		} else if client != deviceClient {
			return nil, errors.Errorf("mirrored strategy over %v mixes device types served by "+
				"different PJRT clients", deviceNames)
		}
		devices = append(devices, device)
	}
	return &Strategy{
		platform:    p,
		client:      client,
		devices:     devices,
		deviceNames: deviceNames,
		mirrored:    true,
	}, nil
}

// Strategy is an execution arrangement over PJRT devices of one client.
type Strategy struct {
	platform    *Platform
	client      *pjrt.Client
	devices     []*pjrt.Device
	deviceNames []string
	mirrored    bool

	openScopes int
}

// NumReplicas implements platform.Strategy.
func (s *Strategy) NumReplicas() int { return len(s.devices) }

// Client returns the PJRT client the strategy executes on. Computation code
// uses it to compile and run programs on the strategy's devices.
func (s *Strategy) Client() *pjrt.Client { return s.client }

// Devices returns the PJRT devices the strategy spans, in selection order.
// Replica i of a mirrored computation runs on Devices()[i].
func (s *Strategy) Devices() []*pjrt.Device { return s.devices }

// Mirrored reports whether this is a mirrored (data-parallel) strategy.
func (s *Strategy) Mirrored() bool { return s.mirrored }

// Scope implements platform.Strategy. Scopes may nest.
func (s *Strategy) Scope() (platform.Scope, error) {
	s.openScopes++
	return &scope{strategy: s}, nil
}

type scope struct {
	strategy *Strategy
	closed   bool
}

// Close implements platform.Scope.
func (sc *scope) Close() error {
	if sc.closed {
		return errors.Errorf("scope already closed")
	}
	sc.closed = true
	sc.strategy.openScopes--
	return nil
}

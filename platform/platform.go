// Package platform defines the boundary to the host numerical-computing
// runtime: listing physical devices, toggling their memory-growth mode and
// building execution strategies over them.
//
// Implementations register themselves by name (see Register), typically in
// their package init, and are instantiated from a configuration string of the
// form "<platform_name>:<platform_config>" -- the "<platform_config>" part is
// platform specific. The default configuration is taken from the
// DISTRIBUTE_PLATFORM environment variable, if set.
package platform

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// DeviceType discriminates the kind of physical device to query or select.
type DeviceType string

const (
	// CPU selects host processors.
	CPU DeviceType = "cpu"

	// GPU selects accelerators.
	GPU DeviceType = "gpu"
)

// Device is a lightweight reference to a physical device reported by a
// Platform -- it doesn't own the underlying hardware object.
//
// Name is the fully qualified device name, e.g. "/physical_device:GPU:0",
// and Type is the device kind it was queried under. Devices are immutable
// and owned by the Platform that reported them.
type Device struct {
	Name string
	Type DeviceType
}

// Strategy is an opaque handle to a parallel-execution arrangement built by a
// Platform over one or more devices.
type Strategy interface {
	// NumReplicas returns the number of parallel replicas the strategy runs,
	// one per device it spans.
	NumReplicas() int

	// Scope acquires the strategy's execution context. The returned Scope
	// must be closed by the caller; until then computations are pinned to
	// (or replicated according to) this strategy.
	Scope() (Scope, error)
}

// Scope is an acquired strategy execution context. Close releases it -- it
// must be called on every exit path.
type Scope interface {
	Close() error
}

// Platform is the API a host runtime needs to implement to have its devices
// selected and its strategies managed by this package.
//
// All methods are synchronous. Errors are returned, never panicked.
type Platform interface {
	// Name returns the short name the platform was registered under,
	// e.g. "xla" or "simulated".
	Name() string

	// ListPhysicalDevices returns all devices of the given type, in the
	// platform's own stable order. An empty list (and no error) means no
	// such devices are present.
	ListPhysicalDevices(deviceType DeviceType) ([]Device, error)

	// SetMemoryGrowth sets the memory-growth allocator mode of the given
	// device. Platforms that can only configure this before a device is
	// initialized return an error for late calls.
	SetMemoryGrowth(device Device, growth bool) error

	// NewSingleDeviceStrategy builds a strategy pinned to one device, given
	// by its short name (e.g. "/gpu:1").
	NewSingleDeviceStrategy(deviceName string) (Strategy, error)

	// NewMirroredStrategy builds a data-parallel (all-reduce) strategy
	// replicated over the given short device names, in order.
	NewMirroredStrategy(deviceNames []string) (Strategy, error)
}

// Constructor takes a platform-specific config string (possibly empty) and
// returns a ready Platform.
type Constructor func(config string) (Platform, error)

var (
	muRegistry             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register makes a platform constructor available under the given name.
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the platform configuration used by New if the
// DISTRIBUTE_PLATFORM environment variable is not set.
var DefaultConfig string

// EnvPlatformConfig is the environment variable holding the default platform
// configuration, in the same "<platform_name>:<platform_config>" format
// accepted by NewWithConfig.
const EnvPlatformConfig = "DISTRIBUTE_PLATFORM"

// New returns a Platform built from the default configuration:
//
//  1. The environment variable DISTRIBUTE_PLATFORM, if set.
//  2. The package variable DefaultConfig, if not empty.
//  3. The first registered platform, with an empty config.
//
// It returns an error if no platform was registered.
func New() (Platform, error) {
	if config, found := os.LookupEnv(EnvPlatformConfig); found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig builds a Platform from a "<platform_name>:<platform_config>"
// string. An empty platform name selects the first registered platform, and
// the whole string is then passed to it as config.
func NewWithConfig(config string) (Platform, error) {
	muRegistry.Lock()
	defer muRegistry.Unlock()
	if len(registeredConstructors) == 0 {
		return nil, errors.Errorf("no platforms registered -- import one, e.g. " +
			`_ "github.com/gomlx/distribute/platform/xla"`)
	}
	name := firstRegistered
	platformConfig := config
	if idx := strings.Index(config, ":"); idx != -1 {
		name = config[:idx]
		platformConfig = config[idx+1:]
	}
	constructor, found := registeredConstructors[name]
	if !found {
		return nil, errors.Errorf("platform %q not registered (config %q given) -- registered platforms: %v",
			name, config, registeredNamesLocked())
	}
	return constructor(platformConfig)
}

// registeredNamesLocked returns the registered platform names.
// muRegistry must be held.
func registeredNamesLocked() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	return names
}

// Package distribute centralizes compute-device selection (CPU/GPU) and
// distribution-strategy construction for a numerical-computing platform.
//
// A Manager holds the current device selection for one platform.Platform and
// lazily builds a matching execution strategy: a single-device strategy when
// zero or one device is selected, a mirrored (data-parallel, all-reduce)
// strategy when two or more are. The strategy is exposed as a scope that
// computation code runs inside:
//
//	p := must.M1(platform.New())
//	dm := distribute.New(p)
//	must.M(dm.SelectGPU())          // all GPUs
//	must.M(dm.InScope(func() error {
//		... // computation pinned to / replicated over the selection
//		return nil
//	}))
//
// A Manager is not safe for concurrent use: it is meant to be configured by a
// single goroutine before any parallel computation begins.
package distribute

import (
	"slices"

	"github.com/gomlx/distribute/platform"
)

// Manager selects devices on a platform and manages the execution strategy
// built over them.
//
// The zero Manager is not usable; create one with New.
type Manager struct {
	platform platform.Platform

	deviceType platform.DeviceType
	selection  []platform.Device

	// strategy is the cached strategy for the current selection. Reset to
	// nil by every (successful) Select call.
	strategy platform.Strategy

	growth bool
}

// New creates a Manager for the given platform, with nothing selected yet.
//
// Before the first Select call the Manager is unconfigured: Strategy falls
// back to a single-device strategy on the default CPU device.
func New(p platform.Platform) *Manager {
	return &Manager{platform: p}
}

// Platform returns the platform the Manager selects devices on.
func (m *Manager) Platform() platform.Platform {
	return m.platform
}

// DeviceType returns the device type of the current selection, or "" if
// nothing was selected yet.
func (m *Manager) DeviceType() platform.DeviceType {
	return m.deviceType
}

// Devices returns a copy of the currently selected devices, in selection
// order. The copy is a snapshot for inspection -- mutating it has no effect
// on the Manager.
func (m *Manager) Devices() []platform.Device {
	return slices.Clone(m.selection)
}

// Growth returns the memory-growth flag applied to GPU devices when the
// strategy is built.
func (m *Manager) Growth() bool {
	return m.growth
}

// SetGrowth sets the memory-growth flag. It does not invalidate an already
// built strategy: the flag takes effect on the next strategy build, i.e.
// after the next Select call.
func (m *Manager) SetGrowth(growth bool) {
	m.growth = growth
}

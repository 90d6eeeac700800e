package distribute

import (
	"strings"

	"github.com/gomlx/distribute/platform"
	"github.com/pkg/errors"
)

// All selects every queried device of the requested type.
const All = "all"

// aliasToIndex maps the positional device aliases, matched case-insensitively
// by toIndex.
var aliasToIndex = map[string]int{
	"FIRST":  0,
	"SECOND": 1,
	"THIRD":  2,
	"FOURTH": 3,
}

// toIndex resolves one device identifier to an index: ints are used directly
// and strings go through the positional alias table. Anything else resolves
// to -1, an invalid index.
func toIndex(identifier any) int {
	switch id := identifier.(type) {
	case int:
		return id
	case string:
		if idx, found := aliasToIndex[strings.ToUpper(id)]; found {
			return idx
		}
		return -1
	}
	return -1
}

// selectFromAvailable resolves identifiers into a new device list drawn from
// available. The identifier All expands to every available device; any other
// identifier must resolve to a valid index into available, or the whole call
// fails and no devices are selected.
func selectFromAvailable(identifiers []any, available []platform.Device) ([]platform.Device, error) {
	var result []platform.Device
	for _, identifier := range identifiers {
		if identifier == All {
			result = append(result, available...)
			continue
		}
		idx := toIndex(identifier)
		if idx < 0 || idx >= len(available) {
			return nil, errors.Errorf("device %v not available (%d device(s) to select from)",
				identifier, len(available))
		}
		result = append(result, available[idx])
	}
	return result, nil
}

// Select queries the platform for all physical devices of the given type and
// selects the subset named by identifiers, replacing any previous selection
// and discarding the cached strategy.
//
// Each identifier is an int index into the queried device list, one of the
// case-insensitive aliases "first", "second", "third" or "fourth", or All to
// take every queried device. No identifiers means All.
//
// Select is all-or-nothing: if any identifier is unresolvable or out of
// range it returns an error and the previous selection (and its strategy)
// are left untouched.
func (m *Manager) Select(deviceType platform.DeviceType, identifiers ...any) error {
	available, err := m.platform.ListPhysicalDevices(deviceType)
	if err != nil {
		return errors.WithMessagef(err, "failed to list %s devices on platform %q",
			deviceType, m.platform.Name())
	}
	if len(identifiers) == 0 {
		identifiers = []any{All}
	}
	selection, err := selectFromAvailable(identifiers, available)
	if err != nil {
		return errors.WithMessagef(err, "selecting %s devices on platform %q",
			deviceType, m.platform.Name())
	}
	m.deviceType = deviceType
	m.selection = selection
	m.strategy = nil
	return nil
}

// SelectCPU selects CPU devices. See Select for identifier resolution; no
// identifiers selects all CPUs.
func (m *Manager) SelectCPU(identifiers ...any) error {
	return m.Select(platform.CPU, identifiers...)
}

// SelectGPU selects GPU devices. See Select for identifier resolution; no
// identifiers selects all GPUs.
func (m *Manager) SelectGPU(identifiers ...any) error {
	return m.Select(platform.GPU, identifiers...)
}

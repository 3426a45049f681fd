// Package devices provides a mock device registry.
//
// Nothing in this package talks to Bluetooth or any other radio. MockRegistry
// is a fixed in-memory list standing in for scan results, with connect and
// disconnect moving names between the available and connected lists.
package devices

import (
	"errors"
	"fmt"
	"sync"
)

// Name identifies a mock device. Two devices are the same if their names are equal.
type Name string

// ErrUnknownDevice is returned when a name is in neither list
var ErrUnknownDevice = errors.New("unknown device")

// DefaultMockDevices seeds a registry when no device list is configured
var DefaultMockDevices = []Name{"Device 1", "Device 2", "Device 3"}

// Registry lists and connects devices
type Registry interface {
	ListAvailable() []Name
	ListConnected() []Name
	Connect(name Name) error
	Disconnect(name Name) error
	Counts() (available, connected int)
}

// MockRegistry is an in-memory Registry with no real scanning behind it
type MockRegistry struct {
	mu        sync.RWMutex
	available []Name
	connected []Name
}

// Verify that MockRegistry implements Registry
var _ Registry = (*MockRegistry)(nil)

// NewMockRegistry creates a registry with names available and nothing connected.
// Duplicate names are collapsed; nil seeds DefaultMockDevices.
func NewMockRegistry(names []Name) *MockRegistry {
	if names == nil {
		names = DefaultMockDevices
	}
	r := &MockRegistry{}
	seen := make(map[Name]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		r.available = append(r.available, n)
	}
	return r
}

// ListAvailable returns the devices not yet connected, in seed order
func (r *MockRegistry) ListAvailable() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.available)
}

// ListConnected returns connected devices in connection order
func (r *MockRegistry) ListConnected() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.connected)
}

// Connect moves name from available to connected. Connecting an already
// connected device is a no-op.
func (r *MockRegistry) Connect(name Name) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if indexOf(r.connected, name) >= 0 {
		return nil
	}
	i := indexOf(r.available, name)
	if i < 0 {
		return fmt.Errorf("connect %q: %w", name, ErrUnknownDevice)
	}
	r.available = append(r.available[:i], r.available[i+1:]...)
	r.connected = append(r.connected, name)
	return nil
}

// Disconnect moves name back to available. Disconnecting a device that is
// available but not connected is a no-op.
func (r *MockRegistry) Disconnect(name Name) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.connected, name)
	if i < 0 {
		if indexOf(r.available, name) >= 0 {
			return nil
		}
		return fmt.Errorf("disconnect %q: %w", name, ErrUnknownDevice)
	}
	r.connected = append(r.connected[:i], r.connected[i+1:]...)
	r.available = append(r.available, name)
	return nil
}

// Counts returns the number of available and connected devices
func (r *MockRegistry) Counts() (available, connected int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.available), len(r.connected)
}

func indexOf(names []Name, name Name) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func clone(names []Name) []Name {
	out := make([]Name, len(names))
	copy(out, names)
	return out
}

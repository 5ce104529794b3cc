package compute

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// A CreateDevice opens a device.
type CreateDevice func(ctx context.Context, logger golog.Logger) (Device, error)

// DeviceRegistration stores a device constructor (mandatory) and where it was registered.
type DeviceRegistration struct {
	Constructor  CreateDevice
	RegistrarLoc string
}

var (
	deviceRegistryMu sync.RWMutex
	deviceRegistry   = make(map[string]DeviceRegistration)
)

// RegisterDevice registers a device driver by name. Registering the same name twice or a nil
// constructor panics, as this only happens from init functions.
func RegisterDevice(name string, creator DeviceRegistration) {
	creator.RegistrarLoc = getCallerName()
	deviceRegistryMu.Lock()
	defer deviceRegistryMu.Unlock()
	if _, old := deviceRegistry[name]; old {
		panic(errors.Errorf("trying to register two devices with the same name: %s", name))
	}
	if creator.Constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for device: %s", name))
	}
	deviceRegistry[name] = creator
}

// DeregisterDevice removes a registration. Only tests should need this.
func DeregisterDevice(name string) {
	deviceRegistryMu.Lock()
	defer deviceRegistryMu.Unlock()
	delete(deviceRegistry, name)
}

// LookupDevice looks up a device registration by name. nil is returned if
// there is no registration.
func LookupDevice(name string) *DeviceRegistration {
	deviceRegistryMu.RLock()
	defer deviceRegistryMu.RUnlock()
	registration, ok := deviceRegistry[name]
	if ok {
		return &registration
	}
	return nil
}

// RegisteredDevices returns the sorted names of every registered device.
func RegisteredDevices() []string {
	deviceRegistryMu.RLock()
	defer deviceRegistryMu.RUnlock()
	names := lo.Keys(deviceRegistry)
	sort.Strings(names)
	return names
}

func getCallerName() string {
	// skip this function and RegisterDevice
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

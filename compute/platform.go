package compute

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/samber/lo"

	"go.viam.com/disparity/logging"
)

// Platform is the set of devices visible to this process. It is built once at startup and
// passed to whatever needs a device, instead of consulting global device state.
type Platform struct {
	names  []string
	logger golog.Logger
}

// NewPlatform snapshots the registered device drivers.
func NewPlatform(logger golog.Logger) *Platform {
	if logger == nil {
		logger = logging.Global().Named("compute")
	}
	names := RegisteredDevices()
	logger.Debugw("compute platform discovered devices", "devices", names)
	return &Platform{names: names, logger: logger}
}

// NewEmptyPlatform returns a platform without devices, i.e. a CPU only host.
func NewEmptyPlatform(logger golog.Logger) *Platform {
	if logger == nil {
		logger = logging.Global().Named("compute")
	}
	return &Platform{logger: logger}
}

// DeviceNames returns the names of the available devices.
func (p *Platform) DeviceNames() []string {
	return append([]string(nil), p.names...)
}

// HasDevices reports whether any device is available.
func (p *Platform) HasDevices() bool {
	return len(p.names) > 0
}

// OpenDevice opens the named device, or the first available one when name is empty. It
// returns an *Error with CodeDeviceNotFound when there is nothing to open.
func (p *Platform) OpenDevice(ctx context.Context, name string) (Device, error) {
	if name == "" {
		if len(p.names) == 0 {
			return nil, NewError("open device", CodeDeviceNotFound, "no compute devices available")
		}
		name = p.names[0]
	}
	registration := LookupDevice(name)
	if !lo.Contains(p.names, name) || registration == nil {
		return nil, NewError("open device", CodeDeviceNotFound, "no compute device named %q", name)
	}
	dev, err := registration.Constructor(ctx, p.logger.Named(name))
	if err != nil {
		return nil, &Error{Op: "open device " + name, Code: CodeOf(err), Err: err}
	}
	return dev, nil
}

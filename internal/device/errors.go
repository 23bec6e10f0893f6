package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInvalidArgument) {
//	    // reject the request
//	}
var (
	// ErrInvalidArgument is returned when an id, status or attribute value is
	// out of its documented domain. The device is left unchanged.
	ErrInvalidArgument = errors.New("device: invalid argument")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when a device ID is discovered twice.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrUnsupported is returned when an operation does not apply to the
	// device's kind, such as setting the brightness of a thermostat.
	ErrUnsupported = errors.New("device: unsupported operation")
)

package contracts

import "errors"

// Error definitions shared by the engine and its transports.
var (
	// ErrInvalidArgument is returned when a producer call receives an out-of-range argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUninitialized is returned when the engine is used before NewEngine or after Close.
	ErrUninitialized = errors.New("engine not initialized")
	// ErrUnsupportedOS is returned when no platform transport exists for the running OS.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrTransportClosed is returned by a transport after Close.
	ErrTransportClosed = errors.New("transport closed")
)

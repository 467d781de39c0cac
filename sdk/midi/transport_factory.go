package midi

import (
	"fmt"
	"runtime"

	"github.com/leandrodaf/framemidi/internal/transport/mididarwin"
	"github.com/leandrodaf/framemidi/internal/transport/midiwindows"
	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// transportInitializers maps OS names to corresponding platform transport initializers.
var transportInitializers = map[string]func(contracts.Logger, contracts.VirtualPortConfig) (contracts.Transport, error){
	"darwin":  mididarwin.NewTransport,  // CoreMIDI virtual source.
	"windows": midiwindows.NewTransport, // winmm output device.
}

// NewPlatformTransport opens the native transport of the current operating system:
// a CoreMIDI virtual source on macOS, a winmm output device on Windows.
// It returns contracts.ErrUnsupportedOS elsewhere.
//
// Returns:
//   - contracts.Transport: The opened transport.
//   - error: An error if the operating system is unsupported or if opening fails.
func NewPlatformTransport(log contracts.Logger, config contracts.VirtualPortConfig) (contracts.Transport, error) {
	if initializer, exists := transportInitializers[runtime.GOOS]; exists {
		return initializer(log, config)
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrUnsupportedOS, runtime.GOOS)
}

package midi

import (
	"github.com/leandrodaf/framemidi/internal/transport/midiwindows"
	"github.com/leandrodaf/framemidi/internal/transport/portout"
	"github.com/leandrodaf/framemidi/internal/transport/serialout"
	"github.com/leandrodaf/framemidi/internal/transport/smfrec"
	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// MIDIBaudRate is the MIDI 1.0 DIN line rate used by OpenSerialTransport when baudRate is 0.
const MIDIBaudRate = serialout.MIDIBaudRate

// RecorderOption configures a recording transport.
type RecorderOption = smfrec.Option

// Recording options.
var (
	WithRecorderClock      = smfrec.WithClock
	WithRecorderTempo      = smfrec.WithTempo
	WithRecorderResolution = smfrec.WithResolution
)

// ListOutputPorts lists the output ports of the registered gomidi driver.
// A driver such as gitlab.com/gomidi/midi/v2/drivers/rtmididrv must be imported by the program.
func ListOutputPorts() []contracts.PortInfo {
	return portout.ListPorts()
}

// ListWindowsDevices lists the winmm output devices selectable through VirtualPortConfig.DeviceID.
func ListWindowsDevices(log contracts.Logger) ([]contracts.PortInfo, error) {
	return midiwindows.ListPorts(log)
}

// OpenPortTransport opens the first gomidi driver output port whose name contains name.
func OpenPortTransport(log contracts.Logger, name string) (contracts.Transport, error) {
	t, err := portout.OpenByName(log, name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// OpenPortTransportByIndex opens the gomidi driver output port at index.
func OpenPortTransportByIndex(log contracts.Logger, index int) (contracts.Transport, error) {
	t, err := portout.OpenByIndex(log, index)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	return serialout.ListPorts()
}

// OpenSerialTransport opens a serial port for MIDI output.
func OpenSerialTransport(log contracts.Logger, port string, baudRate int) (contracts.Transport, error) {
	t, err := serialout.Open(log, port, baudRate)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateRecorder returns a transport that records every message to a Standard MIDI File at path.
// The file is written when the transport is closed.
func CreateRecorder(log contracts.Logger, path string, opts ...RecorderOption) (contracts.Transport, error) {
	t, err := smfrec.Create(log, path, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

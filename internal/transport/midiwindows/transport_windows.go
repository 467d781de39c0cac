//go:build windows
// +build windows

// Package midiwindows sends engine output to a winmm MIDI output device.
package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"golang.org/x/sys/windows"
)

// HMIDIOUT is a winmm output device handle.
type HMIDIOUT windows.Handle

// Constants for midiOutOpen flags
const (
	CALLBACK_NULL = 0x00000000 // No callback mechanism
)

// Error definitions for winmm output issues.
var (
	ErrNoMIDIDevices     = errors.New("no MIDI output devices found")
	ErrInvalidMIDIDevice = errors.New("invalid MIDI output device")
	ErrOpenDevice        = errors.New("error opening MIDI output device")
	ErrShortMessageOnly  = errors.New("winmm output accepts short messages only")
)

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// Transport writes short messages to an open winmm output device.
type Transport struct {
	logger contracts.Logger
	handle HMIDIOUT
	mu     sync.Mutex
	closed bool
}

// ListPorts lists the available MIDI output devices.
func ListPorts(log contracts.Logger) ([]contracts.PortInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		log.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	ports := make([]contracts.PortInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			log.Warn("Failed to get information for MIDI output device", log.Field().Int("deviceID", int(i)))
			continue
		}
		ports = append(ports, contracts.PortInfo{
			Index: int(i),
			Name:  windows.UTF16ToString(caps.szPname[:]),
		})
	}
	return ports, nil
}

// NewTransport opens the output device at config.DeviceID.
func NewTransport(log contracts.Logger, config contracts.VirtualPortConfig) (contracts.Transport, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	if config.DeviceID < 0 || config.DeviceID >= int(uint32(r0)) {
		log.Error(ErrInvalidMIDIDevice.Error(), log.Field().Int("deviceID", config.DeviceID))
		return nil, fmt.Errorf("%w: %d", ErrInvalidMIDIDevice, config.DeviceID)
	}

	t := &Transport{logger: log}
	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&t.handle)),
		uintptr(config.DeviceID),
		0,
		0,
		CALLBACK_NULL,
	)
	if r1 != 0 {
		log.Error(ErrOpenDevice.Error(), log.Field().Int("deviceID", config.DeviceID), log.Field().Error("error", err))
		return nil, fmt.Errorf("%w %d: mmresult %d", ErrOpenDevice, config.DeviceID, r1)
	}

	log.Info("MIDI output device connected", log.Field().Int("deviceID", config.DeviceID))
	return t, nil
}

// Transmit sends a one to three byte channel message.
func (t *Transport) Transmit(msg []byte) error {
	if len(msg) == 0 || len(msg) > 3 {
		return fmt.Errorf("%w: got %d bytes", ErrShortMessageOnly, len(msg))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return contracts.ErrTransportClosed
	}

	r1, _, _ := procMidiOutShortMsg.Call(uintptr(t.handle), uintptr(packShortMessage(msg)))
	if r1 != 0 {
		return fmt.Errorf("midiOutShortMsg failed: mmresult %d", r1)
	}
	return nil
}

// packShortMessage lays out status and data bytes little-endian in a DWORD.
func packShortMessage(msg []byte) uint32 {
	var packed uint32
	for i, b := range msg {
		packed |= uint32(b) << (8 * i)
	}
	return packed
}

// Close silences and releases the device. Calling it again is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	procMidiOutReset.Call(uintptr(t.handle))
	r1, _, err := procMidiOutClose.Call(uintptr(t.handle))
	if r1 != 0 {
		t.logger.Error("Failed to close MIDI output device", t.logger.Field().Error("error", err))
		return fmt.Errorf("midiOutClose failed: mmresult %d", r1)
	}
	t.handle = 0
	t.logger.Info("MIDI output device closed")
	return nil
}

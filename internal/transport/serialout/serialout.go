// Package serialout writes engine output to a serial line, for MIDI DIN
// interfaces and serial-to-MIDI bridges.
package serialout

import (
	"fmt"
	"io"
	"sync"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"go.bug.st/serial"
)

// MIDIBaudRate is the MIDI 1.0 DIN line rate.
const MIDIBaudRate = 31250

// Transport writes raw message bytes to a serial port.
type Transport struct {
	logger contracts.Logger
	name   string
	port   io.WriteCloser
	mu     sync.Mutex
	closed bool
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// Open opens the named serial port at baudRate, 8N1. A baudRate of 0 selects MIDIBaudRate.
func Open(log contracts.Logger, name string, baudRate int) (*Transport, error) {
	if baudRate == 0 {
		baudRate = MIDIBaudRate
	}
	if baudRate < 0 {
		return nil, fmt.Errorf("%w: baud rate %d", contracts.ErrInvalidArgument, baudRate)
	}

	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		log.Error("Failed to open serial port",
			log.Field().String("port", name),
			log.Field().Error("error", err))
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}

	log.Info("Serial MIDI port opened",
		log.Field().String("port", name),
		log.Field().Int("baudRate", baudRate))
	return newTransport(log, name, port), nil
}

func newTransport(log contracts.Logger, name string, port io.WriteCloser) *Transport {
	return &Transport{logger: log, name: name, port: port}
}

// Transmit writes msg in full.
func (t *Transport) Transmit(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return contracts.ErrTransportClosed
	}
	for len(msg) > 0 {
		n, err := t.port.Write(msg)
		if err != nil {
			return fmt.Errorf("write to %s: %w", t.name, err)
		}
		if n == 0 {
			return fmt.Errorf("write to %s: %w", t.name, io.ErrShortWrite)
		}
		msg = msg[n:]
	}
	return nil
}

// Close closes the port. Calling it again is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.name, err)
	}
	t.logger.Info("Serial MIDI port closed", t.logger.Field().String("port", t.name))
	return nil
}

// Package portout sends engine output to a gomidi driver output port.
//
// The package does not register a driver. Programs blank-import one, for
// example gitlab.com/gomidi/midi/v2/drivers/rtmididrv, before opening a port.
package portout

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// ErrPortNotFound is returned when no output port matches the requested name or index.
var ErrPortNotFound = errors.New("MIDI output port not found")

// port is the subset of drivers.Out the transport drives.
type port interface {
	Open() error
	Close() error
	IsOpen() bool
	String() string
	Send(data []byte) error
}

// Transport writes messages to one output port.
type Transport struct {
	logger contracts.Logger
	out    port
	mu     sync.Mutex
	closed bool
}

// ListPorts lists the output ports of the registered driver.
func ListPorts() []contracts.PortInfo {
	outs := midi.GetOutPorts()
	ports := make([]contracts.PortInfo, len(outs))
	for i, out := range outs {
		ports[i] = contracts.PortInfo{Index: out.Number(), Name: out.String()}
	}
	return ports
}

// OpenByName opens the first output port whose name contains name.
func OpenByName(log contracts.Logger, name string) (*Transport, error) {
	for _, out := range midi.GetOutPorts() {
		if strings.Contains(out.String(), name) {
			return open(log, out)
		}
	}
	log.Error(ErrPortNotFound.Error(), log.Field().String("name", name))
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

// OpenByIndex opens the output port at index in the driver's port list.
func OpenByIndex(log contracts.Logger, index int) (*Transport, error) {
	out, err := midi.OutPort(index)
	if err != nil {
		log.Error(ErrPortNotFound.Error(), log.Field().Int("index", index), log.Field().Error("error", err))
		return nil, fmt.Errorf("%w: index %d: %v", ErrPortNotFound, index, err)
	}
	return open(log, out)
}

func open(log contracts.Logger, out port) (*Transport, error) {
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			log.Error("Failed to open MIDI output port",
				log.Field().String("port", out.String()),
				log.Field().Error("error", err))
			return nil, fmt.Errorf("open port %q: %w", out.String(), err)
		}
	}
	log.Info("MIDI output port opened", log.Field().String("port", out.String()))
	return &Transport{logger: log, out: out}, nil
}

// Transmit sends msg to the port.
func (t *Transport) Transmit(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return contracts.ErrTransportClosed
	}
	if err := t.out.Send(msg); err != nil {
		return fmt.Errorf("send to %q: %w", t.out.String(), err)
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
	if err := t.out.Close(); err != nil {
		return fmt.Errorf("close port %q: %w", t.out.String(), err)
	}
	t.logger.Info("MIDI output port closed", t.logger.Field().String("port", t.out.String()))
	return nil
}

//go:build darwin
// +build darwin

// Package mididarwin publishes engine output as a CoreMIDI virtual source.
package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for CoreMIDI setup issues.
var (
	ErrCreateClient = errors.New("error creating CoreMIDI client")
	ErrCreateSource = errors.New("error creating virtual source")
)

// Transport delivers messages to every receiver connected to a virtual source.
// The source appears to other applications under VirtualPortConfig.SourceName.
type Transport struct {
	logger contracts.Logger
	client coremidi.Client // CoreMIDI client owning the source.
	source coremidi.Source // Virtual source endpoint.
	mu     sync.Mutex      // Guards closed and serializes packet delivery.
	closed bool
}

// NewTransport registers a CoreMIDI client and creates its virtual source.
func NewTransport(log contracts.Logger, config contracts.VirtualPortConfig) (contracts.Transport, error) {
	client, err := coremidi.NewClient(config.ClientName)
	if err != nil {
		log.Error(ErrCreateClient.Error(), log.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateClient, err)
	}

	source, err := coremidi.NewSource(client, config.SourceName)
	if err != nil {
		log.Error(ErrCreateSource.Error(), log.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateSource, err)
	}

	log.Info("CoreMIDI virtual source created",
		log.Field().String("client", config.ClientName),
		log.Field().String("source", config.SourceName))

	return &Transport{
		logger: log,
		client: client,
		source: source,
	}, nil
}

// Transmit hands msg to the source's receivers with an immediate timestamp.
func (t *Transport) Transmit(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return contracts.ErrTransportClosed
	}

	packet := coremidi.NewPacket(msg, 0)
	if err := packet.Received(&t.source); err != nil {
		return fmt.Errorf("deliver packet to virtual source: %w", err)
	}
	return nil
}

// Close stops delivery. The source stays registered until the process exits.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		t.logger.Info("CoreMIDI transport closed")
	}
	return nil
}

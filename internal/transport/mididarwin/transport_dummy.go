//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// NewTransport reports that CoreMIDI is not available on this platform.
func NewTransport(log contracts.Logger, _ contracts.VirtualPortConfig) (contracts.Transport, error) {
	log.Warn("CoreMIDI transport requested on non-macOS system")
	return nil, fmt.Errorf("%w: CoreMIDI requires macOS", contracts.ErrUnsupportedOS)
}

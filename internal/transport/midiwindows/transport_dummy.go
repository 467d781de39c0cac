//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// NewTransport reports that winmm is not available on this platform.
func NewTransport(log contracts.Logger, _ contracts.VirtualPortConfig) (contracts.Transport, error) {
	log.Warn("winmm transport requested on non-Windows system")
	return nil, fmt.Errorf("%w: winmm requires Windows", contracts.ErrUnsupportedOS)
}

// ListPorts reports that winmm is not available on this platform.
func ListPorts(log contracts.Logger) ([]contracts.PortInfo, error) {
	log.Warn("ListPorts called on non-Windows system")
	return nil, fmt.Errorf("%w: winmm requires Windows", contracts.ErrUnsupportedOS)
}

package contracts

import "time"

// Transport delivers encoded MIDI messages to downstream software.
type Transport interface {
	Transmit(msg []byte) error // Sends one complete MIDI message; called once per encoded message.
	Close() error              // Releases the underlying port or file.
}

// Scheduler runs functions after a delay without blocking the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) // Runs fn once, d from now.
	Stop()                                // Discards pending functions and waits for running ones.
}

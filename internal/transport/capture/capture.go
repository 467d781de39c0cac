// Package capture provides an in-memory transport that records every
// message, for tests and dry runs.
package capture

import (
	"sync"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// Transport records transmitted messages in order.
type Transport struct {
	mu     sync.Mutex
	msgs   []midi.Message
	fail   error
	closed bool
}

// New returns an empty capture transport.
func New() *Transport {
	return &Transport{}
}

// Transmit records a copy of msg.
func (t *Transport) Transmit(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return contracts.ErrTransportClosed
	}
	if t.fail != nil {
		return t.fail
	}
	t.msgs = append(t.msgs, midi.Message(append([]byte(nil), msg...)))
	return nil
}

// FailWith makes subsequent Transmit calls return err. A nil err restores
// normal recording.
func (t *Transport) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = err
}

// Messages returns the recorded messages.
func (t *Transport) Messages() []midi.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]midi.Message(nil), t.msgs...)
}

// Take returns the recorded messages and forgets them.
func (t *Transport) Take() []midi.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := t.msgs
	t.msgs = nil
	return msgs
}

// Strings returns the recorded messages in gomidi's text form, one per message.
func (t *Transport) Strings() []string {
	msgs := t.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.String()
	}
	return out
}

// Close marks the transport closed. Calling it again is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

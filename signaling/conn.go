package signaling

import "context"

// Conn is the collaborator contract for the signaling channel (spec
// §6.3): accept, receive a text frame, send a text frame, close. A
// gorilla/websocket connection satisfies this through wsapi's adapter;
// tests satisfy it with an in-memory fake.
type Conn interface {
	// Accept completes the handshake if the transport requires an
	// explicit step; implementations where the transport auto-accepts
	// (e.g. an already-upgraded websocket) may no-op.
	Accept(ctx context.Context) error

	// ReceiveText blocks for the next text frame. It returns an error
	// on any I/O failure or on connection close.
	ReceiveText(ctx context.Context) (string, error)

	// SendText writes a single text frame. Implementations must allow
	// only one writer at a time (gorilla/websocket requires this);
	// callers serialize through a single goroutine.
	SendText(ctx context.Context, data string) error

	// Close closes the channel. Calling Close on an already-closed
	// channel must not return an error the caller needs to treat as
	// fatal.
	Close() error
}

// internal/protocol/errors.go
package protocol

import "errors"

var (
	// ErrMalformedPacket covers buffers with the wrong length, framing or an unknown type.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrProtocolViolation covers recognized packets whose payload is inconsistent.
	ErrProtocolViolation = errors.New("protocol violation")
)

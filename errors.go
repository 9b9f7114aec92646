// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"errors"

	"github.com/wiremq/client/packets"
)

var (
	ErrSessionClosed     = errors.New("session closed")                                    // the session has been stopped and accepts no further operations
	ErrCancelled         = errors.New("exchange cancelled")                                // the session ended before the acknowledgement arrived
	ErrProtocolViolation = errors.New("protocol violation")                                // the server sent a frame which is illegal for its role
	ErrKeepaliveTimeout  = errors.New("no ping response within keepalive interval")        // the server did not answer a ping request in time
	ErrConnackTimeout    = errors.New("no connack received before context cancellation")   // connection establishment was abandoned
)

// ConnectionError is returned when the server refuses a connection with a
// non-zero CONNACK return code.
type ConnectionError struct {
	Code byte
}

// Error renders the specification reason for the return code.
func (e *ConnectionError) Error() string {
	return packets.ConnackReason(e.Code)
}

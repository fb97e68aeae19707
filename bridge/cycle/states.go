// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cycle

import "errors"

// State of the websocket connection lifecycle.
//
// * StateConnecting - initial state of a connect invocation. The
// application task will be run with the connection scope and a connect
// event.
// * StateHandshake - the connect event has been delivered and the
// application responds by accepting or rejecting the connection. A
// rejection produces a 403 result and moves the lifecycle to StateClosed.
// * StateResponse - handshake accepted. Data received in a gateway message
// invocation is delivered to the application as a receive event.
// * StateDisconnecting - the client connection is gone; a disconnect event
// is delivered and the lifecycle ends in StateClosed.
// * StateClosed - the application has closed the connection, either in
// response to a disconnect event or by rejecting the handshake.
type State int

const (
	StateConnecting State = iota
	StateHandshake
	StateResponse
	StateDisconnecting
	StateClosed
)

var stateNames = map[State]string{
	StateConnecting:    "Connecting",
	StateHandshake:     "Handshake",
	StateResponse:      "Response",
	StateDisconnecting: "Disconnecting",
	StateClosed:        "Closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ErrNotAllowed returned on illegal state transition
var ErrNotAllowed = errors.New("StateTransitionNotAllowed")

// transition moves the lifecycle strictly forward. States are ordered, and
// skipping intermediate states is legal (StateClosed is reachable directly
// from StateHandshake on rejection); moving backward or standing still is
// not.
func (c *Cycle) transition(to State) error {
	if to <= c.state {
		return ErrNotAllowed
	}
	c.state = to
	return nil
}

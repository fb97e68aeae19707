// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package interop

import (
	"context"
	"errors"

	"github.com/wsbridge/wsbridge/bridge/events"
)

// ReceiveFunc yields the next protocol event addressed to the application,
// suspending the caller until one is available or ctx is done. Within a
// single invocation exactly one event is ever delivered; a second call
// suspends until the host deadline releases it.
type ReceiveFunc func(ctx context.Context) (events.Event, error)

// SendFunc enqueues one protocol event originated by the application.
type SendFunc func(ctx context.Context, ev events.Event) error

// Application is the three-argument application boundary. Serve runs the
// application logic for one invocation and returns when its turn for the
// delivered event is complete. Because each invocation carries exactly one
// frame, a well-behaved application handles the single event it receives
// and returns rather than looping on receive.
//
// Serve signals its exit path through the returned error:
// nil for a completed turn, ErrConnectionClosed when the incoming event
// addresses a connection the application considers closed,
// ErrUnexpectedEvent when the event is invalid for the application's
// phase, and any other error for an application fault.
type Application interface {
	Serve(ctx context.Context, scope RequestScope, receive ReceiveFunc, send SendFunc) error
}

// ApplicationFunc adapts a plain function to the Application interface.
type ApplicationFunc func(ctx context.Context, scope RequestScope, receive ReceiveFunc, send SendFunc) error

// Serve calls f.
func (f ApplicationFunc) Serve(ctx context.Context, scope RequestScope, receive ReceiveFunc, send SendFunc) error {
	return f(ctx, scope, receive, send)
}

// ErrConnectionClosed returned by an application that treats the delivered
// event as addressed to an already closed connection, or that rejects the
// handshake. Mapped to a 403 result.
var ErrConnectionClosed = errors.New("WebSocketClosed")

// ErrUnexpectedEvent returned by an application that was delivered an event
// type invalid for its current phase. Mapped to a 500 result.
var ErrUnexpectedEvent = errors.New("UnexpectedEvent")

// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package echo provides a minimal application used by the local emulator
// and the example Lambda entrypoint. It accepts every handshake,
// negotiating the client's first subprotocol when one is offered, and
// echoes each received frame back.
package echo

import (
	"context"

	"github.com/wsbridge/wsbridge/bridge/events"
	"github.com/wsbridge/wsbridge/bridge/interop"
)

// New returns the echo application. Each invocation delivers one event;
// the application handles it and completes its turn.
func New() interop.Application {
	return interop.ApplicationFunc(serve)
}

func serve(ctx context.Context, scope interop.RequestScope, receive interop.ReceiveFunc, send interop.SendFunc) error {
	ev, err := receive(ctx)
	if err != nil {
		return err
	}

	switch ev.Type {
	case events.TypeConnect:
		subprotocol := ""
		if len(scope.Subprotocols) > 0 {
			subprotocol = scope.Subprotocols[0]
		}
		return send(ctx, events.Accept(subprotocol))
	case events.TypeReceive:
		return send(ctx, events.Send(ev.Payload()))
	case events.TypeDisconnect:
		return send(ctx, events.Close(ev.Code))
	default:
		return interop.ErrUnexpectedEvent
	}
}

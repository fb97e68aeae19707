// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cycle implements the per-invocation lifecycle controller that
// adapts a message-oriented gateway transport to a bidirectional websocket
// application protocol. Each gateway invocation carries exactly one frame;
// the controller fakes one turn of a persistent session around it.
package cycle

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/wsbridge/wsbridge/bridge/channel"
	"github.com/wsbridge/wsbridge/bridge/events"
	"github.com/wsbridge/wsbridge/bridge/interop"
)

// disconnectCode sent to the application when the gateway reports the
// client gone without a close code of its own.
const disconnectCode = 1000

// Cycle drives one application task through the websocket connection
// lifecycle for a single gateway invocation. A Cycle is single use: it is
// created for one ConnectionRequest, produces exactly one CycleResult, and
// is discarded when the invocation ends.
//
// The initiating protocol event is synthesized by the cycle itself when
// Run is called, matching the invocation's message type. Upstream
// collaborators must not enqueue it.
type Cycle struct {
	request interop.ConnectionRequest
	state   State

	// inbound carries controller-originated events to the application,
	// outbound carries application-originated events back. Each side holds
	// exactly one role per channel and the roles never swap.
	inbound  *channel.Channel
	outbound *channel.Channel

	captureBody bool
	sent        []events.Event
	result      interop.CycleResult
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithBodyCapture copies the payloads of captured send events into the
// result body, in emission order. Most gateway transports cannot push
// frames inside the HTTP response, so this is off unless the integration
// layer opts in.
func WithBodyCapture() Option {
	return func(c *Cycle) { c.captureBody = true }
}

// New returns a Cycle for one gateway invocation. The initial lifecycle
// state follows the message type: connect starts in StateConnecting,
// message in StateResponse, disconnect in StateDisconnecting.
func New(request interop.ConnectionRequest, opts ...Option) *Cycle {
	c := &Cycle{
		request:  request,
		state:    initialState(request.MessageType),
		inbound:  channel.New(),
		outbound: channel.New(),
		result:   interop.CycleResult{Status: http.StatusOK},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func initialState(mt interop.MessageType) State {
	switch mt {
	case interop.MessageTypeConnect:
		return StateConnecting
	case interop.MessageTypeDisconnect:
		return StateDisconnecting
	default:
		return StateResponse
	}
}

// State reports the lifecycle state. Not synchronized; callers read it
// only after Run has returned.
func (c *Cycle) State() State {
	return c.state
}

// Sent returns the data events the application emitted during Run, in
// emission order.
func (c *Cycle) Sent() []events.Event {
	return c.sent
}

// Run executes the application task for this invocation and blocks until
// the task completes, a terminal protocol event is observed, or ctx is
// done. Failures never propagate: every exit path is mapped onto the
// result status. The host environment owns the deadline on ctx; without
// one, an application that suspends on a second receive would wait
// forever.
func (c *Cycle) Run(ctx context.Context, app interop.Application) interop.CycleResult {
	log.WithFields(log.Fields{
		"connectionID": c.request.ConnectionID,
		"messageType":  c.request.MessageType,
	}).Debug("websocket cycle starting")

	appCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.inbound.Send(c.initialEvent())

	var taskErr error
	taskDone := make(chan struct{})
	go func() {
		taskErr = c.runApp(appCtx, app)
		close(taskDone)
	}()

	// The wait on the outbound channel ends when the task returns or the
	// host deadline fires. Events enqueued before either are still drained
	// first: the channel delivers queued events before reporting
	// cancellation.
	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()
	go func() {
		<-taskDone
		stopWaiting()
	}()

	for {
		ev, err := c.outbound.Receive(waitCtx)
		if err != nil {
			break
		}
		if terminal := c.handleOutbound(ev); terminal {
			// Release a task still suspended on a second receive before
			// returning the already decided result.
			cancel()
			<-taskDone
			return c.result
		}
	}

	select {
	case <-taskDone:
		c.finish(taskErr)
	default:
		// Host deadline fired before the task returned. Force the task out
		// of any suspension and report a failure.
		log.WithField("connectionID", c.request.ConnectionID).Warn("websocket cycle deadline exceeded")
		cancel()
		<-taskDone
		c.result.Status = http.StatusInternalServerError
	}
	return c.result
}

// initialEvent synthesizes the single inbound event of this invocation.
func (c *Cycle) initialEvent() events.Event {
	switch c.request.MessageType {
	case interop.MessageTypeConnect:
		return events.Connect()
	case interop.MessageTypeDisconnect:
		return events.Disconnect(disconnectCode)
	default:
		return events.Receive(c.request.Body)
	}
}

// runApp calls the application with the connection scope and the two
// channel capabilities.
func (c *Cycle) runApp(ctx context.Context, app interop.Application) error {
	receive := interop.ReceiveFunc(func(ctx context.Context) (events.Event, error) {
		return c.inbound.Receive(ctx)
	})
	send := interop.SendFunc(func(ctx context.Context, ev events.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.outbound.Send(ev)
		return nil
	})
	return app.Serve(ctx, c.request.Scope, receive, send)
}

// handleOutbound applies one application-originated event to the lifecycle
// and reports whether it terminates the invocation.
func (c *Cycle) handleOutbound(ev events.Event) bool {
	switch c.state {
	case StateConnecting, StateHandshake:
		switch ev.Type {
		case events.TypeAccept:
			if err := c.transition(StateHandshake); err != nil {
				return c.violation(ev)
			}
			c.result.Status = http.StatusOK
			if ev.Subprotocol != "" {
				c.result.Headers = append(c.result.Headers, interop.Header{
					Name:  "Sec-WebSocket-Protocol",
					Value: ev.Subprotocol,
				})
			}
			return true
		case events.TypeClose:
			if err := c.transition(StateClosed); err != nil {
				return c.violation(ev)
			}
			c.result.Status = http.StatusForbidden
			return true
		}
		return c.violation(ev)

	case StateResponse:
		switch ev.Type {
		case events.TypeSend:
			c.sent = append(c.sent, ev)
			if c.captureBody {
				c.result.Body = append(c.result.Body, ev.Payload()...)
			}
			return false
		case events.TypeClose:
			// Premature close: the session ended before the turn completed.
			if err := c.transition(StateClosed); err != nil {
				return c.violation(ev)
			}
			c.result.Status = http.StatusForbidden
			return true
		}
		return c.violation(ev)

	case StateDisconnecting:
		if ev.Type == events.TypeClose {
			if err := c.transition(StateClosed); err != nil {
				return c.violation(ev)
			}
			// The result still waits for the task to complete its turn.
			return false
		}
		return c.violation(ev)
	}
	return c.violation(ev)
}

// violation records a protocol violation and terminates the invocation
// with a 500 result.
func (c *Cycle) violation(ev events.Event) bool {
	log.WithFields(log.Fields{
		"connectionID": c.request.ConnectionID,
		"event":        ev.Type,
		"state":        c.state,
	}).Warn("protocol violation in websocket cycle")
	c.result.Status = http.StatusInternalServerError
	return true
}

// finish maps the application task's exit path onto the result once no
// terminal event decided it earlier.
func (c *Cycle) finish(err error) {
	switch {
	case err == nil:
		if c.request.MessageType == interop.MessageTypeDisconnect && c.state != StateClosed {
			_ = c.transition(StateClosed)
		}
	case errors.Is(err, interop.ErrConnectionClosed):
		c.result.Status = http.StatusForbidden
		if c.state != StateClosed {
			_ = c.transition(StateClosed)
		}
	case errors.Is(err, interop.ErrUnexpectedEvent):
		c.result.Status = http.StatusInternalServerError
	default:
		log.WithError(err).Error("error in websocket application")
		c.result.Status = http.StatusInternalServerError
	}
}

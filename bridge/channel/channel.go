// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package channel provides the ordered, unbounded event queue pairing the
// lifecycle controller with the application task. A Channel carries events
// in one direction only: per instance one side holds the producer role and
// the other side the consumer role, and the roles never swap during an
// invocation.
package channel

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/wsbridge/wsbridge/bridge/events"
)

// Channel is a strict FIFO of protocol events with no capacity bound.
// Safe for one producer and one consumer; not safe for multiple concurrent
// readers.
type Channel struct {
	mu   sync.Mutex
	cond *sync.Cond
	q    *queue.Queue
}

// New returns an empty Channel.
func New() *Channel {
	c := &Channel{q: queue.New()}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send enqueues ev and resumes a reader suspended in Receive. Send never
// blocks.
func (c *Channel) Send(ev events.Event) {
	c.mu.Lock()
	c.q.Add(ev)
	c.mu.Unlock()
	c.cond.Signal()
}

// Receive dequeues the oldest event, suspending the caller until one is
// available or ctx is done. Queued events are always delivered before a
// cancellation is reported, so a producer that finished its turn can rely
// on the consumer draining everything it enqueued.
func (c *Channel) Receive(ctx context.Context) (events.Event, error) {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.q.Length() == 0 {
		if err := ctx.Err(); err != nil {
			return events.Event{}, err
		}
		c.cond.Wait()
	}
	return c.q.Remove().(events.Event), nil
}

// Len reports the number of queued events.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Length()
}

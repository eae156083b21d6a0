// Package ipc implements the inter-process Channel: an unbounded FIFO of
// Values shared between processes. There is no back-pressure and no
// blocking on an empty channel — Recv returns immediately and the
// caller's scheduler decides whether and when to retry.
package ipc

import (
	"container/list"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/sandia-minimega/alm/value"
)

// Channel is a mutex-protected FIFO of Values, identified by an edi.Chd
// and wrapped in an edi.Ed by its owning VM.
type Channel struct {
	mu       deadlock.Mutex
	messages *list.List
}

// New returns an empty channel.
func New() *Channel {
	return &Channel{messages: list.New()}
}

// Send pushes v onto the tail of the queue.
func (c *Channel) Send(v value.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages.PushBack(v)
}

// Recv pops a value from the head of the queue, if any. A single
// producer's sends are delivered in send order; across producers,
// ordering is unspecified beyond each send being atomic.
func (c *Channel) Recv() (value.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	front := c.messages.Front()
	if front == nil {
		return value.Nil(), false
	}
	c.messages.Remove(front)
	return front.Value.(value.Value), true
}

// Len reports the number of messages currently queued. Intended for
// tests and diagnostics, not for scheduling decisions (it is stale the
// instant the lock is released).
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages.Len()
}

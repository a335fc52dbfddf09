package transport

import (
	"context"
	"sync"
)

// Memory is one end of an in-memory message pipe. It preserves message
// boundaries and order like the WebSocket transport.
type Memory struct {
	in   chan []byte
	peer *Memory

	closed   chan struct{} // shared by both ends
	closeAll func()
}

// Pipe returns two connected ends. Closing either closes both.
func Pipe() (client, server *Memory) {
	closed := make(chan struct{})
	var once sync.Once
	closeAll := func() { once.Do(func() { close(closed) }) }

	client = &Memory{in: make(chan []byte, 256), closed: closed, closeAll: closeAll}
	server = &Memory{in: make(chan []byte, 256), closed: closed, closeAll: closeAll}
	client.peer = server
	server.peer = client
	return client, server
}

// Send delivers a copy of msg to the peer.
func (m *Memory) Send(ctx context.Context, msg []byte) error {
	select {
	case <-m.closed:
		return ErrClosed
	default:
	}

	cp := append([]byte(nil), msg...)
	select {
	case m.peer.in <- cp:
		return nil
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message sent by the peer. Messages already queued
// are still delivered after Close.
func (m *Memory) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-m.in:
		return msg, nil
	default:
	}

	select {
	case msg := <-m.in:
		return msg, nil
	case <-m.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes both ends.
func (m *Memory) Close() error {
	m.closeAll()
	return nil
}

// Closed is closed once either end is closed.
func (m *Memory) Closed() <-chan struct{} {
	return m.closed
}

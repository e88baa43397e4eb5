package entities

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// FakeConn is an in-memory Conn used by tests to drive a participant
// without a real websocket. Inbound frames are queued on a channel;
// closing the connection unblocks the read pump.
type FakeConn struct {
	Inbound chan []byte

	mutex  sync.Mutex
	closed bool
}

func NewFakeConn() *FakeConn {
	return &FakeConn{Inbound: make(chan []byte, 64)}
}

func (conn *FakeConn) ReadMessage() (int, []byte, error) {
	message, ok := <-conn.Inbound
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.TextMessage, message, nil
}

func (conn *FakeConn) WriteMessage(messageType int, data []byte) error {
	return nil
}

func (conn *FakeConn) Close() error {
	conn.mutex.Lock()
	defer conn.mutex.Unlock()

	if !conn.closed {
		close(conn.Inbound)
		conn.closed = true
	}

	return nil
}

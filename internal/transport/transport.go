// Package transport carries the analysis protocol over a WebSocket.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TransportError is a connection failure: Op is "dial", "read", "write" or
// "close".
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Event is one thing that happened on a connection: a text payload, or its
// close. Closed events are the last on the channel.
type Event struct {
	Payload []byte
	Closed  bool
	Err     error // cause of the close; nil for a normal close
}

// Conn is an open WebSocket connection. Inbound messages are delivered on
// Events in arrival order by a reader goroutine.
type Conn struct {
	ws     *websocket.Conn
	url    string
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Dial opens url. A positive timeout bounds the handshake.
func Dial(ctx context.Context, url string, timeout time.Duration) (*Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	d := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	ws, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (HTTP %s)", err, resp.Status)
		}
		return nil, &TransportError{Op: "dial", URL: url, Err: err}
	}
	c := &Conn{
		ws:     ws,
		url:    url,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the inbound event channel. It is closed after the Closed
// event.
func (c *Conn) Events() <-chan Event { return c.events }

// Send writes one text frame.
func (c *Conn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return &TransportError{Op: "write", URL: c.url, Err: err}
	}
	return nil
}

// Close sends a close frame and tears the connection down. It is safe to
// call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		if err := c.ws.Close(); err != nil {
			c.closeErr = &TransportError{Op: "close", URL: c.url, Err: err}
		}
	})
	return c.closeErr
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.emit(Event{Closed: true, Err: closeCause(c.url, err)})
			return
		}
		if !c.emit(Event{Payload: data}) {
			return
		}
	}
}

// emit delivers ev unless the connection was closed locally; a Closed event
// is always delivered when the reader can.
func (c *Conn) emit(ev Event) bool {
	if ev.Closed {
		select {
		case c.events <- ev:
		case <-c.done:
		}
		return false
	}
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func closeCause(url string, err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return &TransportError{Op: "read", URL: url, Err: err}
}

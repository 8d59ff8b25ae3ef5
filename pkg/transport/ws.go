package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// frame is the JSON message exchanged with the host bridge. Requests carry
// id+command, responses echo the id, events carry event+payload.
type frame struct {
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSTransport is a Transport over a single websocket connection to the host.
type WSTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan frame
	listeners map[string][]*listener
	closed    chan struct{}
	closeOnce sync.Once
}

type listener struct {
	fn func(json.RawMessage)
}

// Dial connects to the host bridge at the given websocket URL.
func Dial(ctx context.Context, url string) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial host bridge %s", url)
	}

	t := &WSTransport{
		conn:      conn,
		pending:   make(map[string]chan frame),
		listeners: make(map[string][]*listener),
		closed:    make(chan struct{}),
	}

	conn.SetReadLimit(8 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.readLoop()
	go t.pingLoop()

	return t, nil
}

// Call sends a command frame and waits for its response or ctx cancellation.
func (t *WSTransport) Call(ctx context.Context, command string, args any) (json.RawMessage, error) {
	select {
	case <-t.closed:
		return nil, ErrClosed
	default:
	}

	var rawArgs json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal args for %s", command)
		}
		rawArgs = b
	}

	id := uuid.New().String()
	ch := make(chan frame, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.write(frame{ID: id, Command: command, Args: rawArgs}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, ErrClosed
	case f := <-ch:
		if f.Error != "" {
			return nil, &CallError{Command: command, Reason: f.Error}
		}
		return f.Result, nil
	}
}

// Subscribe registers a handler for a named host event.
func (t *WSTransport) Subscribe(event string, fn func(json.RawMessage)) func() {
	l := &listener{fn: fn}

	t.mu.Lock()
	t.listeners[event] = append(t.listeners[event], l)
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		ls := t.listeners[event]
		for i, cur := range ls {
			if cur == l {
				t.listeners[event] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Close tears down the connection and fails all pending calls.
func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.conn.Close()
	})
	return nil
}

func (t *WSTransport) write(f frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteJSON(f); err != nil {
		return errors.Wrap(err, "write host frame")
	}
	return nil
}

func (t *WSTransport) readLoop() {
	defer t.Close()

	for {
		var f frame
		if err := t.conn.ReadJSON(&f); err != nil {
			return
		}

		switch {
		case f.Event != "":
			t.dispatchEvent(f.Event, f.Payload)
		case f.ID != "":
			t.mu.Lock()
			ch := t.pending[f.ID]
			t.mu.Unlock()
			if ch != nil {
				ch <- f
			}
		}
	}
}

func (t *WSTransport) dispatchEvent(event string, payload json.RawMessage) {
	t.mu.Lock()
	ls := make([]*listener, len(t.listeners[event]))
	copy(ls, t.listeners[event])
	t.mu.Unlock()

	for _, l := range ls {
		l.fn(payload)
	}
}

func (t *WSTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				t.Close()
				return
			}
		}
	}
}

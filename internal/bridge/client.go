package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
)

// RemoteError is a handler failure relayed across the bridge.
type RemoteError struct {
	Channel string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge call on %s failed: %s", e.Channel, e.Message)
}

// StreamEvent is one delivery on a subscription. Done marks a clean end;
// Err, when non-nil, is terminal.
type StreamEvent struct {
	Payload json.RawMessage
	Done    bool
	Err     error
}

// Subscription is a live stream call. Events delivers chunks in order and is
// closed after the terminal event. Close cancels the stream host-side and
// unregisters immediately; no events are delivered after Close returns.
type Subscription struct {
	id      string
	channel string
	client  *Client

	events     chan StreamEvent
	done       chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once
}

func (s *Subscription) Events() <-chan StreamEvent { return s.events }

func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.client.dropSubscription(s.id)
		_ = s.client.writer.write(Frame{ID: s.id, Channel: s.channel, Kind: KindCancel})
	})
}

func (s *Subscription) deliver(ev StreamEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Subscription) finish(ev StreamEvent) {
	s.finishOnce.Do(func() {
		s.deliver(ev)
		s.closeOnce.Do(func() {
			close(s.done)
			s.client.dropSubscription(s.id)
		})
		close(s.events)
	})
}

// Client is the caller side of the bridge. Safe for concurrent use; replies
// and chunks are routed back to their calls by request id.
type Client struct {
	conn   net.Conn
	writer *connWriter

	mu      sync.Mutex
	pending map[string]chan Frame
	subs    map[string]*Subscription
	closed  bool
	readErr error
	doneCh  chan struct{}
}

func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		writer:  &connWriter{enc: json.NewEncoder(conn)},
		pending: make(map[string]chan Frame),
		subs:    make(map[string]*Subscription),
		doneCh:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to the host's unix socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial bridge socket: %w", err)
	}
	return NewClient(conn), nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Invoke performs a request/response call. The reply payload is unmarshalled
// into out when out is non-nil.
func (c *Client) Invoke(ctx context.Context, channel string, in, out any) error {
	payload, err := marshalPayload(in)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	reply := make(chan Frame, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("bridge client closed")
	}
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.writer.write(Frame{ID: id, Channel: channel, Kind: KindInvoke, Payload: payload}); err != nil {
		return fmt.Errorf("write invoke frame: %w", err)
	}

	select {
	case f := <-reply:
		if f.Kind == KindError {
			return &RemoteError{Channel: channel, Message: f.Error}
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(f.Payload, out)
	case <-c.doneCh:
		return c.connErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify performs a fire-and-forget call.
func (c *Client) Notify(channel string, in any) error {
	payload, err := marshalPayload(in)
	if err != nil {
		return err
	}
	return c.writer.write(Frame{ID: uuid.NewString(), Channel: channel, Kind: KindNotify, Payload: payload})
}

// Stream starts a stream call and returns a live subscription.
func (c *Client) Stream(ctx context.Context, channel string, in any) (*Subscription, error) {
	payload, err := marshalPayload(in)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		id:      uuid.NewString(),
		channel: channel,
		client:  c,
		events:  make(chan StreamEvent, 16),
		done:    make(chan struct{}),
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("bridge client closed")
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.writer.write(Frame{ID: sub.id, Channel: channel, Kind: KindStream, Payload: payload}); err != nil {
		c.dropSubscription(sub.id)
		return nil, fmt.Errorf("write stream frame: %w", err)
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

func (c *Client) dropSubscription(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *Client) connErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return errors.New("bridge connection closed")
}

func (c *Client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)
	for scanner.Scan() {
		var f Frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			continue
		}

		c.mu.Lock()
		reply, isPending := c.pending[f.ID]
		if isPending {
			delete(c.pending, f.ID)
		}
		sub := c.subs[f.ID]
		c.mu.Unlock()

		switch {
		case isPending:
			reply <- f
		case sub != nil:
			switch f.Kind {
			case KindChunk:
				sub.deliver(StreamEvent{Payload: f.Payload})
			case KindDone:
				sub.finish(StreamEvent{Done: true})
			case KindError:
				sub.finish(StreamEvent{Err: &RemoteError{Channel: sub.channel, Message: f.Error}, Done: true})
			}
		}
	}

	c.mu.Lock()
	c.readErr = scanner.Err()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	close(c.doneCh)
	for _, s := range subs {
		s.finish(StreamEvent{Err: c.connErr(), Done: true})
	}
}

func marshalPayload(in any) (json.RawMessage, error) {
	if in == nil {
		return nil, nil
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return payload, nil
}

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// InvokeHandler answers one request/response call. The returned value is
// marshalled into the reply payload.
type InvokeHandler func(ctx context.Context, payload json.RawMessage) (any, error)

// NotifyHandler consumes a fire-and-forget call. There is no reply.
type NotifyHandler func(ctx context.Context, payload json.RawMessage)

// StreamHandler produces an ordered sequence of events via emit. Returning
// nil ends the stream with a done frame; returning an error ends it with an
// error frame. ctx is cancelled when the caller closes its subscription.
type StreamHandler func(ctx context.Context, payload json.RawMessage, emit func(any) error) error

// Router maps channel names to handlers. Registration happens at startup;
// dispatch is concurrent after that.
type Router struct {
	mu       sync.RWMutex
	invokes  map[string]InvokeHandler
	notifies map[string]NotifyHandler
	streams  map[string]StreamHandler
}

func NewRouter() *Router {
	return &Router{
		invokes:  make(map[string]InvokeHandler),
		notifies: make(map[string]NotifyHandler),
		streams:  make(map[string]StreamHandler),
	}
}

func (r *Router) HandleInvoke(channel string, h InvokeHandler) {
	r.mu.Lock()
	r.invokes[channel] = h
	r.mu.Unlock()
}

func (r *Router) HandleNotify(channel string, h NotifyHandler) {
	r.mu.Lock()
	r.notifies[channel] = h
	r.mu.Unlock()
}

func (r *Router) HandleStream(channel string, h StreamHandler) {
	r.mu.Lock()
	r.streams[channel] = h
	r.mu.Unlock()
}

func (r *Router) invoke(channel string) (InvokeHandler, error) {
	r.mu.RLock()
	h, ok := r.invokes[channel]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no invoke handler for channel %q", channel)
	}
	return h, nil
}

func (r *Router) notify(channel string) (NotifyHandler, error) {
	r.mu.RLock()
	h, ok := r.notifies[channel]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no notify handler for channel %q", channel)
	}
	return h, nil
}

func (r *Router) stream(channel string) (StreamHandler, error) {
	r.mu.RLock()
	h, ok := r.streams[channel]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no stream handler for channel %q", channel)
	}
	return h, nil
}

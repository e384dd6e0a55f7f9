package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"deskmate/internal/metrics"
)

const maxFrameBytes = 8 << 20

// Server speaks the frame protocol over a local listener and dispatches to a
// Router. Each connection gets its own read loop; handlers run in their own
// goroutines so a slow invoke cannot stall the wire.
type Server struct {
	router *Router
	logger zerolog.Logger
}

func NewServer(router *Router, logger zerolog.Logger) *Server {
	return &Server{router: router, logger: logger}
}

// Serve accepts connections until ctx is cancelled or the listener closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.ServeConn(ctx, conn)
	}
}

// ServeConn runs the frame loop for one connection and returns when the
// connection closes or ctx is cancelled.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cw := &connWriter{enc: json.NewEncoder(conn)}
	streams := &streamSet{cancels: make(map[string]context.CancelFunc)}
	defer streams.cancelAll()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameBytes)
	for scanner.Scan() {
		var f Frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			s.logger.Warn().Err(err).Msg("bridge frame decode failed")
			continue
		}
		switch f.Kind {
		case KindInvoke:
			go s.runInvoke(ctx, cw, f)
		case KindNotify:
			go s.runNotify(ctx, f)
		case KindStream:
			streamCtx, streamCancel := context.WithCancel(ctx)
			streams.add(f.ID, streamCancel)
			go s.runStream(streamCtx, cw, streams, f)
		case KindCancel:
			streams.cancel(f.ID)
		default:
			s.logger.Warn().Str("kind", f.Kind).Str("channel", f.Channel).Msg("bridge frame with unknown kind")
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.logger.Debug().Err(err).Msg("bridge connection closed")
	}
}

func (s *Server) runInvoke(ctx context.Context, cw *connWriter, f Frame) {
	metrics.Global().BridgeInvokes.Inc()
	h, err := s.router.invoke(f.Channel)
	if err != nil {
		s.writeError(cw, f, err)
		return
	}
	out, err := h(ctx, f.Payload)
	if err != nil {
		s.writeError(cw, f, err)
		return
	}
	payload, err := json.Marshal(out)
	if err != nil {
		s.writeError(cw, f, err)
		return
	}
	if err := cw.write(Frame{ID: f.ID, Channel: f.Channel, Kind: KindResult, Payload: payload}); err != nil {
		s.logger.Debug().Err(err).Str("channel", f.Channel).Msg("bridge reply write failed")
	}
}

func (s *Server) runNotify(ctx context.Context, f Frame) {
	h, err := s.router.notify(f.Channel)
	if err != nil {
		s.logger.Warn().Err(err).Msg("bridge notify dropped")
		return
	}
	h(ctx, f.Payload)
}

func (s *Server) runStream(ctx context.Context, cw *connWriter, streams *streamSet, f Frame) {
	defer streams.remove(f.ID)
	metrics.Global().BridgeInvokes.Inc()

	h, err := s.router.stream(f.Channel)
	if err != nil {
		s.writeError(cw, f, err)
		return
	}

	emit := func(v any) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		metrics.Global().StreamChunks.Inc()
		return cw.write(Frame{ID: f.ID, Channel: f.Channel, Kind: KindChunk, Payload: payload})
	}

	if err := h(ctx, f.Payload, emit); err != nil {
		if ctx.Err() != nil {
			// The caller closed the subscription; no terminal frame to send.
			return
		}
		s.writeError(cw, f, err)
		return
	}
	if err := cw.write(Frame{ID: f.ID, Channel: f.Channel, Kind: KindDone}); err != nil {
		s.logger.Debug().Err(err).Str("channel", f.Channel).Msg("bridge done write failed")
	}
}

func (s *Server) writeError(cw *connWriter, f Frame, err error) {
	metrics.Global().BridgeErrors.Inc()
	if werr := cw.write(Frame{ID: f.ID, Channel: f.Channel, Kind: KindError, Error: err.Error()}); werr != nil {
		s.logger.Debug().Err(werr).Str("channel", f.Channel).Msg("bridge error write failed")
	}
}

// connWriter serializes frame writes; handlers reply concurrently.
type connWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *connWriter) write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(f)
}

type streamSet struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func (s *streamSet) add(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
}

func (s *streamSet) cancel(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *streamSet) remove(id string) {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *streamSet) cancelAll() {
	s.mu.Lock()
	for id, cancel := range s.cancels {
		delete(s.cancels, id)
		cancel()
	}
	s.mu.Unlock()
}

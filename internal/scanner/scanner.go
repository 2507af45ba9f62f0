// Package scanner adapts an external QR-decoder feed to the state machine.
// The capture device and the decoding itself live outside the process; this
// package only consumes decoded text and owns the session lifecycle.
package scanner

import (
	"context"

	"github.com/stockscan/stockscan/internal/obs"
)

// Handler consumes one decoded payload. Errors are already absorbed by the
// state machine, so the pump fires and forgets.
type Handler func(ctx context.Context, raw string)

// Source is a lazy, restartable feed of decoded text. Emit may be called
// zero or more times per capture session; Run returns once the session is
// torn down and must release the capture resource before returning.
type Source interface {
	Run(ctx context.Context, emit func(raw string)) error
}

// ChannelSource feeds decoded text pushed from elsewhere in the process,
// e.g. the HTTP scan intake. It satisfies Source.
type ChannelSource struct {
	ch chan string
}

// NewChannelSource creates a ChannelSource with the given buffer. Pushes
// beyond the buffer are dropped, matching a decoder that produces frames
// faster than they are consumed.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelSource{ch: make(chan string, buffer)}
}

// Push offers decoded text to the feed. It reports whether the text was
// accepted or dropped.
func (s *ChannelSource) Push(raw string) bool {
	select {
	case s.ch <- raw:
		return true
	default:
		return false
	}
}

// Run implements Source.
func (s *ChannelSource) Run(ctx context.Context, emit func(raw string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw := <-s.ch:
			emit(raw)
		}
	}
}

// Pump runs a Source and forwards every decoded payload to the handler.
// One Pump owns one capture session: cancelling the context tears the
// session down deterministically.
type Pump struct {
	src    Source
	handle Handler
}

// NewPump wires a source to a handler.
func NewPump(src Source, handle Handler) *Pump {
	return &Pump{src: src, handle: handle}
}

// Run blocks until the context is cancelled or the source fails. A context
// cancellation is a normal teardown and returns nil.
func (p *Pump) Run(ctx context.Context) error {
	obs.Logger.Info("scan_session_started")
	err := p.src.Run(ctx, func(raw string) {
		p.handle(ctx, raw)
	})
	obs.Logger.Info("scan_session_stopped")
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

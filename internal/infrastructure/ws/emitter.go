package ws

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

type subscriber struct {
	id uint64
	fn func(domain.Frame)
}

// emitter is the typed fan-out registry behind Client.On. Subscribers for a
// frame type run in registration order, followed by wildcard subscribers.
type emitter struct {
	log zerolog.Logger

	mu   sync.RWMutex
	next uint64
	subs map[string][]subscriber
}

func newEmitter(log zerolog.Logger) *emitter {
	return &emitter{log: log, subs: make(map[string][]subscriber)}
}

// on registers fn for frameType and returns its disposer. The disposer is
// safe to call more than once.
func (e *emitter) on(frameType string, fn func(domain.Frame)) func() {
	e.mu.Lock()
	e.next++
	id := e.next
	e.subs[frameType] = append(e.subs[frameType], subscriber{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		list := e.subs[frameType]
		for i, s := range list {
			if s.id == id {
				e.subs[frameType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// emit dispatches frame to its type subscribers, then to the wildcard
// channel. Each callback is isolated: a panic in one cannot suppress the rest.
func (e *emitter) emit(frame domain.Frame) {
	e.mu.RLock()
	typed := slices.Clone(e.subs[frame.Type])
	wild := slices.Clone(e.subs[domain.FrameAll])
	e.mu.RUnlock()

	for _, s := range typed {
		e.dispatch(s, frame)
	}
	for _, s := range wild {
		e.dispatch(s, frame)
	}
}

func (e *emitter) dispatch(s subscriber, frame domain.Frame) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().
				Interface("panic", r).
				Str("frame_type", frame.Type).
				Msg("frame subscriber panicked")
		}
	}()
	s.fn(frame)
}

package ws

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/core/domain"
)

func TestEmitter_RegistrationOrderAndWildcard(t *testing.T) {
	e := newEmitter(zerolog.Nop())

	var got []string
	e.on("notification", func(domain.Frame) { got = append(got, "first") })
	e.on("notification", func(domain.Frame) { got = append(got, "second") })
	e.on(domain.FrameAll, func(domain.Frame) { got = append(got, "wildcard") })

	e.emit(domain.Frame{Type: "notification"})

	want := []string{"first", "second", "wildcard"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestEmitter_DisposerRemovesOnlyItsSubscriber(t *testing.T) {
	e := newEmitter(zerolog.Nop())

	var first, second int
	unsub := e.on("x", func(domain.Frame) { first++ })
	e.on("x", func(domain.Frame) { second++ })

	unsub()
	unsub() // second call is harmless

	e.emit(domain.Frame{Type: "x"})
	if first != 0 || second != 1 {
		t.Fatalf("expected first=0 second=1, got first=%d second=%d", first, second)
	}
}

func TestEmitter_PanicInOneSubscriberDoesNotSuppressOthers(t *testing.T) {
	e := newEmitter(zerolog.Nop())

	var survived bool
	e.on("x", func(domain.Frame) { panic("boom") })
	e.on("x", func(domain.Frame) { survived = true })

	e.emit(domain.Frame{Type: "x"})
	if !survived {
		t.Fatalf("panic in one subscriber suppressed the next")
	}
}

func TestEmitter_UnmatchedTypeOnlyHitsWildcard(t *testing.T) {
	e := newEmitter(zerolog.Nop())

	var typed, wild int
	e.on("a", func(domain.Frame) { typed++ })
	e.on(domain.FrameAll, func(domain.Frame) { wild++ })

	e.emit(domain.Frame{Type: "b"})
	if typed != 0 || wild != 1 {
		t.Fatalf("expected typed=0 wild=1, got typed=%d wild=%d", typed, wild)
	}
}

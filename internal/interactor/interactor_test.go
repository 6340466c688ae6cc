package interactor

import (
	"testing"

	"github.com/loomrun/loom/pkg/events"
)

func TestSendEventDeliveredOnOutChannel(t *testing.T) {
	ic := NewChanInteractor(4)
	ic.DisplayText("hello")

	select {
	case e := <-ic.Out():
		if e.Kind != events.KindText || e.Text.Text != "hello" {
			t.Fatalf("unexpected event: %+v", e)
		}
	default:
		t.Fatal("expected an event on the outbound channel")
	}
}

func TestSendEventDropsWhenChannelFull(t *testing.T) {
	ic := NewChanInteractor(1)
	ic.DisplayText("first")
	ic.DisplayText("second") // channel capacity 1; must not block

	e := <-ic.Out()
	if e.Text.Text != "first" {
		t.Fatalf("expected the first event to survive, got %q", e.Text.Text)
	}
	select {
	case e2 := <-ic.Out():
		t.Fatalf("expected the second event dropped, got %+v", e2)
	default:
	}
}

// Subscribers see Inbound events in the order they were published.
func TestSubscribeDeliversInOrder(t *testing.T) {
	ic := NewChanInteractor(4)
	var got []string
	unsub := ic.Subscribe(func(e events.Event) {
		if e.Text != nil {
			got = append(got, e.Text.Text)
		}
	})
	defer unsub()

	ic.Inbound(events.NewText(1, "a"))
	ic.Inbound(events.NewText(2, "b"))
	ic.Inbound(events.NewText(3, "c"))

	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("expected in-order delivery [a b c], got %v", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ic := NewChanInteractor(4)
	count := 0
	unsub := ic.Subscribe(func(e events.Event) { count++ })
	ic.Inbound(events.NewText(1, "a"))
	unsub()
	ic.Inbound(events.NewText(2, "b"))

	if count != 1 {
		t.Fatalf("expected exactly 1 delivery before unsubscribe, got %d", count)
	}
}

func TestMultiInteractorFansOutToAllTargets(t *testing.T) {
	a := NewChanInteractor(4)
	b := NewChanInteractor(4)
	m := NewMultiInteractor(a, b, nil)

	m.DisplayText("hi")

	if e := <-a.Out(); e.Text.Text != "hi" {
		t.Fatalf("expected target a to receive the event, got %+v", e)
	}
	if e := <-b.Out(); e.Text.Text != "hi" {
		t.Fatalf("expected target b to receive the event, got %+v", e)
	}
}

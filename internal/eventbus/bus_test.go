package eventbus

import (
	"testing"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe(2)
	ch2, unsub2 := b.Subscribe(2)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Type: TypeActionFired, Data: "open_day"})
	for i, ch := range []<-chan Event{ch1, ch2} {
		e := <-ch
		if e.Type != TypeActionFired || e.Data != "open_day" || e.Time.IsZero() {
			t.Fatalf("subscriber %d got %+v", i, e)
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	if got := (<-ch).Type; got != "a" {
		t.Fatalf("first = %q", got)
	}
	if b.Dropped() != 1 {
		t.Fatalf("dropped = %d", b.Dropped())
	}
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open")
	}
	b.Publish(Event{Type: "after"})
}

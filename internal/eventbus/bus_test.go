package eventbus

import "testing"

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: ReminderSent})
	b.Publish(Event{Type: ReminderFailed})

	if e := <-a; e.Type != ReminderSent || e.Time.IsZero() {
		t.Fatalf("first subscriber got %+v", e)
	}
	select {
	case e := <-a:
		t.Fatalf("full subscriber should have dropped, got %+v", e)
	default:
	}
	if len(c) != 2 {
		t.Fatalf("second subscriber buffered %d events, want 2", len(c))
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	b.Publish(Event{Type: ReminderSkipped})
}

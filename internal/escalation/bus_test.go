package escalation

import (
	"testing"
	"time"

	"github.com/antoniostano/tutorcore/internal/audit"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	b := NewBus(nil)
	ch, unsubscribe := b.Subscribe("s1")
	defer unsubscribe()

	b.Broadcast("s1", Message{SessionID: "s1", Text: "hint: try long division"})

	select {
	case msg := <-ch:
		if msg.Text != "hint: try long division" {
			t.Fatalf("msg.Text = %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(nil)
	ch, unsubscribe := b.Subscribe("s1")
	unsubscribe()

	b.Broadcast("s1", Message{SessionID: "s1", Text: "should not arrive"})

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after unsubscribe")
	}
}

func TestBroadcastToSessionWithNoSubscribersIsNoop(t *testing.T) {
	b := NewBus(nil)
	b.Broadcast("ghost-session", Message{Text: "nobody home"})
}

func TestNotifyWritesAuditAndReturnsHandle(t *testing.T) {
	sink := audit.NewInMemorySink()
	b := NewBus(sink)

	handle := b.Notify("s1", "student stuck on fractions", time.Now())
	if handle.SessionID != "s1" {
		t.Fatalf("handle.SessionID = %q", handle.SessionID)
	}
	if len(sink.EscalationEvents()) != 1 {
		t.Fatalf("EscalationEvents() len = %d, want 1", len(sink.EscalationEvents()))
	}
}

func TestMultipleSubscribersAllReceiveBroadcast(t *testing.T) {
	b := NewBus(nil)
	ch1, unsub1 := b.Subscribe("s1")
	ch2, unsub2 := b.Subscribe("s1")
	defer unsub1()
	defer unsub2()

	b.Broadcast("s1", Message{Text: "hi"})

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestFullSubscriberChannelIsPrunedNotBlocked(t *testing.T) {
	b := NewBus(nil)
	ch, _ := b.Subscribe("s1")

	// Fill the subscriber's buffer past capacity without ever draining it.
	for i := 0; i < 100; i++ {
		b.Broadcast("s1", Message{Text: "flood"})
	}

	if b.SubscriberCount("s1") != 0 {
		t.Fatalf("SubscriberCount = %d, want 0 after the slow subscriber was pruned", b.SubscriberCount("s1"))
	}
	_ = ch
}

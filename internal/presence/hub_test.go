package presence

import (
	"fmt"
	"testing"
)

func drain(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case payload, ok := <-sub.Send():
		if !ok {
			t.Fatal("send channel closed")
		}
		return payload
	default:
		t.Fatal("expected a buffered payload")
		return nil
	}
}

func assertEmpty(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case payload := <-sub.Send():
		t.Fatalf("expected no delivery, got %q", payload)
	default:
	}
}

func TestPublishReachesRoomSubscribers(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("1")
	bob := hub.Connect("2")
	carol := hub.Connect("3")

	hub.Subscribe(alice.ID, "conversation:5")
	hub.Subscribe(bob.ID, "conversation:5")
	hub.Subscribe(carol.ID, "conversation:9")

	hub.Publish("conversation:5", []byte("hello"), "")

	if got := drain(t, alice); string(got) != "hello" {
		t.Fatalf("alice got %q", got)
	}
	if got := drain(t, bob); string(got) != "hello" {
		t.Fatalf("bob got %q", got)
	}
	assertEmpty(t, carol)
}

func TestPublishSkipsExceptedConnection(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("1")
	bob := hub.Connect("2")

	hub.Subscribe(alice.ID, "conversation:5")
	hub.Subscribe(bob.ID, "conversation:5")

	hub.Publish("conversation:5", []byte("joined"), alice.ID)

	assertEmpty(t, alice)
	if got := drain(t, bob); string(got) != "joined" {
		t.Fatalf("bob got %q", got)
	}
}

func TestSubscribeUnknownConnection(t *testing.T) {
	hub := NewHub()
	if hub.Subscribe("nope", "conversation:5") {
		t.Fatal("expected subscribe to fail for unknown connection")
	}
}

func TestDisconnectRemovesRoomMemberships(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("1")
	hub.Subscribe(alice.ID, "conversation:5")
	hub.Subscribe(alice.ID, "session:11")

	hub.Disconnect(alice.ID)

	if hub.InRoom("conversation:5", "1") || hub.InRoom("session:11", "1") {
		t.Fatal("expected memberships cleared")
	}
	if _, ok := <-alice.Send(); ok {
		t.Fatal("expected send channel closed")
	}

	// Publishing afterwards must not deliver or panic.
	hub.Publish("conversation:5", []byte("late"), "")
}

func TestUnsubscribeLeavesOtherRooms(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("1")
	hub.Subscribe(alice.ID, "conversation:5")
	hub.Subscribe(alice.ID, "session:11")

	hub.Unsubscribe(alice.ID, "conversation:5")

	if hub.InRoom("conversation:5", "1") {
		t.Fatal("expected conversation membership removed")
	}
	if !hub.InRoom("session:11", "1") {
		t.Fatal("expected session membership kept")
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub()
	slow := hub.Connect("1")
	hub.Subscribe(slow.ID, "conversation:5")

	for i := 0; i < sendBuffer+1; i++ {
		hub.Publish("conversation:5", []byte(fmt.Sprintf("m%d", i)), "")
	}

	if hub.InRoom("conversation:5", "1") {
		t.Fatal("expected lagging subscriber dropped from room")
	}
	// The buffered messages stay readable, then the channel closes.
	for i := 0; i < sendBuffer; i++ {
		if _, ok := <-slow.Send(); !ok {
			t.Fatalf("expected buffered payload %d", i)
		}
	}
	if _, ok := <-slow.Send(); ok {
		t.Fatal("expected send channel closed after drop")
	}
}

func TestSendToTargetsOneConnection(t *testing.T) {
	hub := NewHub()
	alice := hub.Connect("1")
	bob := hub.Connect("2")

	if !hub.SendTo(alice.ID, []byte("just you")) {
		t.Fatal("expected direct send to succeed")
	}
	if got := drain(t, alice); string(got) != "just you" {
		t.Fatalf("alice got %q", got)
	}
	assertEmpty(t, bob)

	if hub.SendTo("nope", []byte("x")) {
		t.Fatal("expected direct send to unknown connection to fail")
	}
}

func TestRoomUserIDsDeduplicatesConnections(t *testing.T) {
	hub := NewHub()
	first := hub.Connect("1")
	second := hub.Connect("1")
	other := hub.Connect("2")

	hub.Subscribe(first.ID, "session:11")
	hub.Subscribe(second.ID, "session:11")
	hub.Subscribe(other.ID, "session:11")

	users := hub.RoomUserIDs("session:11")
	if len(users) != 2 {
		t.Fatalf("expected 2 distinct users, got %v", users)
	}
}

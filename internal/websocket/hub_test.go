package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/relation"
	"github.com/campus-portal/companion/internal/remote"
	"github.com/campus-portal/companion/internal/validate"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients; got %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatalf("client channel closed")
		}
		var raw struct {
			Type      MessageType     `json:"type"`
			Timestamp time.Time       `json:"timestamp"`
			Payload   json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("decoding message: %v", err)
		}
		return Message{Type: raw.Type, Timestamp: raw.Timestamp, Payload: raw.Payload}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send():
		t.Fatalf("expected no message; got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMessageType_Topic(t *testing.T) {
	cases := map[MessageType]string{
		TypeRelationStateChanged: "relation",
		TypeEventPhaseChanged:    "event",
		TypeCatalogSyncError:     "catalog",
		TypeNotification:         "notification",
	}
	for typ, want := range cases {
		if got := typ.Topic(); got != want {
			t.Fatalf("%s: expected topic %q; got %q", typ, want, got)
		}
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := startHub(t)
	all := NewClient(hub)
	phases := NewClient(hub)
	phases.Subscribe("event")
	hub.Register(all)
	hub.Register(phases)
	waitForClients(t, hub, 2)

	b := NewEventBroadcaster(hub)
	b.BroadcastRelationChange("view-1", relation.Change{
		Kind: relation.KindBookmark, EntityID: "evt-1",
		Previous: relation.StateAbsent, Current: relation.StatePendingAdd,
	})
	b.BroadcastPhaseChange(lifecycle.PhaseChange{
		EventID: "evt-1", Previous: lifecycle.PhaseUpcoming, Current: lifecycle.PhaseLive, At: time.Now(),
	}, "Hackathon")

	if msg := receive(t, all); msg.Type != TypeRelationStateChanged {
		t.Fatalf("expected relation change first; got %s", msg.Type)
	}
	if msg := receive(t, all); msg.Type != TypeEventPhaseChanged {
		t.Fatalf("expected phase change; got %s", msg.Type)
	}

	msg := receive(t, phases)
	if msg.Type != TypeEventPhaseChanged {
		t.Fatalf("subscribed client should only see phase changes; got %s", msg.Type)
	}
	var p PhasePayload
	json.Unmarshal(msg.Payload.(json.RawMessage), &p)
	if p.Current != "live" || p.Title != "Hackathon" {
		t.Fatalf("unexpected payload: %+v", p)
	}
	expectNothing(t, phases)
}

func TestBroadcaster_MutationFailed(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	waitForClients(t, hub, 1)

	NewEventBroadcaster(hub).BroadcastRelationChange("view-1", relation.Change{
		Kind: relation.KindRegistration, EntityID: "evt-2",
		Previous: relation.StatePendingAdd, Current: relation.StateAbsent,
		Failure: &remote.Error{Kind: remote.KindConflict, Message: "This event is full"},
	})

	msg := receive(t, c)
	if msg.Type != TypeRelationMutationFailed {
		t.Fatalf("expected mutation_failed; got %s", msg.Type)
	}
	var p RelationPayload
	json.Unmarshal(msg.Payload.(json.RawMessage), &p)
	if p.ErrorKind != "conflict" || p.Message != "This event is full" || p.Current != "absent" || p.Displayed {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestBroadcaster_FieldValidated(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	waitForClients(t, hub, 1)

	NewEventBroadcaster(hub).BroadcastFieldValidated("form-1", validate.FieldEvent{
		Field: "rating", Value: "9",
		Err: &validate.Error{Field: "rating", Kind: validate.KindOutOfRange, Message: "must be between 1 and 5"},
	})

	var p FieldPayload
	json.Unmarshal(receive(t, c).Payload.(json.RawMessage), &p)
	if p.Valid || p.Kind != "out_of_range" || p.Message != "must be between 1 and 5" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestBroadcaster_SyncError(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	waitForClients(t, hub, 1)

	NewEventBroadcaster(hub).BroadcastCatalogSyncError("portal", errors.New("boom"))

	var p CatalogSyncErrorPayload
	json.Unmarshal(receive(t, c).Payload.(json.RawMessage), &p)
	if p.Source != "portal" || p.Error != "unknown" || p.Message != "boom" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	waitForClients(t, hub, 1)

	hub.Unregister(c)
	waitForClients(t, hub, 0)
	if _, ok := <-c.Send(); ok {
		t.Fatalf("expected send channel to be closed")
	}
	if c.Reply([]byte("x")) {
		t.Fatalf("reply to a closed client must fail")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := NewClient(hub)
	hub.Register(c)
	waitForClients(t, hub, 1)
	cancel()

	select {
	case _, ok := <-c.Send():
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("client not closed on stop")
	}

	late := NewClient(hub)
	hub.Register(late)
	if _, ok := <-late.Send(); ok {
		t.Fatalf("registering after stop should close the client")
	}
}

func TestClient_SubscribeUnsubscribe(t *testing.T) {
	c := NewClient(nil)
	if !c.Wants("relation") {
		t.Fatalf("client with no topics should want everything")
	}
	if got := c.Subscribe("relation", "event", ""); len(got) != 2 || got[0] != "event" {
		t.Fatalf("unexpected topics: %v", got)
	}
	if c.Wants("form") {
		t.Fatalf("unsubscribed topic should be filtered")
	}
	c.Unsubscribe("relation", "event")
	if !c.Wants("form") {
		t.Fatalf("emptied subscription should receive everything")
	}
}

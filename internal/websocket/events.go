package websocket

import (
	"errors"
	"log"
	"time"

	"github.com/campus-portal/companion/internal/lifecycle"
	"github.com/campus-portal/companion/internal/relation"
	"github.com/campus-portal/companion/internal/remote"
	"github.com/campus-portal/companion/internal/validate"
)

// EventBroadcaster turns domain changes into websocket messages.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastRelationChange sends a relation change observed in a view. Rolled
// back mutations go out as relation.mutation_failed with the failure's kind
// and message.
func (b *EventBroadcaster) BroadcastRelationChange(viewID string, change relation.Change) {
	payload := RelationPayload{
		ViewID:    viewID,
		Relation:  string(change.Kind),
		EntityID:  change.EntityID,
		Previous:  change.Previous.String(),
		Current:   change.Current.String(),
		Displayed: change.Current.Displayed(),
	}

	msgType := TypeRelationStateChanged
	if change.Failure != nil {
		msgType = TypeRelationMutationFailed
		payload.ErrorKind = string(change.Failure.Kind)
		payload.Message = change.Failure.Message
	}
	b.broadcast(NewMessage(msgType, payload))
}

// BroadcastPhaseChange sends an event.phase_changed event.
func (b *EventBroadcaster) BroadcastPhaseChange(change lifecycle.PhaseChange, title string) {
	b.broadcast(NewMessage(TypeEventPhaseChanged, PhasePayload{
		EventID:  change.EventID,
		Title:    title,
		Previous: change.Previous.String(),
		Current:  change.Current.String(),
		At:       change.At.UTC(),
	}))
}

// BroadcastFieldValidated sends the outcome of a settled or flushed field.
func (b *EventBroadcaster) BroadcastFieldValidated(formID string, ev validate.FieldEvent) {
	payload := FieldPayload{
		FormID:  formID,
		Field:   ev.Field,
		Value:   ev.Value,
		Valid:   ev.Err == nil,
		Flushed: ev.Flushed,
	}
	if ev.Err != nil {
		payload.Message = ev.Err.Error()
		var fe *validate.Error
		if errors.As(ev.Err, &fe) {
			payload.Kind = string(fe.Kind)
			payload.Message = fe.Message
		}
	}
	b.broadcast(NewMessage(TypeFormFieldValidated, payload))
}

// BroadcastCatalogSyncCompleted sends a catalog.sync_completed event.
func (b *EventBroadcaster) BroadcastCatalogSyncCompleted(source string, events int, syncedAt time.Time) {
	b.broadcast(NewMessage(TypeCatalogSyncCompleted, CatalogSyncPayload{
		Source:   source,
		Status:   "success",
		Events:   events,
		SyncedAt: syncedAt.UTC(),
	}))
}

// BroadcastCatalogSyncError sends a catalog.sync_error event.
func (b *EventBroadcaster) BroadcastCatalogSyncError(source string, err error) {
	b.broadcast(NewMessage(TypeCatalogSyncError, CatalogSyncErrorPayload{
		Source:  source,
		Error:   string(remote.KindOf(err)),
		Message: err.Error(),
	}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	b.broadcast(NewMessage(TypeNotification, NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}))
}

func (b *EventBroadcaster) broadcast(msg Message) {
	if b == nil || b.hub == nil {
		return
	}
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}
	b.hub.Broadcast(msg.Type.Topic(), data)
}

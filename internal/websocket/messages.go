package websocket

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeRelationStateChanged   MessageType = "relation.state_changed"
	TypeRelationMutationFailed MessageType = "relation.mutation_failed"
	TypeEventPhaseChanged      MessageType = "event.phase_changed"
	TypeFormFieldValidated     MessageType = "form.field_validated"
	TypeCatalogSyncCompleted   MessageType = "catalog.sync_completed"
	TypeCatalogSyncError       MessageType = "catalog.sync_error"
	TypeNotification           MessageType = "notification"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
	TypeError        MessageType = "error"
)

// Topic returns the subscription topic of a message type: the part before
// the first dot.
func (t MessageType) Topic() string {
	s := string(t)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

// Message is the WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClientCommand is a message sent by a browser.
type ClientCommand struct {
	Type    MessageType `json:"type"`
	Payload struct {
		Topics []string `json:"topics"`
	} `json:"payload"`
}

// RelationPayload is the payload for relation.* events.
type RelationPayload struct {
	ViewID    string `json:"view_id"`
	Relation  string `json:"relation"`
	EntityID  string `json:"entity_id"`
	Previous  string `json:"previous"`
	Current   string `json:"current"`
	Displayed bool   `json:"displayed"`

	// Set on relation.mutation_failed only.
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PhasePayload is the payload for event.phase_changed events.
type PhasePayload struct {
	EventID  string    `json:"event_id"`
	Title    string    `json:"title,omitempty"`
	Previous string    `json:"previous"`
	Current  string    `json:"current"`
	At       time.Time `json:"at"`
}

// FieldPayload is the payload for form.field_validated events.
type FieldPayload struct {
	FormID  string `json:"form_id"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Valid   bool   `json:"valid"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
	Flushed bool   `json:"flushed"`
}

// CatalogSyncPayload is the payload for catalog.sync_completed events.
type CatalogSyncPayload struct {
	Source   string    `json:"source"`
	Status   string    `json:"status"`
	Events   int       `json:"events"`
	SyncedAt time.Time `json:"synced_at"`
}

// CatalogSyncErrorPayload is the payload for catalog.sync_error events.
type CatalogSyncErrorPayload struct {
	Source  string `json:"source"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// SubscribePayload is the payload for subscribe.ack.
type SubscribePayload struct {
	Topics []string `json:"topics"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

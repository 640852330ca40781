package notifications

import (
	"context"
	"encoding/json"
	"time"
)

// Realtime event names sent to clients.
const (
	EventVoteUpdate     = "ReceiveVoteUpdate"
	EventAnswer         = "ReceiveAnswer"
	EventAnswerDeleted  = "AnswerDeleted"
	EventQuestionDelete = "QuestionDeleted"
	EventNotification   = "NewNotification"
	EventReport         = "ReceiveReport"
	EventReportAccept   = "ReportAccept"
	EventMaterialUpdate = "ReceiveMaterialUpdate"
)

// Envelope is the frame written to websocket clients.
type Envelope struct {
	Event   string          `json:"event"`
	Group   Group           `json:"group"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// Publisher delivers an event to every subscriber of a group. Delivery is
// fire-and-forget: a nil error means the event was accepted, not delivered.
type Publisher interface {
	Publish(ctx context.Context, group Group, event string, payload any) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Group, string, any) error { return nil }

// Package messaging defines the NATS event envelopes that cross the chat
// transport boundary. The transport side publishes user events; this service
// publishes assistant replies. All envelopes are JSON and share the common
// event header.
package messaging

import "github.com/book-expert/events"

// User action names carried by UserActionEvent. The transport maps its own
// buttons and commands onto these.
const (
	ActionSelectCaption = "select_caption"
	ActionSelectReels   = "select_reels"
	ActionSelectVisual  = "select_visual"
	ActionConfirm       = "confirm"
	ActionEdit          = "edit"
	ActionCancel        = "cancel"
)

// VoiceReceivedEvent announces a voice message stored in the object store.
// The payload itself travels through the voice bucket, not the event.
type VoiceReceivedEvent struct {
	Header                  events.EventHeader `json:"header"`
	AudioKey                string             `json:"audio_key"`
	DeclaredSizeBytes       int64              `json:"declared_size_bytes"`
	DeclaredDurationSeconds int                `json:"declared_duration_seconds"`
}

// UserTextEvent carries a typed text message, used for typed prompts and
// transcript edits.
type UserTextEvent struct {
	Header events.EventHeader `json:"header"`
	Text   string             `json:"text"`
}

// UserActionEvent carries a discrete user action such as a content type
// selection, a confirmation, or a cancellation.
type UserActionEvent struct {
	Header events.EventHeader `json:"header"`
	Action string             `json:"action"`
}

// AssistantReplyEvent is the single outbound envelope: a Persian message for
// the user, optionally marked final when it carries generated content.
type AssistantReplyEvent struct {
	Header  events.EventHeader `json:"header"`
	Message string             `json:"message"`
	Final   bool               `json:"final"`
}

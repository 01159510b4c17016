// Package core defines the domain types and boundary interfaces for the
// voice-engine service.
package core

import (
	"context"
	"time"
)

// ContentType identifies what kind of marketing content the user asked for.
type ContentType string

const (
	ContentCaption ContentType = "caption"
	ContentReels   ContentType = "reels"
	ContentVisual  ContentType = "visual"
)

// RequestStatus tracks a VoiceRequest through its lifecycle.
type RequestStatus string

const (
	StatusReceived     RequestStatus = "received"
	StatusValidating   RequestStatus = "validating"
	StatusQueued       RequestStatus = "queued"
	StatusTranscribing RequestStatus = "transcribing"
	StatusDone         RequestStatus = "done"
	StatusFailed       RequestStatus = "failed"
	StatusRejected     RequestStatus = "rejected"
)

// Transcript is the immutable output of one successful transcription.
type Transcript struct {
	RequestID string
	Text      string
	Language  string
	CreatedAt time.Time
}

// UserProfile carries the per-user business style context attached to every
// generation request. It is owned by the external profile store.
type UserProfile struct {
	UserID       string `json:"user_id"`
	BusinessName string `json:"business_name"`
	PageStyle    string `json:"page_style"`
	AudienceType string `json:"audience_type"`
	SalesGoal    string `json:"sales_goal"`
	ExtraNotes   string `json:"extra_notes"`
}

// GenerationRequest is the opaque unit of work handed to the content
// generation capability once a prompt is finalized.
type GenerationRequest struct {
	RequestID   string
	UserID      string
	Prompt      string
	ContentType ContentType
	Profile     UserProfile
}

// SpeechEngine is the speech-to-text capability. Transcribe blocks for the
// duration of one inference run; callers are expected to bound it with a
// deadline and to serialize access through the scheduler.
type SpeechEngine interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
	HealthCheck(ctx context.Context) error
}

// ObjectStore is a key-value blob store holding inbound voice payloads.
// Delete reclaims a payload once it has been consumed; unconsumed payloads
// age out of the store on their own.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// ProfileStore provides read access to persisted per-user style context.
type ProfileStore interface {
	Load(ctx context.Context, userID string) (UserProfile, error)
}

// ContentGenerator consumes a finalized GenerationRequest and returns the
// generated content. Its failures are surfaced upward unchanged.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

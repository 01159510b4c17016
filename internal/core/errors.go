package core

import "errors"

// Validation errors, detected locally before any inference resource is used.
var (
	// ErrTooLarge indicates the audio payload exceeds the configured size limit.
	ErrTooLarge = errors.New("audio payload too large")
	// ErrTooLong indicates the recording exceeds the configured duration limit.
	ErrTooLong = errors.New("audio recording too long")
	// ErrUnsupportedFormat indicates the payload could not be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyInput indicates an empty prompt reached the handoff.
	ErrEmptyInput = errors.New("empty input")
	// ErrPromptTooLong indicates a finalized prompt exceeds the length bound.
	ErrPromptTooLong = errors.New("prompt too long")
)

// Overload errors, rejected fast without consuming a retry budget.
var (
	// ErrOverloaded indicates the transcription queue is full.
	ErrOverloaded = errors.New("transcription queue full")
	// ErrAlreadyInProgress indicates the user already has a voice request
	// queued or in flight.
	ErrAlreadyInProgress = errors.New("transcription already in progress")
)

// Inference errors surfaced by the speech engine.
var (
	// ErrTranscriptionUnavailable is a transient backend failure; the
	// scheduler retries it up to the configured ceiling.
	ErrTranscriptionUnavailable = errors.New("transcription backend unavailable")
	// ErrCorruptAudio indicates audio the backend rejected outright; never
	// retried.
	ErrCorruptAudio = errors.New("corrupt audio rejected by backend")
	// ErrTranscriptionFailed is the terminal failure reported after the
	// retry budget is exhausted.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

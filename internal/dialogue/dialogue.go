// Package dialogue tracks each user's progress through the voice → confirm →
// generate flow. Transitions for one user are serialized behind a per-session
// lock; sessions for different users run fully concurrently.
package dialogue

import (
	"errors"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
)

// State is the current step of a user's dialogue session.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingVoice        State = "awaiting_voice"
	StateTranscribing         State = "transcribing"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateAwaitingEdit         State = "awaiting_edit"
	StateReady                State = "ready"
	StateCancelled            State = "cancelled"
	StateExpired              State = "expired"
)

var (
	// ErrNoContentTypeSelected indicates input arrived before the user
	// chose a content flow.
	ErrNoContentTypeSelected = errors.New("no content type selected")
	// ErrNotExpectingVoice indicates a voice message arrived in a state
	// that cannot accept one.
	ErrNotExpectingVoice = errors.New("not expecting a voice message")
	// ErrNothingToConfirm indicates a confirm/edit action with no pending
	// transcript.
	ErrNothingToConfirm = errors.New("no transcript awaiting confirmation")
	// ErrNotEditing indicates corrected text arrived outside the edit step.
	ErrNotEditing = errors.New("no edit in progress")
	// ErrEditLimitExceeded indicates the user exhausted the edit budget;
	// the session is forced back to awaiting a fresh recording.
	ErrEditLimitExceeded = errors.New("edit limit exceeded")
)

// Finalized is the outcome of a completed confirmation loop, ready for
// handoff to content generation.
type Finalized struct {
	UserID      string
	RequestID   string
	Text        string
	ContentType core.ContentType
}

// ExpiredSession identifies a session reclaimed by the inactivity sweep,
// together with the inference job to release, if any.
type ExpiredSession struct {
	UserID    string
	RequestID string
}

type session struct {
	mu           sync.Mutex
	state        State
	contentType  core.ContentType
	transcript   *core.Transcript
	requestID    string
	editCount    int
	lastActivity time.Time
}

// Manager owns every live DialogueSession, keyed by user id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	timeout  time.Duration
	maxEdits int
	language string
	log      *logger.Logger
}

// NewManager creates a session manager with the configured inactivity timeout
// and edit cap.
func NewManager(cfg config.DialogueConfig, language string, log *logger.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		timeout:  cfg.SessionTimeout(),
		maxEdits: cfg.MaxEdits,
		language: language,
		log:      log,
	}
}

// lockSession returns the user's session with its lock held, creating an idle
// one on first interaction. Callers must unlock it.
func (m *Manager) lockSession(userID string) *session {
	m.mu.Lock()

	current, ok := m.sessions[userID]
	if !ok {
		current = &session{
			state:        StateIdle,
			lastActivity: time.Now(),
		}
		m.sessions[userID] = current
	}

	m.mu.Unlock()
	current.mu.Lock()

	return current
}

// remove tears the session down and returns it, lock held, or nil if absent.
func (m *Manager) remove(userID string) *session {
	m.mu.Lock()

	current, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}

	m.mu.Unlock()

	if !ok {
		return nil
	}

	current.mu.Lock()

	return current
}

// SelectContentType starts (or restarts) a content flow; the session moves to
// AwaitingVoice and any stale transcript state is dropped.
func (m *Manager) SelectContentType(userID string, contentType core.ContentType) {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	current.state = StateAwaitingVoice
	current.contentType = contentType
	current.transcript = nil
	current.requestID = ""
	current.editCount = 0
	current.touch()
}

// VoiceAccepted moves the session to Transcribing for the given request.
// A session already transcribing rejects the second recording outright.
func (m *Manager) VoiceAccepted(userID, requestID string) error {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	switch current.state {
	case StateIdle, StateAwaitingVoice:
	case StateTranscribing:
		return core.ErrAlreadyInProgress
	default:
		return ErrNotExpectingVoice
	}

	if current.contentType == "" {
		return ErrNoContentTypeSelected
	}

	current.state = StateTranscribing
	current.requestID = requestID
	current.transcript = nil
	current.touch()

	return nil
}

// SubmissionRejected reverts a Transcribing session to AwaitingVoice after
// the scheduler refused the job (overload).
func (m *Manager) SubmissionRejected(userID string) {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	if current.state == StateTranscribing {
		current.state = StateAwaitingVoice
		current.requestID = ""
		current.touch()
	}
}

// TranscriptReady stores the transcript and moves to AwaitingConfirmation.
// Stale results (cancelled or superseded requests) are reported false and
// ignored.
func (m *Manager) TranscriptReady(userID string, transcript core.Transcript) bool {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	if current.state != StateTranscribing || current.requestID != transcript.RequestID {
		return false
	}

	current.state = StateAwaitingConfirmation
	current.transcript = &transcript
	current.touch()

	return true
}

// TranscriptionFailed returns the session to AwaitingVoice so the user can
// retry with a new recording.
func (m *Manager) TranscriptionFailed(userID, requestID string) bool {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	if current.state != StateTranscribing || current.requestID != requestID {
		return false
	}

	current.state = StateAwaitingVoice
	current.requestID = ""
	current.transcript = nil
	current.touch()

	return true
}

// Confirm finalizes the pending transcript. A duplicate confirm once the
// session is Ready is a no-op and returns nil, nil.
func (m *Manager) Confirm(userID string) (*Finalized, error) {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	switch current.state {
	case StateReady:
		return nil, nil
	case StateAwaitingConfirmation:
	default:
		return nil, ErrNothingToConfirm
	}

	finalized := &Finalized{
		UserID:      userID,
		RequestID:   current.transcript.RequestID,
		Text:        current.transcript.Text,
		ContentType: current.contentType,
	}

	current.state = StateReady
	current.transcript = nil
	current.touch()

	return finalized, nil
}

// RequestEdit moves to AwaitingEdit, or forces the session back to
// AwaitingVoice when the edit budget is already spent.
func (m *Manager) RequestEdit(userID string) error {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	if current.state != StateAwaitingConfirmation {
		return ErrNothingToConfirm
	}

	if current.editCount >= m.maxEdits {
		current.state = StateAwaitingVoice
		current.transcript = nil
		current.requestID = ""
		current.editCount = 0
		current.touch()

		return ErrEditLimitExceeded
	}

	current.state = StateAwaitingEdit
	current.touch()

	return nil
}

// SubmitEdit replaces the transcript text and returns to
// AwaitingConfirmation so the user confirms the corrected version.
func (m *Manager) SubmitEdit(userID, text string) error {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	if current.state != StateAwaitingEdit {
		return ErrNotEditing
	}

	if text == "" {
		return core.ErrEmptyInput
	}

	current.editCount++
	current.transcript = &core.Transcript{
		RequestID: current.transcript.RequestID,
		Text:      text,
		Language:  m.language,
		CreatedAt: time.Now(),
	}
	current.state = StateAwaitingConfirmation
	current.touch()

	return nil
}

// TypedPrompt is the typed-input shortcut: a text prompt while awaiting voice
// skips transcription entirely and finalizes immediately.
func (m *Manager) TypedPrompt(userID, text string) (*Finalized, error) {
	current := m.lockSession(userID)
	defer current.mu.Unlock()

	if current.state != StateAwaitingVoice {
		return nil, ErrNotExpectingVoice
	}

	if text == "" {
		return nil, core.ErrEmptyInput
	}

	current.state = StateReady
	current.touch()

	return &Finalized{
		UserID:      userID,
		RequestID:   "",
		Text:        text,
		ContentType: current.contentType,
	}, nil
}

// Cancel tears the session down and returns the pending inference request
// id, if any, for the caller to release. Safe to call for unknown users.
func (m *Manager) Cancel(userID string) string {
	current := m.remove(userID)
	if current == nil {
		return ""
	}

	defer current.mu.Unlock()

	current.state = StateCancelled

	return current.requestID
}

// Complete removes a session whose Ready outcome has been fully handed off.
func (m *Manager) Complete(userID string) {
	current := m.remove(userID)
	if current != nil {
		current.mu.Unlock()
	}
}

// SweepExpired reclaims every session idle past the timeout as of now,
// returning the pending jobs to release.
func (m *Manager) SweepExpired(now time.Time) []ExpiredSession {
	m.mu.Lock()

	var stale []string

	for userID, current := range m.sessions {
		current.mu.Lock()

		if now.Sub(current.lastActivity) > m.timeout {
			stale = append(stale, userID)
		}

		current.mu.Unlock()
	}

	m.mu.Unlock()

	expired := make([]ExpiredSession, 0, len(stale))

	for _, userID := range stale {
		current := m.remove(userID)
		if current == nil {
			continue
		}

		current.state = StateExpired
		requestID := current.requestID
		current.mu.Unlock()

		expired = append(expired, ExpiredSession{UserID: userID, RequestID: requestID})
		m.log.Info("Session for user %s expired, releasing request %q", userID, requestID)
	}

	return expired
}

// StateOf reports the user's current state; unknown users are Idle.
func (m *Manager) StateOf(userID string) State {
	m.mu.Lock()
	current, ok := m.sessions[userID]
	m.mu.Unlock()

	if !ok {
		return StateIdle
	}

	current.mu.Lock()
	defer current.mu.Unlock()

	return current.state
}

// PendingTranscript returns the transcript under confirmation or edit, or nil.
func (m *Manager) PendingTranscript(userID string) *core.Transcript {
	m.mu.Lock()
	current, ok := m.sessions[userID]
	m.mu.Unlock()

	if !ok {
		return nil
	}

	current.mu.Lock()
	defer current.mu.Unlock()

	if current.state != StateAwaitingConfirmation && current.state != StateAwaitingEdit {
		return nil
	}

	copied := *current.transcript

	return &copied
}

// ActiveSessions reports how many sessions are live.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

func (s *session) touch() {
	s.lastActivity = time.Now()
}

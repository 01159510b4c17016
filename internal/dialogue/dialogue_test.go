// Package dialogue_test tests the per-user conversation state machine.
package dialogue_test

import (
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
	"github.com/gohar-studio/voice-engine/internal/dialogue"
)

const testUser = "user-1"

func newManager(t *testing.T) *dialogue.Manager {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "dialogue-test.log")
	require.NoError(t, err)

	cfg := config.DialogueConfig{
		SessionTimeoutMinutes: 10,
		MaxEdits:              3,
	}

	return dialogue.NewManager(cfg, "fa", testLogger)
}

func transcript(requestID, text string) core.Transcript {
	return core.Transcript{
		RequestID: requestID,
		Text:      text,
		Language:  "fa",
		CreatedAt: time.Now(),
	}
}

// toConfirmation drives a fresh session to AwaitingConfirmation.
func toConfirmation(t *testing.T, manager *dialogue.Manager, text string) {
	t.Helper()

	manager.SelectContentType(testUser, core.ContentCaption)
	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))
	require.True(t, manager.TranscriptReady(testUser, transcript("req-1", text)))
}

func TestVoiceFlow_ConfirmHandsOffExactText(t *testing.T) {
	t.Parallel()

	manager := newManager(t)

	toConfirmation(t, manager, "سلام این یک تست است")
	assert.Equal(t, dialogue.StateAwaitingConfirmation, manager.StateOf(testUser))

	pending := manager.PendingTranscript(testUser)
	require.NotNil(t, pending)
	assert.Equal(t, "سلام این یک تست است", pending.Text)

	finalized, err := manager.Confirm(testUser)
	require.NoError(t, err)
	require.NotNil(t, finalized)
	assert.Equal(t, "سلام این یک تست است", finalized.Text)
	assert.Equal(t, core.ContentCaption, finalized.ContentType)
	assert.Equal(t, "req-1", finalized.RequestID)
	assert.Equal(t, dialogue.StateReady, manager.StateOf(testUser))
}

func TestConfirm_IsIdempotentOnceReady(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	toConfirmation(t, manager, "متن")

	first, err := manager.Confirm(testUser)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := manager.Confirm(testUser)
	require.NoError(t, err)
	assert.Nil(t, second, "duplicate confirm must have no additional effect")
}

func TestVoiceAccepted_RejectsSecondRecording(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentReels)

	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))

	err := manager.VoiceAccepted(testUser, "req-2")
	require.ErrorIs(t, err, core.ErrAlreadyInProgress)
}

func TestVoiceAccepted_RequiresContentType(t *testing.T) {
	t.Parallel()

	manager := newManager(t)

	err := manager.VoiceAccepted(testUser, "req-1")
	require.ErrorIs(t, err, dialogue.ErrNoContentTypeSelected)
}

func TestTranscriptReady_IgnoresStaleRequest(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentVisual)
	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))

	assert.False(t, manager.TranscriptReady(testUser, transcript("req-0", "قدیمی")))
	assert.Equal(t, dialogue.StateTranscribing, manager.StateOf(testUser))
}

func TestTranscriptionFailed_ReturnsToAwaitingVoice(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentCaption)
	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))

	require.True(t, manager.TranscriptionFailed(testUser, "req-1"))
	assert.Equal(t, dialogue.StateAwaitingVoice, manager.StateOf(testUser))
	assert.Nil(t, manager.PendingTranscript(testUser))

	// The user can immediately retry with a fresh recording.
	require.NoError(t, manager.VoiceAccepted(testUser, "req-2"))
}

func TestSubmissionRejected_RevertsTranscribing(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentCaption)
	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))

	manager.SubmissionRejected(testUser)
	assert.Equal(t, dialogue.StateAwaitingVoice, manager.StateOf(testUser))
}

func TestEditLoop_ReplacesTranscript(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	toConfirmation(t, manager, "متن اشتباه")

	require.NoError(t, manager.RequestEdit(testUser))
	assert.Equal(t, dialogue.StateAwaitingEdit, manager.StateOf(testUser))

	require.NoError(t, manager.SubmitEdit(testUser, "متن درست"))
	assert.Equal(t, dialogue.StateAwaitingConfirmation, manager.StateOf(testUser))

	finalized, err := manager.Confirm(testUser)
	require.NoError(t, err)
	assert.Equal(t, "متن درست", finalized.Text)
}

func TestEditLoop_FourthEditForcesNewRecording(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	toConfirmation(t, manager, "نسخه ۰")

	for i := 0; i < 3; i++ {
		require.NoError(t, manager.RequestEdit(testUser))
		require.NoError(t, manager.SubmitEdit(testUser, "نسخه جدید"))
	}

	err := manager.RequestEdit(testUser)
	require.ErrorIs(t, err, dialogue.ErrEditLimitExceeded)
	assert.Equal(t, dialogue.StateAwaitingVoice, manager.StateOf(testUser))
	assert.Nil(t, manager.PendingTranscript(testUser))
}

func TestSubmitEdit_RejectsEmptyText(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	toConfirmation(t, manager, "متن")
	require.NoError(t, manager.RequestEdit(testUser))

	err := manager.SubmitEdit(testUser, "")
	require.ErrorIs(t, err, core.ErrEmptyInput)
}

func TestTypedPrompt_SkipsTranscription(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentReels)

	finalized, err := manager.TypedPrompt(testUser, "فروش ویژه شب یلدا")
	require.NoError(t, err)
	assert.Equal(t, "فروش ویژه شب یلدا", finalized.Text)
	assert.Equal(t, core.ContentReels, finalized.ContentType)
	assert.Empty(t, finalized.RequestID)
}

func TestCancel_ReleasesPendingJob(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentCaption)
	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))

	released := manager.Cancel(testUser)
	assert.Equal(t, "req-1", released)
	assert.Equal(t, dialogue.StateIdle, manager.StateOf(testUser), "cancelled session is torn down")
	assert.Zero(t, manager.ActiveSessions())
}

func TestSweepExpired_ReclaimsIdleSessions(t *testing.T) {
	t.Parallel()

	manager := newManager(t)
	manager.SelectContentType(testUser, core.ContentCaption)
	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))
	manager.SelectContentType("user-2", core.ContentVisual)

	// Nothing expires inside the window.
	assert.Empty(t, manager.SweepExpired(time.Now()))

	expired := manager.SweepExpired(time.Now().Add(11 * time.Minute))
	require.Len(t, expired, 2)

	byUser := make(map[string]string, len(expired))
	for _, e := range expired {
		byUser[e.UserID] = e.RequestID
	}

	assert.Equal(t, "req-1", byUser[testUser], "pending job must be released on expiry")
	assert.Empty(t, byUser["user-2"])
	assert.Zero(t, manager.ActiveSessions())
}

func TestPendingTranscript_OnlyInConfirmationStates(t *testing.T) {
	t.Parallel()

	manager := newManager(t)

	assert.Nil(t, manager.PendingTranscript(testUser))

	manager.SelectContentType(testUser, core.ContentCaption)
	assert.Nil(t, manager.PendingTranscript(testUser))

	require.NoError(t, manager.VoiceAccepted(testUser, "req-1"))
	assert.Nil(t, manager.PendingTranscript(testUser))

	require.True(t, manager.TranscriptReady(testUser, transcript("req-1", "متن")))
	assert.NotNil(t, manager.PendingTranscript(testUser))

	require.NoError(t, manager.RequestEdit(testUser))
	assert.NotNil(t, manager.PendingTranscript(testUser))

	require.NoError(t, manager.SubmitEdit(testUser, "متن بهتر"))

	_, err := manager.Confirm(testUser)
	require.NoError(t, err)
	assert.Nil(t, manager.PendingTranscript(testUser), "Ready holds no pending transcript")
}

// Package worker provides the NATS worker that drives the voice-to-content
// flow: it consumes user events, moves dialogue sessions through their
// states, feeds the transcription scheduler, and publishes assistant replies.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
	"github.com/gohar-studio/voice-engine/internal/dialogue"
	"github.com/gohar-studio/voice-engine/internal/handoff"
	"github.com/gohar-studio/voice-engine/internal/ingest"
	"github.com/gohar-studio/voice-engine/internal/messaging"
	"github.com/gohar-studio/voice-engine/internal/scheduler"
	"github.com/gohar-studio/voice-engine/internal/textutil"
)

const (
	handleMessageTimeout = 30 * time.Second
	generationTimeout    = 90 * time.Second
	expirySweepInterval  = time.Minute
)

// ErrSchedulerNotAttached indicates Run was called before AttachScheduler.
var ErrSchedulerNotAttached = errors.New("scheduler not attached")

// NatsWorker subscribes to the inbound user event subjects and orchestrates
// ingestion, transcription, confirmation, and generation.
type NatsWorker struct {
	natsConnection *nats.Conn
	cfg            config.NATSConfig
	store          core.ObjectStore
	ingestor       *ingest.Ingestor
	scheduler      *scheduler.Scheduler
	sessions       *dialogue.Manager
	handoff        *handoff.Handoff
	generator      core.ContentGenerator
	normalizer     *textutil.Normalizer
	log            *logger.Logger
}

// NewNatsWorker creates a worker. The transcription scheduler is attached
// separately because its completion callback is this worker's HandleResult.
func NewNatsWorker(
	natsConnection *nats.Conn,
	cfg config.NATSConfig,
	store core.ObjectStore,
	ingestor *ingest.Ingestor,
	sessions *dialogue.Manager,
	contentHandoff *handoff.Handoff,
	generator core.ContentGenerator,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		cfg:            cfg,
		store:          store,
		ingestor:       ingestor,
		scheduler:      nil,
		sessions:       sessions,
		handoff:        contentHandoff,
		generator:      generator,
		normalizer:     textutil.NewNormalizer(),
		log:            log,
	}
}

// AttachScheduler wires the transcription scheduler. Must be called exactly
// once before Run.
func (w *NatsWorker) AttachScheduler(sched *scheduler.Scheduler) {
	w.scheduler = sched
}

// Run subscribes to the user event subjects and blocks until the context is
// cancelled, then drains the subscriptions.
func (w *NatsWorker) Run(ctx context.Context) error {
	if w.scheduler == nil {
		return ErrSchedulerNotAttached
	}

	subscriptions := make([]*nats.Subscription, 0, 3)

	for _, binding := range []struct {
		subject string
		handler nats.MsgHandler
	}{
		{w.cfg.VoiceReceivedSubject, w.handleVoice},
		{w.cfg.UserTextSubject, w.handleText},
		{w.cfg.UserActionSubject, w.handleAction},
	} {
		sub, err := w.natsConnection.Subscribe(binding.subject, binding.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to subject %s: %w", binding.subject, err)
		}

		subscriptions = append(subscriptions, sub)
	}

	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, sub := range subscriptions {
				drainErr := sub.Drain()
				if drainErr != nil {
					w.log.Warn("Failed to drain subscription %s: %v", sub.Subject, drainErr)
				}
			}

			return nil
		case now := <-ticker.C:
			w.sweepExpired(now)
		}
	}
}

// HandleResult consumes asynchronous transcription completions. It runs on a
// scheduler goroutine and must not block.
func (w *NatsWorker) HandleResult(result scheduler.Result) {
	if result.Err != nil {
		if w.sessions.TranscriptionFailed(result.UserID, result.RequestID) {
			w.log.Warn("Transcription failed for user %s after %d attempts: %v",
				result.UserID, result.Attempts, result.Err)

			message := msgTranscriptionError
			if errors.Is(result.Err, core.ErrCorruptAudio) {
				message = msgAudioUnsupported
			}

			w.reply(freshHeader(result.UserID), message, false)
		}

		return
	}

	transcript := core.Transcript{
		RequestID: result.RequestID,
		Text:      w.normalizer.Normalize(result.Text),
		Language:  "fa",
		CreatedAt: time.Now(),
	}

	if transcript.Text == "" {
		if w.sessions.TranscriptionFailed(result.UserID, result.RequestID) {
			w.reply(freshHeader(result.UserID), msgAudioUnsupported, false)
		}

		return
	}

	if !w.sessions.TranscriptReady(result.UserID, transcript) {
		w.log.Info("Discarding stale transcript for user %s request %s",
			result.UserID, result.RequestID)

		return
	}

	w.reply(freshHeader(result.UserID), fmt.Sprintf(msgConfirmPrompt, transcript.Text), false)
}

func (w *NatsWorker) handleVoice(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event messaging.VoiceReceivedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal voice event: %v", err)

		return
	}

	userID := event.Header.UserID
	requestID := uuid.NewString()

	err = w.sessions.VoiceAccepted(userID, requestID)
	if err != nil {
		w.reply(event.Header, voiceRejectionMessage(err), false)

		return
	}

	validated, ingestErr := w.ingestVoice(ctx, &event)
	if ingestErr != nil {
		w.sessions.TranscriptionFailed(userID, requestID)
		w.reply(event.Header, ingestRejectionMessage(ingestErr), false)

		return
	}

	submitErr := w.scheduler.Submit(userID, requestID, validated)
	if submitErr != nil {
		w.sessions.SubmissionRejected(userID)

		message := msgOverloaded
		if errors.Is(submitErr, core.ErrAlreadyInProgress) {
			message = msgAlreadyInProgress
		}

		w.reply(event.Header, message, false)

		return
	}

	w.reply(event.Header, msgTranscribing, false)
}

// ingestVoice downloads the stored payload and runs it through the gate.
func (w *NatsWorker) ingestVoice(
	ctx context.Context,
	event *messaging.VoiceReceivedEvent,
) (*ingest.ValidatedAudio, error) {
	payload, err := w.store.Download(ctx, event.AudioKey)
	if err != nil {
		w.log.Error("Failed to download voice payload '%s': %v", event.AudioKey, err)

		return nil, fmt.Errorf("%w: payload unavailable", core.ErrUnsupportedFormat)
	}

	declaredDuration := time.Duration(event.DeclaredDurationSeconds) * time.Second

	validated, err := w.ingestor.Ingest(ctx, payload, event.DeclaredSizeBytes, declaredDuration)
	if err != nil {
		return nil, err
	}

	// The validated WAV is in memory now; the stored payload is spent.
	deleteErr := w.store.Delete(ctx, event.AudioKey)
	if deleteErr != nil {
		w.log.Warn("Failed to delete voice payload '%s': %v", event.AudioKey, deleteErr)
	}

	return validated, nil
}

func (w *NatsWorker) handleText(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	var event messaging.UserTextEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal text event: %v", err)

		return
	}

	userID := event.Header.UserID
	text := w.normalizer.Normalize(event.Text)

	// Dispatch on what the session manager actually did, not on a state
	// read that may be stale by the time the operation runs.
	editErr := w.sessions.SubmitEdit(userID, text)
	switch {
	case editErr == nil:
		pending := w.sessions.PendingTranscript(userID)
		if pending != nil {
			w.reply(event.Header, fmt.Sprintf(msgConfirmPrompt, pending.Text), false)
		}
	case errors.Is(editErr, core.ErrEmptyInput):
		w.reply(event.Header, msgEmptyEdit, false)
	case errors.Is(editErr, dialogue.ErrNotEditing):
		w.handleTypedPrompt(ctx, event.Header, userID, text)
	default:
		w.reply(event.Header, msgChooseContentType, false)
	}
}

func (w *NatsWorker) handleTypedPrompt(
	ctx context.Context,
	header events.EventHeader,
	userID, text string,
) {
	finalized, err := w.sessions.TypedPrompt(userID, text)

	switch {
	case err == nil:
		w.finalize(ctx, header, finalized)
	case errors.Is(err, core.ErrEmptyInput):
		w.reply(header, msgPromptEmpty, false)
	default:
		w.reply(header, msgChooseContentType, false)
	}
}

func (w *NatsWorker) handleAction(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), generationTimeout)
	defer cancel()

	var event messaging.UserActionEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal action event: %v", err)

		return
	}

	userID := event.Header.UserID

	switch event.Action {
	case messaging.ActionSelectCaption:
		w.sessions.SelectContentType(userID, core.ContentCaption)
		w.reply(event.Header, msgCaptionSelected, false)
	case messaging.ActionSelectReels:
		w.sessions.SelectContentType(userID, core.ContentReels)
		w.reply(event.Header, msgReelsSelected, false)
	case messaging.ActionSelectVisual:
		w.sessions.SelectContentType(userID, core.ContentVisual)
		w.reply(event.Header, msgVisualSelected, false)
	case messaging.ActionConfirm:
		w.handleConfirm(ctx, event.Header, userID)
	case messaging.ActionEdit:
		w.handleEditRequest(event.Header, userID)
	case messaging.ActionCancel:
		// Explicit cancel reclaims quietly; only expiry notifies.
		requestID := w.sessions.Cancel(userID)
		if requestID != "" {
			w.scheduler.Cancel(userID)
		}

		w.log.Info("Session cancelled by user %s", userID)
	default:
		w.log.Warn("Unknown user action '%s' from user %s", event.Action, userID)
	}
}

func (w *NatsWorker) handleConfirm(ctx context.Context, header events.EventHeader, userID string) {
	finalized, err := w.sessions.Confirm(userID)
	if err != nil {
		w.reply(header, msgNothingToConfirm, false)

		return
	}

	// Duplicate confirm while the previous one is still generating.
	if finalized == nil {
		return
	}

	w.finalize(ctx, header, finalized)
}

func (w *NatsWorker) handleEditRequest(header events.EventHeader, userID string) {
	err := w.sessions.RequestEdit(userID)
	if err != nil {
		if errors.Is(err, dialogue.ErrEditLimitExceeded) {
			w.reply(header, msgEditLimitExceeded, false)

			return
		}

		w.reply(header, msgNothingToConfirm, false)

		return
	}

	w.reply(header, msgEditPrompt, false)
}

// finalize hands a confirmed text to content generation and publishes the
// result. The session is removed in every outcome so the user can start a
// new flow.
func (w *NatsWorker) finalize(
	ctx context.Context,
	header events.EventHeader,
	finalized *dialogue.Finalized,
) {
	defer w.sessions.Complete(finalized.UserID)

	request, err := w.handoff.Build(ctx, finalized.UserID, finalized.Text, finalized.ContentType)
	if err != nil {
		w.log.Warn("Handoff rejected input for user %s: %v", finalized.UserID, err)

		message := msgPromptEmpty
		if errors.Is(err, core.ErrPromptTooLong) {
			message = msgPromptTooLong
		}

		w.reply(header, message, false)

		return
	}

	w.reply(header, msgGenerating, false)

	content, err := w.generator.Generate(ctx, *request)
	if err != nil {
		w.log.Error("Generation failed for request %s: %v", request.RequestID, err)
		w.reply(header, msgGenerationError, false)

		return
	}

	w.reply(header, content, true)
}

// sweepExpired reclaims idle sessions and releases their pending jobs.
func (w *NatsWorker) sweepExpired(now time.Time) {
	for _, expired := range w.sessions.SweepExpired(now) {
		if expired.RequestID != "" {
			w.scheduler.Cancel(expired.UserID)
		}

		w.log.Info("Session expired for user %s", expired.UserID)
		w.reply(freshHeader(expired.UserID), msgSessionExpired, false)
	}
}

// reply publishes an assistant message for the user carried in the header.
func (w *NatsWorker) reply(header events.EventHeader, message string, final bool) {
	replyEvent := messaging.AssistantReplyEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: header.WorkflowID,
			EventID:    uuid.NewString(),
			UserID:     header.UserID,
			TenantID:   header.TenantID,
		},
		Message: message,
		Final:   final,
	}

	data, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error("Failed to marshal reply event for user %s: %v", header.UserID, err)

		return
	}

	err = w.natsConnection.Publish(w.cfg.AssistantReplySubject, data)
	if err != nil {
		w.log.Error("Failed to publish reply for user %s: %v", header.UserID, err)
	}
}

// freshHeader builds a header for replies not tied to an inbound event, such
// as asynchronous transcription completions and expiry notices.
func freshHeader(userID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     userID,
		TenantID:   "",
	}
}

// voiceRejectionMessage maps a session-level voice rejection to its user
// message.
func voiceRejectionMessage(err error) string {
	if errors.Is(err, core.ErrAlreadyInProgress) {
		return msgAlreadyInProgress
	}

	return msgChooseContentType
}

// ingestRejectionMessage maps an ingestion failure to its user message.
func ingestRejectionMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrTooLarge):
		return msgAudioTooLarge
	case errors.Is(err, core.ErrTooLong):
		return msgAudioTooLong
	default:
		return msgAudioUnsupported
	}
}

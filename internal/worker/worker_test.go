// Package worker_test exercises the full event flow against an embedded NATS
// server with mocked storage, transcription, and generation.
package worker_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
	"github.com/gohar-studio/voice-engine/internal/dialogue"
	"github.com/gohar-studio/voice-engine/internal/handoff"
	"github.com/gohar-studio/voice-engine/internal/ingest"
	"github.com/gohar-studio/voice-engine/internal/messaging"
	"github.com/gohar-studio/voice-engine/internal/scheduler"
	"github.com/gohar-studio/voice-engine/internal/worker"
)

const replyWait = 5 * time.Second

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = false
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

// mockStore is an in-memory object store seeded per test.
type mockStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMockStore() *mockStore {
	return &mockStore{objects: make(map[string][]byte), deleted: nil}
}

func (m *mockStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, nats.ErrObjectNotFound
	}

	return data, nil
}

func (m *mockStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data

	return nil
}

func (m *mockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	m.deleted = append(m.deleted, key)

	return nil
}

func (m *mockStore) wasDeleted(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, deletedKey := range m.deleted {
		if deletedKey == key {
			return true
		}
	}

	return false
}

// mockTranscoder returns a prebuilt WAV instead of shelling out to ffmpeg.
type mockTranscoder struct {
	wav []byte
}

func (m *mockTranscoder) ToWAV(_ context.Context, _ []byte, _ int) ([]byte, error) {
	return m.wav, nil
}

// mockEngine transcribes every recording to a fixed Persian text, optionally
// holding each call until the block channel is closed.
type mockEngine struct {
	text  string
	block chan struct{}
}

func (m *mockEngine) Transcribe(ctx context.Context, _ []byte) (string, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return m.text, nil
}

func (m *mockEngine) HealthCheck(_ context.Context) error {
	return nil
}

// mockProfileStore returns a fixed profile for every user.
type mockProfileStore struct{}

func (m *mockProfileStore) Load(_ context.Context, userID string) (core.UserProfile, error) {
	return core.UserProfile{UserID: userID, BusinessName: "گوهر گالری"}, nil
}

// mockGenerator records the request and returns canned content.
type mockGenerator struct {
	mu      sync.Mutex
	request *core.GenerationRequest
	content string
}

func (m *mockGenerator) Generate(_ context.Context, req core.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.request = &req

	return m.content, nil
}

func (m *mockGenerator) lastRequest() *core.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.request
}

// buildWAV constructs a minimal valid RIFF/WAVE stream of the given duration
// at 16 kHz mono 16-bit.
func buildWAV(t *testing.T, duration time.Duration) []byte {
	t.Helper()

	const (
		sampleRate = 16000
		byteRate   = sampleRate * 2
	)

	dataSize := int(float64(byteRate) * duration.Seconds())
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return buf
}

// harness wires a full worker with mocked edges against an embedded server.
type harness struct {
	conn      *nats.Conn
	natsCfg   config.NATSConfig
	store     *mockStore
	generator *mockGenerator
	replies   chan messaging.AssistantReplyEvent
}

func setupHarness(t *testing.T) *harness {
	t.Helper()

	return setupHarnessWithEngine(t, &mockEngine{text: "یک انگشتر طلای جدید دارم", block: nil})
}

func setupHarnessWithEngine(t *testing.T, engine *mockEngine) *harness {
	t.Helper()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	suffix := uuid.NewString()
	natsCfg := config.NATSConfig{
		URL:                    natsServer.ClientURL(),
		VoiceReceivedSubject:   "voice." + suffix,
		UserTextSubject:        "text." + suffix,
		UserActionSubject:      "action." + suffix,
		AssistantReplySubject:  "reply." + suffix,
		VoiceObjectStoreBucket: "voice-payloads",
		ProfileKVBucket:        "profiles",
	}

	store := newMockStore()
	transcoder := &mockTranscoder{wav: buildWAV(t, 5*time.Second)}
	ingestor := ingest.New(config.AudioConfig{
		MaxSizeMB:          20,
		MaxDurationSeconds: 300,
		SampleRate:         16000,
	}, transcoder, testLogger)

	sessions := dialogue.NewManager(config.DialogueConfig{
		SessionTimeoutMinutes: 10,
		MaxEdits:              3,
	}, "fa", testLogger)

	contentHandoff := handoff.New(&mockProfileStore{}, 2000, testLogger)
	generator := &mockGenerator{content: "۱. کپشن اول\n\n---\n\n۲. کپشن دوم"}

	workerInstance := worker.NewNatsWorker(
		natsConnection,
		natsCfg,
		store,
		ingestor,
		sessions,
		contentHandoff,
		generator,
		testLogger,
	)

	sched := scheduler.New(config.SchedulerConfig{
		QueueCapacity:     16,
		Workers:           1,
		JobTimeoutSeconds: 10,
		MaxRetries:        3,
		RetryBackoffMS:    10,
	}, engine, workerInstance.HandleResult, testLogger)
	workerInstance.AttachScheduler(sched)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	sched.Start(ctx)
	t.Cleanup(sched.Stop)

	replies := make(chan messaging.AssistantReplyEvent, 16)

	_, err = natsConnection.Subscribe(natsCfg.AssistantReplySubject, func(msg *nats.Msg) {
		var replyEvent messaging.AssistantReplyEvent

		if unmarshalErr := json.Unmarshal(msg.Data, &replyEvent); unmarshalErr == nil {
			replies <- replyEvent
		}
	})
	require.NoError(t, err)

	go func() {
		runErr := workerInstance.Run(ctx)
		if runErr != nil {
			testLogger.Error("worker run: %v", runErr)
		}
	}()

	// Let the worker's subscriptions settle.
	require.NoError(t, natsConnection.Flush())
	time.Sleep(50 * time.Millisecond)

	return &harness{
		conn:      natsConnection,
		natsCfg:   natsCfg,
		store:     store,
		generator: generator,
		replies:   replies,
	}
}

func (h *harness) publish(t *testing.T, subject string, event any) {
	t.Helper()

	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, h.conn.Publish(subject, data))
}

func (h *harness) action(t *testing.T, userID, action string) {
	t.Helper()

	h.publish(t, h.natsCfg.UserActionSubject, messaging.UserActionEvent{
		Header: header(userID),
		Action: action,
	})
}

func (h *harness) text(t *testing.T, userID, text string) {
	t.Helper()

	h.publish(t, h.natsCfg.UserTextSubject, messaging.UserTextEvent{
		Header: header(userID),
		Text:   text,
	})
}

func (h *harness) voice(t *testing.T, userID string, payload []byte) string {
	t.Helper()

	audioKey := uuid.NewString()
	require.NoError(t, h.store.Upload(context.Background(), audioKey, payload))

	h.publish(t, h.natsCfg.VoiceReceivedSubject, messaging.VoiceReceivedEvent{
		Header:                  header(userID),
		AudioKey:                audioKey,
		DeclaredSizeBytes:       int64(len(payload)),
		DeclaredDurationSeconds: 5,
	})

	return audioKey
}

func (h *harness) nextReply(t *testing.T) messaging.AssistantReplyEvent {
	t.Helper()

	select {
	case replyEvent := <-h.replies:
		return replyEvent
	case <-time.After(replyWait):
		t.Fatal("timed out waiting for an assistant reply")

		return messaging.AssistantReplyEvent{}
	}
}

// replyContaining reads replies until one contains the wanted substring,
// skipping interleaved progress messages.
func (h *harness) replyContaining(t *testing.T, want string) messaging.AssistantReplyEvent {
	t.Helper()

	deadline := time.After(replyWait)

	for {
		select {
		case replyEvent := <-h.replies:
			if strings.Contains(replyEvent.Message, want) {
				return replyEvent
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a reply containing %q", want)

			return messaging.AssistantReplyEvent{}
		}
	}
}

func header(userID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     userID,
		TenantID:   "",
	}
}

func TestWorker_FullVoiceToContentFlow(t *testing.T) {
	t.Parallel()

	h := setupHarness(t)
	userID := "user-flow"

	h.action(t, userID, messaging.ActionSelectCaption)
	first := h.nextReply(t)
	assert.Contains(t, first.Message, "کپشن")

	audioKey := h.voice(t, userID, []byte("ogg-bytes"))

	// The transcribing ack and the confirm prompt come from different
	// goroutines; their relative order is not guaranteed.
	confirmPrompt := h.replyContaining(t, "یک انگشتر طلای جدید دارم")
	assert.False(t, confirmPrompt.Final)

	// The stored payload is spent once ingestion has the WAV in memory.
	assert.True(t, h.store.wasDeleted(audioKey))

	h.action(t, userID, messaging.ActionConfirm)

	final := h.replyContaining(t, "کپشن اول")
	assert.True(t, final.Final)

	request := h.generator.lastRequest()
	require.NotNil(t, request)
	assert.Equal(t, userID, request.UserID)
	assert.Equal(t, core.ContentCaption, request.ContentType)
	assert.Equal(t, "گوهر گالری", request.Profile.BusinessName)
	assert.Equal(t, "یک انگشتر طلای جدید دارم", request.Prompt)
}

func TestWorker_VoiceBeforeContentTypeIsRejected(t *testing.T) {
	t.Parallel()

	h := setupHarness(t)

	h.voice(t, "user-novice", []byte("ogg-bytes"))

	replyEvent := h.nextReply(t)
	assert.Contains(t, replyEvent.Message, "نوع محتوا")
}

func TestWorker_EditFlowReplacesTranscript(t *testing.T) {
	t.Parallel()

	h := setupHarness(t)
	userID := "user-edit"

	h.action(t, userID, messaging.ActionSelectReels)
	h.nextReply(t)

	h.voice(t, userID, []byte("ogg-bytes"))
	h.replyContaining(t, "یک انگشتر طلای جدید دارم")

	h.action(t, userID, messaging.ActionEdit)
	h.replyContaining(t, "تایپ کن")

	h.text(t, userID, "یک گردنبند نقره دارم")
	h.replyContaining(t, "یک گردنبند نقره دارم")

	h.action(t, userID, messaging.ActionConfirm)

	final := h.replyContaining(t, "کپشن اول")
	assert.True(t, final.Final)

	request := h.generator.lastRequest()
	require.NotNil(t, request)
	assert.Equal(t, "یک گردنبند نقره دارم", request.Prompt)
}

func TestWorker_TypedPromptSkipsTranscription(t *testing.T) {
	t.Parallel()

	h := setupHarness(t)
	userID := "user-typed"

	h.action(t, userID, messaging.ActionSelectVisual)
	h.nextReply(t)

	h.text(t, userID, "سرویس طلای عروس با نگین یاقوت")
	h.nextReply(t) // generating

	final := h.nextReply(t)
	assert.True(t, final.Final)

	request := h.generator.lastRequest()
	require.NotNil(t, request)
	assert.Equal(t, core.ContentVisual, request.ContentType)
	assert.Equal(t, "سرویس طلای عروس با نگین یاقوت", request.Prompt)
}

func TestWorker_CancelIsSilentAndTearsDownSession(t *testing.T) {
	t.Parallel()

	h := setupHarness(t)
	userID := "user-cancel"

	h.action(t, userID, messaging.ActionSelectCaption)
	h.nextReply(t)

	h.action(t, userID, messaging.ActionCancel)

	// Cancel reclaims quietly: the next reply the worker publishes is the
	// rejection of the follow-up voice, not a cancel acknowledgement.
	h.voice(t, userID, []byte("ogg-bytes"))
	rejected := h.nextReply(t)
	assert.NotContains(t, rejected.Message, "لغو")
	assert.Contains(t, rejected.Message, "نوع محتوا")
}

func TestWorker_TextWhileTranscribingGetsGuidance(t *testing.T) {
	t.Parallel()

	engine := &mockEngine{text: "متن ویس بعد از انتظار", block: make(chan struct{})}
	h := setupHarnessWithEngine(t, engine)
	userID := "user-busy"

	h.action(t, userID, messaging.ActionSelectCaption)
	h.nextReply(t)

	h.voice(t, userID, []byte("ogg-bytes"))
	h.replyContaining(t, "صبر کن")

	// Transcription is still running; typed text must get guidance, not an
	// empty-prompt complaint.
	h.text(t, userID, "سلام")
	guidance := h.nextReply(t)
	assert.Contains(t, guidance.Message, "نوع محتوا")

	close(engine.block)
	h.replyContaining(t, "متن ویس بعد از انتظار")
}

func TestWorker_TextWithoutSessionGetsGuidance(t *testing.T) {
	t.Parallel()

	h := setupHarness(t)

	h.text(t, "user-lost", "سلام")

	replyEvent := h.nextReply(t)
	assert.True(t, strings.Contains(replyEvent.Message, "نوع محتوا"))
}

// Package scheduler mediates access to the speech-to-text capability. It is
// the only component allowed to touch the inference backend: a bounded FIFO
// queue feeds a fixed worker pool, with per-user single-flight exclusion,
// per-job deadlines, and retry with exponential backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
	"github.com/gohar-studio/voice-engine/internal/ingest"
)

// Result is the asynchronous completion of one transcription job. Err is nil
// on success; otherwise it wraps core.ErrTranscriptionFailed or
// core.ErrCorruptAudio.
type Result struct {
	RequestID string
	UserID    string
	Text      string
	Attempts  int
	Err       error
}

// job is the internal unit of scheduled work wrapping one voice request.
type job struct {
	requestID  string
	userID     string
	audio      *ingest.ValidatedAudio
	attempts   int
	enqueuedAt time.Time
	cancelled  atomic.Bool
}

// Scheduler owns the transcription queue and worker pool.
type Scheduler struct {
	engine   core.SpeechEngine
	cfg      config.SchedulerConfig
	onResult func(Result)
	log      *logger.Logger

	queue     chan *job
	mu        sync.Mutex
	inflight  map[string]*job
	executing atomic.Int64

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. Results are delivered on scheduler goroutines via
// onResult; callers must not block in it.
func New(
	cfg config.SchedulerConfig,
	engine core.SpeechEngine,
	onResult func(Result),
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		engine:   engine,
		cfg:      cfg,
		onResult: onResult,
		log:      log,
		queue:    make(chan *job, cfg.QueueCapacity),
		inflight: make(map[string]*job),
	}
}

// Start launches the worker pool. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.runCtx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)

		go s.runWorker(s.runCtx)
	}

	s.log.System("Transcription scheduler started: %d workers, queue capacity %d",
		s.cfg.Workers, s.cfg.QueueCapacity)
}

// Stop cancels the workers and waits for them to drain.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	s.wg.Wait()
}

// Submit enqueues one validated recording for the given user. It never
// blocks: a full queue yields core.ErrOverloaded, and a user with a job
// already queued or executing yields core.ErrAlreadyInProgress.
func (s *Scheduler) Submit(userID, requestID string, audio *ingest.ValidatedAudio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[userID]; busy {
		return core.ErrAlreadyInProgress
	}

	newJob := &job{
		requestID:  requestID,
		userID:     userID,
		audio:      audio,
		attempts:   0,
		enqueuedAt: time.Now(),
	}

	select {
	case s.queue <- newJob:
		s.inflight[userID] = newJob

		return nil
	default:
		return core.ErrOverloaded
	}
}

// Cancel marks the user's pending job, if any, as cancelled. A queued job is
// dropped at dispatch; an executing job's result is discarded when it
// arrives. No preemption.
func (s *Scheduler) Cancel(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.inflight[userID]
	if !ok {
		return
	}

	pending.cancelled.Store(true)
	delete(s.inflight, userID)
}

// QueueDepth reports how many jobs are waiting for a worker.
func (s *Scheduler) QueueDepth() int {
	return len(s.queue)
}

// Executing reports how many jobs are currently running on the backend.
func (s *Scheduler) Executing() int {
	return int(s.executing.Load())
}

func (s *Scheduler) runWorker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case pending := <-s.queue:
			if pending.cancelled.Load() {
				continue
			}

			s.execute(ctx, pending)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, pending *job) {
	pending.attempts++

	s.executing.Add(1)

	jobCtx, cancelJob := context.WithTimeout(ctx, s.cfg.JobTimeout())
	text, err := s.engine.Transcribe(jobCtx, pending.audio.WAV)

	cancelJob()
	s.executing.Add(-1)

	if pending.cancelled.Load() {
		// Session went away while the model was running; the run is
		// wasted but harmless.
		s.log.Info("Discarding result of cancelled job %s", pending.requestID)

		return
	}

	if err == nil {
		s.release(pending)
		s.onResult(Result{
			RequestID: pending.requestID,
			UserID:    pending.userID,
			Text:      text,
			Attempts:  pending.attempts,
			Err:       nil,
		})

		return
	}

	if !shouldRetry(err, pending.attempts, s.cfg.MaxRetries) {
		s.fail(pending, err)

		return
	}

	s.log.Warn("Transcription attempt %d/%d for %s failed, retrying: %v",
		pending.attempts, s.cfg.MaxRetries, pending.requestID, err)
	s.requeueAfter(ctx, pending, retryDelay(s.cfg.RetryBackoff(), pending.attempts), err)
}

// requeueAfter re-enqueues the job once the backoff elapses, without holding
// a worker for the wait.
func (s *Scheduler) requeueAfter(ctx context.Context, pending *job, delay time.Duration, lastErr error) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if pending.cancelled.Load() {
			return
		}

		select {
		case s.queue <- pending:
		default:
			// Queue filled up while backing off; give up rather than
			// wait unboundedly.
			s.fail(pending, lastErr)
		}
	}()
}

func (s *Scheduler) fail(pending *job, cause error) {
	s.release(pending)

	wrapped := fmt.Errorf("%w after %d attempt(s): %w",
		core.ErrTranscriptionFailed, pending.attempts, cause)
	if errors.Is(cause, core.ErrCorruptAudio) {
		wrapped = fmt.Errorf("%w: %w", core.ErrCorruptAudio, cause)
	}

	s.log.Error("Transcription job %s failed permanently: %v", pending.requestID, cause)
	s.onResult(Result{
		RequestID: pending.requestID,
		UserID:    pending.userID,
		Text:      "",
		Attempts:  pending.attempts,
		Err:       wrapped,
	})
}

func (s *Scheduler) release(pending *job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.inflight[pending.userID]; ok && current == pending {
		delete(s.inflight, pending.userID)
	}
}

// shouldRetry is a pure function of the attempt count and the failure kind.
// MaxRetries bounds the total number of attempts; deadline and transient
// backend failures are retryable, corrupt input never is.
func shouldRetry(err error, attempts, maxRetries int) bool {
	if attempts >= maxRetries {
		return false
	}

	retryable := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, core.ErrTranscriptionUnavailable)

	return retryable
}

// retryDelay doubles the base backoff for each completed attempt.
func retryDelay(base time.Duration, attempts int) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
	}

	return delay
}

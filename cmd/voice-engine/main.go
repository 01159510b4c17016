// main package for the voice-engine service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/dialogue"
	"github.com/gohar-studio/voice-engine/internal/generation"
	"github.com/gohar-studio/voice-engine/internal/handoff"
	"github.com/gohar-studio/voice-engine/internal/httpapi"
	"github.com/gohar-studio/voice-engine/internal/ingest"
	"github.com/gohar-studio/voice-engine/internal/objectstore"
	"github.com/gohar-studio/voice-engine/internal/profile"
	"github.com/gohar-studio/voice-engine/internal/scheduler"
	"github.com/gohar-studio/voice-engine/internal/speech"
	"github.com/gohar-studio/voice-engine/internal/worker"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "voice-engine.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve wires every component and blocks until shutdown.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	voiceStore, err := objectstore.New(jetstreamContext, cfg.NATS.VoiceObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize voice store: %w", err)
	}

	profileStore, err := profile.New(jetstreamContext, cfg.NATS.ProfileKVBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize profile store: %w", err)
	}

	speechClient := speech.NewClient(cfg.Speech)
	ingestor := ingest.New(cfg.Audio, ingest.NewFFmpegTranscoder(log), log)
	sessions := dialogue.NewManager(cfg.Dialogue, cfg.Speech.Language, log)
	contentHandoff := handoff.New(profileStore, cfg.Generation.MaxPromptChars, log)
	generator := generation.New(cfg.Generation, os.Getenv(cfg.Generation.APIKeyEnv), log)

	natsWorker := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS,
		voiceStore,
		ingestor,
		sessions,
		contentHandoff,
		generator,
		log,
	)

	sched := scheduler.New(cfg.Scheduler, speechClient, natsWorker.HandleResult, log)
	natsWorker.AttachScheduler(sched)

	sched.Start(ctx)
	defer sched.Stop()

	statusServer := httpapi.New(cfg.HTTP.ListenAddr, sched, sessions, speechClient, log)

	errCh := make(chan error, 2)

	go func() {
		errCh <- statusServer.Run(ctx)
	}()

	go func() {
		errCh <- natsWorker.Run(ctx)
	}()

	log.System("Voice engine started. Subjects: voice=%s text=%s action=%s",
		cfg.NATS.VoiceReceivedSubject, cfg.NATS.UserTextSubject, cfg.NATS.UserActionSubject)

	<-ctx.Done()

	// Collect both loops so their shutdown errors are not lost.
	for i := 0; i < 2; i++ {
		loopErr := <-errCh
		if loopErr != nil {
			log.Error("Component shut down with error: %v", loopErr)
		}
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}

package ingest

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"
)

const tempFilePermissions = 0o600

// FFmpegTranscoder converts arbitrary container formats (ogg/opus voice
// notes, m4a, mp3) to mono WAV by calling the ffmpeg binary.
type FFmpegTranscoder struct {
	log *logger.Logger
}

// NewFFmpegTranscoder creates a transcoder backed by the ffmpeg binary on PATH.
func NewFFmpegTranscoder(log *logger.Logger) *FFmpegTranscoder {
	return &FFmpegTranscoder{log: log}
}

// ToWAV writes the payload to a temp file, runs ffmpeg, and reads the result
// back. Temp files are removed regardless of outcome.
func (t *FFmpegTranscoder) ToWAV(ctx context.Context, payload []byte, sampleRate int) ([]byte, error) {
	inputFile, err := os.CreateTemp("", "voice-input-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp input file: %w", err)
	}

	defer t.removeTemp(inputFile.Name())

	outputFile, err := os.CreateTemp("", "voice-output-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp output file: %w", err)
	}

	defer t.removeTemp(outputFile.Name())

	writeErr := os.WriteFile(inputFile.Name(), payload, tempFilePermissions)
	if writeErr != nil {
		return nil, fmt.Errorf("failed to write temp input file: %w", writeErr)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-i", inputFile.Name(),
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "wav",
		outputFile.Name(),
	}

	// #nosec G204 -- arguments are fixed flags plus generated temp paths
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg execution failed: %w - output: %s", err, string(output))
	}

	wav, err := os.ReadFile(outputFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded audio: %w", err)
	}

	return wav, nil
}

func (t *FFmpegTranscoder) removeTemp(name string) {
	removeErr := os.Remove(name)
	if removeErr != nil {
		t.log.Warn("Failed to remove temp file '%s': %v", name, removeErr)
	}
}

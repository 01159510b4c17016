// Package ingest validates and normalizes inbound voice payloads before any
// inference resource is consumed.
package ingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/gohar-studio/voice-engine/internal/config"
	"github.com/gohar-studio/voice-engine/internal/core"
)

// ValidatedAudio is the normalized result of a successful ingest. The
// measured duration is authoritative downstream; the declared one is only a
// cheap pre-check.
type ValidatedAudio struct {
	WAV        []byte
	Duration   time.Duration
	SampleRate int
}

// Transcoder converts an arbitrary audio payload to canonical mono WAV at the
// given sample rate.
type Transcoder interface {
	ToWAV(ctx context.Context, payload []byte, sampleRate int) ([]byte, error)
}

// Ingestor enforces the size, duration, and format limits. It mutates nothing
// beyond the returned value.
type Ingestor struct {
	transcoder   Transcoder
	maxSizeBytes int64
	maxDuration  time.Duration
	sampleRate   int
	log          *logger.Logger
}

// New creates an Ingestor bound to the configured audio limits.
func New(cfg config.AudioConfig, transcoder Transcoder, log *logger.Logger) *Ingestor {
	return &Ingestor{
		transcoder:   transcoder,
		maxSizeBytes: cfg.MaxSizeBytes(),
		maxDuration:  cfg.MaxDuration(),
		sampleRate:   cfg.SampleRate,
		log:          log,
	}
}

// Ingest runs the full validation gate: declared limits first, then the
// actual payload size, then transcoding, then the measured duration. Every
// check precedes the expensive transcription path.
func (i *Ingestor) Ingest(
	ctx context.Context,
	payload []byte,
	declaredSize int64,
	declaredDuration time.Duration,
) (*ValidatedAudio, error) {
	if declaredSize > i.maxSizeBytes || int64(len(payload)) > i.maxSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d",
			core.ErrTooLarge, max64(declaredSize, int64(len(payload))), i.maxSizeBytes)
	}

	if declaredDuration > i.maxDuration {
		return nil, fmt.Errorf("%w: declared %s, limit %s",
			core.ErrTooLong, declaredDuration, i.maxDuration)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", core.ErrUnsupportedFormat)
	}

	wav, err := i.transcoder.ToWAV(ctx, payload, i.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, err)
	}

	measured, err := wavDuration(wav)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, err)
	}

	if measured > i.maxDuration {
		return nil, fmt.Errorf("%w: measured %s, limit %s",
			core.ErrTooLong, measured.Round(time.Second), i.maxDuration)
	}

	i.log.Info("Audio validated: %d bytes in, %d bytes wav, %s", len(payload), len(wav), measured.Round(time.Millisecond))

	return &ValidatedAudio{
		WAV:        wav,
		Duration:   measured,
		SampleRate: i.sampleRate,
	}, nil
}

// RIFF/WAV layout constants for the duration measurement.
const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtByteRateOff  = 8
	minFmtChunkSize = 16
)

// wavDuration reads the byte rate from the fmt chunk and the data chunk size
// to compute the recording length without decoding samples.
func wavDuration(wav []byte) (time.Duration, error) {
	if len(wav) < riffHeaderSize ||
		string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		byteRate uint32
		dataSize uint32
		haveFmt  bool
		haveData bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(wav[offset+4 : offset+8])
		body := offset + chunkHeaderSize

		switch chunkID {
		case "fmt ":
			if chunkSize < minFmtChunkSize || body+minFmtChunkSize > len(wav) {
				return 0, fmt.Errorf("truncated fmt chunk")
			}

			byteRate = binary.LittleEndian.Uint32(wav[body+fmtByteRateOff : body+fmtByteRateOff+4])
			haveFmt = true
		case "data":
			// Streamed encoders may leave the size field unset; fall
			// back to the remaining byte count.
			if chunkSize == 0 || chunkSize == 0xFFFFFFFF || body+int(chunkSize) > len(wav) {
				dataSize = uint32(len(wav) - body)
			} else {
				dataSize = chunkSize
			}

			haveData = true
		}

		if haveFmt && haveData {
			break
		}

		// Chunks are word aligned.
		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFmt || !haveData {
		return 0, fmt.Errorf("missing fmt or data chunk")
	}

	if byteRate == 0 {
		return 0, fmt.Errorf("zero byte rate")
	}

	seconds := float64(dataSize) / float64(byteRate)

	return time.Duration(seconds * float64(time.Second)), nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}

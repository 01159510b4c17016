// Package handoff packages a finalized prompt into a request for the content
// generation capability. Pure packaging: no retries, no state.
package handoff

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/gohar-studio/voice-engine/internal/core"
)

// Handoff validates finalized text and attaches the user's style context.
type Handoff struct {
	profiles       core.ProfileStore
	maxPromptChars int
	log            *logger.Logger
}

// New creates a Handoff reading profiles from the given store.
func New(profiles core.ProfileStore, maxPromptChars int, log *logger.Logger) *Handoff {
	return &Handoff{
		profiles:       profiles,
		maxPromptChars: maxPromptChars,
		log:            log,
	}
}

// Build validates the prompt and emits a GenerationRequest. Profile store
// failures are surfaced unchanged; generation failures are out of scope here.
func (h *Handoff) Build(
	ctx context.Context,
	userID, text string,
	contentType core.ContentType,
) (*core.GenerationRequest, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, core.ErrEmptyInput
	}

	if utf8.RuneCountInString(trimmed) > h.maxPromptChars {
		return nil, fmt.Errorf("%w: %d chars, limit %d",
			core.ErrPromptTooLong, utf8.RuneCountInString(trimmed), h.maxPromptChars)
	}

	profile, err := h.profiles.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for user %s: %w", userID, err)
	}

	return &core.GenerationRequest{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		Prompt:      trimmed,
		ContentType: contentType,
		Profile:     profile,
	}, nil
}

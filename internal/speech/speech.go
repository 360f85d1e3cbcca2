// Package speech abstracts text-to-speech as an injected capability so the
// chat CLI's read-aloud mode can be tested without audio hardware.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"
)

// Synthesizer turns text into audible speech. Speak blocks until playback
// finishes or ctx is cancelled; Stop aborts any in-progress playback.
type Synthesizer interface {
	Speak(ctx context.Context, text, lang string) error
	Stop()
}

// CommandSynthesizer shells out to a local TTS program (espeak, say).
type CommandSynthesizer struct {
	// Program is the TTS binary; defaults to espeak.
	Program string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewCommandSynthesizer creates a synthesizer using the given program, or
// espeak when empty.
func NewCommandSynthesizer(program string) *CommandSynthesizer {
	if program == "" {
		program = "espeak"
	}
	return &CommandSynthesizer{Program: program}
}

// Speak reads the text aloud in the given language ("en-US", "hi-IN").
func (s *CommandSynthesizer) Speak(ctx context.Context, text, lang string) error {
	if text == "" {
		return nil
	}

	var args []string
	switch s.Program {
	case "say":
		// macOS say has no language flag; voice selection covers it.
		args = []string{text}
	default:
		if lang != "" {
			args = []string{"-v", lang, text}
		} else {
			args = []string{text}
		}
	}

	cmd := exec.CommandContext(ctx, s.Program, args...)

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	log.Debug().Str("program", s.Program).Str("lang", lang).Msg("Starting speech synthesis")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("speech synthesis failed: %w", err)
	}
	return nil
}

// Stop aborts in-progress playback, if any
func (s *CommandSynthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

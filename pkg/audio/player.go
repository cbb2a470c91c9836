// Package audio plays synthesized speech on the local machine.
package audio

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
)

// ErrNoBackend is returned when no playback command is installed.
var ErrNoBackend = errors.New("audio: no playback backend found (install ffplay, mpg123 or afplay)")

// Player plays one audio buffer to completion. Play blocks for the
// duration of playback; cancelling the context stops playback immediately,
// which is how interrupt-priority speech cuts off a normal utterance.
type Player interface {
	Play(ctx context.Context, audio []byte, format string) error
}

// playbackCommands lists known CLI players in preference order, with the
// arguments that make them read compressed audio from stdin quietly.
var playbackCommands = []struct {
	name string
	args []string
}{
	{"ffplay", []string{"-autoexit", "-nodisp", "-loglevel", "quiet", "-"}},
	{"mpg123", []string{"-q", "-"}},
	{"afplay", []string{"/dev/stdin"}},
}

// ExecPlayer shells out to a local audio player.
type ExecPlayer struct {
	command string
	args    []string
	logger  *slog.Logger
}

// NewExecPlayer finds the first available playback command on PATH.
func NewExecPlayer(logger *slog.Logger) (*ExecPlayer, error) {
	for _, c := range playbackCommands {
		if _, err := exec.LookPath(c.name); err == nil {
			logger.Info("audio playback backend selected", "command", c.name)
			return &ExecPlayer{
				command: c.name,
				args:    c.args,
				logger:  logger.With("component", "audio"),
			}, nil
		}
	}
	return nil, ErrNoBackend
}

// Play pipes the audio to the playback command and waits for it to finish.
// Context cancellation kills the player process.
func (p *ExecPlayer) Play(ctx context.Context, audio []byte, format string) error {
	if len(audio) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader(audio)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Cancelled playback is expected on interrupts and shutdown.
			return ctx.Err()
		}
		p.logger.Warn("playback failed", "command", p.command, "error", err)
		return err
	}
	return nil
}

// Verify ExecPlayer implements Player at compile time.
var _ Player = (*ExecPlayer)(nil)

package control

import (
	"context"
	"log/slog"

	"github.com/wheredamilk/go-wheredamilk/pkg/stt"
)

// Listener bridges the transcript stream to the controller. It runs in
// its own goroutine and touches the controller only through
// SubmitCommand, never through shared state.
type Listener struct {
	transcriber stt.Transcriber
	controller  *Controller
	logger      *slog.Logger
}

// NewListener creates a listener over an open transcriber.
func NewListener(transcriber stt.Transcriber, controller *Controller, logger *slog.Logger) *Listener {
	return &Listener{
		transcriber: transcriber,
		controller:  controller,
		logger:      logger.With("component", "listener"),
	}
}

// Run consumes transcripts until ctx is cancelled or the stream closes.
func (l *Listener) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-l.transcriber.Transcripts():
			if !ok {
				l.logger.Info("transcript stream closed")
				return
			}
			cmd, ok := ParseTranscript(text)
			if !ok {
				l.logger.Debug("ignoring transcript", "text", text)
				continue
			}
			l.logger.Info("heard command", "intent", cmd.Intent.String(), "argument", cmd.Argument)
			l.controller.SubmitCommand(cmd)
		}
	}
}

package stt

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	dialTimeout = 10 * time.Second
	readTimeout = 90 * time.Second
	maxBackoff  = 30 * time.Second
)

// transcriptFrame is the wire shape the listener sidecar emits. Interim
// results carry final=false and are ignored here.
type transcriptFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// WebsocketTranscriber maintains a websocket connection to the listener
// sidecar, reconnecting with exponential backoff when the connection
// drops. Only finalized, non-empty transcripts are forwarded.
type WebsocketTranscriber struct {
	url    string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	out chan string

	mu    sync.Mutex
	fails int

	closeOnce sync.Once
}

// NewWebsocketTranscriber connects to the listener at url (e.g.
// ws://localhost:8765/transcripts) and starts the receive loop.
func NewWebsocketTranscriber(url string, logger *slog.Logger) *WebsocketTranscriber {
	ctx, cancel := context.WithCancel(context.Background())
	t := &WebsocketTranscriber{
		url:    url,
		logger: logger.With("component", "stt"),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan string, 16),
	}
	go t.run()
	return t
}

// Transcripts returns the stream of finalized transcripts.
func (t *WebsocketTranscriber) Transcripts() <-chan string {
	return t.out
}

// Close stops the receive loop and closes the transcript channel.
func (t *WebsocketTranscriber) Close() error {
	t.closeOnce.Do(t.cancel)
	return nil
}

func (t *WebsocketTranscriber) run() {
	defer close(t.out)
	for {
		if err := t.connectAndPump(); err != nil {
			t.mu.Lock()
			t.fails++
			t.mu.Unlock()
			t.logger.Warn("listener connection lost", "url", t.url, "error", err)
		} else {
			t.mu.Lock()
			t.fails = 0
			t.mu.Unlock()
		}
		if t.ctx.Err() != nil {
			return
		}
		select {
		case <-t.ctx.Done():
			return
		case <-time.After(t.nextBackoff()):
		}
	}
}

func (t *WebsocketTranscriber) connectAndPump() error {
	dialCtx, cancel := context.WithTimeout(t.ctx, dialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()
	t.logger.Info("connected to listener", "url", t.url)

	// Unblock the blocking read when Close is called.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-t.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if t.ctx.Err() != nil {
				return nil
			}
			return err
		}

		var frame transcriptFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.logger.Debug("ignoring malformed frame", "error", err)
			continue
		}
		if frame.Type != "" && frame.Type != "transcript" {
			continue
		}
		if !frame.Final {
			continue
		}
		text := strings.TrimSpace(frame.Text)
		if text == "" {
			continue
		}

		select {
		case t.out <- text:
		default:
			// Slow consumer; dropping is better than backing up the
			// listener connection.
			t.logger.Warn("dropping transcript, consumer is behind", "text", text)
		}
	}
}

func (t *WebsocketTranscriber) nextBackoff() time.Duration {
	t.mu.Lock()
	n := t.fails
	t.mu.Unlock()
	if n <= 0 {
		return time.Second
	}
	if n > 5 {
		n = 5
	}
	d := time.Duration(1<<uint(n-1)) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

var _ Transcriber = (*WebsocketTranscriber)(nil)

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wheredamilk/go-wheredamilk/internal/httpc"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"

	// ModelTurboV2 is the lowest-latency English model (~300ms).
	ModelTurboV2 = "eleven_turbo_v2"
)

// ElevenLabs implements Provider for the ElevenLabs TTS API.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// ElevenLabsOption configures the provider.
type ElevenLabsOption func(*ElevenLabs)

// WithBaseURL overrides the default API endpoint (used in tests).
func WithBaseURL(url string) ElevenLabsOption {
	return func(e *ElevenLabs) { e.baseURL = url }
}

// WithModel overrides the default model.
func WithModel(modelID string) ElevenLabsOption {
	return func(e *ElevenLabs) { e.modelID = modelID }
}

// NewElevenLabs creates a new ElevenLabs TTS provider.
func NewElevenLabs(apiKey, voiceID string, logger *slog.Logger, opts ...ElevenLabsOption) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if voiceID == "" {
		return nil, ErrNoVoiceID
	}

	e := &ElevenLabs{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: ModelTurboV2,
		baseURL: elevenLabsBaseURL,
		client:  httpc.NewClient(30 * time.Second),
		logger:  logger.With("component", "tts.elevenlabs"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts text to audio, returning the complete MP3 buffer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/text-to-speech/%s", e.baseURL, e.voiceID)
	body, err := json.Marshal(synthesizeRequest{Text: text, ModelID: e.modelID})
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			Provider:   providerElevenLabs,
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("read response: %w", err))
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"model", e.modelID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    "mp3_44100_128",
		Duration:  estimateDuration(len(audio)),
		LatencyMs: latency,
	}, nil
}

// Health checks API key validity against the voices endpoint.
func (e *ElevenLabs) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/voices", nil)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return WrapError(providerElevenLabs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: "health check failed", Provider: providerElevenLabs}
	}
	return nil
}

// Close releases resources (none held beyond the shared HTTP client).
func (e *ElevenLabs) Close() error {
	return nil
}

// estimateDuration approximates MP3 playback time at 128kbps.
func estimateDuration(byteLen int) time.Duration {
	const bytesPerSecond = 128_000 / 8
	return time.Duration(float64(byteLen) / bytesPerSecond * float64(time.Second))
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)

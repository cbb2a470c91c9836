// Package tts provides a unified interface for text-to-speech providers.
//
// The speech scheduler treats synthesis as a black box: hand it text, get
// audio back. Providers implement the Provider interface so the primary
// engine can be swapped or chained with fallbacks without changing caller
// code.
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio contains the raw audio data in the specified format.
	Audio []byte

	// Format names the audio encoding (e.g. "mp3_44100_128").
	Format string

	// Duration is the estimated playback duration.
	Duration time.Duration

	// LatencyMs is the time to synthesis completion in milliseconds.
	LatencyMs int64
}

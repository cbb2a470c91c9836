package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing. Behavior can be customized via
// function fields; by default it returns short silent audio.
type Mock struct {
	// SynthesizeFunc overrides synthesis when set.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)

	// HealthFunc overrides the health check when set.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []string
}

// NewMock creates a mock provider that returns silent audio with roughly
// natural pacing (~20ms per character).
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			return &AudioResult{
				Audio:    make([]byte, len(text)*320),
				Format:   "pcm_16000",
				Duration: time.Duration(len(text)) * 20 * time.Millisecond,
			}, nil
		},
	}
}

// Failing returns a mock whose every call fails with err.
func Failing(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text string) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Synthesize records the text and delegates to SynthesizeFunc.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health delegates to HealthFunc or reports healthy.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

// Calls returns every synthesized text in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many synthesis calls were made.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)

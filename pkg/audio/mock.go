package audio

import (
	"context"
	"sync"
	"time"
)

// MockPlayer implements Player for testing. It tracks how many plays ran
// concurrently so tests can assert that speech is never doubled up.
type MockPlayer struct {
	// Delay simulates playback duration. Cancelling the context during
	// the delay aborts the play, as with a real player process.
	Delay time.Duration

	mu        sync.Mutex
	active    int
	maxActive int
	plays     int
	cancelled int
}

// Play simulates blocking playback.
func (m *MockPlayer) Play(ctx context.Context, audio []byte, format string) error {
	m.mu.Lock()
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	m.plays++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			m.mu.Lock()
			m.cancelled++
			m.mu.Unlock()
			return ctx.Err()
		}
	}
	return nil
}

// Plays returns how many plays started.
func (m *MockPlayer) Plays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays
}

// MaxConcurrent returns the peak number of simultaneous plays.
func (m *MockPlayer) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Cancelled returns how many plays were cut off mid-playback.
func (m *MockPlayer) Cancelled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Verify MockPlayer implements Player at compile time.
var _ Player = (*MockPlayer)(nil)

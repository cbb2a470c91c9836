package stt

import "sync"

// MockTranscriber implements Transcriber for testing. Tests push
// transcripts with Emit and end the stream with Close.
type MockTranscriber struct {
	out       chan string
	closeOnce sync.Once
}

// NewMockTranscriber creates a mock with a small buffer.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{out: make(chan string, 16)}
}

// Emit delivers a transcript to the consumer.
func (m *MockTranscriber) Emit(text string) {
	m.out <- text
}

// Transcripts returns the transcript stream.
func (m *MockTranscriber) Transcripts() <-chan string {
	return m.out
}

// Close ends the stream.
func (m *MockTranscriber) Close() error {
	m.closeOnce.Do(func() { close(m.out) })
	return nil
}

var _ Transcriber = (*MockTranscriber)(nil)

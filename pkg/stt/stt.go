// Package stt delivers finalized speech transcripts from an external
// listener service. It does no audio processing itself; the listener
// sidecar owns the microphone and the recognition model.
package stt

// Transcriber is a stream of finalized transcript strings. The channel
// is closed when the transcriber shuts down.
type Transcriber interface {
	Transcripts() <-chan string
	Close() error
}

package vision

import (
	"context"
	"sync"
)

// MockDetector implements Detector for testing. Each Detect call pops the
// next scripted frame of detections; when the script runs out, the last
// entry repeats.
type MockDetector struct {
	// DetectFunc overrides the scripted behavior when set.
	DetectFunc func(ctx context.Context, frame Frame) ([]Detection, error)

	mu     sync.Mutex
	script [][]Detection
	cursor int
	calls  int
}

// NewMockDetector creates a detector that replays the given frames.
func NewMockDetector(frames ...[]Detection) *MockDetector {
	return &MockDetector{script: frames}
}

// Detect returns the next scripted detection set.
func (m *MockDetector) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, frame)
	}
	if len(m.script) == 0 {
		return nil, nil
	}
	dets := m.script[m.cursor]
	if m.cursor < len(m.script)-1 {
		m.cursor++
	}
	return dets, nil
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockReader implements Reader for testing. Text is looked up by the
// region's label-independent box, keyed on box coordinates.
type MockReader struct {
	// ReadFunc overrides the table lookup when set.
	ReadFunc func(ctx context.Context, frame Frame, box Box) (string, float64, error)

	mu      sync.Mutex
	results map[Box]MockText
	calls   int
}

// MockText is a scripted OCR result.
type MockText struct {
	Text       string
	Confidence float64
}

// NewMockReader creates a reader with a box → text table.
func NewMockReader(results map[Box]MockText) *MockReader {
	if results == nil {
		results = make(map[Box]MockText)
	}
	return &MockReader{results: results}
}

// ReadRegion returns the scripted text for the box, or empty.
func (m *MockReader) ReadRegion(ctx context.Context, frame Frame, box Box) (string, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, frame, box)
	}
	r := m.results[box]
	return r.Text, r.Confidence, nil
}

// Calls returns how many times ReadRegion was invoked.
func (m *MockReader) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockDepth implements DepthEstimator for testing.
type MockDepth struct {
	// Present controls Available.
	Present bool

	// Value is returned for every region.
	Value float64

	// Err, when set, fails every BoxDepth call.
	Err error
}

// Available reports the scripted capability.
func (m *MockDepth) Available() bool {
	return m.Present
}

// BoxDepth returns the scripted value or error.
func (m *MockDepth) BoxDepth(ctx context.Context, frame Frame, box Box) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Value, nil
}

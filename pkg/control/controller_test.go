package control

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/wheredamilk/go-wheredamilk/pkg/matcher"
	"github.com/wheredamilk/go-wheredamilk/pkg/speech"
	"github.com/wheredamilk/go-wheredamilk/pkg/tracking"
	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// recordingSpeaker captures everything the controller wants spoken.
type recordingSpeaker struct {
	mu         sync.Mutex
	utterances []speech.Utterance
	resets     int
}

func (r *recordingSpeaker) Enqueue(u speech.Utterance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.utterances = append(r.utterances, u)
}

func (r *recordingSpeaker) ResetThrottle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

func (r *recordingSpeaker) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.utterances))
	for i, u := range r.utterances {
		out[i] = u.Text
	}
	return out
}

func (r *recordingSpeaker) count(text string) int {
	n := 0
	for _, t := range r.texts() {
		if t == text {
			n++
		}
	}
	return n
}

func (r *recordingSpeaker) containing(fragment string) *speech.Utterance {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.utterances {
		if strings.Contains(r.utterances[i].Text, fragment) {
			return &r.utterances[i]
		}
	}
	return nil
}

func testFrame() vision.Frame {
	return vision.Frame{Width: 640, Height: 480}
}

func newTestController(t *testing.T, detector vision.Detector, reader vision.Reader, depth vision.DepthEstimator, grace int, opts ...Option) (*Controller, *recordingSpeaker) {
	t.Helper()
	logger := testLogger()
	boundary := vision.NewBoundary(detector, reader, depth, logger)
	cfg := tracking.DefaultConfig()
	cfg.GraceFrames = grace
	tracker := tracking.New(cfg, logger)
	speaker := &recordingSpeaker{}
	c := New(boundary, matcher.New(logger), tracker, speaker, logger, opts...)
	return c, speaker
}

func TestFindLocksOnOCRText(t *testing.T) {
	box := vision.Box{X: 10, Y: 10, W: 50, H: 50}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "bottle", Confidence: 0.9, Box: box},
	})
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		box: {Text: "WHOLE MILK", Confidence: 0.8},
	})
	c, speaker := newTestController(t, detector, reader, nil, 5)

	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	c.ProcessFrame(context.Background(), testFrame())

	if got := c.Mode(); got != ModeFind {
		t.Fatalf("mode = %s, want find", got)
	}
	st := c.Status()
	if !st.Locked {
		t.Fatal("expected a locked target")
	}
	if st.Box != box {
		t.Errorf("locked box = %+v, want %+v", st.Box, box)
	}
	if speaker.count("Looking for milk.") != 1 {
		t.Error("missing find acknowledgment")
	}
	if speaker.count("Found milk!") != 1 {
		t.Error("missing lock announcement")
	}

	// Box center x=35 sits in the left third; first directive always
	// reports a change and bypasses the throttle.
	dir := speaker.containing("to your left")
	if dir == nil {
		t.Fatalf("no direction utterance in %v", speaker.texts())
	}
	if !dir.Bypass {
		t.Error("changed directive should bypass the throttle")
	}
}

func TestGraceLossTriggersResearch(t *testing.T) {
	box := vision.Box{X: 200, Y: 200, W: 80, H: 80}
	dets := []vision.Detection{{Label: "bottle", Confidence: 0.9, Box: box}}

	var calls int
	detector := &vision.MockDetector{
		DetectFunc: func(ctx context.Context, frame vision.Frame) ([]vision.Detection, error) {
			calls++
			if calls == 1 || calls >= 8 {
				return dets, nil
			}
			return nil, nil
		},
	}
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		box: {Text: "WHOLE MILK", Confidence: 0.8},
	})
	c, speaker := newTestController(t, detector, reader, nil, 5)
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	c.ProcessFrame(ctx, testFrame()) // locks

	// Five empty frames coast on the last box.
	for i := 0; i < 5; i++ {
		c.ProcessFrame(ctx, testFrame())
		if st := c.Status(); !st.Locked {
			t.Fatalf("lost lock during coasting at miss %d", i+1)
		}
		if st := c.Status(); st.Box != box {
			t.Fatalf("box drifted during coasting: %+v", st.Box)
		}
	}

	// Sixth consecutive miss exceeds the grace limit.
	c.ProcessFrame(ctx, testFrame())
	if st := c.Status(); st.Locked {
		t.Fatal("still locked after grace limit")
	}
	if speaker.containing("lost the milk") == nil {
		t.Errorf("no loss announcement in %v", speaker.texts())
	}

	// The matcher re-runs with the original query and re-locks once the
	// object reappears.
	c.ProcessFrame(ctx, testFrame())
	if st := c.Status(); !st.Locked {
		t.Fatal("expected re-lock after target reappeared")
	}
	if got := speaker.count("Found milk!"); got != 2 {
		t.Errorf("lock announcements = %d, want 2", got)
	}
}

func TestReadIsOneShot(t *testing.T) {
	box := vision.Box{X: 100, Y: 100, W: 200, H: 200}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "box", Confidence: 0.9, Box: box},
	})
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		box: {Text: "EXPIRES 2026", Confidence: 0.9},
	})
	c, speaker := newTestController(t, detector, reader, nil, 5)

	c.SubmitCommand(Command{Intent: IntentRead})
	c.ProcessFrame(context.Background(), testFrame())

	if got := c.Mode(); got != ModeIdle {
		t.Fatalf("mode = %s, want idle after one-shot", got)
	}
	result := speaker.containing("EXPIRES 2026")
	if result == nil {
		t.Fatalf("no read result in %v", speaker.texts())
	}
	if result.Priority != speech.PriorityInterrupt {
		t.Error("read result must be an interrupt")
	}
}

func TestReadWithNoText(t *testing.T) {
	box := vision.Box{X: 100, Y: 100, W: 200, H: 200}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "mug", Confidence: 0.9, Box: box},
	})
	c, speaker := newTestController(t, detector, vision.NewMockReader(nil), nil, 5)

	c.SubmitCommand(Command{Intent: IntentRead})
	c.ProcessFrame(context.Background(), testFrame())

	if speaker.count("No text found.") != 1 {
		t.Errorf("expected a no-text result, got %v", speaker.texts())
	}
	if got := c.Mode(); got != ModeIdle {
		t.Errorf("mode = %s, want idle", got)
	}
}

func TestFindThenStopSameCycle(t *testing.T) {
	detector := vision.NewMockDetector()
	c, speaker := newTestController(t, detector, vision.NewMockReader(nil), nil, 5)

	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	c.SubmitCommand(Command{Intent: IntentStop})
	c.ProcessFrame(context.Background(), testFrame())

	if got := c.Mode(); got != ModeIdle {
		t.Fatalf("mode = %s, want idle", got)
	}
	if st := c.Status(); st.Locked {
		t.Error("tracker must be reset")
	}
	if got := speaker.texts(); len(got) != 0 {
		t.Errorf("no utterance should be emitted, got %v", got)
	}
	if detector.Calls() != 0 {
		t.Error("no detection should run in idle")
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	c, speaker := newTestController(t, vision.NewMockDetector(), vision.NewMockReader(nil), nil, 5)

	c.SubmitCommand(Command{Intent: IntentStop})
	c.ProcessFrame(context.Background(), testFrame())

	if got := c.Mode(); got != ModeIdle {
		t.Errorf("mode = %s, want idle", got)
	}
	if got := speaker.texts(); len(got) != 0 {
		t.Errorf("stop in idle must stay silent, got %v", got)
	}
}

func TestWhatSettlesThenReports(t *testing.T) {
	person := vision.Box{X: 0, Y: 0, W: 300, H: 400}
	bottle := vision.Box{X: 50, Y: 50, W: 100, H: 100}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "person", Confidence: 0.95, Box: person},
		{Label: "bottle", Confidence: 0.8, Box: bottle},
	})
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		bottle: {Text: "WHOLE MILK", Confidence: 0.8},
	})
	c, speaker := newTestController(t, detector, reader, nil, 5, WithSettleFrames(2))
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentWhat})
	c.ProcessFrame(ctx, testFrame())
	c.ProcessFrame(ctx, testFrame())

	if got := c.Mode(); got != ModeWhat {
		t.Fatalf("mode = %s, want what while settling", got)
	}
	if speaker.containing("WHOLE MILK") != nil {
		t.Fatal("result spoken before settle frames elapsed")
	}

	c.ProcessFrame(ctx, testFrame())

	// The larger person box is excluded; the held bottle wins.
	if speaker.count("bottle: WHOLE MILK") != 1 {
		t.Errorf("expected class+text report, got %v", speaker.texts())
	}
	if got := c.Mode(); got != ModeIdle {
		t.Errorf("mode = %s, want idle after one-shot", got)
	}
}

func TestStopDuringWhatSettleCancelsEvaluation(t *testing.T) {
	box := vision.Box{X: 50, Y: 50, W: 100, H: 100}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "bottle", Confidence: 0.9, Box: box},
	})
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		box: {Text: "WHOLE MILK", Confidence: 0.8},
	})
	c, speaker := newTestController(t, detector, reader, nil, 5, WithSettleFrames(3))
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentWhat})
	c.ProcessFrame(ctx, testFrame())

	// Stop lands mid-settle; the pending evaluation must never run.
	c.SubmitCommand(Command{Intent: IntentStop})
	c.ProcessFrame(ctx, testFrame())

	if got := c.Mode(); got != ModeIdle {
		t.Fatalf("mode = %s, want idle", got)
	}
	if speaker.count("Stopped.") != 1 {
		t.Errorf("expected a stop acknowledgment, got %v", speaker.texts())
	}

	// Even with more frames arriving, no stale result appears.
	c.ProcessFrame(ctx, testFrame())
	c.ProcessFrame(ctx, testFrame())
	if speaker.containing("WHOLE MILK") != nil {
		t.Errorf("stale evaluation result spoken: %v", speaker.texts())
	}
}

func TestReadSupersedesPendingWhat(t *testing.T) {
	box := vision.Box{X: 100, Y: 100, W: 200, H: 200}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "box", Confidence: 0.9, Box: box},
	})
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		box: {Text: "EXPIRES 2026", Confidence: 0.9},
	})
	c, speaker := newTestController(t, detector, reader, nil, 5, WithSettleFrames(5))
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentWhat})
	c.ProcessFrame(ctx, testFrame())

	// A read arriving during the settle window replaces the pending
	// evaluation; only the read result is spoken.
	c.SubmitCommand(Command{Intent: IntentRead})
	c.ProcessFrame(ctx, testFrame())

	if got := c.Mode(); got != ModeIdle {
		t.Fatalf("mode = %s, want idle after the read completed", got)
	}
	if got := speaker.count("EXPIRES 2026"); got != 1 {
		t.Errorf("read result spoken %d times, want 1: %v", got, speaker.texts())
	}
	if speaker.count("box: EXPIRES 2026") != 0 {
		t.Errorf("superseded evaluation still produced output: %v", speaker.texts())
	}
}

func TestFindWithoutArgument(t *testing.T) {
	c, speaker := newTestController(t, vision.NewMockDetector(), vision.NewMockReader(nil), nil, 5)

	c.SubmitCommand(Command{Intent: IntentFind})
	c.ProcessFrame(context.Background(), testFrame())

	if got := c.Mode(); got != ModeIdle {
		t.Errorf("mode = %s, want idle after invalid find", got)
	}
	if speaker.count("What should I look for?") != 1 {
		t.Errorf("expected a clarification, got %v", speaker.texts())
	}
}

func TestDetectorOutageAbandonsMode(t *testing.T) {
	detector := &vision.MockDetector{
		DetectFunc: func(ctx context.Context, frame vision.Frame) ([]vision.Detection, error) {
			return nil, errors.New("connection refused")
		},
	}
	c, speaker := newTestController(t, detector, vision.NewMockReader(nil), nil, 5)
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	for i := 0; i < 3; i++ {
		c.ProcessFrame(ctx, testFrame())
	}

	if got := c.Mode(); got != ModeIdle {
		t.Fatalf("mode = %s, want idle after three straight failures", got)
	}
	if speaker.containing("temporarily unavailable") == nil {
		t.Errorf("expected an unavailability notice, got %v", speaker.texts())
	}
}

func TestQuitIsTerminal(t *testing.T) {
	c, speaker := newTestController(t, vision.NewMockDetector(), vision.NewMockReader(nil), nil, 5)
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentQuit})
	c.ProcessFrame(ctx, testFrame())

	if got := c.Mode(); got != ModeShutdown {
		t.Fatalf("mode = %s, want shutdown", got)
	}
	if speaker.count("Goodbye.") != 1 {
		t.Errorf("expected a goodbye, got %v", speaker.texts())
	}

	// Nothing gets through after shutdown.
	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	c.ProcessFrame(ctx, testFrame())
	if got := c.Mode(); got != ModeShutdown {
		t.Errorf("mode = %s, want shutdown to be terminal", got)
	}
	if speaker.count("Looking for milk.") != 0 {
		t.Error("command applied after shutdown")
	}
}

func TestProcessCommandsSkipsModeAndDetector(t *testing.T) {
	// While in find mode, a frame-less drain must not touch the detector,
	// so capture failures never count against its health.
	detector := vision.NewMockDetector()
	detector.DetectFunc = func(ctx context.Context, frame vision.Frame) ([]vision.Detection, error) {
		return nil, errors.New("detector offline")
	}
	c, speaker := newTestController(t, detector, vision.NewMockReader(nil), nil, 5)
	ctx := context.Background()

	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	c.ProcessFrame(ctx, testFrame())
	failuresAfterFrame := detector.Calls()

	for i := 0; i < 10; i++ {
		c.ProcessCommands()
	}
	if got := detector.Calls(); got != failuresAfterFrame {
		t.Errorf("detector calls = %d, want %d (none from command drains)", got, failuresAfterFrame)
	}
	if speaker.containing("temporarily unavailable") != nil {
		t.Errorf("collaborator blamed without evidence: %v", speaker.texts())
	}

	// Quit still lands through the frame-less path.
	c.SubmitCommand(Command{Intent: IntentQuit})
	c.ProcessCommands()
	if got := c.Mode(); got != ModeShutdown {
		t.Fatalf("mode = %s, want shutdown", got)
	}
	if got := c.Status().Mode; got != ModeShutdown.String() {
		t.Errorf("status mode = %s, want snapshot refreshed", got)
	}
}

func TestDepthDrivesProximity(t *testing.T) {
	box := vision.Box{X: 300, Y: 200, W: 60, H: 60}
	detector := vision.NewMockDetector([]vision.Detection{
		{Label: "bottle", Confidence: 0.9, Box: box},
	})
	reader := vision.NewMockReader(map[vision.Box]vision.MockText{
		box: {Text: "WHOLE MILK", Confidence: 0.8},
	})
	depth := &vision.MockDepth{Present: true, Value: 0.1}
	c, speaker := newTestController(t, detector, reader, depth, 5)

	c.SubmitCommand(Command{Intent: IntentFind, Argument: "milk"})
	c.ProcessFrame(context.Background(), testFrame())

	if speaker.containing("right in front of you") == nil {
		t.Errorf("depth 0.1 should report near, got %v", speaker.texts())
	}
}

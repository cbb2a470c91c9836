package guidance

import (
	"strings"
	"testing"

	"github.com/wheredamilk/go-wheredamilk/internal/log"
	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
)

const (
	frameW = 640
	frameH = 480
)

// boxAt returns a small box whose horizontal center is cx.
func boxAt(cx int) vision.Box {
	return vision.Box{X: cx - 10, Y: 200, W: 20, H: 20}
}

func TestObserve_BucketsByThirds(t *testing.T) {
	cases := []struct {
		name   string
		cx     int
		bucket Bucket
	}{
		{"far left", 50, BucketLeft},
		{"middle", 320, BucketCenter},
		{"far right", 600, BucketRight},
	}

	for _, tc := range cases {
		f := New(DefaultConfig(), false, log.L())
		sig := f.Observe(boxAt(tc.cx), frameW, frameH, 0, false)
		if sig.Bucket != tc.bucket {
			t.Errorf("%s: got bucket %v, want %v", tc.name, sig.Bucket, tc.bucket)
		}
		if !sig.Changed {
			t.Errorf("%s: first emission should be a change", tc.name)
		}
	}
}

func TestObserve_HysteresisSuppresssesEdgeFlicker(t *testing.T) {
	f := New(DefaultConfig(), false, log.L())

	// Zone boundary left/center is at 213. Margin is 5% of 640 = 32.
	f.Observe(boxAt(200), frameW, frameH, 0, false) // left

	// Jitter just across the boundary but inside the margin: stays left.
	sig := f.Observe(boxAt(220), frameW, frameH, 0, false)
	if sig.Bucket != BucketLeft {
		t.Errorf("Expected hysteresis to hold left, got %v", sig.Bucket)
	}
	if sig.Changed {
		t.Error("Held bucket must not re-emit a change")
	}

	// Clearly past boundary + margin: switches to center.
	sig = f.Observe(boxAt(260), frameW, frameH, 0, false)
	if sig.Bucket != BucketCenter {
		t.Errorf("Expected center after crossing margin, got %v", sig.Bucket)
	}
	if !sig.Changed {
		t.Error("Bucket transition must emit a change")
	}
}

func TestObserve_ChangedAtMostOncePerTransition(t *testing.T) {
	f := New(DefaultConfig(), false, log.L())

	box := boxAt(320)
	first := f.Observe(box, frameW, frameH, 0, false)
	if !first.Changed {
		t.Fatal("First observation should be a change")
	}

	// Identical raw computations never re-trigger emission.
	for i := 0; i < 5; i++ {
		sig := f.Observe(box, frameW, frameH, 0, false)
		if sig.Changed {
			t.Fatalf("Observation %d: repeated identical signal marked changed", i)
		}
	}
}

func TestObserve_DepthProximityBands(t *testing.T) {
	cases := []struct {
		depth float64
		want  Proximity
	}{
		{0.1, ProximityNear},
		{0.5, ProximityMid},
		{0.9, ProximityFar},
	}

	for _, tc := range cases {
		f := New(DefaultConfig(), true, log.L())
		sig := f.Observe(boxAt(320), frameW, frameH, tc.depth, true)
		if sig.Proximity != tc.want {
			t.Errorf("depth %v: got %v, want %v", tc.depth, sig.Proximity, tc.want)
		}
	}
}

func TestObserve_DepthSessionWithoutValueIsUnknown(t *testing.T) {
	f := New(DefaultConfig(), true, log.L())
	sig := f.Observe(boxAt(320), frameW, frameH, 0, false)
	if sig.Proximity != ProximityUnknown {
		t.Errorf("Missing depth value should be unknown, got %v", sig.Proximity)
	}
}

func TestObserve_AreaFallbackBands(t *testing.T) {
	// Session without depth capability: proximity from box area.
	f := New(DefaultConfig(), false, log.L())

	// Tiny box: far.
	sig := f.Observe(vision.Box{X: 300, Y: 200, W: 20, H: 20}, frameW, frameH, 0, false)
	if sig.Proximity != ProximityFar {
		t.Errorf("Tiny box: got %v, want far", sig.Proximity)
	}

	// Box covering a quarter of the frame: near.
	f2 := New(DefaultConfig(), false, log.L())
	sig = f2.Observe(vision.Box{X: 100, Y: 100, W: 320, H: 240}, frameW, frameH, 0, false)
	if sig.Proximity != ProximityNear {
		t.Errorf("Large box: got %v, want near", sig.Proximity)
	}
}

func TestObserve_ProximityChangeEmits(t *testing.T) {
	f := New(DefaultConfig(), true, log.L())
	box := boxAt(320)

	f.Observe(box, frameW, frameH, 0.9, true)
	sig := f.Observe(box, frameW, frameH, 0.1, true)
	if !sig.Changed {
		t.Error("Proximity transition with stable bucket must emit a change")
	}
}

func TestReset_NextObservationEmits(t *testing.T) {
	f := New(DefaultConfig(), false, log.L())
	box := boxAt(320)

	f.Observe(box, frameW, frameH, 0, false)
	f.Reset()
	sig := f.Observe(box, frameW, frameH, 0, false)
	if !sig.Changed {
		t.Error("First observation after reset should emit")
	}
}

func TestPhrase_IncludesQueryAndSide(t *testing.T) {
	p := Phrase("milk", Signal{Bucket: BucketLeft, Proximity: ProximityNear})
	if !strings.Contains(p, "milk") || !strings.Contains(p, "left") {
		t.Errorf("Unexpected phrase: %q", p)
	}
	if !strings.Contains(p, "right in front of you") {
		t.Errorf("Near proximity should warn to stop: %q", p)
	}
}

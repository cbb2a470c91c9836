package control

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/wheredamilk/go-wheredamilk/pkg/guidance"
	"github.com/wheredamilk/go-wheredamilk/pkg/matcher"
	"github.com/wheredamilk/go-wheredamilk/pkg/speech"
	"github.com/wheredamilk/go-wheredamilk/pkg/tracking"
	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
)

// Controller defaults, tunable via options.
const (
	// DefaultTopK caps how many detections get OCR per frame while
	// searching. OCR is the slowest collaborator; two candidates cover
	// the common case of a held object plus background clutter.
	DefaultTopK = 2

	// DefaultSettleFrames is how many processed frames a "what is this"
	// evaluation waits before looking, giving the user time to hold the
	// object steady.
	DefaultSettleFrames = 20

	// DefaultReminderFrames spaces out "still looking" reminders while
	// a find has no match.
	DefaultReminderFrames = 30

	// personLabel is excluded from largest-box selection so the user's
	// own body never shadows the object they are holding.
	personLabel = "person"

	sourceControl  = "control"
	sourceGuidance = "guidance"
)

// Speaker is the slice of the speech scheduler the controller needs.
type Speaker interface {
	Enqueue(u speech.Utterance)
	ResetThrottle()
}

// Status is a read-only snapshot of the controller for the status API.
type Status struct {
	Mode   string     `json:"mode"`
	Query  string     `json:"query,omitempty"`
	Locked bool       `json:"locked"`
	Box    vision.Box `json:"box"`
	Misses int        `json:"misses"`
	Frames uint64     `json:"frames"`
}

// Controller is the top-level mode state machine. It owns the tracker,
// matcher and fuser, consumes commands submitted from other goroutines,
// and drives all per-frame side effects. All state except the command
// channel and the status snapshot is touched only from the frame loop.
type Controller struct {
	boundary *vision.Boundary
	match    *matcher.Matcher
	tracker  *tracking.Tracker
	speaker  Speaker
	logger   *slog.Logger

	guideCfg guidance.Config
	fuser    *guidance.Fuser

	commands chan Command

	mode        Mode
	query       string
	settleLeft  int
	sinceNotify int
	frames      uint64

	depthDecided bool
	depthOK      bool

	topK           int
	settleFrames   int
	reminderFrames int

	statusMu sync.RWMutex
	status   Status
}

// Option configures a Controller.
type Option func(*Controller)

// WithTopK overrides how many detections get OCR per searching frame.
func WithTopK(k int) Option {
	return func(c *Controller) { c.topK = k }
}

// WithSettleFrames overrides the "what is this" settle delay.
func WithSettleFrames(n int) Option {
	return func(c *Controller) { c.settleFrames = n }
}

// WithReminderFrames overrides the still-searching reminder spacing.
func WithReminderFrames(n int) Option {
	return func(c *Controller) { c.reminderFrames = n }
}

// WithGuidance overrides the direction fuser tuning.
func WithGuidance(cfg guidance.Config) Option {
	return func(c *Controller) { c.guideCfg = cfg }
}

// New creates an idle controller.
func New(boundary *vision.Boundary, match *matcher.Matcher, tracker *tracking.Tracker, speaker Speaker, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		boundary:       boundary,
		match:          match,
		tracker:        tracker,
		speaker:        speaker,
		logger:         logger.With("component", "control"),
		guideCfg:       guidance.DefaultConfig(),
		commands:       make(chan Command, 8),
		mode:           ModeIdle,
		topK:           DefaultTopK,
		settleFrames:   DefaultSettleFrames,
		reminderFrames: DefaultReminderFrames,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.status = Status{Mode: ModeIdle.String()}
	return c
}

// Mode returns the active mode. Frame-loop context only.
func (c *Controller) Mode() Mode { return c.mode }

// Status returns a snapshot safe to read from any goroutine.
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// SubmitCommand hands a command to the frame loop. Never blocks: a full
// queue drops the command, and stop/quit preempt anything queued ahead
// of them.
func (c *Controller) SubmitCommand(cmd Command) {
	if cmd.Intent.Terminal() {
		// Queued non-terminal commands are stale once the user says
		// stop or quit.
		for {
			select {
			case old := <-c.commands:
				c.logger.Debug("preempting queued command", "intent", old.Intent.String())
			default:
				select {
				case c.commands <- cmd:
				default:
					c.logger.Warn("command queue full, dropping", "intent", cmd.Intent.String())
				}
				return
			}
		}
	}

	select {
	case c.commands <- cmd:
	default:
		c.logger.Warn("command queue full, dropping", "intent", cmd.Intent.String())
	}
}

// ProcessFrame drives one frame: drain pending commands, run the active
// mode, check collaborator health. Must be called from a single goroutine.
func (c *Controller) ProcessFrame(ctx context.Context, frame vision.Frame) {
	c.drainCommands()
	if c.mode == ModeShutdown {
		c.snapshot()
		return
	}

	metricFrames.Inc()
	c.frames++

	switch c.mode {
	case ModeFind:
		c.frameFind(ctx, frame)
	case ModeWhat:
		c.frameWhat(ctx, frame)
	case ModeRead:
		c.frameRead(ctx, frame)
	case ModeDetails:
		c.frameDetails(ctx, frame)
	}

	if name := c.boundary.Down(); name != "" && c.mode != ModeIdle && c.mode != ModeShutdown {
		metricOutages.WithLabelValues(name).Inc()
		c.logger.Warn("collaborator down, abandoning mode", "collaborator", name, "mode", c.mode.String())
		c.toIdle()
		c.interrupt(fmt.Sprintf("Sorry, %s is temporarily unavailable.", name))
	}

	c.snapshot()
}

// ProcessCommands drains pending commands without running the active
// mode. The frame loop calls this instead of ProcessFrame when capture
// fails, so a camera outage never counts against the detector's health
// and stop/quit still land. Must be called from the frame loop.
func (c *Controller) ProcessCommands() {
	c.drainCommands()
	c.snapshot()
}

// drainCommands applies every command waiting on the channel, in order.
func (c *Controller) drainCommands() {
	for {
		select {
		case cmd := <-c.commands:
			c.apply(cmd)
		default:
			return
		}
	}
}

func (c *Controller) apply(cmd Command) {
	if c.mode == ModeShutdown {
		return
	}
	metricCommands.WithLabelValues(cmd.Intent.String()).Inc()

	switch cmd.Intent {
	case IntentStop:
		if c.mode == ModeIdle {
			// Idempotent: no utterance, no state change.
			return
		}
		c.logger.Info("stop", "from", c.mode.String())
		c.toIdle()
		c.interrupt("Stopped.")

	case IntentQuit:
		c.logger.Info("quit")
		c.tracker.Reset()
		c.setMode(ModeShutdown)
		c.interrupt("Goodbye.")

	case IntentFind:
		if cmd.Argument == "" {
			c.logger.Info("rejecting command", "error", ErrInvalidCommand, "intent", "find")
			c.interrupt("What should I look for?")
			return
		}
		c.enterFind(cmd.Argument)

	case IntentWhat:
		c.enterOneShot(ModeWhat, c.settleFrames, "Analyzing object. Please hold still.")

	case IntentRead:
		c.enterOneShot(ModeRead, 0, "Reading.")

	case IntentDetails:
		c.enterOneShot(ModeDetails, 0, "Taking a closer look.")

	default:
		c.logger.Warn("ignoring unknown command", "intent", int(cmd.Intent))
	}
}

func (c *Controller) enterFind(query string) {
	c.tracker.Reset()
	if c.fuser != nil {
		c.fuser.Reset()
	}
	c.query = query
	c.sinceNotify = 0
	c.speaker.ResetThrottle()
	c.setMode(ModeFind)
	c.logger.Info("find started", "query", query)
	c.interrupt(fmt.Sprintf("Looking for %s.", query))
}

func (c *Controller) enterOneShot(mode Mode, settle int, ack string) {
	c.tracker.Reset()
	c.settleLeft = settle
	c.speaker.ResetThrottle()
	c.setMode(mode)
	c.interrupt(ack)
}

// toIdle abandons whatever is in flight. A pending one-shot evaluation
// simply never runs, so no stale result can be spoken.
func (c *Controller) toIdle() {
	c.tracker.Reset()
	if c.fuser != nil {
		c.fuser.Reset()
	}
	c.query = ""
	c.settleLeft = 0
	c.setMode(ModeIdle)
}

func (c *Controller) setMode(mode Mode) {
	if c.mode == mode {
		return
	}
	c.mode = mode
	metricTransitions.WithLabelValues(mode.String()).Inc()
}

func (c *Controller) frameFind(ctx context.Context, frame vision.Frame) {
	dets := c.boundary.Detect(ctx, frame)

	if c.tracker.State() == tracking.StateLocked {
		if ev := c.tracker.Update(dets); ev == tracking.EventLost {
			metricLosses.Inc()
			c.logger.Info("target lost, searching again", "query", c.query)
			if c.fuser != nil {
				c.fuser.Reset()
			}
			c.sinceNotify = 0
			c.bypass(sourceControl, fmt.Sprintf("I lost the %s. Searching again.", c.query))
			return
		}
		c.guide(ctx, frame)
		return
	}

	// Searching: OCR the strongest detections, then match.
	c.readTopRegions(ctx, frame, dets)
	candidates := c.match.Match(dets, c.query)
	if len(candidates) == 0 {
		c.sinceNotify++
		if c.sinceNotify >= c.reminderFrames {
			c.sinceNotify = 0
			c.normal(sourceControl, fmt.Sprintf("Still looking for %s.", c.query))
		}
		return
	}

	best := candidates[0]
	c.tracker.Lock(best.Detection, c.query)
	metricLocks.Inc()
	c.logger.Info("locked",
		"query", c.query,
		"label", best.Detection.Label,
		"kind", best.Kind.String(),
		"score", best.Score)
	c.ensureFuser()
	c.fuser.Reset()
	c.interrupt(fmt.Sprintf("Found %s!", c.query))
	c.guide(ctx, frame)
}

// guide turns the tracked box into a spoken directive. Unchanged signals
// still go to the scheduler, which deduplicates them; changed ones bypass
// its throttle so transitions are never suppressed.
func (c *Controller) guide(ctx context.Context, frame vision.Frame) {
	c.ensureFuser()
	box := c.tracker.Box()

	var depth float64
	var hasDepth bool
	if c.depthCapable() {
		depth, hasDepth = c.boundary.BoxDepth(ctx, frame, box)
	}

	sig := c.fuser.Observe(box, frame.Width, frame.Height, depth, hasDepth)
	phrase := guidance.Phrase(c.query, sig)
	if sig.Changed {
		c.bypass(sourceGuidance, phrase)
	} else {
		c.normal(sourceGuidance, phrase)
	}
}

func (c *Controller) frameWhat(ctx context.Context, frame vision.Frame) {
	if c.settleLeft > 0 {
		c.settleLeft--
		return
	}

	dets := c.boundary.Detect(ctx, frame)
	det := vision.LargestExcluding(dets, personLabel)
	if det == nil {
		c.interrupt("Nothing detected.")
		c.toIdle()
		return
	}

	text, _ := c.boundary.ReadRegion(ctx, frame, det.Box)
	result := det.Label
	if text != "" {
		result = fmt.Sprintf("%s: %s", det.Label, text)
	}
	c.interrupt(result)
	c.toIdle()
}

func (c *Controller) frameRead(ctx context.Context, frame vision.Frame) {
	if c.settleLeft > 0 {
		c.settleLeft--
		return
	}

	dets := c.boundary.Detect(ctx, frame)
	det := vision.LargestExcluding(dets, personLabel)
	if det == nil {
		c.interrupt("Nothing detected.")
		c.toIdle()
		return
	}

	text, _ := c.boundary.ReadRegion(ctx, frame, det.Box)
	if text == "" {
		c.interrupt("No text found.")
	} else {
		c.interrupt(text)
	}
	c.toIdle()
}

func (c *Controller) frameDetails(ctx context.Context, frame vision.Frame) {
	if c.settleLeft > 0 {
		c.settleLeft--
		return
	}

	dets := c.boundary.Detect(ctx, frame)
	det := vision.LargestExcluding(dets, personLabel)
	if det == nil {
		c.interrupt("Nothing detected.")
		c.toIdle()
		return
	}

	report := fmt.Sprintf("It's a %s.", det.Label)
	if text, _ := c.boundary.ReadRegion(ctx, frame, det.Box); text != "" {
		report += fmt.Sprintf(" It says %s.", text)
	}

	var depth float64
	var hasDepth bool
	if c.depthCapable() {
		depth, hasDepth = c.boundary.BoxDepth(ctx, frame, det.Box)
	}
	probe := guidance.New(c.guideCfg, c.depthCapable(), c.logger)
	sig := probe.Observe(det.Box, frame.Width, frame.Height, depth, hasDepth)
	if sig.Proximity != guidance.ProximityUnknown {
		report += fmt.Sprintf(" It looks %s.", sig.Proximity.String())
	}

	c.interrupt(report)
	c.toIdle()
}

// readTopRegions runs OCR on the topK highest-confidence detections and
// attaches the text in place so the matcher's text stage can see it.
func (c *Controller) readTopRegions(ctx context.Context, frame vision.Frame, dets []vision.Detection) {
	if len(dets) == 0 {
		return
	}
	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Confidence > dets[order[b]].Confidence
	})
	k := c.topK
	if k > len(order) {
		k = len(order)
	}
	for _, idx := range order[:k] {
		text, conf := c.boundary.ReadRegion(ctx, frame, dets[idx].Box)
		dets[idx].Text = text
		dets[idx].TextConfidence = conf
	}
}

func (c *Controller) ensureFuser() {
	if c.fuser == nil {
		c.fuser = guidance.New(c.guideCfg, c.depthCapable(), c.logger)
	}
}

// depthCapable decides once per session whether depth guidance is usable.
func (c *Controller) depthCapable() bool {
	if !c.depthDecided {
		c.depthOK = c.boundary.DepthAvailable()
		c.depthDecided = true
	}
	return c.depthOK
}

func (c *Controller) interrupt(text string) {
	c.speaker.Enqueue(speech.Interrupt(sourceControl, text))
}

func (c *Controller) normal(source, text string) {
	c.speaker.Enqueue(speech.Normal(source, text))
}

func (c *Controller) bypass(source, text string) {
	u := speech.Normal(source, text)
	u.Bypass = true
	c.speaker.Enqueue(u)
}

func (c *Controller) snapshot() {
	s := Status{
		Mode:   c.mode.String(),
		Query:  c.query,
		Locked: c.tracker.State() == tracking.StateLocked,
		Misses: c.tracker.Misses(),
		Frames: c.frames,
	}
	if s.Locked {
		s.Box = c.tracker.Box()
	}
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

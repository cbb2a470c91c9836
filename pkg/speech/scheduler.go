package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wheredamilk/go-wheredamilk/pkg/audio"
	"github.com/wheredamilk/go-wheredamilk/pkg/tts"
)

// Scheduler defaults.
const (
	// DefaultMinInterval is the minimum gap between normal utterances
	// from the same source.
	DefaultMinInterval = time.Second

	// DefaultRepeatWindow is how long an identical text is considered a
	// duplicate of the most recently accepted one. Without a window,
	// periodic reminders ("still searching") would be starved forever.
	DefaultRepeatWindow = 3 * time.Second

	// DefaultTick is the consumer poll cadence; an interrupt enqueued
	// while nothing plays starts within one tick.
	DefaultTick = 50 * time.Millisecond
)

// Scheduler throttles and serializes utterances from multiple producers.
// Enqueue is safe from any goroutine and never blocks on playback; Run is
// the single consumer that synthesizes and plays.
type Scheduler struct {
	provider tts.Provider
	player   audio.Player
	logger   *slog.Logger

	minInterval  time.Duration
	repeatWindow time.Duration
	tick         time.Duration

	mu           sync.Mutex
	normal       []Utterance
	interrupts   []Utterance
	lastText     string
	lastTextAt   time.Time
	lastBySource map[string]time.Time
	playing      bool
	playingText  string
	playingPrio  Priority
	cancelPlay   context.CancelFunc

	now func() time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMinInterval overrides the per-source throttle interval.
func WithMinInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.minInterval = d }
}

// WithRepeatWindow overrides the duplicate-text window.
func WithRepeatWindow(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.repeatWindow = d }
}

// WithTick overrides the consumer poll cadence.
func WithTick(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tick = d }
}

// withClock injects a fake clock for tests.
func withClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler that speaks through provider and player.
func NewScheduler(provider tts.Provider, player audio.Player, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		provider:     provider,
		player:       player,
		logger:       logger.With("component", "speech.scheduler"),
		minInterval:  DefaultMinInterval,
		repeatWindow: DefaultRepeatWindow,
		tick:         DefaultTick,
		lastBySource: make(map[string]time.Time),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue submits an utterance. Fire-and-forget: the result of the
// throttling decision is not reported to the producer.
func (s *Scheduler) Enqueue(u Utterance) {
	if u.Text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Priority == PriorityInterrupt {
		s.interrupts = append(s.interrupts, u)
		metricEnqueued.WithLabelValues(u.Priority.String()).Inc()
		// Cut off a normal utterance mid-playback so the interrupt
		// starts on the next consumer tick.
		if s.playing && s.playingPrio == PriorityNormal && s.cancelPlay != nil {
			s.cancelPlay()
			metricInterrupted.Inc()
		}
		return
	}

	now := s.now()

	if s.playing && u.Text == s.playingText {
		metricDropped.WithLabelValues("duplicate").Inc()
		return
	}
	if u.Text == s.lastText && now.Sub(s.lastTextAt) < s.repeatWindow {
		metricDropped.WithLabelValues("duplicate").Inc()
		return
	}
	if !u.Bypass {
		if last, ok := s.lastBySource[u.Source]; ok && now.Sub(last) < s.minInterval {
			metricDropped.WithLabelValues("throttled").Inc()
			return
		}
	}

	s.normal = append(s.normal, u)
	s.lastText = u.Text
	s.lastTextAt = now
	s.lastBySource[u.Source] = now
	metricEnqueued.WithLabelValues(u.Priority.String()).Inc()
}

// ResetThrottle clears the anti-repeat and per-source throttle state.
// Called on mode changes so a fresh mode's announcements are never
// suppressed by the previous mode's history.
func (s *Scheduler) ResetThrottle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastText = ""
	s.lastTextAt = time.Time{}
	s.lastBySource = make(map[string]time.Time)
}

// Pending returns how many utterances are queued (not counting one
// currently playing).
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.normal) + len(s.interrupts)
}

// Run drains the queue until ctx is cancelled. It is the only goroutine
// that plays audio, so utterances can never overlap.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u, ok := s.dequeue(); ok {
				s.play(ctx, u)
			}
		}
	}
}

// Flush synchronously plays everything still queued. Used on shutdown so
// a final goodbye is not dropped; ctx bounds how long we are willing to
// keep talking.
func (s *Scheduler) Flush(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		u, ok := s.dequeue()
		if !ok {
			return
		}
		s.play(ctx, u)
	}
}

// dequeue pops the next utterance, interrupts ahead of normals.
func (s *Scheduler) dequeue() (Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.interrupts) > 0 {
		u := s.interrupts[0]
		s.interrupts = s.interrupts[1:]
		return u, true
	}
	if len(s.normal) > 0 {
		u := s.normal[0]
		s.normal = s.normal[1:]
		return u, true
	}
	return Utterance{}, false
}

// play synthesizes and plays one utterance to completion. Playback runs
// under a cancellable context so an interrupt can cut it short.
func (s *Scheduler) play(ctx context.Context, u Utterance) {
	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.playing = true
	s.playingText = u.Text
	s.playingPrio = u.Priority
	s.cancelPlay = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.playing = false
		s.cancelPlay = nil
		s.mu.Unlock()
	}()

	result, err := s.provider.Synthesize(playCtx, u.Text)
	if err != nil {
		if playCtx.Err() == nil {
			metricSynthesisFailures.Inc()
			s.logger.Warn("synthesis failed", "source", u.Source, "error", err)
		}
		return
	}

	if err := s.player.Play(playCtx, result.Audio, result.Format); err != nil {
		if playCtx.Err() != nil {
			s.logger.Debug("playback cancelled", "source", u.Source)
			return
		}
		s.logger.Warn("playback failed", "source", u.Source, "error", err)
		return
	}

	metricPlayed.Inc()
	s.logger.Debug("spoke", "source", u.Source, "priority", u.Priority.String(), "chars", len(u.Text))
}

// Command wheredamilk runs the object-finding assistant: a frame loop
// driving the mode controller, a voice-command listener, a speech
// scheduler, and the REST/websocket API, all against external vision
// sidecars.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wheredamilk/go-wheredamilk/internal/config"
	"github.com/wheredamilk/go-wheredamilk/internal/log"
	"github.com/wheredamilk/go-wheredamilk/pkg/audio"
	"github.com/wheredamilk/go-wheredamilk/pkg/control"
	"github.com/wheredamilk/go-wheredamilk/pkg/hub"
	"github.com/wheredamilk/go-wheredamilk/pkg/matcher"
	"github.com/wheredamilk/go-wheredamilk/pkg/speech"
	"github.com/wheredamilk/go-wheredamilk/pkg/stt"
	"github.com/wheredamilk/go-wheredamilk/pkg/tracking"
	"github.com/wheredamilk/go-wheredamilk/pkg/tts"
	"github.com/wheredamilk/go-wheredamilk/pkg/vision"
	"github.com/wheredamilk/go-wheredamilk/pkg/web"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log.Init(cfg.Server.LogLevel)
	logger := log.L()

	// Vision collaborators behind the guarded boundary.
	camera := vision.NewSidecarCamera(cfg.Camera.SourceURL)
	detector := vision.NewSidecarDetector(cfg.Vision.DetectorURL, logger)
	reader := vision.NewSidecarReader(cfg.Vision.OCRURL)
	var depth vision.DepthEstimator
	if cfg.Vision.DepthURL != "" {
		depth = vision.NewSidecarDepth(cfg.Vision.DepthURL)
	}
	boundary := vision.NewBoundary(detector, reader, depth, logger)

	// Speech output: ElevenLabs behind the fallback chain, played by an
	// external binary, serialized by the scheduler.
	provider := buildTTS(cfg, logger)
	defer provider.Close()

	player, err := audio.NewExecPlayer(logger)
	if err != nil {
		log.Error("no audio playback available", "error", err)
		os.Exit(1)
	}
	scheduler := speech.NewScheduler(provider, player, logger)

	tracker := tracking.New(tracking.Preset(cfg.Tracking.Preset), logger)
	controller := control.New(boundary, matcher.New(logger), tracker, scheduler, logger,
		control.WithTopK(cfg.Vision.TopK))

	transcriber := stt.NewWebsocketTranscriber(cfg.Listener.URL, logger)
	defer transcriber.Close()
	listener := control.NewListener(transcriber, controller, logger)

	statusHub := hub.New("status", logger)
	server := web.NewServer(cfg.Server.Port, controller, statusHub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go statusHub.Run(ctx)
	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedulerDone)
	}()
	go listener.Run(ctx)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("web server stopped", "error", err)
			cancel()
		}
	}()

	// Signals map to quit so shutdown always flows through the
	// controller and the scheduler flush.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("signal received, quitting")
		controller.SubmitCommand(control.Command{Intent: control.IntentQuit})
	}()

	scheduler.Enqueue(speech.Interrupt("control", "wheredamilk is ready."))
	log.Info("started", "port", cfg.Server.Port, "listener", cfg.Listener.URL)

	runFrameLoop(ctx, cfg, camera, controller, statusHub, logger)

	// Quit path: say everything still queued, then tear down. Wait for
	// the scheduler loop to return so a playback it cancelled can't
	// overlap the flush.
	log.Info("shutting down")
	cancel()
	<-schedulerDone
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	scheduler.Flush(flushCtx)
	flushCancel()

	if err := server.Shutdown(); err != nil {
		log.Warn("web server shutdown", "error", err)
	}
}

// runFrameLoop captures frames and drives the controller until quit or
// cancellation. Frame pacing comes from the camera sidecar; every Nth
// captured frame is processed.
func runFrameLoop(ctx context.Context, cfg config.Config, camera vision.FrameSource, controller *control.Controller, statusHub *hub.Hub, logger *slog.Logger) {
	skip := cfg.Camera.FrameSkip
	if skip < 1 {
		skip = 1
	}

	var captured int
	for {
		if ctx.Err() != nil || controller.Mode() == control.ModeShutdown {
			return
		}

		frame, err := camera.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("frame capture failed", "error", err)
			// Keep draining commands so quit still works with a dead
			// camera, but don't run the mode: a capture failure says
			// nothing about the detector.
			controller.ProcessCommands()
			time.Sleep(500 * time.Millisecond)
			continue
		}

		captured++
		if captured%skip != 0 {
			continue
		}

		controller.ProcessFrame(ctx, frame)
		if err := statusHub.BroadcastJSON(controller.Status()); err != nil {
			logger.Warn("status broadcast failed", "error", err)
		}
	}
}

// buildTTS assembles the provider chain. ElevenLabs is the only engine
// deployed today; the chain keeps the door open for a fallback voice.
func buildTTS(cfg config.Config, logger *slog.Logger) tts.Provider {
	opts := []tts.ElevenLabsOption{}
	if cfg.Eleven.ModelID != "" {
		opts = append(opts, tts.WithModel(cfg.Eleven.ModelID))
	}

	eleven, err := tts.NewElevenLabs(cfg.Eleven.APIKey, cfg.Eleven.VoiceID, logger, opts...)
	if err != nil {
		log.Error("text to speech unavailable", "error", err)
		os.Exit(1)
	}

	chain, err := tts.NewChain(logger, eleven)
	if err != nil {
		log.Error("building speech chain", "error", err)
		os.Exit(1)
	}
	return chain
}

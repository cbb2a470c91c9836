// Package config loads application configuration from the environment.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the app needs to wire its collaborators.
type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Camera struct {
		Width     int
		Height    int
		FrameSkip int // process every Nth captured frame
		SourceURL string
	}
	Vision struct {
		DetectorURL string
		OCRURL      string
		DepthURL    string
		TopK        int // max detections sent to OCR per frame
	}
	Listener struct {
		URL string // speech-to-text sidecar websocket
	}
	Eleven struct {
		APIKey  string
		VoiceID string
		ModelID string
	}
	Tracking struct {
		Preset string // "default", "patient", "strict"
	}
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.frame_skip", 2)
	v.SetDefault("camera.source_url", "http://localhost:9000")

	v.SetDefault("vision.detector_url", "http://localhost:9001")
	v.SetDefault("vision.ocr_url", "http://localhost:9002")
	v.SetDefault("vision.depth_url", "")
	v.SetDefault("vision.top_k", 2)

	v.SetDefault("listener.url", "ws://localhost:9003/transcripts")

	v.SetDefault("elevenlabs.model_id", "eleven_turbo_v2")

	v.SetDefault("tracking.preset", "default")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("camera.width", "CAMERA_WIDTH")
	v.BindEnv("camera.height", "CAMERA_HEIGHT")
	v.BindEnv("camera.frame_skip", "CAMERA_FRAME_SKIP")
	v.BindEnv("camera.source_url", "CAMERA_SOURCE_URL")

	v.BindEnv("vision.detector_url", "DETECTOR_URL")
	v.BindEnv("vision.ocr_url", "OCR_URL")
	v.BindEnv("vision.depth_url", "DEPTH_URL")
	v.BindEnv("vision.top_k", "VISION_TOP_K")

	v.BindEnv("listener.url", "LISTENER_URL")

	v.BindEnv("elevenlabs.api_key", "ELEVEN_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVEN_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVEN_MODEL_ID")

	v.BindEnv("tracking.preset", "TRACKING_PRESET")

	var c Config
	c.Server.Port = v.GetString("server.port")
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Camera.Width = v.GetInt("camera.width")
	c.Camera.Height = v.GetInt("camera.height")
	c.Camera.FrameSkip = v.GetInt("camera.frame_skip")
	c.Camera.SourceURL = v.GetString("camera.source_url")

	c.Vision.DetectorURL = v.GetString("vision.detector_url")
	c.Vision.OCRURL = v.GetString("vision.ocr_url")
	c.Vision.DepthURL = v.GetString("vision.depth_url")
	c.Vision.TopK = v.GetInt("vision.top_k")

	c.Listener.URL = v.GetString("listener.url")

	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")

	c.Tracking.Preset = v.GetString("tracking.preset")

	return c
}

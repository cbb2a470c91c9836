// Package web exposes the REST boundary and the live status feed. The
// API maps requests onto command events and status snapshots only; all
// behavior lives in the controller.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wheredamilk/go-wheredamilk/pkg/control"
	"github.com/wheredamilk/go-wheredamilk/pkg/hub"
)

// Server hosts the command/status API.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	controller *control.Controller
	statusHub  *hub.Hub
}

// NewServer wires the routes. statusHub must already be running.
func NewServer(port string, controller *control.Controller, statusHub *hub.Hub, logger *slog.Logger) *Server {
	s := &Server{
		port:       port,
		logger:     logger.With("component", "web"),
		controller: controller,
		statusHub:  statusHub,
	}

	app := fiber.New(fiber.Config{
		AppName:               "wheredamilk",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Post("/command", s.handleCommand)
	api.Get("/status", s.handleStatus)

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start blocks serving the API.
func (s *Server) Start() error {
	s.logger.Info("serving", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/wheredamilk/go-wheredamilk/pkg/control"
	"github.com/wheredamilk/go-wheredamilk/pkg/hub"
)

// CommandRequest is the REST shape of a command event.
type CommandRequest struct {
	Intent   string `json:"intent"`
	Argument string `json:"argument,omitempty"`
}

var intentNames = map[string]control.Intent{
	"find":    control.IntentFind,
	"what":    control.IntentWhat,
	"read":    control.IntentRead,
	"details": control.IntentDetails,
	"stop":    control.IntentStop,
	"quit":    control.IntentQuit,
}

// handleCommand maps the request onto a command event and submits it.
// Validation beyond intent lookup belongs to the controller; a find with
// no argument gets the same spoken clarification a voice command does.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed body",
		})
	}

	intent, ok := intentNames[req.Intent]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown intent: " + req.Intent,
		})
	}

	s.controller.SubmitCommand(control.Command{Intent: intent, Argument: req.Argument})
	s.logger.Info("command accepted", "intent", req.Intent, "argument", req.Argument)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": true,
		"intent":   req.Intent,
	})
}

// handleStatus returns the controller snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.controller.Status())
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.statusHub.ClientCount(),
	})
}

// handleStatusWS subscribes a websocket client to the status feed.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	client := hub.NewClient(s.statusHub, conn)
	client.Run()
}

// Package api serves the optional live status endpoints of a run.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/TFMV/driftscan/metrics"
	"github.com/TFMV/driftscan/version"
)

// ServerOptions configures the status server.
type ServerOptions struct {
	// Addr is the listen address, e.g. "127.0.0.1:5555".
	Addr string
}

// Server exposes health, version, and run-progress endpoints while a
// comparison is running.
type Server struct {
	app  *fiber.App
	opts ServerOptions
}

// NewServer builds the status server around a metrics tracker.
func NewServer(opts ServerOptions, tracker *metrics.Tracker) *Server {
	app := fiber.New(fiber.Config{
		IdleTimeout:           10 * time.Second,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "driftscan",
			"version": version.Version,
			"build":   version.BuildDate,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Get("/progress", func(c *fiber.Ctx) error {
		return c.JSON(tracker.Snapshot())
	})

	return &Server{app: app, opts: opts}
}

// Start serves until Shutdown is called. Blocking.
func (s *Server) Start() error {
	addr := s.opts.Addr
	if addr == "" {
		addr = ":5555"
	}
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// GetApp exposes the underlying Fiber app for tests.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Package api exposes uploads, interactive enrollment and rosters over HTTP.
package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/rgehrsitz/benadmin/internal/enrollment"
	"github.com/rgehrsitz/benadmin/internal/importer"
	"github.com/rgehrsitz/benadmin/internal/store"
)

// DefaultBodyLimit caps upload size
const DefaultBodyLimit = 32 << 20

// Server wires the HTTP handlers to one store
type Server struct {
	store    store.Store
	upserter *enrollment.Upserter
	importer *importer.Importer
	app      *fiber.App
}

// Option configures a Server
type Option func(*Server)

// WithLogger routes engine logging through l
func WithLogger(l enrollment.Logger) Option {
	return func(s *Server) {
		s.upserter.SetLogger(l)
		s.importer.SetLogger(l)
	}
}

// WithMaxRows sets the upload row limit; zero disables it
func WithMaxRows(n int) Option {
	return func(s *Server) {
		s.importer.MaxRows = n
	}
}

// NewServer builds the fiber app with every route registered
func NewServer(st store.Store, opts ...Option) *Server {
	u := enrollment.NewUpserter(st)
	s := &Server{
		store:    st,
		upserter: u,
		importer: importer.NewImporter(u),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "benadmin",
		BodyLimit:             DefaultBodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.Router(s.app)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Router registers the API routes on router
func (s *Server) Router(router fiber.Router) {
	api := router.Group("/api")
	api.Get("/health", s.health)
	api.Post("/imports/:format", s.createImport)
	api.Post("/enrollments", s.createEnrollment)
	api.Patch("/enrollments/:kind/:id/termination", s.terminateEnrollment)
	api.Post("/dependents", s.createDependent)
	api.Get("/groups/:name/roster", s.getRoster)
}

// Listen serves until ctx is cancelled
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("API server shutting down")
		return s.app.Shutdown()
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": err.Error()})
}

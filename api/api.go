package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/version"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// RuleSource looks up saved delta configurations for the rule picker.
type RuleSource interface {
	GetRule(ctx context.Context, id string) (*core.SavedRule, error)
}

// ServerOptions configures the wizard session server.
type ServerOptions struct {
	Port    string
	Prefork bool

	// Backend receives submissions and drafts configurations.
	Backend core.DeltaBackend

	// Values serves unique column values to filter pickers. Optional.
	Values core.ValueFetcher

	// Rules serves saved configurations to the load_rule intent. Optional.
	Rules RuleSource

	// Inspect fills in the columns of files created without them. Optional.
	Inspect func(path string) (core.FileRef, error)

	UniqueValuesLimit int
	ProcessName       string
	Logger            *zap.Logger
}

// Server holds the Fiber app instance
type Server struct {
	app      *fiber.App
	opts     ServerOptions
	logger   *zap.Logger
	sessions *sessionStore
}

// NewServer initializes a new Fiber instance serving wizard sessions.
func NewServer(opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Port == "" {
		opts.Port = "5555"
	}

	app := fiber.New(fiber.Config{
		IdleTimeout:           10 * time.Second, // Prevents idle connections
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// Middleware
	app.Use(recover.New()) // Auto-recovers from panics
	app.Use(logger.New())  // Logs all requests

	s := &Server{
		app:      app,
		opts:     opts,
		logger:   opts.Logger,
		sessions: newSessionStore(),
	}

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		info := version.Get()
		return c.JSON(fiber.Map{
			"service": info.Service,
			"version": info.Version,
			"build":   info.BuildDate,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	group := app.Group("/wizard/sessions")
	group.Post("/", s.createSession)
	group.Get("/:id", s.getSession)
	group.Delete("/:id", s.deleteSession)
	group.Post("/:id/intents", s.dispatchIntent)
	group.Get("/:id/config", s.getConfig)
	group.Get("/:id/review", s.getReview)
	group.Get("/:id/unique-values", s.getUniqueValues)

	return s
}

// GetApp returns the underlying Fiber app.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Wizard API is running", zap.String("port", s.opts.Port))
		errCh <- s.app.Listen(":" + s.opts.Port)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	s.logger.Info("Received shutdown signal, stopping server")

	// Create a timeout context for the shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("Server shutdown successfully")
	return nil
}

// Shutdown stops the server and waits for pending submissions.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.sessions.wait()
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

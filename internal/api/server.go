// Package api exposes the agent over HTTP: a non-streaming responses
// endpoint and a server-sent-events streaming variant.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/taskrelay/internal/agent"
)

// AgentService is the conversational surface the server fronts
type AgentService interface {
	Respond(ctx context.Context, req *agent.Request) (*agent.Response, error)
	Stream(ctx context.Context, req *agent.Request) (<-chan agent.Event, error)
}

// Server represents the API server
type Server struct {
	echo  *echo.Echo
	port  int
	agent AgentService
}

// NewServer creates a new API server
func NewServer(port int, agentService AgentService) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:  e,
		port:  port,
		agent: agentService,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/responses", s.createResponse)
	v1.POST("/responses/stream", s.streamResponse)
}

// Start begins the API server and blocks until an interrupt arrives, then
// shuts down gracefully
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	log.Info().Int("port", s.port).Msg("API server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

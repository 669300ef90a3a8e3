package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/taskrelay/internal/agent"
)

func (s *Server) createResponse(c echo.Context) error {
	var req agent.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Input) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "input is required")
	}

	resp, err := s.agent.Respond(c.Request().Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Response request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) streamResponse(c echo.Context) error {
	var req agent.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Input) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "input is required")
	}

	events, err := s.agent.Stream(c.Request().Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Stream request failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	for ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal stream event")
			continue
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", raw); err != nil {
			// Client went away. The request context cancels with it, which
			// stops the turn; drain so the producer is never left blocked
			// on an unread channel
			for range events {
			}
			return nil
		}
		resp.Flush()
	}

	return nil
}

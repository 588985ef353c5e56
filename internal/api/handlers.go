package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pump-sim/backend/internal/logger"
	"github.com/pump-sim/backend/internal/metrics"
	"github.com/pump-sim/backend/internal/session"
	"github.com/rs/zerolog"
)

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetrics reports stream client counts.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithHeartbeat sets the SSE keep-alive interval. Zero disables it.
func WithHeartbeat(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.heartbeat = d
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) {
		h.version = v
	}
}

// Handler handles API requests.
type Handler struct {
	sessions  SessionManager
	metrics   *metrics.Metrics
	heartbeat time.Duration
	version   string
	log       zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(sessions SessionManager, opts ...HandlerOption) *Handler {
	h := &Handler{
		sessions: sessions,
		version:  "dev",
		log:      logger.Component("api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) currentSession() (*session.Session, error) {
	sess, err := h.sessions.Current()
	if err != nil {
		return nil, FromDomainError(err)
	}
	return sess, nil
}

func (h *Handler) streamOpened(transport string) {
	if h.metrics != nil {
		h.metrics.StreamOpened(transport)
	}
}

func (h *Handler) streamClosed(transport string) {
	if h.metrics != nil {
		h.metrics.StreamClosed(transport)
	}
}

// sendSSEEvent writes one named event and flushes it to the client.
func (h *Handler) sendSSEEvent(c echo.Context, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

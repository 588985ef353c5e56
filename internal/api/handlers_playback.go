// handlers_playback.go - Playback control, view and stream handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pump-sim/backend/internal/playback"
)

// SeekRequest is the body of seek and chart click requests.
type SeekRequest struct {
	Frame *int `json:"frame"`
}

// SpeedRequest is the body of a speed change.
type SpeedRequest struct {
	Multiplier *float64 `json:"multiplier"`
}

// HandleGetPlayback returns the control view.
func (h *Handler) HandleGetPlayback(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.ControlView())
}

// HandleGetDiagram returns the schematic diagram view.
func (h *Handler) HandleGetDiagram(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.DiagramView())
}

// HandleGetChart returns the full series with the current frame marker.
func (h *Handler) HandleGetChart(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.ChartView())
}

// HandlePlay starts playback.
func (h *Handler) HandlePlay(c echo.Context) error {
	return h.applyCommand(c, func(ctrl *playback.Controller) error {
		ctrl.Play()
		return nil
	})
}

// HandlePause pauses playback.
func (h *Handler) HandlePause(c echo.Context) error {
	return h.applyCommand(c, func(ctrl *playback.Controller) error {
		ctrl.Pause()
		return nil
	})
}

// HandleToggle flips between playing and paused.
func (h *Handler) HandleToggle(c echo.Context) error {
	return h.applyCommand(c, func(ctrl *playback.Controller) error {
		ctrl.Toggle()
		return nil
	})
}

// HandleReset rewinds to frame 0.
func (h *Handler) HandleReset(c echo.Context) error {
	return h.applyCommand(c, func(ctrl *playback.Controller) error {
		ctrl.Reset()
		return nil
	})
}

// HandleSeek jumps to a frame and pauses.
func (h *Handler) HandleSeek(c echo.Context) error {
	frame, err := bindFrame(c)
	if err != nil {
		return err
	}
	return h.applyCommand(c, func(ctrl *playback.Controller) error {
		return ctrl.Seek(frame)
	})
}

// HandleSetSpeed changes the speed multiplier.
func (h *Handler) HandleSetSpeed(c echo.Context) error {
	var req SpeedRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Multiplier == nil {
		return NewValidationError("multiplier")
	}
	return h.applyCommand(c, func(ctrl *playback.Controller) error {
		return ctrl.SetSpeed(*req.Multiplier)
	})
}

// HandleChartClick routes a click on a chart point to a seek.
func (h *Handler) HandleChartClick(c echo.Context) error {
	frame, err := bindFrame(c)
	if err != nil {
		return err
	}
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	if err := sess.OnFrameClick(frame); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.ControlView())
}

// applyCommand runs fn against the active controller and responds with the
// resulting control view.
func (h *Handler) applyCommand(c echo.Context, fn func(*playback.Controller) error) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	if err := fn(sess.Controller()); err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.ControlView())
}

func bindFrame(c echo.Context) (int, error) {
	var req SeekRequest
	if err := c.Bind(&req); err != nil {
		return 0, NewBadRequestError("invalid request body", err)
	}
	if req.Frame == nil {
		return 0, NewValidationError("frame")
	}
	return *req.Frame, nil
}

// HandlePlaybackStream pushes a frame update over Server-Sent Events every
// time the playback state changes. The current state is sent first.
func (h *Handler) HandlePlaybackStream(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	// The server WriteTimeout would otherwise cut the stream after its first
	// interval.
	rc := http.NewResponseController(c.Response().Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.log.Debug().Err(err).Msg("failed to clear write deadline")
	}

	states, cancel := sess.Controller().Subscribe()
	defer cancel()

	h.streamOpened("sse")
	defer h.streamClosed("sse")

	// Send initial status
	st, ok := <-states
	if !ok {
		return nil
	}
	if err := h.sendSSEEvent(c, "state", sess.FrameUpdate(st)); err != nil {
		return nil
	}

	var heartbeat <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if err := h.sendSSEEvent(c, "state", sess.FrameUpdate(st)); err != nil {
				h.log.Debug().Err(err).Msg("sse client gone")
				return nil
			}
		case <-heartbeat:
			if _, err := fmt.Fprint(c.Response(), ": ping\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

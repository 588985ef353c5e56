// handlers_series.go - Series download, analytics and regeneration handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// RegenerateRequest is the optional body of a regenerate request.
type RegenerateRequest struct {
	Seed *int64 `json:"seed"`
}

// HandleGetSeries returns the full series as JSON.
func (h *Handler) HandleGetSeries(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": sess.ID,
		"samples":   sess.Series(),
	})
}

// HandleGetSeriesMsgpack returns the full series encoded as MessagePack.
func (h *Handler) HandleGetSeriesMsgpack(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"sessionId": sess.ID,
		"samples":   sess.Series(),
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetDailySummary returns per-day vibration, pressure and current
// aggregates.
func (h *Handler) HandleGetDailySummary(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	ds, err := sess.Analytics()
	if err != nil {
		return FromDomainError(err)
	}

	days, err := ds.DailySummary(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to compute daily summary", err)
	}
	return c.JSON(http.StatusOK, days)
}

// HandleGetStatusCounts returns the number of samples in each status tier
// and the first frame that reaches each tier (-1 if none).
func (h *Handler) HandleGetStatusCounts(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}
	ds, err := sess.Analytics()
	if err != nil {
		return FromDomainError(err)
	}

	ctx := c.Request().Context()
	counts, err := ds.StatusCounts(ctx)
	if err != nil {
		return NewInternalError("failed to count statuses", err)
	}

	first := make(map[string]int, len(counts))
	for status := range counts {
		frame, err := ds.FirstFrameAtLeast(ctx, status)
		if err != nil {
			return NewInternalError("failed to locate first frame", err)
		}
		first[string(status)] = frame
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"counts":     counts,
		"firstFrame": first,
	})
}

// HandleGetRange returns the samples between the from and to query
// parameters, both inclusive. Missing bounds default to the series ends.
func (h *Handler) HandleGetRange(c echo.Context) error {
	sess, err := h.currentSession()
	if err != nil {
		return err
	}

	from, to := 0, sess.Series().LastFrame()
	if s := c.QueryParam("from"); s != "" {
		if from, err = strconv.Atoi(s); err != nil {
			return NewValidationError("from")
		}
	}
	if s := c.QueryParam("to"); s != "" {
		if to, err = strconv.Atoi(s); err != nil {
			return NewValidationError("to")
		}
	}
	if from > to {
		return NewBadRequestError("from must not be after to", nil)
	}

	ds, err := sess.Analytics()
	if err != nil {
		return FromDomainError(err)
	}
	samples, err := ds.Range(c.Request().Context(), from, to)
	if err != nil {
		return NewInternalError("failed to query range", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"from":    from,
		"to":      to,
		"samples": samples,
	})
}

// HandleRegenerate replaces the series and rewinds playback.
func (h *Handler) HandleRegenerate(c echo.Context) error {
	var req RegenerateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	sess, err := h.sessions.Regenerate(c.Request().Context(), req.Seed)
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, sess.Info())
}

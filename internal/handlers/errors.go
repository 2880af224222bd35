package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskforge/internal/authz"
	"github.com/huangang/taskforge/internal/metrics"
	"github.com/huangang/taskforge/internal/services"
	"github.com/huangang/taskforge/pkg/logger"
	"github.com/huangang/taskforge/pkg/response"
)

// respondError maps engine and service errors onto the response envelope.
// Anything unrecognized is logged and answered with a bare 500.
func respondError(c *gin.Context, m *metrics.Metrics, err error) {
	var engineErr *authz.Error
	if errors.As(err, &engineErr) {
		switch {
		case errors.Is(err, authz.ErrNotFound):
			m.ObserveDenial("not_found")
			response.Error(c, response.NewNotFound(engineErr.Message))
		case errors.Is(err, authz.ErrUnauthorized):
			m.ObserveDenial("unauthorized")
			response.Error(c, response.NewUnauthorized(engineErr.Message))
		case errors.Is(err, authz.ErrForbidden):
			m.ObserveDenial("forbidden")
			response.Error(c, response.NewForbidden(engineErr.Message))
		default:
			m.ObserveDenial("bad_request")
			response.Error(c, response.NewBadRequest(engineErr.Message))
		}
		return
	}
	if errors.Is(err, services.ErrUsernameTaken) {
		response.Error(c, response.NewConflict(err.Error()))
		return
	}

	l := logger.For(c)
	l.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
	response.Error(c, err)
}

func parseID(c *gin.Context, param, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+what+" id")
		return 0, false
	}
	return uint(id), true
}

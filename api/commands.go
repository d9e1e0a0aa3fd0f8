package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/portal/domain"
)

// CommandRequest is the body of POST /api/v1/commands
type CommandRequest struct {
	CommandType string          `json:"commandType" binding:"required"`
	Data        json.RawMessage `json:"data"`
}

// postCommand dispatches a command. The read model catches up
// asynchronously, hence 202.
func (s *Server) postCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.NewValidationError("", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Timeout)
	defer cancel()

	result, err := s.deps.Dispatcher.Dispatch(ctx, req.CommandType, req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

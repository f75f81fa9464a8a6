package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"codegate/internal/gateway"
	"codegate/internal/wire"
)

func (s *Server) handleChatCompletions(c *gin.Context) {
	var req wire.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	if req.Stream {
		s.streamSSE(c, func(write gateway.FrameWriter) error {
			return s.svc.ChatCompleteStream(c.Request.Context(), requestID(c), req, write)
		})
		return
	}

	resp, err := s.svc.ChatComplete(c.Request.Context(), requestID(c), req)
	if err != nil {
		writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResponses(c *gin.Context) {
	var req wire.ResponsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	if req.Stream {
		s.streamSSE(c, func(write gateway.FrameWriter) error {
			return s.svc.RespondStream(c.Request.Context(), requestID(c), req, write)
		})
		return
	}

	resp, err := s.svc.Respond(c.Request.Context(), requestID(c), req)
	if err != nil {
		writeGatewayError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// streamSSE runs a streaming handler. Validation and spawn failures happen
// before any frame is written, so they still surface as JSON errors; after
// the first frame the error channel is the stream itself.
func (s *Server) streamSSE(c *gin.Context, run func(gateway.FrameWriter) error) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		writeError(c, http.StatusInternalServerError, "server_error", "streaming unsupported by connection")
		return
	}

	started := false
	write := func(f wire.Frame) error {
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			started = true
		}
		if err := wire.WriteFrame(c.Writer, f); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := run(write); err != nil && !started {
		writeGatewayError(c, err)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if err := s.svc.Ready(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "model": s.svc.Model()})
}

func (s *Server) handleExecutions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": records})
}

func writeGatewayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gateway.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
	case errors.Is(err, gateway.ErrExecution):
		writeError(c, http.StatusBadGateway, "agent_error", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, wire.ErrorResponse{Error: wire.ErrorBody{
		Message: message,
		Type:    errType,
	}})
}

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/pkg/api"
)

var (
	ErrInvalidJSON   = errors.New("invalid JSON payload")
	ErrGetProgress   = errors.New("failed to aggregate progress")
	ErrGetState      = errors.New("failed to get session state")
	ErrInviteSession = errors.New("failed to create session")
	ErrJoinSession   = errors.New("failed to join session")
)

func (s *Server) listSessions(c *gin.Context) {
	sessions := s.engine.Sessions()
	c.JSON(http.StatusOK, api.SessionsListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

func (s *Server) handleInvite(c *gin.Context) {
	var req api.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	spec := req.Flow
	if spec == nil && req.FlowYAML != "" {
		parsed, err := api.ParseFlowSpec([]byte(req.FlowYAML))
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Error:  err.Error(),
				Status: http.StatusBadRequest,
			})
			return
		}
		spec = parsed
	}
	if spec == nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  "flow specification is required",
			Status: http.StatusBadRequest,
		})
		return
	}
	spec.Name = api.SanitizeID(spec.Name)
	if len(req.Participants) == 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  "at least one participant is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	inv, err := s.engine.Invite(c.Request.Context(), spec, req.Participants)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInviteSession, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusCreated, inv)
}

func (s *Server) handleJoin(c *gin.Context) {
	var req api.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidJSON, err),
			Status: http.StatusBadRequest,
		})
		return
	}
	if req.Invitation == nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  "invitation is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	session, err := s.engine.Join(c.Request.Context(), req.Invitation)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrJoinSession, err),
			Status: http.StatusBadRequest,
		})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (s *Server) getSessionState(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))

	session, steps, err := s.engine.GetState(sessionID)
	if err == nil {
		c.JSON(http.StatusOK, api.SessionStateResponse{
			Session: session,
			Steps:   steps,
		})
		return
	}

	if errors.Is(err, engine.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", err.Error(), sessionID),
			Status: http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", ErrGetState, err),
		Status: http.StatusInternalServerError,
	})
}

func (s *Server) getProgress(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))

	progress, err := s.engine.Aggregate(c.Request.Context(), sessionID)
	if err == nil {
		c.JSON(http.StatusOK, progress)
		return
	}

	if errors.Is(err, engine.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", err.Error(), sessionID),
			Status: http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, api.ErrorResponse{
		Error:  fmt.Sprintf("%s: %v", ErrGetProgress, err),
		Status: http.StatusInternalServerError,
	})
}

func (s *Server) getDiagnostics(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))

	channels, err := s.engine.Diagnostics(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{
				Error:  fmt.Sprintf("%s: %s", err.Error(), sessionID),
				Status: http.StatusNotFound,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, api.DiagnosticsResponse{
		Channels: channels,
		Count:    len(channels),
	})
}

func (s *Server) handleSync(c *gin.Context) {
	if err := s.engine.TriggerSync(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{
		Message: "sync triggered",
	})
}

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meshweave/engine/internal/engine"
	"github.com/meshweave/engine/pkg/api"
)

// Step actions are accepted, validated against the local session, and then
// executed asynchronously on the engine's worker pool. Outcomes surface
// through session state and the progress stream, not the action response
func (s *Server) runStep(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))
	stepID := api.StepID(c.Param("stepID"))

	if !s.validateStepAction(c, sessionID, stepID) {
		return
	}

	s.engine.RunStepAsync(sessionID, stepID)
	c.JSON(http.StatusAccepted, api.StepActionResponse{
		SessionID: sessionID,
		StepID:    stepID,
		Action:    "run",
	})
}

func (s *Server) shareStep(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))
	stepID := api.StepID(c.Param("stepID"))

	if !s.validateStepAction(c, sessionID, stepID) {
		return
	}

	s.engine.ShareStepAsync(sessionID, stepID)
	c.JSON(http.StatusAccepted, api.StepActionResponse{
		SessionID: sessionID,
		StepID:    stepID,
		Action:    "share",
	})
}

func (s *Server) getStepOutputs(c *gin.Context) {
	sessionID := api.SessionID(c.Param("sessionID"))
	stepID := api.StepID(c.Param("stepID"))

	outputs, err := s.engine.StepOutputs(sessionID, stepID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrSessionNotFound) ||
			errors.Is(err, engine.ErrStepNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, api.ErrorResponse{
			Error:  err.Error(),
			Status: status,
		})
		return
	}

	c.JSON(http.StatusOK, api.StepOutputsResponse{
		StepID:  stepID,
		Outputs: outputs,
		Count:   len(outputs),
	})
}

// validateStepAction rejects actions against unknown sessions or steps
// before they reach the worker pool, so callers get an immediate 404
// instead of a silently dropped task
func (s *Server) validateStepAction(
	c *gin.Context, sessionID api.SessionID, stepID api.StepID,
) bool {
	session, _, err := s.engine.GetState(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", err.Error(), sessionID),
			Status: http.StatusNotFound,
		})
		return false
	}
	if session.Spec.FindStep(stepID) == nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("step not found: %s", stepID),
			Status: http.StatusNotFound,
		})
		return false
	}
	return true
}

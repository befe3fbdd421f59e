package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/meshweave/engine/pkg/api"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service:  "meshweave-engine",
		Status:   "healthy",
		Identity: s.engine.Identity(),
		Sessions: len(s.engine.Sessions()),
	})
}

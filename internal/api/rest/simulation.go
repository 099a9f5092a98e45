package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openfactory/designcore/internal/simulation"
	"github.com/openfactory/designcore/internal/types"
)

// GET /api/v1/simulation/status
func (s *Server) getSimulationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.lm.Stepper().Status())
}

// POST /api/v1/simulation/start
func (s *Server) startSimulation(c *gin.Context) {
	if err := s.lm.Stepper().Start(); err != nil {
		c.JSON(http.StatusConflict, types.NewErrorResponse("SIM_409", "Cannot start simulation", err.Error()))
		return
	}
	c.JSON(http.StatusOK, s.lm.Stepper().Status())
}

// POST /api/v1/simulation/pause
func (s *Server) pauseSimulation(c *gin.Context) {
	if err := s.lm.Stepper().Pause(); err != nil {
		c.JSON(http.StatusConflict, types.NewErrorResponse("SIM_409", "Cannot pause simulation", err.Error()))
		return
	}
	c.JSON(http.StatusOK, s.lm.Stepper().Status())
}

// POST /api/v1/simulation/stop
func (s *Server) stopSimulation(c *gin.Context) {
	s.lm.Stepper().Stop()
	c.JSON(http.StatusOK, s.lm.Stepper().Status())
}

// POST /api/v1/simulation/reset
func (s *Server) resetSimulation(c *gin.Context) {
	if err := s.lm.Stepper().Reset(); err != nil {
		c.JSON(http.StatusConflict, types.NewErrorResponse("SIM_409", "Cannot reset simulation", err.Error()))
		return
	}
	c.JSON(http.StatusOK, s.lm.Stepper().Status())
}

// PUT /api/v1/simulation/speed
func (s *Server) setSimulationSpeed(c *gin.Context) {
	var req struct {
		Speed string `json:"speed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SIM_400", "Invalid request body", err.Error()))
		return
	}

	speed, err := simulation.ParseSpeed(req.Speed)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("SIM_400", "Unknown speed", err.Error()))
		return
	}

	if err := s.lm.Stepper().SetSpeed(speed); err != nil {
		c.JSON(http.StatusConflict, types.NewErrorResponse("SIM_409", "Cannot change speed", err.Error()))
		return
	}
	c.JSON(http.StatusOK, s.lm.Stepper().Status())
}

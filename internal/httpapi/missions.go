package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskpilot/internal/plan"
	"taskpilot/internal/supervisor"
)

type MissionHandlers struct{ missions Missions }

func NewMissions(m Missions) MissionHandlers { return MissionHandlers{missions: m} }

func (h MissionHandlers) Submit(c *gin.Context) {
	var req struct {
		Objective string     `json:"objective" binding:"required"`
		Plan      *plan.Plan `json:"plan"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if strings.TrimSpace(req.Objective) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"err": "objective is empty"})
		return
	}
	if req.Plan != nil {
		plan.Normalize(req.Plan)
		if err := plan.Validate(req.Plan); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
	}

	id, err := h.missions.Submit(req.Objective, req.Plan)
	switch {
	case errors.Is(err, supervisor.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"mission_id": id, "state": supervisor.StatusPending})
}

func (h MissionHandlers) Get(c *gin.Context) {
	r, ok := h.missions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"err": "mission not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h MissionHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.missions.List())
}

func (h MissionHandlers) Cancel(c *gin.Context) {
	id, err := h.missions.Cancel(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mission_id": id, "state": supervisor.StatusCancelled})
}

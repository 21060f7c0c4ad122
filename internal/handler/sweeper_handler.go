package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GetSweeperStatus returns the stale message sweeper state
func (h *Handlers) GetSweeperStatus(c *gin.Context) {
	response := SweeperStatusResponse{
		Running:   h.sweeper.IsRunning(),
		NextRun:   optionalTime(h.sweeper.GetNextRun()),
		LastRun:   optionalTime(h.sweeper.GetLastRun()),
		LastSweep: h.sweeper.LastSweep(),
	}
	c.JSON(http.StatusOK, response)
}

// RunSweeperOnce triggers an immediate sweep
func (h *Handlers) RunSweeperOnce(c *gin.Context) {
	stats, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		logrus.Errorf("Manual sweep failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "sweep_error",
			Message: "Failed to run sweeper",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sweep completed",
		"stats":   stats,
	})
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

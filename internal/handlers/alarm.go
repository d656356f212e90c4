package handlers

import (
	"errors"
	"net/http"
	"time"

	"alarmmate/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	maxTestAlarmSeconds     = 3600
	defaultTestAlarmSeconds = 5
)

// Request DTO for the one-shot test alarm.
type testAlarmRequest struct {
	Seconds int `json:"seconds,omitempty"`
}

// @Summary      Next pending alarm
// @Tags         alarm
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "pending (null when nothing is armed)"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/alarm/next [get]
// @Security     BearerAuth
func (h *Handler) getNextAlarm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pending": h.services.Scheduler.Pending()})
}

// @Summary      Dismissal gate state
// @Tags         alarm
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/alarm/state [get]
// @Security     BearerAuth
func (h *Handler) getGateState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Gate.State())
}

// @Summary      Arm a one-shot test alarm
// @Description  Fires a few seconds out without touching the weekly schedule
// @Tags         alarm
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/alarm/test [post]
// @Security     BearerAuth
func (h *Handler) scheduleTestAlarm(c *gin.Context) {
	var req testAlarmRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	if req.Seconds <= 0 {
		req.Seconds = defaultTestAlarmSeconds
	}
	if req.Seconds > maxTestAlarmSeconds {
		c.JSON(http.StatusBadRequest, gin.H{"error": "test alarm too far out"})
		return
	}

	pending, err := h.services.Scheduler.ScheduleTest(c.Request.Context(), time.Duration(req.Seconds)*time.Second)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to arm test alarm", "test_alarm_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "armed", "pending": pending})
}

// @Summary      Open the proof surface
// @Description  Moves a ringing alarm to awaiting_proof with the configured game
// @Tags         alarm
// @Produce      json
// @Success      200  {object}  service.GateSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/alarm/proof/open [post]
// @Security     BearerAuth
func (h *Handler) openProof(c *gin.Context) {
	snap, err := h.services.Gate.OpenProof(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Submit a proof game interaction
// @Tags         alarm
// @Accept       json
// @Produce      json
// @Success      200  {object}  service.GateSnapshot
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/alarm/proof/input [post]
// @Security     BearerAuth
func (h *Handler) submitProofInput(c *gin.Context) {
	var in service.ProofInput
	if ok := h.bindJSONOrBadRequest(c, &in); !ok {
		return
	}

	snap, err := h.services.Gate.SubmitInput(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Dismiss the ringing alarm
// @Description  Succeeds only after the proof game reports success
// @Tags         alarm
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/alarm/dismiss [post]
// @Security     BearerAuth
func (h *Handler) dismissAlarm(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Gate.ReportSuccess(ctx); err != nil {
		status := http.StatusConflict
		if !errors.Is(err, service.ErrNotAwaitingProof) && !errors.Is(err, service.ErrProofNotSucceeded) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "dismissed",
		"pending": h.services.Scheduler.Pending(),
	})
}

// Request DTO for the proof game selection.
type setGameRequest struct {
	Game string `json:"game" binding:"required"`
}

// @Summary      Selected proof game
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings/game [get]
// @Security     BearerAuth
func (h *Handler) getGame(c *gin.Context) {
	tag, err := h.services.Gate.SelectedGame(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load game setting", "settings_get_game_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": tag})
}

// @Summary      Select the proof game
// @Tags         settings
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/settings/game [put]
// @Security     BearerAuth
func (h *Handler) setGame(c *gin.Context) {
	var req setGameRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.Gate.SelectGame(c.Request.Context(), req.Game); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": req.Game})
}

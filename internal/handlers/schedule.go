package handlers

import (
	"net/http"
	"time"

	"alarmmate"

	"github.com/gin-gonic/gin"
)

const (
	errGetSchedule = "failed to load schedule"
	errSetAlarm    = "failed to set alarm"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for a manual alarm edit.
type setAlarmRequest struct {
	Time string `json:"time" binding:"required"` // "HH:MM"
}

// SetAlarmRequest is an exported model for Swagger docs of the setDayAlarm payload.
type SetAlarmRequest struct {
	// Final alarm time of day, 24h clock
	Time string `json:"time" example:"07:30"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// @Summary      Weekly alarm schedule
// @Tags         schedule
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "days"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedule [get]
// @Security     BearerAuth
func (h *Handler) getWeeklySchedule(c *gin.Context) {
	ctx := c.Request.Context()
	set, err := h.services.Schedule.GetWeekly(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSchedule, "schedule_get_failed", err)
		return
	}

	// Stable Mon..Fri ordering for the client.
	days := make([]alarmmate.DaySchedule, 0, len(alarmmate.Weekdays))
	for _, day := range alarmmate.Weekdays {
		days = append(days, set[day])
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// @Summary      Today's alarm time
// @Tags         schedule
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "time, active"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedule/today [get]
// @Security     BearerAuth
func (h *Handler) getTodayAlarm(c *gin.Context) {
	ctx := c.Request.Context()
	t, ok, err := h.services.Schedule.TodayFireTime(ctx, time.Now())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSchedule, "schedule_today_failed", err)
		return
	}
	if !ok {
		// Weekend: nothing to ring.
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "time": t.String()})
}

// @Summary      Set a day's alarm by hand
// @Description  Overrides the derived alarm until the next full analysis
// @Tags         schedule
// @Accept       json
// @Produce      json
// @Param        day   path   string           true  "Weekday (Mon..Fri)"
// @Param        body  body   SetAlarmRequest  true  "Alarm payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedule/{day} [put]
// @Security     BearerAuth
func (h *Handler) setDayAlarm(c *gin.Context) {
	day, err := alarmmate.ParseWeekday(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req setAlarmRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	t, err := alarmmate.ParseTimeOfDay(req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.services.Schedule.SetAlarmForDay(ctx, day, t); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSetAlarm, "schedule_set_alarm_failed", err, "day", day.String())
		return
	}

	ds, err := h.services.Schedule.Get(ctx, day)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSchedule, "schedule_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alarm_set", "day": ds})
}

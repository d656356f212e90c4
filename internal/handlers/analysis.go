package handlers

import (
	"io"
	"net/http"

	"alarmmate"

	"github.com/gin-gonic/gin"
)

const maxPhotoBytes = 10 << 20 // 10 MB

// Request DTO for pre-computed detections (on-device inference).
type applyDetectionsRequest struct {
	Detections  []alarmmate.DetectedSlot `json:"detections"`
	ImageWidth  float64                  `json:"image_width"`
	ImageHeight float64                  `json:"image_height"`
}

// @Summary      Apply detection result
// @Description  Derives per-weekday first-class hours, persists them, and re-arms the next alarm. Empty detections yield an all-empty derivation, never an error.
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "derived, days"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/analysis [post]
// @Security     BearerAuth
func (h *Handler) applyDetections(c *gin.Context) {
	var req applyDetectionsRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	h.applyAndRespond(c, req.Detections, req.ImageWidth, req.ImageHeight)
}

// @Summary      Analyze a timetable photo
// @Description  Routes the raw photo through the external detection service
// @Tags         analysis
// @Accept       octet-stream
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/analysis/photo [post]
// @Security     BearerAuth
func (h *Handler) analyzePhoto(c *gin.Context) {
	if h.detector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no detection service configured"})
		return
	}

	image, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPhotoBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}

	dets, err := h.detector.Run(c.Request.Context(), image)
	if err != nil {
		h.logAndJSONError(c, http.StatusBadGateway, "detection service failed", "detector_failed", err)
		return
	}

	// The detector returns normalized boxes, so frame dimensions are moot.
	h.applyAndRespond(c, dets, 0, 0)
}

func (h *Handler) applyAndRespond(c *gin.Context, dets []alarmmate.DetectedSlot, w, hgt float64) {
	ctx := c.Request.Context()
	derived, err := h.services.Schedule.ApplyDetectionResult(ctx, dets, w, hgt)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to apply analysis", "analysis_apply_failed", err)
		return
	}

	set, err := h.services.Schedule.GetWeekly(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSchedule, "schedule_get_failed", err)
		return
	}

	first := make(map[string]*int, len(derived))
	days := make([]alarmmate.DaySchedule, 0, len(alarmmate.Weekdays))
	for _, day := range alarmmate.Weekdays {
		first[day.String()] = derived[day]
		days = append(days, set[day])
	}
	c.JSON(http.StatusOK, gin.H{"derived": first, "days": days})
}

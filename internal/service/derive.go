package service

import (
	"alarmmate"
)

// ClassCategory is the detector class index denoting an actual class cell.
// Other indices (day headers, background) never influence derivation.
const ClassCategory = 0

// Geometry fallback grid for detectors that report raw boxes without
// weekday/hour attribution: five weekday columns, rows starting at 09:00.
const (
	gridColumns   = 5
	gridRows      = 9
	gridFirstHour = 9
)

// DeriveSchedule buckets detections by weekday and returns the earliest
// class hour per day, nil for a day with no qualifying detection. Pure:
// same input always yields the same mapping, malformed or empty input
// yields an all-nil mapping, never an error.
func DeriveSchedule(dets []alarmmate.DetectedSlot, frameW, frameH float64) map[alarmmate.Weekday]*int {
	out := make(map[alarmmate.Weekday]*int, len(alarmmate.Weekdays))
	for _, day := range alarmmate.Weekdays {
		out[day] = nil
	}

	for _, det := range dets {
		if det.ClassIndex != ClassCategory {
			continue
		}

		dayIdx, hour := slotCoordinates(det, frameW, frameH)
		if dayIdx < 0 || dayIdx >= len(alarmmate.Weekdays) {
			continue // Sat/Sun or junk column
		}
		if hour < 0 || hour > 23 {
			continue
		}

		day := alarmmate.Weekday(dayIdx)
		if current := out[day]; current == nil || hour < *current {
			h := hour
			out[day] = &h
		}
	}

	return out
}

// slotCoordinates resolves a detection to (weekday index, hour). Explicit
// indices win; otherwise the normalized box center is mapped onto the grid.
func slotCoordinates(det alarmmate.DetectedSlot, frameW, frameH float64) (int, int) {
	if det.WeekdayIndex >= 0 && det.HourSlot >= 0 {
		return det.WeekdayIndex, det.HourSlot
	}

	cx, cy := det.Box.CenterX(), det.Box.CenterY()
	// Pixel-space boxes are normalized by the frame dimensions first.
	if frameW > 0 && cx > 1 {
		cx /= frameW
	}
	if frameH > 0 && cy > 1 {
		cy /= frameH
	}
	if cx < 0 || cx > 1 || cy < 0 || cy > 1 {
		return -1, -1
	}

	col := int(cx * gridColumns)
	if col >= gridColumns {
		col = gridColumns - 1
	}
	row := int(cy * gridRows)
	if row >= gridRows {
		row = gridRows - 1
	}
	return col, gridFirstHour + row
}

// DefaultAlarmHour applies the offset to a first class hour, floored at 0.
func defaultAlarmHour(firstClassHour, offsetHours int) int {
	h := firstClassHour - offsetHours
	if h < 0 {
		h = 0
	}
	if h > 23 {
		h = 23
	}
	return h
}

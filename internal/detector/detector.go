// Package detector is the integration boundary to the external timetable
// object detector. The model itself is a black box returning labeled
// bounding boxes; the engine only requires that a call returns a possibly
// empty slice and never blocks past the configured timeout.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alarmmate"
)

// Detector runs inference on a timetable photo.
type Detector interface {
	Run(ctx context.Context, image []byte) ([]alarmmate.DetectedSlot, error)
}

const (
	defaultTimeout = 15 * time.Second
	maxResponseLen = 5 * 1024 * 1024 // 5MB
)

// HTTPDetector posts the image to a detection service and decodes the
// returned slots.
type HTTPDetector struct {
	url    string
	client *http.Client
}

var _ Detector = (*HTTPDetector)(nil)

// NewHTTPDetector builds a client with a hard request timeout. A zero
// timeout falls back to the default.
func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPDetector{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type detectResponse struct {
	Detections []alarmmate.DetectedSlot `json:"detections"`
}

// Run posts the raw image and returns the detected slots. An empty result
// is not an error.
func (d *HTTPDetector) Run(ctx context.Context, image []byte) ([]alarmmate.DetectedSlot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("create detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detect: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, fmt.Errorf("read detect response: %w", err)
	}

	var out detectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	return out.Detections, nil
}

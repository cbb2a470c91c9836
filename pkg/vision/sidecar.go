package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/wheredamilk/go-wheredamilk/internal/httpc"
)

// Sidecar endpoint paths.
const (
	pathFrame  = "/frame"
	pathDetect = "/detect"
	pathRead   = "/read"
	pathDepth  = "/depth"
	pathHealth = "/healthz"
)

// SidecarError is an error response from a vision sidecar.
type SidecarError struct {
	Sidecar    string
	StatusCode int
}

func (e *SidecarError) Error() string {
	return fmt.Sprintf("vision [%s]: sidecar returned status %d", e.Sidecar, e.StatusCode)
}

// SidecarCamera captures frames from the camera wrapper sidecar.
type SidecarCamera struct {
	baseURL string
	client  *http.Client
}

// NewSidecarCamera creates a camera client against the given base URL.
func NewSidecarCamera(baseURL string) *SidecarCamera {
	return &SidecarCamera{baseURL: baseURL, client: httpc.Client}
}

// Capture fetches the latest frame as JPEG.
func (c *SidecarCamera) Capture(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathFrame, nil)
	if err != nil {
		return Frame{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Frame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, &SidecarError{Sidecar: "camera", StatusCode: resp.StatusCode}
	}

	jpeg, err := io.ReadAll(resp.Body)
	if err != nil {
		return Frame{}, err
	}

	width, _ := strconv.Atoi(resp.Header.Get("X-Frame-Width"))
	height, _ := strconv.Atoi(resp.Header.Get("X-Frame-Height"))

	return Frame{JPEG: jpeg, Width: width, Height: height}, nil
}

// SidecarDetector calls the object-detection sidecar.
type SidecarDetector struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewSidecarDetector creates a detector client against the given base URL.
func NewSidecarDetector(baseURL string, logger *slog.Logger) *SidecarDetector {
	return &SidecarDetector{
		baseURL: baseURL,
		client:  httpc.Client,
		logger:  logger.With("component", "vision.detector"),
	}
}

type wireBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type wireDetection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        wireBox `json:"box"`
}

// Detect posts the frame JPEG and decodes the detection list.
func (d *SidecarDetector) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+pathDetect, bytes.NewReader(frame.JPEG))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SidecarError{Sidecar: "detector", StatusCode: resp.StatusCode}
	}

	var wire []wireDetection
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}

	dets := make([]Detection, 0, len(wire))
	for _, w := range wire {
		dets = append(dets, Detection{
			Label:      w.Label,
			Confidence: w.Confidence,
			Box:        Box{X: w.Box.X, Y: w.Box.Y, W: w.Box.W, H: w.Box.H},
		})
	}

	d.logger.Debug("detections received", "count", len(dets))
	return dets, nil
}

// SidecarReader calls the OCR sidecar for a cropped region.
type SidecarReader struct {
	baseURL string
	client  *http.Client
}

// NewSidecarReader creates an OCR client against the given base URL.
func NewSidecarReader(baseURL string) *SidecarReader {
	return &SidecarReader{baseURL: baseURL, client: httpc.Client}
}

type wireText struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// ReadRegion posts the frame with the region in the query string.
// The sidecar crops and OCRs server-side so the full frame is sent once.
func (r *SidecarReader) ReadRegion(ctx context.Context, frame Frame, box Box) (string, float64, error) {
	url := fmt.Sprintf("%s%s?x=%d&y=%d&w=%d&h=%d", r.baseURL, pathRead, box.X, box.Y, box.W, box.H)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(frame.JPEG))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, &SidecarError{Sidecar: "ocr", StatusCode: resp.StatusCode}
	}

	var wire wireText
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return "", 0, fmt.Errorf("decode ocr result: %w", err)
	}
	return wire.Text, wire.Confidence, nil
}

// SidecarDepth calls the monocular depth sidecar. The estimator is an
// optional deployment; Available probes it once at startup.
type SidecarDepth struct {
	baseURL   string
	client    *http.Client
	available bool
}

// NewSidecarDepth creates a depth client. An empty base URL means the
// estimator is not deployed and Available will report false.
func NewSidecarDepth(baseURL string) *SidecarDepth {
	d := &SidecarDepth{baseURL: baseURL, client: httpc.Client}
	if baseURL != "" {
		d.available = d.probe()
	}
	return d
}

func (d *SidecarDepth) probe() bool {
	resp, err := d.client.Get(d.baseURL + pathHealth)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Available reports whether the depth sidecar answered its health probe.
func (d *SidecarDepth) Available() bool {
	return d.available
}

type wireDepth struct {
	Depth float64 `json:"depth"`
}

// BoxDepth posts the frame and region, returning the normalized median
// depth of the region (0 = closest, 1 = furthest).
func (d *SidecarDepth) BoxDepth(ctx context.Context, frame Frame, box Box) (float64, error) {
	url := fmt.Sprintf("%s%s?x=%d&y=%d&w=%d&h=%d", d.baseURL, pathDepth, box.X, box.Y, box.W, box.H)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(frame.JPEG))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &SidecarError{Sidecar: "depth", StatusCode: resp.StatusCode}
	}

	var wire wireDepth
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return 0, fmt.Errorf("decode depth result: %w", err)
	}
	return wire.Depth, nil
}

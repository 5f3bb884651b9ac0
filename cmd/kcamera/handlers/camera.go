package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/kcamera/pkg/archive"
	"github.com/wachiwi/kcamera/pkg/camera"
	"github.com/wachiwi/kcamera/pkg/frame"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	framesServed metric.Int64Counter
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/kcamera/cmd/kcamera")
	framesServed, err = meter.Int64Counter("http.frames.served",
		metric.WithDescription("Frames sent to HTTP clients"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		slog.Error("Failed to create http metrics", "error", err)
		framesServed, _ = noop.Meter{}.Int64Counter("http.frames.served")
	}
}

type CameraHandler struct {
	Session  *camera.Session
	Archiver *archive.Archiver
}

type statusResponse struct {
	State     string  `json:"state"`
	Driver    string  `json:"driver"`
	FPS       float64 `json:"fps"`
	MinFPS    uint    `json:"minFps"`
	MaxFPS    uint    `json:"maxFps"`
	Recording bool    `json:"recording"`
	Capturing bool    `json:"capturing"`
	Stale     uint64  `json:"staleFrames"`
	Busy      uint64  `json:"busyFrames"`
	Reserve   bool    `json:"memoryReserveExceeded"`
}

func (h *CameraHandler) Status(c *gin.Context) {
	minFPS, maxFPS := h.Session.FPSRange()
	stale, busy := h.Session.MailboxStats()
	c.JSON(http.StatusOK, statusResponse{
		State:     h.Session.State().String(),
		Driver:    h.Session.DriverName(),
		FPS:       h.Session.MeasuredFPS(),
		MinFPS:    minFPS,
		MaxFPS:    maxFPS,
		Recording: h.Session.IsRecording(h.Session.CurrentRecord()),
		Capturing: h.Archiver.Active(),
		Stale:     stale,
		Busy:      busy,
		Reserve:   h.Session.ReserveExceeded(),
	})
}

func (h *CameraHandler) Start(c *gin.Context) {
	if err := h.Session.Start(); err != nil && !errors.Is(err, camera.ErrAlreadyRunning) {
		slog.Error("Failed to start capture", "error", err)
		c.String(http.StatusInternalServerError, "Failed to start capture: %v", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) Stop(c *gin.Context) {
	h.Session.Stop()
	c.Status(http.StatusNoContent)
}

func (h *CameraHandler) GetParams(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Params())
}

// PutParams merges the request body into the applied parameters.
func (h *CameraHandler) PutParams(c *gin.Context) {
	req := h.Session.Params()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Bad request: %v", err)
		return
	}
	ch, err := h.Session.ApplyParameters(req)
	if err != nil {
		if errors.Is(err, camera.ErrInvalidMode) {
			c.String(http.StatusBadRequest, "Bad request: %v", err)
			return
		}
		slog.Error("Failed to apply parameters", "error", err)
		c.String(http.StatusInternalServerError, "Failed to apply parameters: %v", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"params":          h.Session.Params(),
		"live":            ch.LiveApplied(),
		"restartRequired": ch.Restart,
	})
}

type recordResponse struct {
	Recording     bool   `json:"recording"`
	State         string `json:"state"`
	Frames        int    `json:"frames"`
	ElapsedMicros uint32 `json:"elapsedMicros"`
	Progress      int    `json:"progress"`
	Time          int64  `json:"time"`
}

func (h *CameraHandler) GetRecord(c *gin.Context) {
	rec := h.Session.CurrentRecord()
	if rec == nil {
		c.JSON(http.StatusOK, recordResponse{State: "none", Progress: 100})
		return
	}
	c.JSON(http.StatusOK, recordResponse{
		Recording:     h.Session.IsRecording(rec),
		State:         rec.State().String(),
		Frames:        rec.Len(),
		ElapsedMicros: rec.ElapsedMicros(),
		Progress:      h.Session.RecordProgress(rec),
		Time:          rec.Clock(true),
	})
}

// StartRecord begins a background capture. The optional duration query
// parameter (a Go duration) overrides the configured record duration.
func (h *CameraHandler) StartRecord(c *gin.Context) {
	var d time.Duration
	if s := c.Query("duration"); s != "" {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil || d < 0 {
			c.String(http.StatusBadRequest, "Invalid duration %q", s)
			return
		}
	}
	// The capture outlives the request.
	if err := h.Archiver.Begin(context.WithoutCancel(c.Request.Context()), "http", d); err != nil {
		c.String(http.StatusConflict, "%v", err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *CameraHandler) StopRecord(c *gin.Context) {
	if !h.Archiver.Cancel("http") {
		h.Session.StopRecord()
	}
	c.Status(http.StatusNoContent)
}

func setFrameHeaders(c *gin.Context, f *frame.Frame, idx int) {
	c.Header("X-Frame-Width", strconv.Itoa(int(f.Width)))
	c.Header("X-Frame-Height", strconv.Itoa(int(f.Height)))
	c.Header("X-Frame-Pts", strconv.FormatUint(f.Pts, 10))
	c.Header("X-Frame-Format", f.Format.String())
	c.Header("X-Frame-Index", strconv.Itoa(idx))
}

// Frame returns one live frame as raw pixels.
func (h *CameraHandler) Frame(c *gin.Context) {
	f, idx, err := h.Session.LiveStream().Frame()
	if err != nil {
		c.String(http.StatusServiceUnavailable, "Camera not available: %v", err)
		return
	}
	setFrameHeaders(c, f, idx)
	framesServed.Add(c.Request.Context(), 1)
	c.Data(http.StatusOK, "application/octet-stream", f.Data)
}

// Stream writes live frames as a multipart stream of raw pixel parts.
func (h *CameraHandler) Stream(c *gin.Context) {
	st := h.Session.LiveStream()
	f, idx, err := st.Frame()
	if err != nil {
		c.String(http.StatusServiceUnavailable, "Camera not available: %v", err)
		return
	}

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "Streaming not supported")
		return
	}

	ctx := c.Request.Context()
	for {
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: application/octet-stream\r\n")
		fmt.Fprintf(w, "X-Frame-Width: %d\r\nX-Frame-Height: %d\r\n", f.Width, f.Height)
		fmt.Fprintf(w, "X-Frame-Pts: %d\r\nX-Frame-Format: %s\r\nX-Frame-Index: %d\r\n", f.Pts, f.Format, idx)
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(f.Data))
		if _, err := w.Write(f.Data); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")
		flusher.Flush()
		framesServed.Add(ctx, 1)

		if ctx.Err() != nil {
			return
		}
		if f, idx, err = st.Frame(); err != nil {
			slog.Info("Live stream ended", "error", err)
			return
		}
	}
}

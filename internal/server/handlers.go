package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/roikit/internal/crop"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/MeKo-Tech/roikit/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:  "healthy",
		Version: version.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Backend: s.matcher.Backend(),
	}
	if err := s.matcher.Available(); err != nil {
		resp.Status = "degraded"
		resp.BackendError = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// cropHandler returns the de-rotated crop of the "roi" form field as PNG, or
// as JSON with crop and mask when format=json.
func (s *Server) cropHandler(w http.ResponseWriter, r *http.Request) {
	s.serveCrop(w, r, "crop")
}

// maskHandler returns the mask of the "roi" form field as PNG.
func (s *Server) maskHandler(w http.ResponseWriter, r *http.Request) {
	s.serveCrop(w, r, "mask")
}

func (s *Server) serveCrop(w http.ResponseWriter, r *http.Request, op string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img, ok := s.parseImageRequest(w, r, "image")
	if !ok {
		roiRequestsTotal.WithLabelValues(op, "error").Inc()
		return
	}
	m, err := s.parseROIField(r, "roi")
	if err != nil {
		roiRequestsTotal.WithLabelValues(op, "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	info, err := crop.BuildInfo(m)
	var (
		pix  image.Image
		rect image.Rectangle
	)
	if err == nil {
		pix, rect, err = crop.Rotated(img, info, m.AngleDeg())
	}
	if err != nil {
		roiRequestsTotal.WithLabelValues(op, "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	mask := crop.BuildMask(info, rect)
	roiProcessingDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	roiRequestsTotal.WithLabelValues(op, "success").Inc()

	w.Header().Set("X-Crop-Rect", fmt.Sprintf("%d,%d,%d,%d", rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()))
	if op == "mask" {
		s.writePNG(w, mask)
		return
	}
	if formatParam(r) != "json" {
		s.writePNG(w, pix)
		return
	}

	var cropPNG, maskPNG bytes.Buffer
	if err := utils.EncodePNG(&cropPNG, pix); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if m.Shape.Round() {
		if err := utils.EncodePNG(&maskPNG, mask); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, CropResponse{
		Success:  true,
		ROI:      m.Record(),
		Crop:     info,
		CropRect: [4]int{rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()},
		Image:    cropPNG.Bytes(),
		Mask:     maskPNG.Bytes(),
	})
}

// matchHandler locates the "pattern" ROI inside the "search" ROI. An
// optional "reference" upload is the image the pattern is cut from. The
// request timeout bounds the match.
func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	img, ok := s.parseImageRequest(w, r, "image")
	if !ok {
		roiRequestsTotal.WithLabelValues("match", "error").Inc()
		return
	}
	ref := img
	if r.MultipartForm != nil && len(r.MultipartForm.File["reference"]) > 0 {
		if ref, ok = s.readImageField(w, r, "reference"); !ok {
			roiRequestsTotal.WithLabelValues("match", "error").Inc()
			return
		}
	}

	q, err := s.parseMatchQuery(r)
	if err != nil {
		roiRequestsTotal.WithLabelValues("match", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.matcher.MatchAcross(ctx, ref, img, q)
	elapsed := time.Since(start)
	if err != nil {
		roiRequestsTotal.WithLabelValues("match", "error").Inc()
		switch {
		case errors.Is(err, matcher.ErrNativeUnavailable):
			s.writeErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, context.DeadlineExceeded):
			s.writeErrorResponse(w, "match timed out", http.StatusGatewayTimeout)
		default:
			s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	roiRequestsTotal.WithLabelValues("match", "success").Inc()
	roiProcessingDuration.WithLabelValues("match").Observe(elapsed.Seconds())

	s.writeJSON(w, http.StatusOK, MatchResponse{
		Success:      true,
		Result:       res,
		Pattern:      q.Pattern.Record(),
		Search:       q.Search.Record(),
		ProcessingMs: elapsed.Milliseconds(),
	})
}

// parseMatchQuery reads the ROIs and tuning fields; missing values take the
// matcher defaults.
func (s *Server) parseMatchQuery(r *http.Request) (matcher.Query, error) {
	cfg := s.matcher.Config()
	q := matcher.Query{
		Strategy:       cfg.Strategy,
		ScoreThreshold: cfg.ScoreThreshold,
		RotRange:       cfg.Options.RotRange,
		ScaleMin:       cfg.Options.ScaleMin,
		ScaleMax:       cfg.Options.ScaleMax,
	}
	var err error
	if q.Pattern, err = s.parseROIField(r, "pattern"); err != nil {
		return q, err
	}
	if q.Search, err = s.parseROIField(r, "search"); err != nil {
		return q, err
	}
	if v := r.FormValue("strategy"); v != "" {
		q.Strategy = v
	}
	if v := r.FormValue("threshold"); v != "" {
		if q.ScoreThreshold, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("invalid threshold %q", v)
		}
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{{"rot_range", &q.RotRange}, {"scale_min", &q.ScaleMin}, {"scale_max", &q.ScaleMax}} {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return q, fmt.Errorf("invalid %s %q", f.name, v)
		}
	}
	return q, nil
}

// parseImageRequest applies the upload limit, parses the multipart form and
// decodes the named image field. Errors are written to w.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request, field string) (image.Image, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, false
	}
	return s.readImageField(w, r, field)
}

func (s *Server) readImageField(w http.ResponseWriter, r *http.Request, field string) (image.Image, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("No %s file provided", field), http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return nil, false
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, false
	}
	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return img, true
}

// parseROIField decodes a roi.Record JSON form field.
func (s *Server) parseROIField(r *http.Request, field string) (roi.Model, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return roi.Model{}, fmt.Errorf("missing %s roi", field)
	}
	var rec roi.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return roi.Model{}, fmt.Errorf("invalid %s roi: %w", field, err)
	}
	m, err := roi.FromRecord(rec, s.editorCfg.Radii)
	if err != nil {
		return roi.Model{}, fmt.Errorf("invalid %s roi: %w", field, err)
	}
	return m, nil
}

func formatParam(r *http.Request) string {
	f := r.FormValue("format")
	if f == "" {
		f = r.URL.Query().Get("format")
	}
	return strings.ToLower(f)
}

func (s *Server) writePNG(w http.ResponseWriter, img image.Image) {
	var buf bytes.Buffer
	if err := utils.EncodePNG(&buf, img); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}

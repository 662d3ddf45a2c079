package server

import (
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerScene() *image.Gray {
	return testutil.MarkerImage(80, 80, image.Rect(10, 10, 70, 70), 30, 30, 5)
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: "GET", expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: "POST", expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: "PUT", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, matcher.BackendGo, response.Backend)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_HealthHandler_DegradedBackend(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.Matcher.Backend = matcher.BackendOpenCV })
	if server.matcher.Available() == nil {
		t.Skip("native backend compiled in")
	}

	w := httptest.NewRecorder()
	server.healthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.NotEmpty(t, response.BackendError)
}

func TestNewServer_RejectsNegativeLimits(t *testing.T) {
	_, err := NewServer(Config{MaxUploadMB: -1})
	require.Error(t, err)

	s, err := NewServer(Config{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), s.maxUploadMB)
	assert.Nil(t, s.rateLimiter)
}

func TestServer_CropHandler_PNG(t *testing.T) {
	server := newTestServer(t)
	rect := roi.NewRect(roi.RoleInspection, 10, 20, 30, 15, 0)
	req := multipartRequest(t, "/crop",
		[]formFile{{"image", testutil.GradientImage(100, 60)}},
		map[string]string{"roi": roiJSON(t, rect)})
	w := httptest.NewRecorder()

	server.cropHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "10,20,30,15", w.Header().Get("X-Crop-Rect"))

	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, 15, img.Bounds().Dy())
}

func TestServer_CropHandler_JSONIncludesMaskForCircles(t *testing.T) {
	server := newTestServer(t)
	circle := roi.NewCircle(roi.RoleInspection, 40, 30, 10, 0)
	req := multipartRequest(t, "/crop?format=json",
		[]formFile{{"image", testutil.GradientImage(100, 60)}},
		map[string]string{"roi": roiJSON(t, circle)})
	w := httptest.NewRecorder()

	server.cropHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp CropResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, [4]int{30, 20, 20, 20}, resp.CropRect)
	assert.Equal(t, "circle", resp.ROI.Shape)
	assert.InDelta(t, 10, resp.Crop.Radius, 1e-9)
	assert.NotEmpty(t, resp.Image)
	assert.NotEmpty(t, resp.Mask)
}

func TestServer_MaskHandler(t *testing.T) {
	server := newTestServer(t)
	circle := roi.NewCircle(roi.RoleInspection, 40, 30, 10, 0)
	req := multipartRequest(t, "/mask",
		[]formFile{{"image", testutil.GradientImage(100, 60)}},
		map[string]string{"roi": roiJSON(t, circle)})
	w := httptest.NewRecorder()

	server.maskHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	mask, err := png.Decode(w.Body)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 20, 20), mask.Bounds())

	center, _, _, _ := mask.At(10, 10).RGBA()
	corner, _, _, _ := mask.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), center)
	assert.Equal(t, uint32(0), corner)
}

func TestServer_CropHandler_Errors(t *testing.T) {
	server := newTestServer(t)
	img := testutil.GradientImage(100, 60)

	tests := []struct {
		name   string
		files  []formFile
		fields map[string]string
		status int
		msg    string
	}{
		{
			name:   "missing image",
			fields: map[string]string{"roi": roiJSON(t, roi.NewRect(roi.RoleInspection, 0, 0, 10, 10, 0))},
			status: http.StatusBadRequest,
			msg:    "No image file provided",
		},
		{
			name:   "missing roi",
			files:  []formFile{{"image", img}},
			status: http.StatusBadRequest,
			msg:    "missing roi roi",
		},
		{
			name:   "malformed roi",
			files:  []formFile{{"image", img}},
			fields: map[string]string{"roi": "{not json"},
			status: http.StatusBadRequest,
			msg:    "invalid roi roi",
		},
		{
			name:   "roi outside image",
			files:  []formFile{{"image", img}},
			fields: map[string]string{"roi": roiJSON(t, roi.NewRect(roi.RoleInspection, 500, 500, 10, 10, 0))},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.cropHandler(w, multipartRequest(t, "/crop", tt.files, tt.fields))

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			if tt.msg != "" {
				assert.Contains(t, resp.Error, tt.msg)
			}
		})
	}
}

func TestServer_CropHandler_MethodNotAllowed(t *testing.T) {
	server := newTestServer(t)
	w := httptest.NewRecorder()
	server.cropHandler(w, httptest.NewRequest(http.MethodGet, "/crop", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_MatchHandler_FindsMarker(t *testing.T) {
	server := newTestServer(t)
	req := multipartRequest(t, "/match",
		[]formFile{{"image", markerScene()}},
		map[string]string{
			"pattern":   roiJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
			"search":    roiJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)),
			"strategy":  "tm_rot",
			"rot_range": "0",
		})
	w := httptest.NewRecorder()

	server.matchHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.True(t, resp.Result.Found, resp.Result.String())
	require.NotNil(t, resp.Result.Center)
	assert.InDelta(t, 30, resp.Result.Center.X, 0.5)
	assert.InDelta(t, 30, resp.Result.Center.Y, 0.5)
	assert.Equal(t, "pattern", resp.Pattern.Role)
	assert.Equal(t, "search", resp.Search.Role)
}

func TestServer_MatchHandler_ReferenceImage(t *testing.T) {
	server := newTestServer(t)
	moved := testutil.MarkerImage(80, 80, image.Rect(10, 10, 70, 70), 45, 40, 5)
	req := multipartRequest(t, "/match",
		[]formFile{{"image", moved}, {"reference", markerScene()}},
		map[string]string{
			"pattern":   roiJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
			"search":    roiJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)),
			"rot_range": "0",
		})
	w := httptest.NewRecorder()

	server.matchHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Result.Found, resp.Result.String())
	assert.InDelta(t, 45, resp.Result.Center.X, 0.5)
	assert.InDelta(t, 40, resp.Result.Center.Y, 0.5)
}

func TestServer_MatchHandler_NotFoundIsSuccess(t *testing.T) {
	server := newTestServer(t)
	req := multipartRequest(t, "/match",
		[]formFile{{"image", markerScene()}},
		map[string]string{
			"pattern": roiJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
			"search":  roiJSON(t, roi.NewRect(roi.RoleSearch, 500, 500, 40, 40, 0)),
		})
	w := httptest.NewRecorder()

	server.matchHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Result.Found)
	assert.Equal(t, matcher.ReasonInvalidROI, resp.Result.Reason)
	assert.Nil(t, resp.Result.Center)
}

func TestServer_MatchHandler_BadFields(t *testing.T) {
	server := newTestServer(t)
	pattern := roiJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0))
	search := roiJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0))

	tests := []struct {
		name   string
		fields map[string]string
		msg    string
	}{
		{"missing search", map[string]string{"pattern": pattern}, "missing search roi"},
		{"bad threshold", map[string]string{"pattern": pattern, "search": search, "threshold": "high"}, "invalid threshold"},
		{"bad scale", map[string]string{"pattern": pattern, "search": search, "scale_min": "x"}, "invalid scale_min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.matchHandler(w, multipartRequest(t, "/match", []formFile{{"image", markerScene()}}, tt.fields))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		})
	}
}

func TestServer_MatchHandler_NativeUnavailable(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.Matcher.Backend = matcher.BackendOpenCV })
	if server.matcher.Available() == nil {
		t.Skip("native backend compiled in")
	}
	req := multipartRequest(t, "/match",
		[]formFile{{"image", markerScene()}},
		map[string]string{
			"pattern": roiJSON(t, roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)),
			"search":  roiJSON(t, roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)),
		})
	w := httptest.NewRecorder()

	server.matchHandler(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "native")
}

func TestServer_Routes(t *testing.T) {
	server := newTestServer(t)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "roikit_http_requests_total")
}

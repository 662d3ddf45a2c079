package server

import (
	"bytes"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/editor"
	"github.com/MeKo-Tech/roikit/internal/matcher"
	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/MeKo-Tech/roikit/internal/utils"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	mc := matcher.DefaultConfig()
	mc.Backend = matcher.BackendGo
	cfg := Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		Matcher:     mc,
		Editor:      editor.DefaultConfig(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

type formFile struct {
	field string
	img   image.Image
}

// multipartRequest builds a POST with PNG-encoded files and plain fields.
func multipartRequest(t *testing.T, path string, files []formFile, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.field+".png")
		require.NoError(t, err)
		require.NoError(t, utils.EncodePNG(fw, f.img))
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func roiJSON(t *testing.T, m roi.Model) string {
	t.Helper()
	data, err := json.Marshal(m.Record())
	require.NoError(t, err)
	return string(data)
}

//go:build !gocv

package matcher

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/roikit/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCVBackendUnavailable(t *testing.T) {
	_, err := NewBackend(BackendOpenCV)
	require.ErrorIs(t, err, ErrNativeUnavailable)

	cfg := DefaultConfig()
	cfg.Backend = BackendOpenCV
	m := New(cfg)
	require.ErrorIs(t, m.Available(), ErrNativeUnavailable)

	pattern := roi.NewRect(roi.RolePattern, 20, 20, 20, 20, 0)
	search := roi.NewRect(roi.RoleSearch, 0, 0, 80, 80, 0)
	_, err = m.MatchInSearchRoi(context.Background(), markerScene(), pattern, search, "tm_rot", 0, 0, 1, 1)
	assert.ErrorIs(t, err, ErrNativeUnavailable)
}

func TestAutoBackendFallsBackToGo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendAuto
	m := New(cfg)
	require.NoError(t, m.Available())
	assert.Equal(t, BackendGo, m.Backend())
}

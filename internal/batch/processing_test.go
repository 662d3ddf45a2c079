package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	started, completed bool
	total, last        int
	errors             []string
}

func (r *recordingProgress) OnStart(total int)             { r.started, r.total = true, total }
func (r *recordingProgress) OnProgress(done, _ int)        { r.last = done }
func (r *recordingProgress) OnComplete()                   { r.completed = true }
func (r *recordingProgress) OnError(file string, _ error) { r.errors = append(r.errors, file) }

func pathsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("img%02d.png", i)
	}
	return out
}

func TestProcessImagesParallel_KeepsInputOrder(t *testing.T) {
	paths := pathsN(12)
	rank := make(map[string]int, len(paths))
	for i, p := range paths {
		rank[p] = i
	}
	prog := &recordingProgress{}
	items, err := processImagesParallel(context.Background(), paths, 4, false, prog,
		func(_ context.Context, path string) (ItemResult, error) {
			// later items finish first
			time.Sleep(time.Duration(len(paths)-rank[path]) * time.Millisecond)
			return ItemResult{Width: rank[path]}, nil
		})
	require.NoError(t, err)
	require.Len(t, items, len(paths))
	for i, it := range items {
		assert.Equal(t, paths[i], it.File)
		assert.Equal(t, i, it.Width)
		assert.Empty(t, it.Error)
	}
	assert.True(t, prog.started)
	assert.True(t, prog.completed)
	assert.Equal(t, 12, prog.total)
	assert.Equal(t, 12, prog.last)
}

func TestProcessImagesParallel_ContinueOnError(t *testing.T) {
	paths := pathsN(5)
	prog := &recordingProgress{}
	items, err := processImagesParallel(context.Background(), paths, 2, true, prog,
		func(_ context.Context, path string) (ItemResult, error) {
			if path == "img02.png" {
				return ItemResult{}, errors.New("boom")
			}
			return ItemResult{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "boom", items[2].Error)
	assert.Empty(t, items[1].Error)
	assert.Equal(t, []string{"img02.png"}, prog.errors)
}

func TestProcessImagesParallel_StopsOnFirstError(t *testing.T) {
	var calls atomic.Int32
	_, err := processImagesParallel(context.Background(), pathsN(50), 1, false, nil,
		func(ctx context.Context, _ string) (ItemResult, error) {
			if calls.Add(1) == 1 {
				return ItemResult{}, errors.New("first failure")
			}
			time.Sleep(time.Millisecond)
			return ItemResult{}, ctx.Err()
		})
	require.Error(t, err)
	assert.Equal(t, "first failure", err.Error())
	assert.Less(t, int(calls.Load()), 50)
}

func TestProcessImagesParallel_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := processImagesParallel(ctx, pathsN(3), 2, true, nil,
		func(ctx context.Context, _ string) (ItemResult, error) {
			return ItemResult{}, ctx.Err()
		})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessImagesParallel_NoPaths(t *testing.T) {
	_, err := processImagesParallel(context.Background(), nil, 2, true, nil, nil)
	require.Error(t, err)
}

func TestLoadAndValidateImage_Errors(t *testing.T) {
	_, _, err := loadAndValidateImage("notes.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image format")

	_, _, err = loadAndValidateImage("/nonexistent/file.png")
	require.Error(t, err)
}

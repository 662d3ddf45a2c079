// Package mempool keeps size-classed scratch buffers for the correlation
// hot path, where every rotation and scale candidate needs fresh planes and
// summed-area tables of the same few sizes.
package mempool

import "sync"

var float64Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to a multiple of 1024, with 1024 as the floor.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	if p, ok := float64Pools.Load(cls); ok {
		return p.(*sync.Pool)
	}
	p, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float64, cls)
		return &buf
	}})
	return p.(*sync.Pool)
}

// GetFloat64 returns a zeroed []float64 of length n. The caller hands it
// back with PutFloat64 once nothing references it anymore.
func GetFloat64(n int) []float64 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, ok := poolFor(cls).Get().(*[]float64)
	if !ok || cap(*bp) < cls {
		return make([]float64, n, cls)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// PutFloat64 returns buf to its pool. Buffers that did not come from
// GetFloat64 are dropped. A nil slice is a no-op.
func PutFloat64(buf []float64) {
	c := cap(buf)
	if c == 0 || c != sizeClass(c) {
		return
	}
	buf = buf[:c]
	poolFor(c).Put(&buf)
}

// Package editor implements the interactive geometry engine: a drag state
// machine that moves, resizes and rotates a ROI from canvas-space pointer
// deltas while keeping the handle opposite the dragged one fixed in the image.
package editor

import (
	"errors"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/roikit/internal/canvas"
	"github.com/MeKo-Tech/roikit/internal/roi"
)

var (
	ErrBusy           = errors.New("editor: a handle is already captured")
	ErrNotCaptured    = errors.New("editor: no handle captured")
	ErrHandleDisabled = errors.New("editor: handle not available")
	ErrInvalidPointer = errors.New("editor: pointer position is not usable")
	ErrNoTarget       = errors.New("editor: no roi attached")
)

// DefaultMinSize is the smallest width or height a resize may produce.
const DefaultMinSize = 10.0

// Config holds the editing rules.
type Config struct {
	MinSize            float64   // image px
	Radii              roi.Radii // annulus rules applied to the edited ROI
	RotateHandleOffset float64   // canvas px above the top edge
	HitTolerance       float64   // canvas px
}

// DefaultConfig returns the stock editing rules.
func DefaultConfig() Config {
	return Config{
		MinSize:            DefaultMinSize,
		Radii:              roi.DefaultRadii(),
		RotateHandleOffset: 24,
		HitTolerance:       8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if !(c.MinSize > 0) || math.IsInf(c.MinSize, 0) {
		c.MinSize = d.MinSize
	}
	if c.Radii == (roi.Radii{}) {
		c.Radii = d.Radii
	}
	if !(c.RotateHandleOffset > 0) {
		c.RotateHandleOffset = d.RotateHandleOffset
	}
	if !(c.HitTolerance > 0) {
		c.HitTolerance = d.HitTolerance
	}
	return c
}

// State is the drag state machine position.
type State int

const (
	StateIdle State = iota
	StateCaptured
)

func (s State) String() string {
	if s == StateCaptured {
		return "captured"
	}
	return "idle"
}

// Editor edits one live ROI. It is driven from a single goroutine, the one
// delivering pointer events, and holds no locks.
type Editor struct {
	cfg    Config
	xf     canvas.Transform
	target *roi.Model

	state  State
	handle Handle
	start  roi.Model // ROI at drag start
	anchor roi.Point // canvas pointer at drag start
	total  roi.Point // accumulated canvas delta

	pivot      roi.Point // canvas, rotate only
	startAngle float64   // pointer angle at drag start, rotate only
}

// New attaches an editor to target. The ROI is edited in place.
func New(target *roi.Model, xf canvas.Transform, cfg Config) *Editor {
	cfg = cfg.withDefaults()
	if target != nil {
		target.SetRules(cfg.Radii)
	}
	return &Editor{cfg: cfg, xf: xf, target: target}
}

// Config returns the active rules.
func (e *Editor) Config() Config { return e.cfg }

// Target returns the live ROI.
func (e *Editor) Target() *roi.Model { return e.target }

// SetTarget switches to another ROI. Any captured drag is cancelled first.
func (e *Editor) SetTarget(target *roi.Model) {
	e.CancelDrag()
	if target != nil {
		target.SetRules(e.cfg.Radii)
	}
	e.target = target
}

// Transform returns the image -> canvas transform.
func (e *Editor) Transform() canvas.Transform { return e.xf }

// SetTransform replaces the image -> canvas transform, e.g. after the
// viewport was resized. A captured drag keeps its image-space snapshot.
func (e *Editor) SetTransform(xf canvas.Transform) { e.xf = xf }

// State returns the current state.
func (e *Editor) State() State { return e.state }

// Captured returns the captured handle, or HandleNone when idle.
func (e *Editor) Captured() Handle {
	if e.state != StateCaptured {
		return HandleNone
	}
	return e.handle
}

// HandleEnabled reports whether h accepts input right now. While the rotate
// handle is captured every other handle is disabled.
func (e *Editor) HandleEnabled(h Handle) bool {
	if e.target == nil || h == HandleNone {
		return false
	}
	if e.state == StateCaptured && e.handle == HandleRotate {
		return h == HandleRotate
	}
	if h == HandleInnerRadius {
		return e.target.Shape == roi.ShapeAnnulus
	}
	return h == HandleMove || h == HandleRotate || h.IsResize()
}

// BeginDrag captures h with the pointer at the given canvas position.
func (e *Editor) BeginDrag(h Handle, pointer roi.Point) error {
	if e.target == nil {
		return ErrNoTarget
	}
	if e.state == StateCaptured {
		return ErrBusy
	}
	if !e.HandleEnabled(h) {
		return ErrHandleDisabled
	}
	if !pointer.Finite() {
		return ErrInvalidPointer
	}

	if h == HandleRotate {
		pivot := e.xf.ImageToCanvas(e.target.Center())
		v := pointer.Sub(pivot)
		if v.Len() == 0 || !v.Finite() {
			return ErrInvalidPointer
		}
		e.pivot = pivot
		e.startAngle = vectorAngle(v)
	}

	e.state = StateCaptured
	e.handle = h
	e.start = e.target.Clone()
	e.anchor = pointer
	e.total = roi.Point{}

	slog.Debug("Drag started", "handle", h.String(), "roi", e.start.String())
	return nil
}

// DragDelta applies one pointer-move event. d is the canvas-space movement
// since the previous event. Geometry is always recomputed from the drag-start
// snapshot and the accumulated delta, so identical delta sequences yield
// identical results. Non-finite intermediates leave the ROI unchanged.
func (e *Editor) DragDelta(d roi.Point) error {
	if e.state != StateCaptured {
		return ErrNotCaptured
	}
	if !d.Finite() {
		return nil
	}
	total := e.total.Add(d)
	if !total.Finite() {
		return nil
	}
	e.total = total

	var (
		next roi.Model
		ok   bool
	)
	switch {
	case e.handle == HandleMove:
		next, ok = e.move(total)
	case e.handle == HandleRotate:
		next, ok = e.rotate(total)
	case e.handle == HandleInnerRadius:
		next, ok = e.innerRadius(total)
	default:
		next, ok = e.resize(total)
	}
	if ok && next.Valid() {
		*e.target = next
	}
	return nil
}

// DragCompleted releases the captured handle and returns the final ROI.
func (e *Editor) DragCompleted() (roi.Model, error) {
	if e.state != StateCaptured {
		return roi.Model{}, ErrNotCaptured
	}
	slog.Debug("Drag completed", "handle", e.handle.String(), "roi", e.target.String())
	e.release()
	return e.target.Clone(), nil
}

// CancelDrag restores the drag-start geometry and returns to idle. It is a
// no-op when idle.
func (e *Editor) CancelDrag() {
	if e.state != StateCaptured {
		return
	}
	*e.target = e.start
	e.release()
}

func (e *Editor) release() {
	e.state = StateIdle
	e.handle = HandleNone
	e.total = roi.Point{}
}

// Nudge moves the ROI by an image-space offset, e.g. from arrow keys.
func (e *Editor) Nudge(d roi.Point) error {
	if e.target == nil {
		return ErrNoTarget
	}
	if e.state == StateCaptured {
		return ErrBusy
	}
	e.target.Translate(d)
	return nil
}

// RotateBy adds deg to the ROI angle.
func (e *Editor) RotateBy(deg float64) error {
	if e.target == nil {
		return ErrNoTarget
	}
	if e.state == StateCaptured {
		return ErrBusy
	}
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return nil
	}
	e.target.SetAngle(e.target.AngleDeg() + deg)
	return nil
}

// vectorAngle returns the angle of v in degrees. With y pointing down the
// angle grows clockwise, matching the ROI angle convention.
func vectorAngle(v roi.Point) float64 {
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}

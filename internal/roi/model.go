// Package roi holds the canonical region-of-interest model shared by the
// editor, the crop extractor and the matcher.
//
// A Model keeps two views of its geometry, the top-left box (x, y, w, h) and
// the center/radius pair (cx, cy, r), and recomputes both on every mutation.
// Angles are in degrees, clockwise-positive, normalized to (-180, 180].
package roi

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// Shape selects the geometric primitive of a ROI.
type Shape int

const (
	ShapeRectangle Shape = iota
	ShapeCircle
	ShapeAnnulus
)

func (s Shape) String() string {
	switch s {
	case ShapeRectangle:
		return "rectangle"
	case ShapeCircle:
		return "circle"
	case ShapeAnnulus:
		return "annulus"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Round reports whether the shape is a circle or annulus.
func (s Shape) Round() bool { return s == ShapeCircle || s == ShapeAnnulus }

// ParseShape parses a shape name. "rect" and "ellipse" are accepted aliases.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rectangle", "rect":
		return ShapeRectangle, nil
	case "circle", "ellipse":
		return ShapeCircle, nil
	case "annulus", "ring":
		return ShapeAnnulus, nil
	default:
		return ShapeRectangle, fmt.Errorf("unknown roi shape %q", name)
	}
}

// Role names the logical slot a ROI fills. The core treats it as opaque.
type Role string

const (
	RolePattern    Role = "pattern"
	RoleSearch     Role = "search"
	RoleInspection Role = "inspection"
)

// NewID returns a fresh ROI identifier.
func NewID() string { return uuid.NewString() }

// Model is a ROI in image space. Its geometry is only reachable through
// methods so the box and circle views never go stale.
type Model struct {
	ID    string
	Shape Shape
	Role  Role

	x, y, w, h float64
	cx, cy, r  float64
	ri         float64
	angle      float64

	rules Radii
}

// NewRect creates a rectangle ROI from its top-left corner and size.
func NewRect(role Role, x, y, w, h, angleDeg float64) Model {
	m := Model{ID: NewID(), Shape: ShapeRectangle, Role: role}
	m.SetRect(x, y, w, h)
	m.SetAngle(angleDeg)
	return m
}

// NewCircle creates a circle ROI from its center and radius.
func NewCircle(role Role, cx, cy, r, angleDeg float64) Model {
	m := Model{ID: NewID(), Shape: ShapeCircle, Role: role}
	m.SetCircle(Pt(cx, cy), r)
	m.SetAngle(angleDeg)
	return m
}

// NewAnnulus creates an annulus ROI. The inner radius is resolved with the
// given rules, so a non-positive ri picks the default ratio.
func NewAnnulus(role Role, cx, cy, r, ri, angleDeg float64, rules Radii) Model {
	m := Model{ID: NewID(), Shape: ShapeAnnulus, Role: role, rules: rules}
	m.SetCircle(Pt(cx, cy), r)
	m.ri = m.Rules().ResolveInner(ri, m.r)
	m.SetAngle(angleDeg)
	return m
}

// Rules returns the annulus radius rules bound to this ROI.
func (m Model) Rules() Radii {
	if m.rules == (Radii{}) {
		return DefaultRadii()
	}
	return m.rules
}

// SetRules rebinds the radius rules and re-clamps the inner radius.
func (m *Model) SetRules(rules Radii) {
	m.rules = rules
	m.syncInner()
}

func (m Model) Left() float64        { return m.x }
func (m Model) Top() float64         { return m.y }
func (m Model) Width() float64       { return m.w }
func (m Model) Height() float64      { return m.h }
func (m Model) Center() Point        { return Pt(m.cx, m.cy) }
func (m Model) Radius() float64      { return m.r }
func (m Model) InnerRadius() float64 { return m.ri }
func (m Model) AngleDeg() float64    { return m.angle }

// Clone returns an independent copy. Model holds no references, so the copy
// shares nothing with m.
func (m Model) Clone() Model { return m }

// SetRect sets the unrotated box by its top-left corner. Round shapes are
// squared around the box center with r = max(w, h)/2.
func (m *Model) SetRect(x, y, w, h float64) {
	w, h = sanitizeLen(w), sanitizeLen(h)
	m.SetCenterSize(Pt(sanitize(x)+w/2, sanitize(y)+h/2), w, h)
}

// SetCenterSize sets the unrotated box by its center.
func (m *Model) SetCenterSize(c Point, w, h float64) {
	w, h = sanitizeLen(w), sanitizeLen(h)
	c = Pt(sanitize(c.X), sanitize(c.Y))
	r := math.Max(w, h) / 2
	if m.Shape.Round() {
		w, h = 2*r, 2*r
	}
	m.cx, m.cy = c.X, c.Y
	m.w, m.h = w, h
	m.r = r
	m.x, m.y = c.X-w/2, c.Y-h/2
	m.syncInner()
}

// SetCircle sets center and outer radius.
func (m *Model) SetCircle(c Point, r float64) {
	r = sanitizeLen(r)
	if m.Shape.Round() {
		m.SetCenterSize(c, 2*r, 2*r)
		return
	}
	// a rectangle keeps its aspect ratio and fits max(w, h) to 2r
	w, h := m.w, m.h
	if s := math.Max(w, h); s > 0 {
		w, h = w*2*r/s, h*2*r/s
	} else {
		w, h = 2*r, 2*r
	}
	m.SetCenterSize(c, w, h)
}

// SetInnerRadius sets the annulus inner radius through the bound rules.
// It is a no-op for other shapes.
func (m *Model) SetInnerRadius(ri float64) {
	if m.Shape != ShapeAnnulus {
		m.ri = 0
		return
	}
	m.ri = m.Rules().ClampInner(ri, m.r)
}

// SetAngle sets the rotation, normalized to (-180, 180].
func (m *Model) SetAngle(deg float64) { m.angle = NormalizeAngle(deg) }

// Translate moves the ROI by d.
func (m *Model) Translate(d Point) {
	if !d.Finite() {
		return
	}
	m.SetCenterSize(m.Center().Add(d), m.w, m.h)
}

// ToWorld maps a point given in the ROI's local, unrotated frame (origin at
// the center) into image space.
func (m Model) ToWorld(local Point) Point {
	return m.Center().Add(local.Rotate(m.angle))
}

// ToLocal is the inverse of ToWorld.
func (m Model) ToLocal(world Point) Point {
	return world.Sub(m.Center()).Rotate(-m.angle)
}

// Corners returns the rotated corners in order top-left, top-right,
// bottom-right, bottom-left. They are derived from center, size and angle
// on every call.
func (m Model) Corners() [4]Point {
	hw, hh := m.w/2, m.h/2
	return [4]Point{
		m.ToWorld(Pt(-hw, -hh)),
		m.ToWorld(Pt(hw, -hh)),
		m.ToWorld(Pt(hw, hh)),
		m.ToWorld(Pt(-hw, hh)),
	}
}

// Bounds returns the axis-aligned bounding box of the rotated shape as
// min and max corners.
func (m Model) Bounds() (Point, Point) {
	if m.Shape.Round() {
		return Pt(m.cx-m.r, m.cy-m.r), Pt(m.cx+m.r, m.cy+m.r)
	}
	cs := m.Corners()
	lo, hi := cs[0], cs[0]
	for _, c := range cs[1:] {
		lo = Pt(math.Min(lo.X, c.X), math.Min(lo.Y, c.Y))
		hi = Pt(math.Max(hi.X, c.X), math.Max(hi.Y, c.Y))
	}
	return lo, hi
}

// Contains reports whether p (image space) lies inside the shape. The
// annulus hole counts as outside.
func (m Model) Contains(p Point) bool {
	switch m.Shape {
	case ShapeCircle:
		return p.Dist(m.Center()) <= m.r
	case ShapeAnnulus:
		d := p.Dist(m.Center())
		return d <= m.r && d >= m.ri
	default:
		l := m.ToLocal(p)
		return math.Abs(l.X) <= m.w/2 && math.Abs(l.Y) <= m.h/2
	}
}

// Valid reports whether the ROI has a finite, non-empty geometry.
func (m Model) Valid() bool {
	return isFinite(m.cx) && isFinite(m.cy) && m.w > 0 && m.h > 0 && isFinite(m.w) && isFinite(m.h)
}

func (m Model) String() string {
	switch m.Shape {
	case ShapeRectangle:
		return fmt.Sprintf("%s[%s %.2f,%.2f %.2fx%.2f @%.2f°]", m.Shape, m.Role, m.x, m.y, m.w, m.h, m.angle)
	case ShapeAnnulus:
		return fmt.Sprintf("%s[%s c=%.2f,%.2f r=%.2f ri=%.2f @%.2f°]", m.Shape, m.Role, m.cx, m.cy, m.r, m.ri, m.angle)
	default:
		return fmt.Sprintf("%s[%s c=%.2f,%.2f r=%.2f @%.2f°]", m.Shape, m.Role, m.cx, m.cy, m.r, m.angle)
	}
}

func (m *Model) syncInner() {
	if m.Shape != ShapeAnnulus {
		m.ri = 0
		return
	}
	m.ri = m.Rules().ClampInner(m.ri, m.r)
}

// NormalizeAngle wraps deg into (-180, 180]. Non-finite input maps to 0.
func NormalizeAngle(deg float64) float64 {
	if !isFinite(deg) {
		return 0
	}
	a := math.Mod(deg, 360)
	if a <= -180 {
		a += 360
	} else if a > 180 {
		a -= 360
	}
	return a
}

func sanitize(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

func sanitizeLen(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

// Mapped returns m under the uniform map p -> p*scale + offset. Lengths and
// the inner radius scale without re-clamping, so mapping back with the
// inverse restores m. Angles are unchanged.
func (m Model) Mapped(offset Point, scale float64) Model {
	out := m
	out.x, out.y = m.x*scale+offset.X, m.y*scale+offset.Y
	out.cx, out.cy = m.cx*scale+offset.X, m.cy*scale+offset.Y
	out.w, out.h = m.w*scale, m.h*scale
	out.r, out.ri = m.r*scale, m.ri*scale
	return out
}

package roi

import (
	"encoding/json"
	"fmt"
)

// Record is the flat projection of a Model exchanged with the backend
// inspection service and written by the dataset exporter. The field names
// are part of a cross-process contract and must not change.
type Record struct {
	ID       string  `json:"id,omitempty" yaml:"id,omitempty"`
	Shape    string  `json:"shape" yaml:"shape"`
	Role     string  `json:"role" yaml:"role"`
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	W        float64 `json:"w" yaml:"w"`
	H        float64 `json:"h" yaml:"h"`
	CX       float64 `json:"cx" yaml:"cx"`
	CY       float64 `json:"cy" yaml:"cy"`
	R        float64 `json:"r" yaml:"r"`
	RI       float64 `json:"ri" yaml:"ri"`
	AngleDeg float64 `json:"angle_deg" yaml:"angle_deg"`
}

// Record returns the flat projection of m.
func (m Model) Record() Record {
	return Record{
		ID:       m.ID,
		Shape:    m.Shape.String(),
		Role:     string(m.Role),
		X:        m.x,
		Y:        m.y,
		W:        m.w,
		H:        m.h,
		CX:       m.cx,
		CY:       m.cy,
		R:        m.r,
		RI:       m.ri,
		AngleDeg: m.angle,
	}
}

// FromRecord rebuilds a Model from its projection. Round shapes prefer the
// center/radius fields and rectangles the box fields; whichever is present is
// used when the preferred one is empty. Annulus inner radii go through
// rules.ResolveInner.
func FromRecord(rec Record, rules Radii) (Model, error) {
	shape, err := ParseShape(rec.Shape)
	if err != nil {
		return Model{}, err
	}
	m := Model{ID: rec.ID, Shape: shape, Role: Role(rec.Role), rules: rules}
	if m.ID == "" {
		m.ID = NewID()
	}

	hasBox := isFinite(rec.W) && isFinite(rec.H) && (rec.W > 0 || rec.H > 0)
	hasCircle := isFinite(rec.R) && rec.R > 0

	switch {
	case shape.Round() && hasCircle:
		m.SetCircle(Pt(rec.CX, rec.CY), rec.R)
	case hasBox:
		m.SetRect(rec.X, rec.Y, rec.W, rec.H)
	case hasCircle:
		m.SetCenterSize(Pt(rec.CX, rec.CY), 2*rec.R, 2*rec.R)
	default:
		return Model{}, fmt.Errorf("roi %q has no usable geometry", rec.ID)
	}
	if shape == ShapeAnnulus {
		m.ri = m.Rules().ResolveInner(rec.RI, m.r)
	}
	m.SetAngle(rec.AngleDeg)
	return m, nil
}

// MarshalJSON encodes the Record projection.
func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Record())
}

// UnmarshalJSON decodes a Record projection using the default radius rules.
func (m *Model) UnmarshalJSON(data []byte) error {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	parsed, err := FromRecord(rec, m.rules)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

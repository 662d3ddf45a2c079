package editor

import "fmt"

// Handle identifies a drag target on a ROI overlay.
type Handle int

const (
	HandleNone Handle = iota
	HandleMove
	HandleTopLeft
	HandleTop
	HandleTopRight
	HandleRight
	HandleBottomRight
	HandleBottom
	HandleBottomLeft
	HandleLeft
	HandleRotate
	HandleInnerRadius
)

var handleNames = map[Handle]string{
	HandleNone:        "none",
	HandleMove:        "move",
	HandleTopLeft:     "top-left",
	HandleTop:         "top",
	HandleTopRight:    "top-right",
	HandleRight:       "right",
	HandleBottomRight: "bottom-right",
	HandleBottom:      "bottom",
	HandleBottomLeft:  "bottom-left",
	HandleLeft:        "left",
	HandleRotate:      "rotate",
	HandleInnerRadius: "inner-radius",
}

func (h Handle) String() string {
	if name, ok := handleNames[h]; ok {
		return name
	}
	return fmt.Sprintf("handle(%d)", int(h))
}

// ParseHandle parses the names produced by Handle.String.
func ParseHandle(name string) (Handle, error) {
	for h, n := range handleNames {
		if n == name {
			return h, nil
		}
	}
	return HandleNone, fmt.Errorf("unknown handle %q", name)
}

// resizeHandles lists corners first so they win hit-test ties over edges.
var resizeHandles = []Handle{
	HandleTopLeft, HandleTopRight, HandleBottomRight, HandleBottomLeft,
	HandleTop, HandleRight, HandleBottom, HandleLeft,
}

// direction returns the handle's position on the unit box in the ROI's local
// frame, each component in {-1, 0, 1}. The anchor is the negated direction.
func (h Handle) direction() (float64, float64, bool) {
	switch h {
	case HandleTopLeft:
		return -1, -1, true
	case HandleTop:
		return 0, -1, true
	case HandleTopRight:
		return 1, -1, true
	case HandleRight:
		return 1, 0, true
	case HandleBottomRight:
		return 1, 1, true
	case HandleBottom:
		return 0, 1, true
	case HandleBottomLeft:
		return -1, 1, true
	case HandleLeft:
		return -1, 0, true
	default:
		return 0, 0, false
	}
}

// IsResize reports whether h is one of the corner or edge handles.
func (h Handle) IsResize() bool {
	_, _, ok := h.direction()
	return ok
}

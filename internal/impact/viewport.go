package impact

import (
	"fmt"
	"math"
)

const (
	MinZoom = 0.1
	MaxZoom = 3.0

	wheelZoomOut  = 0.9
	wheelZoomIn   = 1.1
	buttonZoomIn  = 1.2
	buttonZoomOut = 0.8
)

// PrimaryButton is the pointer button that starts a drag
const PrimaryButton = 0

// Point is a position or offset in screen pixels
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the pan/zoom state of the viewer, along with the drag in progress (if
// any). It knows nothing about the content it's applied to. The zero value is not
// usable; use NewViewport.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	Pan  Point   `json:"pan"`

	dragging  bool
	dragStart Point
	lastPan   Point
}

// NewViewport returns a viewport at zoom 1 with no pan
func NewViewport() Viewport {
	return Viewport{Zoom: 1}
}

// Dragging reports whether a drag is in progress
func (v *Viewport) Dragging() bool {
	return v.dragging
}

// PointerDown starts a drag at (x, y) if button is the primary button
func (v *Viewport) PointerDown(button int, x, y float64) {
	if button != PrimaryButton {
		return
	}
	v.dragging = true
	v.dragStart = Point{X: x, Y: y}
	v.lastPan = v.Pan
}

// PointerMove pans by the distance the pointer has moved since the drag started
func (v *Viewport) PointerMove(x, y float64) {
	if !v.dragging {
		return
	}
	v.Pan = Point{
		X: v.lastPan.X + x - v.dragStart.X,
		Y: v.lastPan.Y + y - v.dragStart.Y,
	}
}

// PointerUp ends the drag in progress
func (v *Viewport) PointerUp() {
	v.dragging = false
}

// Wheel zooms out for a positive deltaY and in for a negative one. It always returns
// true, signalling that the host's native scroll/zoom behavior must be suppressed (the
// wheel listener therefore has to be registered as non-passive).
func (v *Viewport) Wheel(deltaY float64) bool {
	switch {
	case deltaY > 0:
		v.setZoom(v.Zoom * wheelZoomOut)
	case deltaY < 0:
		v.setZoom(v.Zoom * wheelZoomIn)
	}
	return true
}

// ZoomIn zooms in by one 20% step
func (v *Viewport) ZoomIn() {
	v.setZoom(v.Zoom * buttonZoomIn)
}

// ZoomOut zooms out by one 20% step
func (v *Viewport) ZoomOut() {
	v.setZoom(v.Zoom * buttonZoomOut)
}

// Reset restores zoom 1 and no pan, and abandons any drag in progress
func (v *Viewport) Reset() {
	*v = NewViewport()
}

func (v *Viewport) setZoom(z float64) {
	v.Zoom = ClampZoom(z)
}

// ClampZoom limits a zoom factor to [MinZoom, MaxZoom]
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// Transform is the affine transform to apply to the rendered tree: translate to the
// centre of the container, then by the pan offset, then scale. Scaling last keeps the
// zoom centred on the content regardless of pan.
type Transform struct {
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
	Scale      float64 `json:"scale"`
}

// Transform computes the transform for a container of the given size
func (v *Viewport) Transform(width, height float64) Transform {
	return Transform{
		TranslateX: width/2 + v.Pan.X,
		TranslateY: height/2 + v.Pan.Y,
		Scale:      v.Zoom,
	}
}

// Apply maps a point in content coordinates to container coordinates
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.TranslateX + p.X*t.Scale,
		Y: t.TranslateY + p.Y*t.Scale,
	}
}

// CSS renders the transform as a CSS transform value
func (t Transform) CSS() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g)", t.TranslateX, t.TranslateY, t.Scale)
}

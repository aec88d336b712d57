package host

import "errors"

// ErrNoModel is returned by ActiveModel when no model is currently open.
var ErrNoModel = errors.New("no active model")

// Kind classifies a scene entity.
type Kind string

const (
	KindGroup     Kind = "group"
	KindComponent Kind = "component"
	KindFace      Kind = "face"
	KindEdge      Kind = "edge"
)

// Entity is a single object in the scene graph.
type Entity struct {
	ID       int64  `json:"id"`
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"`
	Bounds   Bounds `json:"bounds"`
	Material string `json:"material,omitempty"`
}

// Bounds is an axis-aligned bounding volume. The zero value is empty
// (no geometry); Extend and Union grow it.
type Bounds struct {
	Min   [3]float64 `json:"min"`
	Max   [3]float64 `json:"max"`
	Valid bool       `json:"valid"`
}

// NewBounds builds a volume spanning the two corner points.
func NewBounds(min, max [3]float64) Bounds {
	b := Bounds{}
	b.Extend(min)
	b.Extend(max)
	return b
}

// Empty reports whether the volume contains no geometry.
func (b Bounds) Empty() bool {
	return !b.Valid
}

// Extend grows the volume to include the given point.
func (b *Bounds) Extend(p [3]float64) {
	if !b.Valid {
		b.Min, b.Max = p, p
		b.Valid = true
		return
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Union grows the volume to include another volume.
func (b *Bounds) Union(o Bounds) {
	if o.Empty() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// Width is the extent along the X axis.
func (b Bounds) Width() float64 { return b.Max[0] - b.Min[0] }

// Height is the extent along the Y axis.
func (b Bounds) Height() float64 { return b.Max[1] - b.Min[1] }

// Depth is the extent along the Z axis.
func (b Bounds) Depth() float64 { return b.Max[2] - b.Min[2] }

// ImageOptions controls viewport rasterization.
type ImageOptions struct {
	Width       int
	Height      int
	Antialias   bool
	Transparent bool
}

// Host is the surface of the modeling environment the bridge drives.
type Host interface {
	// ActiveModel returns the currently open model, or ErrNoModel.
	ActiveModel() (Model, error)
}

// Model is a live scene graph together with its scripting context.
// All access is single-threaded; implementations are not required to
// be safe for concurrent use.
type Model interface {
	Name() string
	// Path is the saved file location, empty for an unsaved model.
	Path() string
	Units() string
	Entities() []Entity
	Selection() []Entity
	Bounds() Bounds
	Materials() []string
	// Eval runs code in the model's privileged scripting context and
	// returns the value of the final expression as text. No sandboxing,
	// no resource limits.
	Eval(code string) (string, error)
	// SaveAs persists the whole model to path in the native format.
	SaveAs(path string) error
	View() View
}

// View renders the active viewport.
type View interface {
	WriteImage(path string, opts ImageOptions) error
}

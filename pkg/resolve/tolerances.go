package resolve

// Tolerances bound the geometric and legacy matchers. Defaults are
// deliberately tight; widen them through configuration, not code.
type Tolerances struct {
	// CentroidDistance is the largest centroid offset (model units) at
	// which two shapes may still be the same shape.
	CentroidDistance float64 `yaml:"centroid_distance" validate:"gt=0"`

	// DirectionAlignment is the smallest cosine between recorded and
	// current direction. Faces compare signed normals, edges compare
	// unsigned tangents.
	DirectionAlignment float64 `yaml:"direction_alignment" validate:"gt=0,lte=1"`

	// SizeRelative is the largest relative change in characteristic size.
	SizeRelative float64 `yaml:"size_relative" validate:"gte=0,lte=1"`

	// LegacyPointDistance is the capture radius of legacy point selectors.
	LegacyPointDistance float64 `yaml:"legacy_point_distance" validate:"gt=0"`
}

const (
	DefaultCentroidDistance    = 1.0
	DefaultDirectionAlignment  = 0.98
	DefaultSizeRelative        = 0.05
	DefaultLegacyPointDistance = 0.5
)

// DefaultTolerances returns the conservative defaults.
func DefaultTolerances() Tolerances {
	return Tolerances{
		CentroidDistance:    DefaultCentroidDistance,
		DirectionAlignment:  DefaultDirectionAlignment,
		SizeRelative:        DefaultSizeRelative,
		LegacyPointDistance: DefaultLegacyPointDistance,
	}
}

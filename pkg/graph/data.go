package graph

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// BoxData is an axis-aligned box primitive placed at Origin.
type BoxData struct {
	Size   v3.Vec `json:"size"`
	Origin v3.Vec `json:"origin"`
}

func (BoxData) featureData() {}

func (d BoxData) Params() map[string]float64 {
	return map[string]float64{
		"x": d.Size.X, "y": d.Size.Y, "z": d.Size.Z,
		"ox": d.Origin.X, "oy": d.Origin.Y, "oz": d.Origin.Z,
	}
}

// FilletData rounds the referenced edges.
type FilletData struct {
	Radius float64 `json:"radius"`
}

func (FilletData) featureData() {}

func (d FilletData) Params() map[string]float64 {
	return map[string]float64{"radius": d.Radius}
}

// ChamferData bevels the referenced edges.
type ChamferData struct {
	Distance float64 `json:"distance"`
}

func (ChamferData) featureData() {}

func (d ChamferData) Params() map[string]float64 {
	return map[string]float64{"distance": d.Distance}
}

// HoleData bores into the referenced face. Depth 0 means through.
type HoleData struct {
	Diameter float64 `json:"diameter"`
	Depth    float64 `json:"depth"`
}

func (HoleData) featureData() {}

func (d HoleData) Params() map[string]float64 {
	return map[string]float64{"diameter": d.Diameter, "depth": d.Depth}
}

// ShellData hollows the body, opening the referenced faces.
type ShellData struct {
	Thickness float64 `json:"thickness"`
}

func (ShellData) featureData() {}

func (d ShellData) Params() map[string]float64 {
	return map[string]float64{"thickness": d.Thickness}
}

// SweepData sweeps a circular profile along the referenced edge path.
type SweepData struct {
	ProfileRadius float64 `json:"profile_radius"`
}

func (SweepData) featureData() {}

func (d SweepData) Params() map[string]float64 {
	return map[string]float64{"profile_radius": d.ProfileRadius}
}

// LoftData blends the referenced face sections in order.
type LoftData struct {
	Ruled bool `json:"ruled"`
}

func (LoftData) featureData() {}

func (d LoftData) Params() map[string]float64 {
	if d.Ruled {
		return map[string]float64{"ruled": 1}
	}
	return map[string]float64{"ruled": 0}
}

// DataFromParams rebuilds the payload of class c from its persisted
// parameters. Missing parameters read as zero and are caught by
// ValidateAll.
func DataFromParams(c Class, p map[string]float64) (FeatureData, error) {
	switch c {
	case ClassBox:
		return BoxData{
			Size:   v3.Vec{X: p["x"], Y: p["y"], Z: p["z"]},
			Origin: v3.Vec{X: p["ox"], Y: p["oy"], Z: p["oz"]},
		}, nil
	case ClassFillet:
		return FilletData{Radius: p["radius"]}, nil
	case ClassChamfer:
		return ChamferData{Distance: p["distance"]}, nil
	case ClassHole:
		return HoleData{Diameter: p["diameter"], Depth: p["depth"]}, nil
	case ClassShell:
		return ShellData{Thickness: p["thickness"]}, nil
	case ClassSweep:
		return SweepData{ProfileRadius: p["profile_radius"]}, nil
	case ClassLoft:
		return LoftData{Ruled: p["ruled"] != 0}, nil
	default:
		return nil, fmt.Errorf("no data for feature class %s", c)
	}
}

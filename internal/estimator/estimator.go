// Package estimator holds the material estimator formulas behind the
// storefront's "how much do I need" calculator. Quantities are rounded up:
// running out mid-pour costs more than a spare bag.
package estimator

import "math"

const (
	// dry volume factor for concrete (wet volume shrinks when compacted)
	dryVolumeFactor = 1.54

	// 1:2:4 cement:sand:gravel nominal mix
	cementParts = 1.0
	sandParts   = 2.0
	gravelParts = 4.0
	totalParts  = cementParts + sandParts + gravelParts

	cementBagVolumeM3 = 0.0347 // one 50 kg bag

	// standard modular brick with 10mm mortar joint, per square meter
	bricksPerSqm     = 50.0
	mortarWastePct   = 0.05
	paintCoverageSqm = 10.0 // per litre, one coat
)

type ConcreteEstimate struct {
	VolumeM3   float64 `json:"volume_m3"`
	CementBags int     `json:"cement_bags"`
	SandM3     float64 `json:"sand_m3"`
	GravelM3   float64 `json:"gravel_m3"`
}

// ConcreteSlab estimates materials for a rectangular slab, dimensions in
// meters, thickness included.
func ConcreteSlab(lengthM, widthM, thicknessM float64) ConcreteEstimate {
	wet := lengthM * widthM * thicknessM
	if wet <= 0 {
		return ConcreteEstimate{}
	}
	dry := wet * dryVolumeFactor

	cementM3 := dry * cementParts / totalParts
	return ConcreteEstimate{
		VolumeM3:   round2(wet),
		CementBags: int(math.Ceil(cementM3 / cementBagVolumeM3)),
		SandM3:     round2(dry * sandParts / totalParts),
		GravelM3:   round2(dry * gravelParts / totalParts),
	}
}

// BrickWall returns the brick count for a wall of the given face area,
// openings (doors, windows) already subtracted by the caller.
func BrickWall(areaSqm float64) int {
	if areaSqm <= 0 {
		return 0
	}
	return int(math.Ceil(areaSqm * bricksPerSqm * (1 + mortarWastePct)))
}

// PaintLitres covers the area with the given number of coats.
func PaintLitres(areaSqm float64, coats int) float64 {
	if areaSqm <= 0 || coats <= 0 {
		return 0
	}
	litres := areaSqm * float64(coats) / paintCoverageSqm
	return math.Ceil(litres*2) / 2 // half-litre granularity
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

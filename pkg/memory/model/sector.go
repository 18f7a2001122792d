package model

import "fmt"

// Sector partitions memories and vectors. The set is fixed by the spec and
// must match the indices of the cross-sector resonance matrix below.
type Sector string

const (
	SectorEpisodic   Sector = "episodic"
	SectorSemantic   Sector = "semantic"
	SectorProcedural Sector = "procedural"
	SectorEmotional  Sector = "emotional"
	SectorReflective Sector = "reflective"
)

// sectorIndex fixes the row/column order of the resonance matrix.
var sectorIndex = map[Sector]int{
	SectorEpisodic:   0,
	SectorSemantic:   1,
	SectorProcedural: 2,
	SectorEmotional:  3,
	SectorReflective: 4,
}

// Sectors lists the five sectors in their canonical matrix order.
var Sectors = []Sector{SectorEpisodic, SectorSemantic, SectorProcedural, SectorEmotional, SectorReflective}

func (s Sector) Valid() bool {
	_, ok := sectorIndex[s]
	return ok
}

// resonanceMatrix is the fixed 5x5 symmetric cross-sector coupling matrix
// from the glossary. Rows/cols: episodic, semantic, procedural, emotional, reflective.
var resonanceMatrix = [5][5]float64{
	{1.0, 0.7, 0.3, 0.6, 0.6},
	{0.7, 1.0, 0.4, 0.7, 0.8},
	{0.3, 0.4, 1.0, 0.5, 0.2},
	{0.6, 0.7, 0.5, 1.0, 0.8},
	{0.6, 0.8, 0.2, 0.8, 1.0},
}

// Resonance returns M[a, b] for two sectors, defaulting to 0 for unknown
// sectors so callers degrade gracefully instead of panicking.
func Resonance(a, b Sector) float64 {
	ia, aok := sectorIndex[a]
	ib, bok := sectorIndex[b]
	if !aok || !bok {
		return 0
	}
	return resonanceMatrix[ia][ib]
}

// SectorWeight is the fixed per-sector weight used by the synthetic embedder (C2).
func SectorWeight(s Sector) float64 {
	switch s {
	case SectorEpisodic:
		return 1.3
	case SectorSemantic:
		return 1.0
	case SectorProcedural:
		return 1.2
	case SectorEmotional:
		return 1.4
	case SectorReflective:
		return 0.9
	default:
		return 1.0
	}
}

// FusionWeights returns the (alpha_synth, alpha_sem) pair used by the
// embedding router's hybrid/smart tiers for a given sector.
func FusionWeights(s Sector) (synth, sem float64) {
	switch s {
	case SectorEpisodic:
		return 0.65, 0.35
	case SectorSemantic:
		return 0.6, 0.4
	case SectorProcedural:
		return 0.55, 0.45
	case SectorEmotional:
		return 0.58, 0.42
	case SectorReflective:
		return 0.62, 0.38
	default:
		return 0.6, 0.4
	}
}

func ParseSector(s string) (Sector, error) {
	sec := Sector(s)
	if !sec.Valid() {
		return "", fmt.Errorf("unknown sector %q", s)
	}
	return sec, nil
}

package engine

import "time"

// Config is the recognized runtime-config surface (§6 configuration table).
// Every field name mirrors the spec's option name in spirit; overrides are
// applied behind the Engine's RWMutex (§5 "writer-exclusive, reader-shared").
type Config struct {
	VectorDim              int
	HybridFusion           bool
	EmbedKind              string
	Tier                   string
	EmbedMode              string
	AdvEmbedParallel       bool
	EmbedDelayMs           int
	RouterCacheTTL         time.Duration
	RouterFallbackEnabled  bool
	RouterSIMDEnabled      bool
	RouterDimTolerance     float64
	RouterValidateOnStart  bool
	DecayReinforceOnQuery  bool
	RegenerationEnabled    bool
	MinVecDim              int
	MaxVecDim              int
	IngestLargeThreshold   int
	IngestSectionSize      int
	StrictTenant           bool
	ReflectionInterval     time.Duration
	DecaySweepInterval     time.Duration
	Tau                    float64
	MMRLambda              float64
}

// DefaultConfig returns the spec's documented defaults (§6).
func DefaultConfig() Config {
	return Config{
		VectorDim:             256,
		HybridFusion:          true,
		EmbedKind:             "synthetic",
		Tier:                  "hybrid",
		EmbedMode:             "advanced",
		AdvEmbedParallel:      false,
		EmbedDelayMs:          0,
		RouterCacheTTL:        30 * time.Second,
		RouterFallbackEnabled: true,
		RouterSIMDEnabled:     true,
		RouterDimTolerance:    0.1,
		RouterValidateOnStart: true,
		DecayReinforceOnQuery: true,
		RegenerationEnabled:   true,
		MinVecDim:             64,
		MaxVecDim:             256,
		IngestLargeThreshold:  8000,
		IngestSectionSize:     3000,
		StrictTenant:          false,
		ReflectionInterval:    30 * time.Minute,
		DecaySweepInterval:    10 * time.Minute,
		Tau:                   0.4,
		MMRLambda:             0.7,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VectorDim == 0 {
		c.VectorDim = d.VectorDim
	}
	if c.EmbedKind == "" {
		c.EmbedKind = d.EmbedKind
	}
	if c.Tier == "" {
		c.Tier = d.Tier
	}
	if c.EmbedMode == "" {
		c.EmbedMode = d.EmbedMode
	}
	if c.RouterCacheTTL == 0 {
		c.RouterCacheTTL = d.RouterCacheTTL
	}
	if c.RouterDimTolerance == 0 {
		c.RouterDimTolerance = d.RouterDimTolerance
	}
	if c.MinVecDim == 0 {
		c.MinVecDim = d.MinVecDim
	}
	if c.MaxVecDim == 0 {
		c.MaxVecDim = c.VectorDim
	}
	if c.IngestLargeThreshold == 0 {
		c.IngestLargeThreshold = d.IngestLargeThreshold
	}
	if c.IngestSectionSize == 0 {
		c.IngestSectionSize = d.IngestSectionSize
	}
	if c.ReflectionInterval == 0 {
		c.ReflectionInterval = d.ReflectionInterval
	}
	if c.DecaySweepInterval == 0 {
		c.DecaySweepInterval = d.DecaySweepInterval
	}
	if c.Tau == 0 {
		c.Tau = d.Tau
	}
	if c.MMRLambda == 0 {
		c.MMRLambda = d.MMRLambda
	}
	return c
}

// Package sector implements the rule-based primary-sector classifier (C5):
// raw text in, one of the five fixed sectors out.
package sector

import (
	"strings"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// keyword lists are hand-curated, grounded on the teacher's urgency-keyword
// scoring in pkg/memory/engine.go (strings.Contains loops over small fixed
// lists). Each sector accumulates a score from its own list; the highest
// score wins, with semantic as the tie-break default (it is the broadest
// bucket, per §4.8's "default semantic" query fallback).
var sectorKeywords = map[model.Sector][]string{
	model.SectorEpisodic: {
		"yesterday", "today", "this morning", "last night", "ago", "happened",
		"went to", "met with", "arrived", "left", "remember when", "at the time",
	},
	model.SectorProcedural: {
		"step", "steps", "how to", "first,", "then,", "procedure", "install",
		"configure", "run the", "execute", "command", "recipe", "instructions",
	},
	model.SectorEmotional: {
		"feel", "felt", "feeling", "happy", "sad", "angry", "anxious", "excited",
		"worried", "love", "hate", "afraid", "proud", "grateful", "frustrated",
	},
	model.SectorReflective: {
		"i think", "i believe", "in retrospect", "looking back", "lesson learned",
		"realize", "reflect", "summary", "overall", "in conclusion", "pattern",
	},
}

// Classify maps text to a primary sector. It never returns an invalid
// sector; empty or keyword-less text falls back to semantic.
func Classify(text string) model.Sector {
	lower := strings.ToLower(text)
	best := model.SectorSemantic
	bestScore := 0

	for _, s := range []model.Sector{model.SectorEpisodic, model.SectorProcedural, model.SectorEmotional, model.SectorReflective} {
		score := score(lower, sectorKeywords[s])
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return best
}

func score(lower string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			total++
		}
	}
	return total
}

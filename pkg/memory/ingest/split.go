package ingest

import (
	"strings"
)

const defaultSectionSize = 3000

// SplitSections breaks text into sections of at most maxChars runes,
// preferring a paragraph break, then a newline, then a space as the cut
// point (§4.7 step 4b), and never splitting a UTF-16 surrogate pair.
func SplitSections(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultSectionSize
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var sections []string
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = bestCut(runes, start, end)
		}
		end = avoidSurrogateSplit(runes, end)
		if end <= start {
			end = start + 1
		}
		section := strings.TrimSpace(string(runes[start:end]))
		if section != "" {
			sections = append(sections, section)
		}
		start = end
	}
	return sections
}

// bestCut looks backward from end for a paragraph break, else a newline,
// else a space, falling back to a hard cut at end.
func bestCut(runes []rune, start, end int) int {
	if cut := lastIndexInRange(runes, start, end, "\n\n"); cut > start {
		return cut
	}
	if cut := lastRuneIndexInRange(runes, start, end, '\n'); cut > start {
		return cut + 1
	}
	if cut := lastRuneIndexInRange(runes, start, end, ' '); cut > start {
		return cut + 1
	}
	return end
}

func lastIndexInRange(runes []rune, start, end int, sep string) int {
	window := string(runes[start:end])
	idx := strings.LastIndex(window, sep)
	if idx < 0 {
		return -1
	}
	return start + len([]rune(window[:idx])) + len([]rune(sep))
}

func lastRuneIndexInRange(runes []rune, start, end int, r rune) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// avoidSurrogateSplit nudges a cut point past any combining marks that
// follow it. Cutting on []rune already guarantees no UTF-16 surrogate pair
// is split (each rune is one full code point); a trailing combining mark is
// the remaining grapheme-cluster hazard.
func avoidSurrogateSplit(runes []rune, idx int) int {
	for idx > 0 && idx < len(runes) && isCombiningMark(runes[idx]) {
		idx++
	}
	return idx
}

func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

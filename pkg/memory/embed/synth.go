// Package embed implements the synthetic embedder (C2) and the embedding
// router (C3): tier policy, provider fallback, dimension reconciliation and
// fusion.
package embed

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

var tokenRegexp = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lowercases text and splits it into canonical alphanumeric tokens.
func Tokenize(text string) []string {
	return tokenRegexp.FindAllString(strings.ToLower(text), -1)
}

// synonyms is a small fixed table used to expand the token multiset before
// weighting (§4.2 step 2). Tokens absent from the table expand to themselves
// only.
var synonyms = map[string][]string{
	"error":    {"fail", "failure"},
	"fail":     {"error"},
	"bug":      {"defect", "issue"},
	"happy":    {"glad", "joy"},
	"sad":      {"upset", "down"},
	"meeting":  {"call", "sync"},
	"deploy":   {"release", "ship"},
	"incident": {"outage"},
	"outage":   {"incident", "downtime"},
	"plan":     {"strategy"},
}

// expand builds the expanded multiset E from tokens, following each token's
// synonym set.
func expand(tokens []string) []string {
	out := make([]string, 0, len(tokens)*2)
	for _, t := range tokens {
		out = append(out, t)
		out = append(out, synonyms[t]...)
	}
	return out
}

// h1 is an FNV-1a-like hash of the feature key.
func h1(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// mixSeed is the fixed seed used to derive h2 from h1 via a mix-shift.
const mixSeed uint64 = 0x9E3779B97F4A7C15

// h2 derives a second, decorrelated hash from h1's output via a mix-shift
// constant, avoiding a second full pass over the key bytes.
func h2(key string) uint64 {
	x := h1(key) ^ mixSeed
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

func bucketIndex(h uint64, d int) int {
	if d&(d-1) == 0 { // power of two: bitmask indexing
		return int(h & uint64(d-1))
	}
	return int(h % uint64(d))
}

// addFeature folds one (key, weight) pair into the accumulator per §4.2
// step 4: signed amount at h1(k)%D, half that at h2(k)%D.
func addFeature(acc []float32, key string, w float64) {
	d := len(acc)
	primary := h1(key)
	sign := 1.0
	if primary%2 == 1 {
		sign = -1.0
	}
	amount := w * sign
	acc[bucketIndex(primary, d)] += float32(amount)
	acc[bucketIndex(h2(key), d)] += float32(amount / 2)
}

func charNgrams(token string, n int) []string {
	r := []rune(token)
	if len(r) < n {
		return nil
	}
	out := make([]string, 0, len(r)-n+1)
	for i := 0; i+n <= len(r); i++ {
		out = append(out, string(r[i:i+n]))
	}
	return out
}

// GenSynth implements gen_synth(text, sector) -> [f32] (§4.2): a
// deterministic, dense, sector-weighted hashed-feature vector of dimension d.
func GenSynth(text string, sector model.Sector, d int) []float32 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		unit := float32(1 / math.Sqrt(float64(d)))
		v := make([]float32, d)
		for i := range v {
			v[i] = unit
		}
		return v
	}

	s := string(sector)
	S := model.SectorWeight(sector)

	expanded := expand(tokens)
	L := float64(len(expanded))

	counts := make(map[string]int, len(expanded))
	for _, t := range expanded {
		counts[t]++
	}

	acc := make([]float32, d)

	for t, c := range counts {
		tf := float64(c) / L
		idf := math.Log(1 + L/float64(c))
		w := (tf*idf + 1) * S

		addFeature(acc, s+"|tok|"+t, w)
		for _, ng := range charNgrams(t, 3) {
			addFeature(acc, s+"|ng3|"+ng, 0.4*w)
		}
		for _, ng := range charNgrams(t, 4) {
			addFeature(acc, s+"|ng4|"+ng, 0.3*w)
		}
	}

	for i := 0; i < len(tokens)-1; i++ {
		decay := 1.4 * S / (1 + 0.1*float64(i))
		addFeature(acc, s+"|bi|"+tokens[i]+"_"+tokens[i+1], decay)
	}
	for i := 0; i < len(tokens)-2; i++ {
		addFeature(acc, s+"|tri|"+tokens[i]+"_"+tokens[i+1]+"_"+tokens[i+2], 1.0*S)
	}
	skipCap := 20
	skipCount := 0
	for i := 0; i+2 < len(tokens) && skipCount < skipCap; i++ {
		addFeature(acc, s+"|skip|"+tokens[i]+"_"+tokens[i+2], 0.7*S)
		skipCount++
	}

	posAmp := 0.5 * S / math.Log(1+L)
	posLimit := len(tokens)
	if posLimit > 50 {
		posLimit = 50
	}
	for i := 0; i < posLimit; i++ {
		freq := float64(i+1) / 50
		addFeature(acc, s+"|possin|"+tokens[i], posAmp*math.Sin(freq))
		addFeature(acc, s+"|poscos|"+tokens[i], posAmp*math.Cos(freq))
	}

	lenBucket := int(math.Floor(math.Log2(L + 1)))
	if lenBucket > 10 {
		lenBucket = 10
	}
	addFeature(acc, s+"|len|bucket", S*float64(lenBucket))

	distinct := len(counts)
	densityBucket := int(math.Floor(10 * float64(distinct) / L))
	addFeature(acc, s+"|density|bucket", S*float64(densityBucket))

	normalizeInPlace(acc)
	return acc
}

func normalizeInPlace(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i, f := range v {
		v[i] = float32(float64(f) / norm)
	}
}

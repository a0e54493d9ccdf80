// Package sampler turns the engine's next-token logits into one chosen
// token id through an ordered chain of selection stages.
package sampler

import (
	"math"
	"math/rand"
	"sort"
)

// candidate is one vocabulary entry under consideration: its token id, the
// current (possibly rescaled) logit, and the probability assigned by the
// most recent softmax.
type candidate struct {
	id    int32
	logit float32
	prob  float32
}

// stage transforms the candidate set in place or returns a filtered subset.
type stage interface {
	apply(cands []candidate, history []int32) []candidate
}

// picker is the terminal step selecting one token from the surviving
// candidates.
type picker interface {
	pick(cands []candidate) int32
}

// softmax fills prob for each candidate from the logits, with max
// subtraction for numerical stability.
func softmax(cands []candidate) {
	if len(cands) == 0 {
		return
	}
	maxLogit := cands[0].logit
	for _, c := range cands[1:] {
		if c.logit > maxLogit {
			maxLogit = c.logit
		}
	}
	var sum float32
	for i := range cands {
		cands[i].prob = float32(math.Exp(float64(cands[i].logit - maxLogit)))
		sum += cands[i].prob
	}
	for i := range cands {
		cands[i].prob /= sum
	}
}

// nucleus keeps the smallest probability-descending prefix whose cumulative
// probability reaches p, but never fewer than minKeep candidates.
type nucleus struct {
	p       float32
	minKeep int
}

func (s nucleus) apply(cands []candidate, _ []int32) []candidate {
	softmax(cands)
	sort.Slice(cands, func(i, j int) bool { return cands[i].prob > cands[j].prob })
	var cum float32
	cut := len(cands)
	for i, c := range cands {
		cum += c.prob
		if cum >= s.p && i+1 >= s.minKeep {
			cut = i + 1
			break
		}
	}
	return cands[:cut]
}

// temperature rescales logits by 1/t. t is validated > 0 at construction.
type temperature struct{ t float32 }

func (s temperature) apply(cands []candidate, _ []int32) []candidate {
	for i := range cands {
		cands[i].logit /= s.t
	}
	return cands
}

// repeatPenalty dampens tokens already accepted this request: positive
// logits are divided by the penalty, negative logits multiplied (the
// llama.cpp convention, which keeps the damping symmetric in probability).
type repeatPenalty struct{ penalty float32 }

func (s repeatPenalty) apply(cands []candidate, history []int32) []candidate {
	if len(history) == 0 {
		return cands
	}
	seen := make(map[int32]struct{}, len(history))
	for _, tok := range history {
		seen[tok] = struct{}{}
	}
	for i := range cands {
		if _, ok := seen[cands[i].id]; !ok {
			continue
		}
		if cands[i].logit > 0 {
			cands[i].logit /= s.penalty
		} else {
			cands[i].logit *= s.penalty
		}
	}
	return cands
}

// greedy picks the arg-max logit. Fully deterministic.
type greedy struct{}

func (greedy) pick(cands []candidate) int32 {
	best := 0
	for i, c := range cands {
		if c.logit > cands[best].logit {
			best = i
		}
	}
	return cands[best].id
}

// dist draws from the candidate distribution via cumulative inverse
// transform over a per-request seeded source.
type dist struct{ rng *rand.Rand }

func (d dist) pick(cands []candidate) int32 {
	softmax(cands)
	r := d.rng.Float32()
	var cum float32
	for _, c := range cands {
		cum += c.prob
		if r < cum {
			return c.id
		}
	}
	return cands[len(cands)-1].id
}

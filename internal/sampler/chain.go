package sampler

import "math/rand"

// DefaultTopP replaces a nucleus threshold of exactly 0, which means
// "caller did not set a value", not "keep only the most probable token".
const DefaultTopP = 0.95

// Chain is an ordered sequence of selection stages plus a terminal picker.
// It is ephemeral: built per request, reset before first use, and discarded
// at the end of the request on every exit path.
type Chain struct {
	stages  []stage
	pick    picker
	history []int32
}

// Sample selects one token id from the logits slice (one value per
// vocabulary entry). Returns -1 on an empty distribution.
func (c *Chain) Sample(logits []float32) int32 {
	if len(logits) == 0 {
		return -1
	}
	cands := make([]candidate, len(logits))
	for i, l := range logits {
		cands[i] = candidate{id: int32(i), logit: l}
	}
	for _, s := range c.stages {
		cands = s.apply(cands, c.history)
	}
	if len(cands) == 0 {
		return -1
	}
	return c.pick.pick(cands)
}

// Accept records a token into the acceptance history consumed by
// history-dependent stages such as the repetition penalty.
func (c *Chain) Accept(token int32) {
	c.history = append(c.history, token)
}

// Reset clears the acceptance history.
func (c *Chain) Reset() {
	c.history = c.history[:0]
}

// ForRequest builds the chain for one completion request.
//
// temperature is clamped to >= 0; 0 selects plain greedy arg-max and the
// seed is ignored. For temperature > 0 the chain is nucleus filter →
// temperature scale → seeded draw; this stage order is a correctness
// requirement, not a style choice (filtering bounds the candidate set
// before reweighting, and the draw must be terminal). topP is clamped to
// [0,1] with 0 replaced by DefaultTopP. A negative seed draws a fresh
// nondeterministic seed. repeatPenalty > 0 and != 1 inserts a repetition
// penalty stage ahead of the filter; it never displaces the terminal draw.
func ForRequest(temp, topP float64, seed int64, penalty float64) *Chain {
	t := float32(temp)
	if t < 0 {
		t = 0
	}
	p := float32(topP)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	if p == 0 {
		p = DefaultTopP
	}

	var stages []stage
	if penalty > 0 && penalty != 1 {
		stages = append(stages, repeatPenalty{penalty: float32(penalty)})
	}
	if t == 0 {
		return &Chain{stages: stages, pick: greedy{}}
	}

	if seed < 0 {
		seed = rand.Int63()
	}
	stages = append(stages,
		nucleus{p: p, minKeep: 1},
		temperature{t: t},
	)
	return &Chain{
		stages: stages,
		pick:   dist{rng: rand.New(rand.NewSource(seed))},
	}
}

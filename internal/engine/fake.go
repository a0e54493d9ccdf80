package engine

import (
	"errors"
	"fmt"
)

// FakeBackend is a scripted in-memory Backend for tests. Script holds the
// token ids the backend "predicts" in order: after the prompt is evaluated
// the logits favor Script[0]; each subsequent single-token evaluation
// advances the cursor. ClearSequence rewinds the script, mirroring how a
// real KV reset discards generation state.
type FakeBackend struct {
	Script    []int32
	VocabSize int

	// FailEvalAt makes the Nth Evaluate call fail (1-based); 0 disables.
	FailEvalAt int

	Evaluated [][]int32 // every Evaluate batch, in order
	Cleared   []int32   // every ClearSequence id, in order
	Threads   int       // last SetThreads value
	Closed    bool

	evalCalls int
	cursor    int
}

func (f *FakeBackend) Evaluate(tokens []int32) error {
	f.evalCalls++
	if f.FailEvalAt > 0 && f.evalCalls == f.FailEvalAt {
		return errors.New("fake: evaluate failed")
	}
	batch := append([]int32(nil), tokens...)
	f.Evaluated = append(f.Evaluated, batch)
	// The generation loop feeds the sampled token back one at a time; that
	// advances the script. Prompt chunks (which never match the pending
	// prediction) do not.
	if len(tokens) == 1 && f.cursor < len(f.Script) && tokens[0] == f.Script[f.cursor] {
		f.cursor++
	}
	return nil
}

func (f *FakeBackend) Logits() []float32 {
	n := f.VocabSize
	if n == 0 {
		n = 32
	}
	logits := make([]float32, n)
	for i := range logits {
		logits[i] = -10
	}
	idx := f.cursor
	if idx >= len(f.Script) {
		idx = len(f.Script) - 1
	}
	if idx >= 0 {
		logits[int(f.Script[idx])%n] = 10
	}
	return logits
}

func (f *FakeBackend) ClearSequence(seq int32) {
	f.Cleared = append(f.Cleared, seq)
	f.cursor = 0
	// evalCalls is deliberately not rewound: failure injection counts
	// across the whole backend lifetime.
}

func (f *FakeBackend) SetThreads(n int) { f.Threads = n }

func (f *FakeBackend) Close() error {
	f.Closed = true
	return nil
}

// FakeVocabulary is a scripted in-memory Vocabulary. Tokens maps exact
// prompt strings to token sequences; unknown text falls back to one token
// per rune. Pieces maps token ids to fragments; missing entries decode to
// the empty string.
type FakeVocabulary struct {
	Tokens map[string][]int32
	Pieces map[int32]string
	EOG    int32

	FailTokenize bool
}

func (v *FakeVocabulary) Tokenize(text string) ([]int32, error) {
	if v.FailTokenize {
		return nil, fmt.Errorf("fake: cannot tokenize %q", text)
	}
	if toks, ok := v.Tokens[text]; ok {
		return append([]int32(nil), toks...), nil
	}
	var toks []int32
	for _, r := range text {
		toks = append(toks, int32(r))
	}
	return toks, nil
}

func (v *FakeVocabulary) Piece(token int32) string {
	if p, ok := v.Pieces[token]; ok {
		return p
	}
	return ""
}

func (v *FakeVocabulary) IsEndOfGeneration(token int32) bool { return token == v.EOG }

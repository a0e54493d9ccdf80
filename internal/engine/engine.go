package engine

import (
	"errors"
	"runtime"
	"sync"
)

// DefaultContextWindow is used when the caller passes a window size <= 0.
const DefaultContextWindow = 2048

// maxBatch caps the evaluation batch size; the effective capacity is
// min(maxBatch, contextWindow).
const maxBatch = 512

// reservedSequences is the range of sequence ids scrubbed by ResetState.
// The session only ever uses sequence 0, but clearing the whole reserved
// range guarantees no prior-turn residue survives in the KV cache.
const reservedSequences = 16

// Backend is the seam to the token-prediction engine: it owns the loaded
// model weights and the mutable inference context. Implementations are not
// safe for concurrent use.
type Backend interface {
	// Evaluate runs inference over a batch of tokens, advancing the
	// context state. Callers must keep batches within the configured
	// batch capacity.
	Evaluate(tokens []int32) error
	// Logits returns the next-token distribution after the last
	// successful Evaluate, one value per vocabulary entry.
	Logits() []float32
	// ClearSequence drops cached key/value state for one sequence id.
	ClearSequence(seq int32)
	// SetThreads sets the engine thread count for both batch and
	// incremental evaluation.
	SetThreads(n int)
	Close() error
}

// Vocabulary converts text to token ids and back. Read-only; bound to a
// loaded model.
type Vocabulary interface {
	// Tokenize returns the full token sequence for text, including any
	// beginning-of-sequence marker the model requires.
	Tokenize(text string) ([]int32, error)
	// Piece returns the text fragment for one token id; "" is valid
	// (control tokens produce no text).
	Piece(token int32) string
	// IsEndOfGeneration reports whether token marks a natural stop.
	IsEndOfGeneration(token int32) bool
}

// Handle is the unit of resource ownership: one model, one context, one
// vocabulary, a fixed context window. The context state is not safe for
// concurrent mutation; callers must serialize completions per handle.
// Close is idempotent and nil-safe.
type Handle struct {
	backend Backend
	vocab   Vocabulary
	window  int
	batch   int

	mu     sync.Mutex
	closed bool
}

// NewHandle composes a handle over caller-supplied implementations.
// A window size <= 0 is normalized to DefaultContextWindow.
func NewHandle(b Backend, v Vocabulary, contextWindow int) *Handle {
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	batch := maxBatch
	if contextWindow < batch {
		batch = contextWindow
	}
	return &Handle{backend: b, vocab: v, window: contextWindow, batch: batch}
}

// Valid reports whether the handle is non-nil and not closed.
func (h *Handle) Valid() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed && h.backend != nil
}

// Vocab returns the vocabulary bound to the loaded model.
func (h *Handle) Vocab() Vocabulary { return h.vocab }

// ContextWindow returns the fixed context window size in tokens.
func (h *Handle) ContextWindow() int { return h.window }

// BatchCapacity returns the largest batch Evaluate accepts.
func (h *Handle) BatchCapacity() int { return h.batch }

// ResetState clears cached key/value entries for every reserved sequence id
// so the next completion starts from a clean slate.
func (h *Handle) ResetState() {
	if !h.Valid() {
		return
	}
	for seq := int32(0); seq < reservedSequences; seq++ {
		h.backend.ClearSequence(seq)
	}
}

// SetThreads applies the per-call thread count; n <= 0 resolves to
// max(2, detected hardware parallelism).
func (h *Handle) SetThreads(n int) {
	if !h.Valid() {
		return
	}
	if n <= 0 {
		n = autoThreads()
	}
	h.backend.SetThreads(n)
}

// Evaluate forwards a token batch to the backend. The caller chunks to
// BatchCapacity.
func (h *Handle) Evaluate(tokens []int32) error {
	if !h.Valid() {
		return errors.New("engine: handle is closed")
	}
	return h.backend.Evaluate(tokens)
}

// Logits returns the next-token distribution after the last Evaluate.
func (h *Handle) Logits() []float32 {
	if !h.Valid() {
		return nil
	}
	return h.backend.Logits()
}

// Close releases the context and model. Safe to call on a nil handle and
// safe to call more than once; only the first call releases resources.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.backend == nil {
		return nil
	}
	return h.backend.Close()
}

func autoThreads() int {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	return n
}

// unavailableError signals a missing runtime dependency (llama.cpp not
// compiled in).
type unavailableError struct{ msg string }

func (e unavailableError) Error() string { return e.msg }

// ErrUnavailable constructs an unavailableError.
func ErrUnavailable(msg string) error { return unavailableError{msg: msg} }

// IsUnavailable reports whether err indicates a missing/failed runtime
// dependency.
func IsUnavailable(err error) bool {
	_, ok := err.(unavailableError)
	return ok
}

//go:build llama

package engine

/*
#include <stdlib.h>
#include "llama.h"
*/
import "C"

import (
	"fmt"
	"unsafe"
)

func backendInit() {
	C.llama_backend_init()
}

// llamaModel owns the loaded weights.
type llamaModel struct {
	c     *C.struct_llama_model
	vocab *C.struct_llama_vocab
}

func loadModelFile(path string) (*llamaModel, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	mp := C.llama_model_default_params()
	m := C.llama_model_load_from_file(cpath, mp)
	if m == nil {
		return nil, fmt.Errorf("engine: failed to load model: %s", path)
	}
	return &llamaModel{c: m, vocab: C.llama_model_get_vocab(m)}, nil
}

func (m *llamaModel) free() {
	if m.c != nil {
		C.llama_model_free(m.c)
		m.c = nil
	}
}

func (m *llamaModel) numVocab() int {
	return int(C.llama_vocab_n_tokens(m.vocab))
}

// llamaContext owns the mutable inference state (KV cache).
type llamaContext struct {
	c *C.struct_llama_context
}

func newLlamaContext(m *llamaModel, contextWindow, batch int) (*llamaContext, error) {
	cp := C.llama_context_default_params()
	cp.n_ctx = C.uint32_t(contextWindow)
	cp.n_batch = C.uint32_t(batch)
	nth := C.int32_t(autoThreads())
	cp.n_threads = nth
	cp.n_threads_batch = nth
	cp.no_perf = C.bool(true)

	c := C.llama_init_from_model(m.c, cp)
	if c == nil {
		return nil, fmt.Errorf("engine: failed to init context")
	}
	return &llamaContext{c: c}, nil
}

func (lc *llamaContext) free() {
	if lc.c != nil {
		C.llama_free(lc.c)
		lc.c = nil
	}
}

// llamaBackend implements Backend and Vocabulary over one model/context pair.
type llamaBackend struct {
	model *llamaModel
	lctx  *llamaContext
}

func (b *llamaBackend) Evaluate(tokens []int32) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := C.llama_batch_get_one(
		(*C.llama_token)(unsafe.Pointer(&tokens[0])),
		C.int32_t(len(tokens)),
	)
	// Positive return codes are recoverable warnings (no KV slot); negative
	// codes are hard errors. Both abort the current request.
	if code := int(C.llama_decode(b.lctx.c, batch)); code != 0 {
		return fmt.Errorf("engine: llama_decode failed with code %d", code)
	}
	return nil
}

func (b *llamaBackend) Logits() []float32 {
	raw := unsafe.Pointer(C.llama_get_logits_ith(b.lctx.c, C.int32_t(-1)))
	if raw == nil {
		return nil
	}
	n := b.model.numVocab()
	logits := make([]float32, n)
	copy(logits, unsafe.Slice((*float32)(raw), n))
	return logits
}

func (b *llamaBackend) ClearSequence(seq int32) {
	C.llama_memory_seq_rm(C.llama_get_memory(b.lctx.c), C.llama_seq_id(seq), 0, -1)
}

func (b *llamaBackend) SetThreads(n int) {
	C.llama_set_n_threads(b.lctx.c, C.int32_t(n), C.int32_t(n))
}

func (b *llamaBackend) Close() error {
	// Context first, then model: the context borrows the model's weights.
	b.lctx.free()
	b.model.free()
	return nil
}

// Tokenize converts text to a token sequence, prepending the BOS marker and
// parsing special tokens per model convention. The underlying API reports
// the required size as a negated count; the retry is hidden here.
func (b *llamaBackend) Tokenize(text string) ([]int32, error) {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	capTokens := len(text) + 2
	buf := make([]C.llama_token, capTokens)
	n := C.llama_tokenize(b.model.vocab, ctext, C.int32_t(len(text)),
		&buf[0], C.int32_t(capTokens), C.bool(true), C.bool(true))
	if n < 0 {
		capTokens = int(-n)
		buf = make([]C.llama_token, capTokens)
		n = C.llama_tokenize(b.model.vocab, ctext, C.int32_t(len(text)),
			&buf[0], C.int32_t(capTokens), C.bool(true), C.bool(true))
		if n < 0 {
			return nil, fmt.Errorf("engine: tokenization failed, required %d tokens", -n)
		}
	}
	tokens := make([]int32, int(n))
	for i := range tokens {
		tokens[i] = int32(buf[i])
	}
	return tokens, nil
}

// Piece converts one token id to its text fragment; "" for control tokens.
func (b *llamaBackend) Piece(token int32) string {
	size := 16
	buf := make([]byte, size)
	n := int(C.llama_token_to_piece(b.model.vocab, C.llama_token(token),
		(*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(size),
		C.int32_t(0), C.bool(true)))
	if n < 0 {
		size = -n
		buf = make([]byte, size)
		n = int(C.llama_token_to_piece(b.model.vocab, C.llama_token(token),
			(*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(size),
			C.int32_t(0), C.bool(true)))
	}
	if n <= 0 {
		return ""
	}
	return string(buf[:n])
}

func (b *llamaBackend) IsEndOfGeneration(token int32) bool {
	return bool(C.llama_vocab_is_eog(b.model.vocab, C.llama_token(token)))
}

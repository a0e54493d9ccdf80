package session

import (
	"context"
	"testing"

	"llmrun/internal/engine"
	"llmrun/pkg/types"
)

const eog int32 = 2

// newScriptedHandle builds a handle whose backend predicts script in order
// and whose vocabulary decodes via pieces.
func newScriptedHandle(window int, script []int32, pieces map[int32]string) (*engine.Handle, *engine.FakeBackend, *engine.FakeVocabulary) {
	b := &engine.FakeBackend{Script: script, VocabSize: 32}
	v := &engine.FakeVocabulary{EOG: eog, Pieces: pieces}
	return engine.NewHandle(b, v, window), b, v
}

func baseRequest(prompt string) types.CompletionRequest {
	return types.CompletionRequest{
		Prompt:    prompt,
		Threads:   -1,
		MaxTokens: 4,
		TopP:      0,
		Seed:      -1,
	}
}

func TestScenarioDeterministicContinuation(t *testing.T) {
	// "2+2=" continues with "4" then end-of-generation, identical across
	// three invocations on the same handle.
	h, _, v := newScriptedHandle(256, []int32{4, eog}, map[int32]string{4: "4"})
	v.Tokens = map[string][]int32{"2+2=": {10, 11, 10, 12}}

	req := baseRequest("2+2=")
	for i := 0; i < 3; i++ {
		if got := Complete(context.Background(), h, req); got != "4" {
			t.Fatalf("call %d: got %q, want %q", i, got, "4")
		}
	}
}

func TestResetIsolation(t *testing.T) {
	// Output of request B must not depend on a prior request A sharing the
	// handle: byte-identical to B alone on a fresh handle.
	script := []int32{5, 6, eog}
	pieces := map[int32]string{5: "he", 6: "llo"}

	fresh, _, _ := newScriptedHandle(256, script, pieces)
	want := Complete(context.Background(), fresh, baseRequest("again"))

	shared, _, _ := newScriptedHandle(256, script, pieces)
	_ = Complete(context.Background(), shared, baseRequest("a much longer first prompt"))
	got := Complete(context.Background(), shared, baseRequest("again"))
	if got != want {
		t.Fatalf("second completion depends on the first: %q vs %q", got, want)
	}
	if want != "hello" {
		t.Fatalf("unexpected baseline output %q", want)
	}
}

func TestDeterminismAtZeroTemperature(t *testing.T) {
	h, _, _ := newScriptedHandle(256, []int32{7, 8, eog}, map[int32]string{7: "a", 8: "b"})
	req := baseRequest("x")
	req.Seed = 1
	first := Complete(context.Background(), h, req)
	req.Seed = 999
	if got := Complete(context.Background(), h, req); got != first {
		t.Fatalf("T=0 output varied by seed: %q vs %q", got, first)
	}
}

func TestSeedDeterminismAboveZeroTemperature(t *testing.T) {
	h, _, _ := newScriptedHandle(256, []int32{7, 8, eog}, map[int32]string{7: "a", 8: "b"})
	req := baseRequest("x")
	req.Temperature = 0.9
	req.Seed = 1234
	first := Complete(context.Background(), h, req)
	for i := 0; i < 2; i++ {
		if got := Complete(context.Background(), h, req); got != first {
			t.Fatalf("seeded output varied across calls: %q vs %q", got, first)
		}
	}
}

func TestStopOnEndMarker(t *testing.T) {
	// EOG at step 3 < maxTokens: output is exactly the first two pieces,
	// and the end token contributes no text.
	h, b, _ := newScriptedHandle(256, []int32{5, 6, eog, 9}, map[int32]string{5: "x", 6: "y", 9: "never"})
	req := baseRequest("p")
	req.MaxTokens = 10
	if got := Complete(context.Background(), h, req); got != "xy" {
		t.Fatalf("got %q, want %q", got, "xy")
	}
	// Only the two accepted tokens were fed back.
	single := 0
	for _, batch := range b.Evaluated {
		if len(batch) == 1 {
			single++
		}
	}
	if single != 2 {
		t.Fatalf("fed back %d tokens, want 2", single)
	}
}

func TestTokenBudget(t *testing.T) {
	// No EOG in the script: generation stops after exactly maxTokens steps.
	h, b, _ := newScriptedHandle(256, []int32{5}, map[int32]string{5: "."})
	req := baseRequest("p")
	req.MaxTokens = 3
	if got := Complete(context.Background(), h, req); got != "..." {
		t.Fatalf("got %q", got)
	}
	single := 0
	for _, batch := range b.Evaluated {
		if len(batch) == 1 {
			single++
		}
	}
	if single != 3 {
		t.Fatalf("accepted %d steps, want 3", single)
	}
}

func TestEmptyPromptNoSideEffects(t *testing.T) {
	h, b, _ := newScriptedHandle(256, []int32{5}, nil)
	if got := Complete(context.Background(), h, baseRequest("")); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if len(b.Evaluated) != 0 {
		t.Fatalf("empty prompt reached the engine: %v", b.Evaluated)
	}
	if len(b.Cleared) != 0 {
		t.Fatalf("empty prompt mutated context state")
	}
}

func TestInvalidHandleSafety(t *testing.T) {
	if got := Complete(context.Background(), nil, baseRequest("p")); got != "" {
		t.Fatalf("nil handle: got %q", got)
	}
	h, _, _ := newScriptedHandle(256, []int32{5}, nil)
	_ = h.Close()
	if got := Complete(context.Background(), h, baseRequest("p")); got != "" {
		t.Fatalf("closed handle: got %q", got)
	}
}

func TestTokenizeFailureShortCircuits(t *testing.T) {
	h, b, v := newScriptedHandle(256, []int32{5}, nil)
	v.FailTokenize = true
	if got := Complete(context.Background(), h, baseRequest("p")); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if len(b.Evaluated) != 0 {
		t.Fatalf("tokenize failure still evaluated: %v", b.Evaluated)
	}
}

func TestPromptEvaluationFailureReturnsEmpty(t *testing.T) {
	b := &engine.FakeBackend{Script: []int32{5}, VocabSize: 32, FailEvalAt: 1}
	h := engine.NewHandle(b, &engine.FakeVocabulary{EOG: eog, Pieces: map[int32]string{5: "x"}}, 256)
	if got := Complete(context.Background(), h, baseRequest("p")); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestMidGenerationFailureYieldsPartialOutput(t *testing.T) {
	// Eval #1 is the prompt chunk, #2 the first fed-back token, #3 fails:
	// the caller still receives the two decoded pieces.
	b := &engine.FakeBackend{Script: []int32{5, 6, 7}, VocabSize: 32, FailEvalAt: 3}
	v := &engine.FakeVocabulary{EOG: eog, Pieces: map[int32]string{5: "par", 6: "tial", 7: "no"}}
	h := engine.NewHandle(b, v, 256)
	req := baseRequest("p")
	req.MaxTokens = 10
	if got := Complete(context.Background(), h, req); got != "partial" {
		t.Fatalf("got %q, want %q", got, "partial")
	}
}

func TestCanceledContextStopsLoop(t *testing.T) {
	h, _, _ := newScriptedHandle(256, []int32{5}, map[int32]string{5: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := Complete(ctx, h, baseRequest("p")); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestEmptyPieceContributesNothing(t *testing.T) {
	// Token 5 has no piece mapping: decodes to "" and is simply skipped.
	h, _, _ := newScriptedHandle(256, []int32{5, 6, eog}, map[int32]string{6: "ok"})
	req := baseRequest("p")
	if got := Complete(context.Background(), h, req); got != "ok" {
		t.Fatalf("got %q, want %q", got, "ok")
	}
}

func TestCapacityWarningStillProceeds(t *testing.T) {
	// Window 16 with an oversized ask: warn-and-proceed, output intact.
	h, _, _ := newScriptedHandle(16, []int32{5, eog}, map[int32]string{5: "y"})
	req := baseRequest("a prompt")
	req.MaxTokens = 64
	if got := Complete(context.Background(), h, req); got != "y" {
		t.Fatalf("got %q, want %q", got, "y")
	}
}

func TestSessionWrapper(t *testing.T) {
	h, _, v := newScriptedHandle(256, []int32{4, eog}, map[int32]string{4: "4"})
	v.Tokens = map[string][]int32{"2+2=": {10, 11}}
	model := types.Model{ID: "m.gguf", Path: "/models/m.gguf"}
	s := New(h, NewLane(2, 0), model, []types.Model{model}, 4)

	if !s.Ready() {
		t.Fatalf("session not ready")
	}
	text, err := s.Complete(context.Background(), baseRequest("2+2="))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != "4" {
		t.Fatalf("text=%q", text)
	}

	st := s.Status()
	if st.State != "ready" || st.Model != "m.gguf" || st.CtxWindow != 256 || st.Threads != 4 {
		t.Fatalf("status: %+v", st)
	}
	if st.CompletionsTotal[outcomeStop] != 1 {
		t.Fatalf("counts: %+v", st.CompletionsTotal)
	}
	if got := s.ListModels(); len(got) != 1 || got[0].ID != "m.gguf" {
		t.Fatalf("models: %+v", got)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if s.Ready() {
		t.Fatalf("ready after close")
	}
	if _, err := s.Complete(context.Background(), baseRequest("2+2=")); !IsBusy(err) {
		t.Fatalf("expected busy after drain, got %v", err)
	}
	if st := s.Status(); st.State != "closed" {
		t.Fatalf("state after close: %s", st.State)
	}
}

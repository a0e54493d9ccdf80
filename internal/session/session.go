// Package session implements the single-turn completion pipeline: reset,
// tokenize, chunked prompt evaluation, sampler construction, and the
// token-by-token generation loop. All completion-path failures are handled
// here and converted to a result value; the only failure signal across the
// Complete boundary is an empty or partial result plus diagnostics.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmrun/internal/engine"
	"llmrun/internal/sampler"
	"llmrun/pkg/types"
)

// capacityMargin is the safety margin on the context-capacity check. The
// check warns and proceeds rather than refusing the request: the engine
// truncates or degrades rather than corrupting state, and callers may
// legitimately over-ask with maxTokens as a cap instead of a promise.
const capacityMargin = 8

// Terminal outcomes, visible only via diagnostics and metrics.
const (
	outcomeStop     = "stop"     // end-of-generation token
	outcomeLength   = "length"   // maxTokens budget exhausted
	outcomeFault    = "fault"    // evaluation failure or cancellation
	outcomeRejected = "rejected" // input failure, no generation ran
)

// Complete runs one synchronous single-turn completion against h. It never
// returns an error: input failures yield "", evaluation failures yield the
// best partial text produced so far, and the handle stays usable either
// way. The caller must serialize completions per handle (see Lane).
//
// Request normalization: Threads <= 0 means auto, MaxTokens is raised to at
// least 1, Temperature is clamped to >= 0, TopP 0 means the 0.95 default,
// and a negative Seed draws a fresh one.
func Complete(ctx context.Context, h *engine.Handle, req types.CompletionRequest) string {
	text, _ := complete(ctx, h, req)
	return text
}

func complete(ctx context.Context, h *engine.Handle, req types.CompletionRequest) (string, string) {
	start := time.Now()
	id := uuid.NewString()

	if !h.Valid() {
		logWarnf("completion %s rejected: invalid handle", id)
		return finish(id, "", outcomeRejected, 0, start)
	}
	// Exactly-empty, not trimmed: a whitespace prompt is a legal prompt.
	if req.Prompt == "" {
		logWarnf("completion %s rejected: empty prompt", id)
		return finish(id, "", outcomeRejected, 0, start)
	}

	h.ResetState()
	h.SetThreads(req.Threads)

	tokens, err := h.Vocab().Tokenize(req.Prompt)
	if err != nil {
		logWarnf("completion %s rejected: tokenize: %v", id, err)
		return finish(id, "", outcomeRejected, 0, start)
	}
	if len(tokens) == 0 {
		logWarnf("completion %s rejected: prompt tokenized to 0 tokens", id)
		return finish(id, "", outcomeRejected, 0, start)
	}

	maxTokens := req.MaxTokens
	if maxTokens < 1 {
		maxTokens = 1
	}
	if n := len(tokens) + maxTokens + capacityMargin; n > h.ContextWindow() {
		logWarnf("completion %s capacity: prompt=%d max_tokens=%d window=%d",
			id, len(tokens), maxTokens, h.ContextWindow())
	}

	// Prompt evaluation, chunked to batch capacity. Any failure aborts the
	// request; partial prompt evaluation is not retried.
	batch := h.BatchCapacity()
	for i := 0; i < len(tokens); i += batch {
		end := i + batch
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := h.Evaluate(tokens[i:end]); err != nil {
			logWarnf("completion %s prompt evaluation failed: %v", id, err)
			return finish(id, "", outcomeFault, 0, start)
		}
	}

	chain := sampler.ForRequest(req.Temperature, req.TopP, req.Seed, req.RepeatPenalty)
	chain.Reset()

	var out strings.Builder
	outcome := outcomeLength
	accepted := 0
	for t := 0; t < maxTokens; t++ {
		if ctx != nil && ctx.Err() != nil {
			logDebugf("completion %s canceled at step %d", id, t)
			outcome = outcomeFault
			break
		}
		tok := chain.Sample(h.Logits())
		if tok < 0 {
			logWarnf("completion %s sampling failed at step %d", id, t)
			outcome = outcomeFault
			break
		}
		if h.Vocab().IsEndOfGeneration(tok) {
			outcome = outcomeStop
			break
		}
		chain.Accept(tok)
		out.WriteString(h.Vocab().Piece(tok))
		accepted++
		// Feed the token back to advance state for the next iteration.
		// Past this point generation is best-effort: a failure yields the
		// partial text, not an error.
		if err := h.Evaluate([]int32{tok}); err != nil {
			logWarnf("completion %s evaluation failed at step %d: %v", id, t, err)
			outcome = outcomeFault
			break
		}
	}

	return finish(id, out.String(), outcome, accepted, start)
}

func finish(id, text, outcome string, accepted int, start time.Time) (string, string) {
	dur := time.Since(start)
	completionsTotal.WithLabelValues(outcome).Inc()
	completionDuration.Observe(dur.Seconds())
	generatedTokens.Observe(float64(accepted))
	if zlog != nil {
		zlog.Info().
			Str("request_id", id).
			Str("outcome", outcome).
			Int("tokens", accepted).
			Dur("dur", dur).
			Msg("completion end")
	} else {
		logDebugf("completion %s end outcome=%s tokens=%d dur=%s", id, outcome, accepted, dur)
	}
	return text, outcome
}

// Session binds one handle, one lane, and the registry snapshot into the
// service surface consumed by the CLI and the diagnostics endpoint.
type Session struct {
	handle  *engine.Handle
	lane    *Lane
	model   types.Model
	models  []types.Model
	threads int
	started time.Time

	mu     sync.Mutex
	counts map[string]uint64
}

// New builds a session over a loaded handle. model identifies the loaded
// file; registry is the full scan result served by ListModels; threads is
// the configured default thread count (0 = auto), reported by Status.
func New(h *engine.Handle, lane *Lane, model types.Model, registry []types.Model, threads int) *Session {
	if lane == nil {
		lane = NewLane(0, 0)
	}
	if threads < 0 {
		threads = 0
	}
	return &Session{
		handle:  h,
		lane:    lane,
		model:   model,
		models:  registry,
		threads: threads,
		started: time.Now(),
		counts:  make(map[string]uint64),
	}
}

// Complete runs one completion through the lane. The only error it returns
// is an admission error (IsBusy) or a context error from the wait; the
// completion itself never fails across this boundary.
func (s *Session) Complete(ctx context.Context, req types.CompletionRequest) (string, error) {
	release, err := s.lane.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	text, outcome := complete(ctx, s.handle, req)
	s.mu.Lock()
	s.counts[outcome]++
	s.mu.Unlock()
	return text, nil
}

// Ready reports whether the handle is loaded and usable.
func (s *Session) Ready() bool { return s.handle.Valid() }

// ListModels returns the registry snapshot taken at startup.
func (s *Session) ListModels() []types.Model {
	return append([]types.Model(nil), s.models...)
}

// Status summarizes the session for the diagnostics endpoint.
func (s *Session) Status() types.StatusResponse {
	state := "ready"
	window := 0
	if s.handle.Valid() {
		window = s.handle.ContextWindow()
	} else {
		state = "closed"
	}
	s.mu.Lock()
	counts := make(map[string]uint64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	s.mu.Unlock()
	now := time.Now()
	return types.StatusResponse{
		State:     state,
		Model:     s.model.ID,
		Path:      s.model.Path,
		CtxWindow: window,
		Threads:   s.threads,
		Lane: types.LaneStatus{
			QueueLen:      s.lane.QueueLen(),
			Inflight:      s.lane.Inflight(),
			MaxQueueDepth: s.lane.Depth(),
		},
		CompletionsTotal: counts,
		UptimeSeconds:    int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
}

// Close drains the lane and releases the handle. Idempotent.
func (s *Session) Close() error {
	s.lane.Drain()
	return s.handle.Close()
}

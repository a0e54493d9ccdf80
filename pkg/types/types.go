package types

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// CompletionRequest carries the parameters for one single-turn completion.
// It is scoped to a single call and never persisted.
type CompletionRequest struct {
	// Required prompt text to complete.
	Prompt string `json:"prompt"`
	// Engine thread count; 0 or negative means auto-detect.
	Threads int `json:"threads,omitempty"`
	// Maximum number of new tokens to generate. Values below 1 are raised to 1.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Sampling temperature; 0 selects greedy decoding, negatives clamp to 0.
	Temperature float64 `json:"temperature,omitempty"`
	// Nucleus sampling probability in [0,1]; 0 means "unset" and uses 0.95.
	TopP float64 `json:"top_p,omitempty"`
	// Random seed for the stochastic draw; negative picks a fresh seed.
	Seed int64 `json:"seed,omitempty"`
	// Repetition penalty over recently accepted tokens; <=0 or 1 disables it.
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: failed to encode response
	Error string `json:"error" example:"failed to encode response"`
	// HTTP status code.
	// example: 500
	Code int `json:"code" example:"500"`
}

// LaneStatus summarizes the admission lane for /status.
type LaneStatus struct {
	// Number of callers currently holding queue slots.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Number of in-flight completions (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before busy rejections.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Current lifecycle state (loading, ready, closed).
	// example: ready
	State string `json:"state" example:"ready"`
	// ID of the loaded model.
	// example: tinyllama-q4.gguf
	Model string `json:"model,omitempty" example:"tinyllama-q4.gguf"`
	// Absolute path of the loaded model file.
	Path string `json:"path,omitempty"`
	// Context window size in tokens.
	// example: 2048
	CtxWindow int `json:"ctx_window" example:"2048"`
	// Configured default thread count; 0 means auto-detect.
	// example: 0
	Threads int `json:"threads" example:"0"`
	// Admission lane counters.
	Lane LaneStatus `json:"lane"`
	// Completions finished since startup, by outcome (stop, length, fault).
	CompletionsTotal map[string]uint64 `json:"completions_total,omitempty"`
	// Uptime of the process in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

package main

import (
	"encoding/json"
	"net/http"
)

// newHuggingFaceHandler simulates the HuggingFace Inference API's
// request/response shape (internal/providers/huggingface): POST to any
// model path with {"inputs": "...", "parameters": {...}}, and a response
// that is a one-element list of {"generated_text": "..."}. The response
// echoes the prompt back first, the way the real API sometimes does, so
// the adapter's prompt-stripping logic has something to strip against.
func newHuggingFaceHandler(cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed", "method_not_allowed")
			return
		}
		applyLatency(cfg)
		if shouldError(cfg) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"error":          "Model is currently loading",
				"estimated_time": 20.0,
			})
			return
		}

		var req struct {
			Inputs     string `json:"inputs"`
			Parameters struct {
				Temperature  float64 `json:"temperature"`
				MaxNewTokens int     `json:"max_new_tokens"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "invalid_request")
			return
		}

		generated := req.Inputs + " " + fakeSentence(cfg.StreamWords)

		writeJSON(w, http.StatusOK, []map[string]string{
			{"generated_text": generated},
		})
	})

	return mux
}

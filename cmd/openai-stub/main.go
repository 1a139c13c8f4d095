package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// openai-stub is a minimal OpenAI-compatible /chat/completions and /models
// server for local development and integration tests that need to exercise
// the Ask Pipeline without a live OpenRouter key.
//
// By default it returns a short canned reply. Requests can opt into a
// deterministic canned payload for the two-pass grounded composition by
// setting the X-Stub-Mode header to "facts" (a JSON object whose "facts"
// field holds the grounded-fact array),
// "followups" (a JSON array of follow-up questions), or "cited" (an answer
// with an inline [1] citation).
func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": model, "pricing": map[string]string{"prompt": "0", "completion": "0", "request": "0"}},
			},
		})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		content := cannedReply(r.Header.Get("X-Stub-Mode"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func cannedReply(mode string) string {
	switch mode {
	case "facts":
		b, _ := json.Marshal(map[string]any{
			"facts": []map[string]any{
				{"fact": "This is a stubbed grounded fact.", "citations": []int{1}},
			},
		})
		return string(b)
	case "followups":
		b, _ := json.Marshal([]string{
			"What else would you like to know?",
			"Should I look into related topics?",
			"Do you want more detail on this?",
		})
		return string(b)
	case "cited":
		return "This is a stubbed answer citing a source [1]."
	default:
		return "This is a stubbed answer."
	}
}

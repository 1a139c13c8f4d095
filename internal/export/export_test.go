package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/nolia/ask-service/internal/askapi"
)

func TestWriteTranscriptPDFProducesNonEmptyPDF(t *testing.T) {
	resp := askapi.Response{
		Provider: "openrouter",
		Model:    "test-model",
		Answer:   "Paris is the capital of France [1].",
		Citations: []askapi.Citation{
			{URL: "https://example.com/a", Title: "Example"},
		},
		FollowUps: []string{"What is the population of Paris?"},
		LatencyMs: 120,
	}

	var buf bytes.Buffer
	err := WriteTranscriptPDF(&buf, "What is the capital of France?", resp, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty PDF output")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected output to start with PDF header, got %q", buf.Bytes()[:8])
	}
}

func TestWriteTranscriptPDFHandlesNoCitationsOrFollowUps(t *testing.T) {
	resp := askapi.Response{Model: "local-clock", Answer: "It is 3:04 PM."}
	var buf bytes.Buffer
	if err := WriteTranscriptPDF(&buf, "what time is it", resp, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty PDF output")
	}
}

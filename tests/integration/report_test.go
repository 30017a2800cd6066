//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/talktivity/voicebridge/internal/transcript"
)

func conversationTranscript() *transcript.Transcript {
	return &transcript.Transcript{Turns: []transcript.Turn{
		{Role: "user", Content: "Yesterday I visited my grandmother."},
		{Role: "assistant", Content: "How was the visit?"},
		{Role: "user", Content: "It was lovely, we cooked dinner together."},
	}}
}

func TestGenerateReport_FromHandoff(t *testing.T) {
	env := SetupTestEnv(t)
	userID := int64(2001)
	token := TokenFor(t, env, userID)

	env.Handoff.Publish(userID, conversationTranscript())

	resp := DoRequest(t, env, "POST", "/api/v1/reports", nil, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate report failed: %d", resp.StatusCode)
	}
	data := ParseResponse(t, resp)["data"].(map[string]any)
	if got := data["turn_count"].(float64); got != 2 {
		t.Errorf("turn_count = %v, want 2", got)
	}
	if data["word_count"].(float64) == 0 {
		t.Error("word_count should be non-zero")
	}

	// The transcript is consumed; the stored report remains retrievable.
	if env.Handoff.Get(userID) != nil {
		t.Error("transcript should be consumed after report generation")
	}

	resp = DoRequest(t, env, "GET", "/api/v1/reports/latest", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("latest report failed: %d", resp.StatusCode)
	}
	data = ParseResponse(t, resp)["data"].(map[string]any)
	if got := data["turn_count"].(float64); got != 2 {
		t.Errorf("stored turn_count = %v, want 2", got)
	}
}

func TestGenerateReport_WaitsForLateHandoff(t *testing.T) {
	env := SetupTestEnv(t)
	userID := int64(2002)

	go func() {
		time.Sleep(300 * time.Millisecond)
		env.Handoff.Publish(userID, conversationTranscript())
	}()

	resp := DoRequest(t, env, "POST", "/api/v1/reports", nil, TokenFor(t, env, userID))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate report failed: %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGenerateReport_NoConversation(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "POST", "/api/v1/reports", nil, TokenFor(t, env, 2003))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLatestReport_NoneStored(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "GET", "/api/v1/reports/latest", nil, TokenFor(t, env, 2004))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinical-advisor-be/pkg/llm"
)

func collect(t *testing.T, deltas <-chan llm.Delta) []llm.Delta {
	t.Helper()
	var out []llm.Delta
	timeout := time.After(5 * time.Second)
	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				return out
			}
			out = append(out, d)
		case <-timeout:
			t.Fatal("timed out draining delta channel")
		}
	}
}

func TestStreamPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("expected stream:true")
		}
		if len(req.Tools) != 0 {
			t.Error("plain mode must not attach tools")
		}

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"500 mg "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"every 8 hours."},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3.1:8b")
	deltas, err := provider.Stream(context.Background(), []llm.Message{{Role: "user", Content: "dosing?"}}, llm.ModePlain)
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, deltas)
	if len(got) != 2 {
		t.Fatalf("got %d deltas, want 2: %v", len(got), got)
	}
	if got[0].Text+got[1].Text != "500 mg every 8 hours." {
		t.Errorf("assembled text = %q", got[0].Text+got[1].Text)
	}
}

func TestStreamStructuredToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "render_element" {
			t.Errorf("structured mode must attach render_element, got %v", req.Tools)
		}

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"render_element","arguments":{"element":"paragraph","text":"Take with food."}}}]},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3.1:8b")
	deltas, err := provider.Stream(context.Background(), []llm.Message{{Role: "user", Content: "dosing?"}}, llm.ModeStructured)
	if err != nil {
		t.Fatal(err)
	}

	got := collect(t, deltas)
	if len(got) != 1 {
		t.Fatalf("got %d deltas, want 1: %v", len(got), got)
	}
	if !got[0].IsFunctionArgs() {
		t.Fatalf("expected function args delta, got %+v", got[0])
	}

	var block map[string]interface{}
	if err := json.Unmarshal([]byte(got[0].FunctionArgs), &block); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if block["element"] != "paragraph" {
		t.Errorf("element = %v", block["element"])
	}
}

func TestStreamUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3.1:8b")
	_, err := provider.Stream(context.Background(), []llm.Message{{Role: "user", Content: "x"}}, llm.ModePlain)
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestStreamCancellationStopsDeltas(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"first"},"done":false}`)
		flusher.Flush()
		<-release // hold the stream open
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	provider := NewOllamaProvider(srv.URL, "llama3.1:8b")
	deltas, err := provider.Stream(ctx, []llm.Message{{Role: "user", Content: "x"}}, llm.ModePlain)
	if err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-deltas:
		if d.Text != "first" {
			t.Fatalf("unexpected first delta: %+v", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no delta before cancel")
	}

	cancel()

	// Channel must close without further content deltas.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				return
			}
			if d.Err == nil {
				t.Fatalf("content delta after cancel: %+v", d)
			}
		case <-timeout:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestChatRoleMapping(t *testing.T) {
	var seen []ollamaMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		seen = req.Messages
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	provider := NewOllamaProvider(srv.URL, "llama3.1:8b")
	reply, err := provider.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
		{Role: "model", Content: "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "ok" {
		t.Errorf("reply = %q", reply)
	}
	if len(seen) != 3 || seen[2].Role != "assistant" {
		t.Errorf("model role must map to assistant, got %v", seen)
	}
}

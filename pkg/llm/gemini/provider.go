package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clinical-advisor-be/pkg/llm"
)

const baseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type GeminiProvider struct {
	APIKey    string
	ModelName string
	Client    *http.Client
}

// Ensure GeminiProvider implements LLMProvider
var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	return &GeminiProvider{
		APIKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type geminiPart struct {
	Text         string              `json:"text,omitempty"`
	FunctionCall *geminiFunctionCall `json:"functionCall,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDecl `json:"functionDeclarations"`
}

type geminiFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
}

type geminiCandidate struct {
	Content *geminiContent `json:"content"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

var renderElementDecl = geminiFunctionDecl{
	Name:        "render_element",
	Description: "Render one UI element of the answer. Call once per element, in order.",
	Parameters: json.RawMessage(`{
		"type": "object",
		"properties": {
			"element": {"type": "string", "enum": ["paragraph", "unordered_list", "ordered_list", "table", "references"]},
			"text": {"type": "string"},
			"items": {"type": "array", "items": {"type": "string"}},
			"header": {"type": "array", "items": {"type": "string"}},
			"rows": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}},
			"references": {"type": "object"}
		},
		"required": ["element"]
	}`),
}

// --- Interface Implementation ---

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	payload := g.buildRequest(history, llm.ModePlain)
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", baseURL, g.model(options))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	var geminiRes geminiResponse
	if err := json.Unmarshal(resBody, &geminiRes); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(geminiRes.Candidates) == 0 || geminiRes.Candidates[0].Content == nil || len(geminiRes.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return geminiRes.Candidates[0].Content.Parts[0].Text, nil
}

// Stream uses streamGenerateContent with alt=sse. Each "data:" event carries
// a partial response; text parts become Text deltas and functionCall args
// become FunctionArgs deltas. The goroutine exits on ctx cancellation and
// always releases the response body.
func (g *GeminiProvider) Stream(ctx context.Context, history []llm.Message, mode llm.GenerationMode, opts ...llm.Option) (<-chan llm.Delta, error) {
	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	payload := g.buildRequest(history, mode)
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", baseURL, g.model(options))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 0}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(res.Body)
		res.Body.Close()
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}

	deltas := make(chan llm.Delta, 10)

	go func() {
		defer close(deltas)
		defer res.Body.Close()

		scanner := bufio.NewScanner(res.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if !bytes.HasPrefix(line, []byte("data:")) {
				continue
			}
			data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
			if len(data) == 0 || bytes.Equal(data, []byte("[DONE]")) {
				continue
			}

			var chunk geminiResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				g.send(ctx, deltas, llm.Delta{Err: fmt.Errorf("unmarshal stream event: %w", err)})
				return
			}

			for _, cand := range chunk.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.FunctionCall != nil {
						if !g.send(ctx, deltas, llm.Delta{FunctionArgs: string(part.FunctionCall.Args)}) {
							return
						}
					}
					if part.Text != "" {
						if !g.send(ctx, deltas, llm.Delta{Text: part.Text}) {
							return
						}
					}
				}
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			g.send(ctx, deltas, llm.Delta{Err: fmt.Errorf("gemini stream read: %w", err)})
		}
	}()

	return deltas, nil
}

func (g *GeminiProvider) send(ctx context.Context, deltas chan<- llm.Delta, d llm.Delta) bool {
	select {
	case <-ctx.Done():
		return false
	case deltas <- d:
		return true
	}
}

func (g *GeminiProvider) model(options *llm.Options) string {
	if options.Model != "" {
		return options.Model
	}
	return g.ModelName
}

func (g *GeminiProvider) buildRequest(history []llm.Message, mode llm.GenerationMode) geminiRequest {
	contents := make([]geminiContent, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		// Gemini uses "model" where others use "assistant"
		if role == "assistant" || role == "system" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Parts: []geminiPart{{Text: msg.Content}},
			Role:  role,
		})
	}

	payload := geminiRequest{Contents: contents}
	if mode == llm.ModeStructured {
		payload.Tools = []geminiTool{{FunctionDeclarations: []geminiFunctionDecl{renderElementDecl}}}
	}
	return payload
}

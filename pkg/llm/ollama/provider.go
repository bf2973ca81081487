package ollama

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

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool           `json:"stream"`
	Tools    []ollamaTool   `json:"tools,omitempty"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// renderElementTool describes the single function the model calls once per UI
// block. The argument schema mirrors the StructuredBlock tagged union.
var renderElementTool = ollamaTool{
	Type: "function",
	Function: ollamaToolFunction{
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
				"references": {"type": "object", "additionalProperties": {"type": "string"}}
			},
			"required": ["element"]
		}`),
	},
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	reqPayload := o.buildRequest(history, llm.ModePlain, false, opts...)

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(bodyBytes, &ollamaResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return ollamaResp.Message.Content, nil
}

// Stream sends the history with stream:true and yields one Delta per NDJSON
// line. Structured mode attaches the render_element tool; each tool call's
// arguments are forwarded as a FunctionArgs delta. The producer goroutine
// stops on ctx cancellation and always releases the response body.
func (o *OllamaProvider) Stream(ctx context.Context, history []llm.Message, mode llm.GenerationMode, opts ...llm.Option) (<-chan llm.Delta, error) {
	reqPayload := o.buildRequest(history, mode, true, opts...)

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := o.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Streaming calls are bounded by ctx, not the client timeout
	client := &http.Client{Timeout: 0}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	deltas := make(chan llm.Delta, 10) // Buffered to prevent blocking

	go func() {
		defer close(deltas)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				o.send(ctx, deltas, llm.Delta{Err: fmt.Errorf("unmarshal stream chunk: %w", err)})
				return
			}

			for _, tc := range chunk.Message.ToolCalls {
				if !o.send(ctx, deltas, llm.Delta{FunctionArgs: string(tc.Function.Arguments)}) {
					return
				}
			}
			if chunk.Message.Content != "" {
				if !o.send(ctx, deltas, llm.Delta{Text: chunk.Message.Content}) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			o.send(ctx, deltas, llm.Delta{Err: fmt.Errorf("ollama stream read: %w", err)})
		}
	}()

	return deltas, nil
}

// send delivers a delta unless the consumer canceled. Returns false when the
// producer should stop.
func (o *OllamaProvider) send(ctx context.Context, deltas chan<- llm.Delta, d llm.Delta) bool {
	select {
	case <-ctx.Done():
		return false
	case deltas <- d:
		return true
	}
}

func (o *OllamaProvider) buildRequest(history []llm.Message, mode llm.GenerationMode, stream bool, opts ...llm.Option) ollamaChatRequest {
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		ollamaMessages[i] = ollamaMessage{
			Role:    role,
			Content: msg.Content,
		}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   stream,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}

	if mode == llm.ModeStructured {
		reqPayload.Tools = []ollamaTool{renderElementTool}
	}

	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	return reqPayload
}

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/example/creative-orchestrator/internal/models"
)

// OpenAIClient talks to any Chat Completions compatible endpoint.
type OpenAIClient struct {
	APIKey  string
	Model   string
	BaseURL string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type chatToolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Invoke(ctx context.Context, system string, history []models.Message, tools []ToolSpec) (*Response, error) {
	body := map[string]any{
		"model":       c.Model,
		"messages":    buildChatMessages(system, history),
		"temperature": 0.2,
	}
	if len(tools) > 0 {
		body["tools"] = encodeTools(tools)
	}
	var resp chatResponse
	if err := c.postJSON(ctx, c.endpoint("/v1/chat/completions"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in completion response")
	}
	msg := resp.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{Name: tc.Function.Name, Args: args})
	}
	return out, nil
}

// InvokeStream streams content deltas over SSE. Tool calls are not expected
// on the streaming path; the reporter only synthesizes text.
func (c *OpenAIClient) InvokeStream(ctx context.Context, system string, history []models.Message, onDelta func(chunk string)) (*Response, error) {
	body := map[string]any{
		"model":       c.Model,
		"messages":    buildChatMessages(system, history),
		"temperature": 0.3,
		"stream":      true,
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/chat/completions"), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	httpClient := &http.Client{Timeout: clientTimeout()}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var eresp map[string]any
		_ = json.NewDecoder(res.Body).Decode(&eresp)
		return nil, fmt.Errorf("completion status %d: %v", res.StatusCode, eresp)
	}

	var full strings.Builder
	sc := newLineReader(res.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var obj struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &obj); err != nil {
			continue
		}
		if len(obj.Choices) > 0 && obj.Choices[0].Delta.Content != "" {
			full.WriteString(obj.Choices[0].Delta.Content)
			onDelta(obj.Choices[0].Delta.Content)
		}
	}
	return &Response{Text: full.String()}, nil
}

func buildChatMessages(system string, history []models.Message) []chatMessage {
	msgs := make([]chatMessage, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		role := string(m.Role)
		if m.Role == models.RoleTool {
			// Tool results travel as user messages on this path; the core
			// never relies on provider-side tool ids.
			role = "user"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Content})
	}
	return msgs
}

func encodeTools(tools []ToolSpec) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return out
}

func (c *OpenAIClient) postJSON(ctx context.Context, url string, body any, out any) error {
	b, _ := json.Marshal(body)
	httpClient := &http.Client{Timeout: clientTimeout()}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")
		res, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			if isTimeout(err) {
				time.Sleep(retryBackoff(attempt))
				continue
			}
			return err
		}
		func() {
			defer res.Body.Close()
			if res.StatusCode >= 200 && res.StatusCode < 300 {
				lastErr = json.NewDecoder(res.Body).Decode(out)
				return
			}
			var eresp map[string]any
			_ = json.NewDecoder(res.Body).Decode(&eresp)
			lastErr = fmt.Errorf("completion status %d: %v", res.StatusCode, eresp)
		}()
		if lastErr == nil {
			return nil
		}
		if res.StatusCode == 408 || res.StatusCode == 429 || res.StatusCode >= 500 {
			time.Sleep(retryBackoff(attempt))
			continue
		}
		return lastErr
	}
	return lastErr
}

func (c *OpenAIClient) endpoint(path string) string {
	base := c.BaseURL
	if base == "" {
		base = "https://api.openai.com"
	}
	return strings.TrimRight(base, "/") + path
}

func clientTimeout() time.Duration {
	if v := os.Getenv("LLM_HTTP_TIMEOUT_MS"); v != "" {
		if ms, err := time.ParseDuration(v + "ms"); err == nil {
			return ms
		}
	}
	return 45 * time.Second
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	var te timeout
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}

func retryBackoff(i int) time.Duration {
	return time.Duration(500*(1<<i)) * time.Millisecond
}

func newLineReader(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 1024*1024)
	return sc
}

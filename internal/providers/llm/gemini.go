package llm

import (
	"context"
	"encoding/json"
	"fmt"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/example/creative-orchestrator/internal/models"
)

// GeminiClient drives the official Gemini SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: c, model: model}, nil
}

func (g *GeminiClient) Close() error { return g.client.Close() }

func (g *GeminiClient) Invoke(ctx context.Context, system string, history []models.Message, tools []ToolSpec) (*Response, error) {
	m := g.client.GenerativeModel(g.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		m.Tools = []*genai.Tool{{FunctionDeclarations: geminiFunctions(tools)}}
	}

	parts := historyParts(history)
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return decodeGemini(resp), nil
}

func (g *GeminiClient) InvokeStream(ctx context.Context, system string, history []models.Message, onDelta func(chunk string)) (*Response, error) {
	m := g.client.GenerativeModel(g.model)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	iter := m.GenerateContentStream(ctx, historyParts(history)...)
	out := &Response{}
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gemini stream: %w", err)
		}
		if t := firstText(resp); t != "" {
			out.Text += t
			onDelta(t)
		}
	}
}

func historyParts(history []models.Message) []genai.Part {
	parts := make([]genai.Part, 0, len(history))
	for _, m := range history {
		prefix := ""
		if m.Role != models.RoleUser {
			prefix = fmt.Sprintf("[%s] ", m.Role)
		}
		parts = append(parts, genai.Text(prefix+m.Content))
	}
	return parts
}

func geminiFunctions(tools []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaFromMap(t.Parameters),
		})
	}
	return decls
}

// schemaFromMap converts the loose JSON-schema map into the SDK's schema
// type. Only the subset the capabilities use (object/string/integer/array)
// is mapped.
func schemaFromMap(m map[string]any) *genai.Schema {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	s := &genai.Schema{Type: typeFromString(m["type"])}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = map[string]*genai.Schema{}
		for k, v := range props {
			if pm, ok := v.(map[string]any); ok {
				s.Properties[k] = schemaFromMap(pm)
			}
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = schemaFromMap(items)
	}
	if req, ok := m["required"].([]string); ok {
		s.Required = req
	} else if reqAny, ok := m["required"].([]any); ok {
		for _, r := range reqAny {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	return s
}

func typeFromString(v any) genai.Type {
	t, _ := v.(string)
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

func decodeGemini(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				out.Text += string(p)
			case genai.FunctionCall:
				args := map[string]any{}
				// FunctionCall args arrive as map[string]any already; a
				// round trip normalizes nested values.
				if b, err := json.Marshal(p.Args); err == nil {
					_ = json.Unmarshal(b, &args)
				}
				out.ToolCalls = append(out.ToolCalls, models.ToolCall{Name: p.Name, Args: args})
			}
		}
	}
	return out
}

func firstText(r *genai.GenerateContentResponse) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

package llmclient

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/hectorcore/agentcore/pkg/agentcore"
)

// GenaiConfig configures a GenaiTransport.
type GenaiConfig struct {
	APIKey string
	Model  string
}

// GenaiTransport implements Transport over google.golang.org/genai,
// the reference adapter for the contract in spec §6.
type GenaiTransport struct {
	client *genai.Client
	model  string
}

// NewGenaiTransport constructs a transport bound to one model.
func NewGenaiTransport(ctx context.Context, cfg GenaiConfig) (*GenaiTransport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai transport: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("genai transport: %w", err)
	}
	return &GenaiTransport{client: client, model: cfg.Model}, nil
}

func (t *GenaiTransport) Generate(ctx context.Context, req Request) (*agentcore.Response, error) {
	contents, systemInstruction := buildGenaiContents(req)
	genConfig := buildGenaiConfig(req, systemInstruction)

	model := req.Model
	if model == "" {
		model = t.model
	}

	resp, err := t.client.Models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return nil, err
	}
	return parseGenaiResponse(resp), nil
}

func (t *GenaiTransport) CountTokens(ctx context.Context, model string, text string) (int, error) {
	if model == "" {
		model = t.model
	}
	resp, err := t.client.Models.CountTokens(ctx, model, []*genai.Content{
		{Parts: []*genai.Part{{Text: text}}},
	}, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}

func buildGenaiContents(req Request) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, m := range req.Contents {
		switch m.Role {
		case agentcore.RoleSystem:
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Text()}}}
		case agentcore.RoleUser, agentcore.RoleTool:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Text()}}})
		case agentcore.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Text()}}})
		}
	}
	return contents, systemInstruction
}

func buildGenaiConfig(req Request, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if req.Config.Temperature != nil {
		t := float32(*req.Config.Temperature)
		config.Temperature = &t
	}
	if req.Config.MaxOutputTokens != nil {
		config.MaxOutputTokens = int32(*req.Config.MaxOutputTokens)
	}
	if tc := req.Config.ThinkingConfig; tc != nil && tc.Enabled {
		budget := int32(tc.BudgetTokens)
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget:  &budget,
			IncludeThoughts: tc.IncludeInResp,
		}
	}
	if len(req.Tools) > 0 {
		config.Tools = buildGenaiTools(req.Tools)
	}
	return config
}

func buildGenaiTools(tools []agentcore.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toGenaiSchema(t.Schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGenaiSchema mirrors the JSON-schema-to-genai.Schema conversion the
// teacher's gemini adapter performs field by field.
func toGenaiSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}

	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(t)
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if propMap, ok := raw.(map[string]interface{}); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		s.Items = toGenaiSchema(items)
	}
	return s
}

func parseGenaiResponse(resp *genai.GenerateContentResponse) *agentcore.Response {
	out := &agentcore.Response{}
	if resp.UsageMetadata != nil {
		out.Usage = &agentcore.UsageMetadata{
			PromptTokenCount:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokenCount: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokenCount:      int(resp.UsageMetadata.TotalTokenCount),
			ThoughtsTokenCount:   int(resp.UsageMetadata.ThoughtsTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p.FunctionCall != nil:
			out.Parts = append(out.Parts, agentcore.FunctionCallPart(p.FunctionCall.Name, p.FunctionCall.Args, p.FunctionCall.ID))
		case p.Thought:
			out.Parts = append(out.Parts, agentcore.ThoughtPart(p.Text))
		case p.Text != "":
			out.Parts = append(out.Parts, agentcore.TextPart(p.Text))
		}
	}
	return out
}

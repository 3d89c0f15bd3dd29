package gemini

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/internal/cost"
	"github.com/setflow/callsheet-cli/internal/model"
	"github.com/setflow/callsheet-cli/internal/provider"
	"github.com/setflow/callsheet-cli/internal/provider/tools"
	"github.com/setflow/callsheet-cli/internal/resilience"
	"github.com/setflow/callsheet-cli/internal/schema"
	"github.com/setflow/callsheet-cli/pkg/jsonx"
)

// agentMaxTurns bounds the tool-calling loop. Each model call consumes one
// turn; exhaustion falls back to the direct adapter.
const agentMaxTurns = 4

// Provider is the Gemini adapter. Direct and vision requests use a single
// schema-constrained call; agent requests run the bounded tool loop.
type Provider struct {
	client Client
	model  string
	exec   *tools.Executor
	retry  resilience.RetryConfig
	costs  *cost.Calculator
}

// New creates the Gemini provider adapter.
func New(client Client, modelName string, exec *tools.Executor) *Provider {
	return &Provider{
		client: client,
		model:  modelName,
		exec:   exec,
		retry:  resilience.DefaultRetryConfig(),
		costs:  cost.NewCalculator(cost.DefaultRates()),
	}
}

func (p *Provider) logUsage(resp *GenerateResponse) {
	if resp.UsageMetadata == nil {
		return
	}
	p.costs.LogGemini(p.model, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
}

// Name implements provider.Provider.
func (p *Provider) Name() model.ProviderName { return model.ProviderGemini }

// Extract implements provider.Provider.
func (p *Provider) Extract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	if req.Mode == model.ModeAgent {
		return p.agentExtract(ctx, req)
	}
	return p.directExtract(ctx, req)
}

// directExtract performs one generation with a strict response-schema
// constraint. An empty body is retried once on the same model without the
// constraint, then parsed leniently; an empty body after the retry is fatal.
func (p *Provider) directExtract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	userContent := p.userContent(req)

	constrained := GenerateRequest{
		Contents: []Content{userContent},
		GenerationConfig: &GenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema(p.schemaFor(req)),
		},
	}

	text, err := p.generateText(ctx, constrained)
	if err != nil {
		return nil, err
	}

	if text == "" {
		zap.L().Warn("gemini: empty response, retrying without schema constraint",
			zap.String("model", p.model),
		)
		text, err = p.generateText(ctx, GenerateRequest{Contents: []Content{userContent}})
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, &resilience.ProviderError{Provider: "gemini", Empty: true}
		}
	}

	raw, err := jsonx.ExtractObject(text)
	if err != nil {
		return nil, &resilience.SchemaError{Detail: err.Error()}
	}
	return schema.Verify([]byte(raw), req.CrewFirst)
}

// agentExtract runs the bounded multi-turn tool loop. Tool calls are
// dispatched to the trusted server-side executor; schema failures continue
// the loop; exhaustion falls back to the direct path.
func (p *Provider) agentExtract(ctx context.Context, req provider.Request) (*model.Extraction, error) {
	conversation := []Content{p.userContent(req)}
	decl := []Tool{{FunctionDeclarations: toolDeclarations()}}

	for turn := 0; turn < agentMaxTurns; turn++ {
		resp, err := resilience.DoVal(ctx, p.retry, "gemini.generateContent", func(ctx context.Context) (*GenerateResponse, error) {
			return p.client.GenerateContent(ctx, p.model, GenerateRequest{
				Contents: conversation,
				Tools:    decl,
			})
		})
		if err != nil {
			return nil, err
		}
		p.logUsage(resp)

		calls := resp.FunctionCalls()
		if len(calls) > 0 {
			if len(resp.Candidates) > 0 {
				conversation = append(conversation, resp.Candidates[0].Content)
			}
			for _, call := range calls {
				conversation = append(conversation, p.toolResponse(ctx, call))
			}
			continue
		}

		text := resp.Text()
		if text == "" {
			continue
		}

		raw, extractErr := jsonx.ExtractObject(text)
		if extractErr != nil {
			zap.L().Debug("gemini: agent turn produced no JSON", zap.Int("turn", turn))
			continue
		}
		extraction, verifyErr := schema.Verify([]byte(raw), req.CrewFirst)
		if verifyErr != nil {
			zap.L().Debug("gemini: agent output failed verification",
				zap.Int("turn", turn),
				zap.Error(verifyErr),
			)
			continue
		}
		return extraction, nil
	}

	zap.L().Warn("gemini: agent loop exhausted, falling back to direct",
		zap.Int("max_turns", agentMaxTurns),
	)
	return p.directExtract(ctx, req)
}

// toolResponse dispatches one function call and wraps the result (or the
// error) as a function-response turn.
func (p *Provider) toolResponse(ctx context.Context, call FunctionCall) Content {
	result, err := p.exec.Dispatch(ctx, call.Name, call.Args)

	var payload map[string]any
	if err != nil {
		payload = map[string]any{"error": err.Error()}
	} else {
		b, marshalErr := json.Marshal(result)
		if marshalErr == nil {
			_ = json.Unmarshal(b, &payload)
		}
		if payload == nil {
			payload = map[string]any{"error": "unencodable tool result"}
		}
	}

	return Content{
		Role: "function",
		Parts: []Part{{
			FunctionResponse: &FunctionResponse{Name: call.Name, Response: payload},
		}},
	}
}

func (p *Provider) generateText(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := resilience.DoVal(ctx, p.retry, "gemini.generateContent", func(ctx context.Context) (*GenerateResponse, error) {
		return p.client.GenerateContent(ctx, p.model, req)
	})
	if err != nil {
		return "", err
	}
	p.logUsage(resp)
	return resp.Text(), nil
}

func (p *Provider) userContent(req provider.Request) Content {
	parts := []Part{{Text: provider.BuildPrompt(req)}}
	if req.Mode == model.ModeVision && req.Content.Image != "" {
		parts = append(parts, Part{InlineData: &InlineData{
			MIMEType: req.Content.ImageMIME,
			Data:     req.Content.Image,
		}})
	}
	return Content{Role: "user", Parts: parts}
}

func (p *Provider) schemaFor(req provider.Request) map[string]any {
	if req.CrewFirst {
		return schema.CrewFirstSchema()
	}
	return schema.SimpleSchema()
}

// toolDeclarations describes the two server-side tools exposed to the loop.
func toolDeclarations() []FunctionDeclaration {
	return []FunctionDeclaration{
		{
			Name:        "geocode_address",
			Description: "Resolve a street address to coordinates and a canonical formatted address.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"address": map[string]any{"type": "string"},
				},
				"required": []string{"address"},
			},
		},
		{
			Name:        "address_normalize",
			Description: "Clean up a raw address string: whitespace, punctuation and common abbreviations.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"raw": map[string]any{"type": "string"},
				},
				"required": []string{"raw"},
			},
		},
	}
}

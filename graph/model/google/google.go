// Package google provides model adapters for Google's Gemini API: a
// function-calling ChatModel built on the generative-ai-go SDK and a
// search-grounded Searcher built on the Gen AI SDK.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/agentcrew/graph/model"
	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-pro"

// ErrMissingAPIKey is returned when a request is attempted without a key.
var ErrMissingAPIKey = errors.New("google API key is required")

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// The whole transcript is sent on every call:
//   - System messages become the model's SystemInstruction
//   - Assistant tool calls become FunctionCall parts of a "model" turn
//   - Tool results become FunctionResponse parts of a "user" turn
//
// Gemini does not assign call IDs, so each returned tool call gets a
// generated one.
//
// Example usage:
//
//	m := google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), "gemini-2.5-pro")
//	out, err := m.Chat(ctx, messages, specs)
//	if err != nil {
//	    var safetyErr *google.SafetyFilterError
//	    if errors.As(err, &safetyErr) {
//	        log.Printf("Content blocked: %s", safetyErr.Category())
//	    }
//	    return err
//	}
type ChatModel struct {
	modelName string
	client    googleClient
}

// googleClient sends one generate request. This allows for easy mocking in tests.
type googleClient interface {
	generateContent(ctx context.Context, req request) (*genai.GenerateContentResponse, error)
}

// request is a provider-shaped conversation ready to send.
type request struct {
	system  *genai.Content
	history []*genai.Content
	last    []genai.Part
	tools   []*genai.Tool
}

// NewChatModel creates a new Google ChatModel. An empty modelName selects
// DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	return &ChatModel{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	req := buildRequest(messages)
	if len(tools) > 0 {
		req.tools = convertTools(tools)
	}

	resp, err := m.client.generateContent(ctx, req)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return model.ChatOut{}, newSafetyFilterError(blocked)
		}
		return model.ChatOut{}, err
	}

	out := convertResponse(resp)
	out.Model = m.modelName
	return out, nil
}

// defaultClient wraps the official Google Gemini SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, req request) (*genai.GenerateContentResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	genModel := client.GenerativeModel(c.modelName)
	genModel.SystemInstruction = req.system
	genModel.Tools = req.tools

	session := genModel.StartChat()
	session.History = req.history

	resp, err := session.SendMessage(ctx, req.last...)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, err
		}
		return nil, fmt.Errorf("google API error: %w", err)
	}
	return resp, nil
}

// buildRequest converts the transcript to Gemini contents. Consecutive
// messages that map to the same role are merged into one turn, and the
// final user turn is split off to be sent as the new message.
func buildRequest(messages []model.Message) request {
	var req request
	var contents []*genai.Content

	appendParts := func(role string, parts ...genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			return
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if req.system == nil {
				req.system = &genai.Content{}
			}
			req.system.Parts = append(req.system.Parts, genai.Text(msg.Content))

		case model.RoleAssistant:
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Input})
			}
			appendParts("model", parts...)

		case model.RoleTool:
			appendParts("user", genai.FunctionResponse{
				Name:     msg.Name,
				Response: map[string]any{"result": msg.Content},
			})

		default:
			if msg.Content != "" {
				appendParts("user", genai.Text(msg.Content))
			}
		}
	}

	if n := len(contents); n > 0 && contents[n-1].Role == "user" {
		req.history = contents[:n-1]
		req.last = contents[n-1].Parts
	} else {
		req.history = contents
		req.last = []genai.Part{genai.Text("Continue.")}
	}
	return req
}

// convertTools converts tool specs to a single Gemini tool holding all
// function declarations.
func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema recursively converts a JSON schema map to genai.Schema.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{Type: genai.TypeObject}
	if typeStr, ok := schema["type"].(string); ok {
		result.Type = convertTypeString(typeStr)
	}
	if desc, ok := schema["description"].(string); ok {
		result.Description = desc
	}
	result.Enum = stringList(schema["enum"])
	result.Required = stringList(schema["required"])

	if props, ok := schema["properties"].(map[string]any); ok {
		result.Properties = make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			if propMap, ok := val.(map[string]any); ok {
				result.Properties[key] = convertSchema(propMap)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		result.Items = convertSchema(items)
	}

	return result
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// convertTypeString converts a JSON Schema type string to genai.Type constant.
func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// convertResponse converts the first candidate to ChatOut.
func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}
	if resp == nil {
		return out
	}

	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)

		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    "call_" + uuid.NewString(),
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}

	return out
}

// SafetyFilterError represents a Gemini safety block of either the prompt
// or the generated candidate.
//
// Use errors.As to check for this error type:
//
//	var safetyErr *google.SafetyFilterError
//	if errors.As(err, &safetyErr) {
//	    log.Printf("Content blocked: %s", safetyErr.Category())
//	}
type SafetyFilterError struct {
	reason   string
	category string
	cause    error
}

func newSafetyFilterError(blocked *genai.BlockedError) *SafetyFilterError {
	e := &SafetyFilterError{cause: blocked}

	var ratings []*genai.SafetyRating
	switch {
	case blocked.PromptFeedback != nil:
		e.reason = blocked.PromptFeedback.BlockReason.String()
		ratings = blocked.PromptFeedback.SafetyRatings
	case blocked.Candidate != nil:
		e.reason = blocked.Candidate.FinishReason.String()
		ratings = blocked.Candidate.SafetyRatings
	}
	for _, r := range ratings {
		if r != nil && r.Blocked {
			e.category = r.Category.String()
			break
		}
	}
	return e
}

// Error implements the error interface.
func (e *SafetyFilterError) Error() string {
	if e.category == "" {
		return "content blocked by safety filter: " + e.reason
	}
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string {
	return e.category
}

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string {
	return e.reason
}

// Unwrap returns the SDK error.
func (e *SafetyFilterError) Unwrap() error {
	return e.cause
}

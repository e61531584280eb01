package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// searchPrompt wraps the query the way the research tool expects.
const searchPrompt = "Please research given this query or topic, and return the result\n<query_or_topic>%s</query_or_topic>"

// SearchModel implements model.Searcher with a Gemini model that has the
// Google Search tool enabled, so answers are grounded in live results.
//
// Example:
//
//	s := google.NewSearchModel(apiKey, "")
//	summary, err := s.Search(ctx, "UI best practices for translation apps")
type SearchModel struct {
	modelName string
	client    searchClient
}

// searchClient runs one grounded generation. Mocked in tests.
type searchClient interface {
	generate(ctx context.Context, modelName, prompt string) (string, error)
}

// NewSearchModel creates a search-grounded model. An empty modelName
// selects DefaultModel.
func NewSearchModel(apiKey, modelName string) *SearchModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &SearchModel{
		modelName: modelName,
		client:    &genaiSearchClient{apiKey: apiKey},
	}
}

// Search implements the model.Searcher interface.
func (s *SearchModel) Search(ctx context.Context, query string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return s.client.generate(ctx, s.modelName, fmt.Sprintf(searchPrompt, query))
}

type genaiSearchClient struct {
	apiKey string
}

func (c *genaiSearchClient) generate(ctx context.Context, modelName, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Gen AI client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return "", fmt.Errorf("google search API error: %w", err)
	}
	return resp.Text(), nil
}

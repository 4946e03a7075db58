package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"GoInlineAI/app/utils/restclient"
)

const (
	defaultOpenAIURL   = "https://api.openai.com"
	defaultOpenAIModel = "gpt-3.5-turbo"
	chatEndpoint       = "/v1/chat/completions"
)

var _ Backend = &OpenAI{}

// OpenAI talks to an OpenAI-compatible chat completions API.
type OpenAI struct {
	restClient *restclient.RestClient
	model      string
}

func NewOpenAI(d Descriptor) *OpenAI {
	baseURL := d.Endpoint
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	model := d.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	headers := bearer(d.APIKey)
	if d.Organization != "" {
		if headers == nil {
			headers = map[string]string{}
		}
		headers["OpenAI-Organization"] = d.Organization
	}
	return &OpenAI{
		restClient: newRestClient(baseURL, d, headers),
		model:      model,
	}
}

func (c *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   1000,
		Temperature: 0.5,
		TopP:        1,
	}
	body, err := post(ctx, c.restClient, chatEndpoint, payload)
	if err != nil {
		return "", err
	}

	var response chatResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: parse completion: %w", ErrBackendResponse, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", ErrBackendResponse)
	}
	message := response.Choices[0].Message
	if message == nil || strings.TrimSpace(message.Content) == "" {
		return "", fmt.Errorf("%w: message content is missing", ErrBackendResponse)
	}
	return StripCodeFences(message.Content), nil
}

// StripCodeFences removes markdown fence lines (``` with an optional
// language tag) and trims the result.
func StripCodeFences(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") && !strings.ContainsAny(strings.TrimPrefix(trimmed, "```"), " \t`") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

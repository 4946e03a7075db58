package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"GoInlineAI/app/utils/restclient"
)

const (
	defaultHuggingFaceURL   = "https://api-inference.huggingface.co"
	defaultHuggingFaceModel = "gpt2"
)

var _ Backend = &HuggingFace{}

// HuggingFace calls the hosted inference API for a single model.
type HuggingFace struct {
	restClient *restclient.RestClient
	endpoint   string
}

func NewHuggingFace(d Descriptor) *HuggingFace {
	baseURL := d.Endpoint
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	model := d.Model
	if model == "" {
		model = defaultHuggingFaceModel
	}
	return &HuggingFace{
		restClient: newRestClient(baseURL, d, bearer(d.APIKey)),
		endpoint:   "/models/" + url.PathEscape(model),
	}
}

func (c *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := post(ctx, c.restClient, c.endpoint, inferenceRequest{Inputs: prompt})
	if err != nil {
		return "", err
	}

	var replies []generatedText
	if err = json.Unmarshal(body, &replies); err != nil {
		return "", fmt.Errorf("%w: parse inference reply: %w", ErrBackendResponse, err)
	}
	if len(replies) == 0 || replies[0].GeneratedText == nil || strings.TrimSpace(*replies[0].GeneratedText) == "" {
		return "", fmt.Errorf("%w: reply has no generated_text", ErrBackendResponse)
	}
	return *replies[0].GeneratedText, nil
}

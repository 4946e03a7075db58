package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"GoInlineAI/app/utils/restclient"
)

const defaultLocalURL = "http://localhost:8080"

var _ Backend = &Local{}

// Local posts {"prompt": ...} to a self-hosted model server and reads
// {"generated_text": ...} back.
type Local struct {
	restClient *restclient.RestClient
}

func NewLocal(d Descriptor) *Local {
	baseURL := d.Endpoint
	if baseURL == "" {
		baseURL = defaultLocalURL
	}
	return &Local{restClient: newRestClient(baseURL, d, bearer(d.APIKey))}
}

func (c *Local) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := post(ctx, c.restClient, "", localRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}

	var reply generatedText
	if err = json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("%w: parse local reply: %w", ErrBackendResponse, err)
	}
	if reply.GeneratedText == nil || strings.TrimSpace(*reply.GeneratedText) == "" {
		return "", fmt.Errorf("%w: reply has no generated_text", ErrBackendResponse)
	}
	return *reply.GeneratedText, nil
}

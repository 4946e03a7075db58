package backends

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

var _ Backend = &Gemini{}

// Gemini is a thin wrapper around the official genai client.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, d Descriptor) (*Gemini, error) {
	if d.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  d.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if d.Endpoint != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(d.Endpoint, "/") + "/"}
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	model := d.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackendTransport, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrBackendResponse)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: candidate has no text", ErrBackendResponse)
	}
	return StripCodeFences(sb.String()), nil
}

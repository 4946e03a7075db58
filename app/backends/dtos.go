package backends

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int          `json:"index"`
		FinishReason string       `json:"finish_reason"`
		Message      *chatMessage `json:"message"`
	} `json:"choices"`
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

type generatedText struct {
	GeneratedText *string `json:"generated_text"`
}

type localRequest struct {
	Prompt string `json:"prompt"`
}

package classify

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for categorization.
const DefaultModelName = "gemini-2.5-flash"

// Oracle is a single-shot text completion backend. Complete sends one
// request with the given system framing and user prompt and returns the
// raw response text.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// GeminiOracle is the Oracle implementation backed by the Gemini API.
// Credentials are read from the environment by the genai client
// (GEMINI_API_KEY). The client is created lazily, so missing
// credentials surface as an error on the first call rather than at
// startup.
type GeminiOracle struct {
	model  string
	client *genai.Client
}

// NewGeminiOracle creates a Gemini-backed oracle.
func NewGeminiOracle() *GeminiOracle {
	return &GeminiOracle{model: DefaultModelName}
}

func (o *GeminiOracle) init(ctx context.Context) error {
	if o.client != nil {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return fmt.Errorf("create genai client: %w", err)
	}
	o.client = client
	return nil
}

// Complete sends one generation request. Temperature is pinned to zero
// so repeated runs over the same ledger classify the same way.
func (o *GeminiOracle) Complete(ctx context.Context, system, user string) (string, error) {
	if err := o.init(ctx); err != nil {
		return "", fmt.Errorf("GeminiOracle.Complete: %w", err)
	}

	temperature := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: user}},
		},
	}

	resp, err := o.client.Models.GenerateContent(ctx, o.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GeminiOracle.Complete: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GeminiOracle.Complete: empty response from model")
	}
	return text, nil
}

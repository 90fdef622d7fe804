package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"shop-analyzer/llm"
)

// Client calls the Gemini generateContent API through the official SDK.
type Client struct {
	apiKey string
	model  string
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

// AnalyzeShopImage sends the analysis prompt plus the image as an inline
// blob and returns the first text part of the first candidate.
func (c *Client) AnalyzeShopImage(ctx context.Context, imageData []byte, mimeType string) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(c.model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(llm.AnalysisPrompt),
		genai.Blob{
			MIMEType: mimeType,
			Data:     imageData,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates in response")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok && text != "" {
			return string(text), nil
		}
	}
	return "", errors.New("no text part in response")
}

func ptrFloat32(f float32) *float32 { return &f }

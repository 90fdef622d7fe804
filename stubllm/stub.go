package stubllm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"shop-analyzer/models"
)

// Client is a deterministic, no-network LLM stub intended for CI and local
// end-to-end tests. It returns schema-valid JSON wrapped in markdown fences
// so the full fence-stripping + parsing path is exercised.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Stub" }

func (c *Client) AnalyzeShopImage(_ context.Context, imageData []byte, mimeType string) (string, error) {
	// Make output deterministic per-input so tests are stable.
	sum := sha256.Sum256(imageData)
	short := hex.EncodeToString(sum[:8])

	result := models.AnalysisResult{
		IsValid: true,
		ShopDetails: &models.ShopDetails{
			Name: models.TextField{
				OriginalText:       fmt.Sprintf("Stub Shop %s", short),
				Language:           "English",
				EnglishTranslation: fmt.Sprintf("Stub Shop %s", short),
				Confidence:         "high",
			},
			Location: models.LocationField{
				OriginalText:            "123 Test Street",
				Language:                "English",
				EnglishTranslation:      "123 Test Street",
				DetectedCountryOrRegion: "Testland",
			},
			AdditionalText: []models.AdditionalText{},
		},
		PhysicalAnalysis: &models.PhysicalAnalysis{
			VisibleObjects:     []string{"storefront", "sign"},
			SettingDescription: fmt.Sprintf("Stubbed %s image (%d bytes)", mimeType, len(imageData)),
			CulturalIndicators: []string{},
		},
		BusinessInference: &models.BusinessInference{
			PrimaryBusinessType: "test fixture",
			ConfidenceScore:     "high",
			Reasoning:           "deterministic stub output",
			LikelyTargetMarket:  "developers",
		},
		AnalysisMetadata: models.AnalysisMetadata{
			AnalysisTimestamp: time.Now().UTC().Format("2006-01-02 15:04:05"),
			IsShop:            true,
			LanguagesDetected: []string{"English"},
		},
	}

	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

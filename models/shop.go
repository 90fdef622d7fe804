package models

import (
	"encoding/json"
	"time"
)

// TextField holds a piece of extracted text together with its detected
// language and English translation.
type TextField struct {
	OriginalText       string `json:"original_text"`
	Language           string `json:"language"`
	EnglishTranslation string `json:"english_translation"`
	Confidence         string `json:"confidence,omitempty"`
}

// LocationField is the location text from the storefront plus the region
// inferred from visual cues.
type LocationField struct {
	OriginalText            string `json:"original_text"`
	Language                string `json:"language"`
	EnglishTranslation      string `json:"english_translation"`
	DetectedCountryOrRegion string `json:"detected_country_or_region,omitempty"`
}

// AdditionalText is any other text found in the image with its position context.
type AdditionalText struct {
	OriginalText       string `json:"original_text"`
	Language           string `json:"language"`
	EnglishTranslation string `json:"english_translation"`
	Context            string `json:"context,omitempty"`
}

// ShopDetails groups the text extracted from the storefront.
type ShopDetails struct {
	Name           TextField        `json:"name"`
	Location       LocationField    `json:"location"`
	AdditionalText []AdditionalText `json:"additional_text"`
}

// PhysicalAnalysis describes the visible scene.
type PhysicalAnalysis struct {
	VisibleObjects     []string `json:"visible_objects"`
	SettingDescription string   `json:"setting_description"`
	CulturalIndicators []string `json:"cultural_indicators"`
}

// BusinessInference is the model's guess at what kind of business this is.
type BusinessInference struct {
	PrimaryBusinessType string `json:"primary_business_type"`
	ConfidenceScore     string `json:"confidence_score"`
	Reasoning           string `json:"reasoning"`
	LikelyTargetMarket  string `json:"likely_target_market"`
}

// AnalysisMetadata is attached to every analysis document, valid or not.
type AnalysisMetadata struct {
	AnalysisTimestamp string   `json:"analysis_timestamp"`
	IsShop            bool     `json:"is_shop"`
	LanguagesDetected []string `json:"languages_detected"`
}

// AnalysisResult is the structured outcome of one analysis call. When
// IsValid is false only Error and AnalysisMetadata are populated.
type AnalysisResult struct {
	IsValid           bool               `json:"is_valid"`
	Error             string             `json:"error,omitempty"`
	ShopDetails       *ShopDetails       `json:"shop_details,omitempty"`
	PhysicalAnalysis  *PhysicalAnalysis  `json:"physical_analysis,omitempty"`
	BusinessInference *BusinessInference `json:"business_inference,omitempty"`
	AnalysisMetadata  AnalysisMetadata   `json:"analysis_metadata"`
}

// ShopData is the caller-supplied metadata on a submission. Both members are
// kept opaque; the service stores them verbatim.
type ShopData struct {
	Location  json.RawMessage `json:"location"`
	Inference json.RawMessage `json:"inference"`
}

// ShopSubmission is a persisted shop record. Records are insert-only; there
// is no update or delete path.
type ShopSubmission struct {
	ID            int64           `json:"id"`
	LocationData  json.RawMessage `json:"location_data"`
	InferenceData json.RawMessage `json:"inference_data"`
	Image         []byte          `json:"image,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SubmissionEvent is published to RabbitMQ after a successful submission.
type SubmissionEvent struct {
	ShopID    int64     `json:"shop_id"`
	AuditPath string    `json:"audit_path,omitempty"`
	ImageSize int       `json:"image_size"`
	CreatedAt time.Time `json:"created_at"`
}

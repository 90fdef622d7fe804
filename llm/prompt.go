package llm

// AnalysisPrompt instructs the model to verify the image is a real
// storefront, extract and translate all visible text, describe the scene and
// infer the business type, answering with a single JSON object. Providers
// share it so every backend produces the same document shape.
const AnalysisPrompt = `
Analyze this image with extreme attention to detail and skepticism. First verify if this is a legitimate shop image.

For ALL text you find in the image:
1. Identify the original language
2. Provide both the original text and its English translation if not in English
3. Note the location/context of where this text appears in the image
4. Look for text in ALL parts of the image, including small print, background signs, and partially visible text

If it's not a legitimate shop image, respond only with the basic JSON structure marking is_valid as false.

If it is legitimate, carefully extract the following information:
1. All visible text as specified above
2. The physical characteristics and objects visible
3. The overall setting and context
4. Any cultural indicators that might help identify the region/locality

Provide your analysis in the following strict JSON structure only, with no additional text:
{
    "is_valid": true/false,
    "shop_details": {
        "name": {
            "original_text": "text as written",
            "language": "detected language",
            "english_translation": "translation if needed, same as original if English",
            "confidence": "high/medium/low"
        },
        "location": {
            "original_text": "text as written",
            "language": "detected language",
            "english_translation": "translation if needed, same as original if English",
            "detected_country_or_region": "based on visual cues and text"
        },
        "additional_text": [
            {
                "original_text": "text as written",
                "language": "detected language",
                "english_translation": "translation if needed",
                "context": "where this text appears in image"
            }
        ]
    },
    "physical_analysis": {
        "visible_objects": ["list of main objects visible"],
        "setting_description": "brief setting description",
        "cultural_indicators": ["list of cultural/regional indicators observed"]
    },
    "business_inference": {
        "primary_business_type": "inferred business type",
        "confidence_score": "high/medium/low",
        "reasoning": "brief explanation",
        "likely_target_market": "inferred target demographic"
    },
    "analysis_metadata": {
        "analysis_timestamp": "timestamp",
        "is_shop": true/false,
        "languages_detected": ["list of all languages found in image"]
    }
}

Remember:
1. Return ONLY valid JSON, no other text or explanation
2. Always provide both original text and English translations when non-English text is found
3. Include confidence levels for text recognition
4. Note any signs of text manipulation or digital alteration
`

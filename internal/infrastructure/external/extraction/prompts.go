package extraction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt frames the model as an extraction system
const DefaultSystemPrompt = "You are an invoice data extraction system. You read invoices exactly as printed and always respond with a single JSON object."

// DefaultExtractionPrompt describes the JSON shape the parser expects
const DefaultExtractionPrompt = `Analyze the provided invoice and extract all structured data.

Return a JSON object with EXACTLY this structure (no markdown, no code fences, just raw JSON):

{
  "vendor_name": "string or null",
  "invoice_number": "string or null",
  "invoice_date": "YYYY-MM-DD string or null",
  "due_date": "YYYY-MM-DD string or null",
  "line_items": [
    {
      "description": "string or null",
      "quantity": number or null,
      "unit_price": number or null,
      "total": number or null
    }
  ],
  "subtotal": number or null,
  "tax": number or null,
  "grand_total": number or null,
  "payment_terms": "string or null",
  "bank_details": "string or null",
  "confidence_scores": {
    "vendor_name": 0.0-1.0,
    "invoice_number": 0.0-1.0,
    "invoice_date": 0.0-1.0,
    "due_date": 0.0-1.0,
    "line_items": 0.0-1.0,
    "subtotal": 0.0-1.0,
    "tax": 0.0-1.0,
    "grand_total": 0.0-1.0,
    "payment_terms": 0.0-1.0,
    "bank_details": 0.0-1.0
  }
}

Rules:
- Confidence scores: 1.0 = clearly visible and unambiguous, 0.5-0.9 = partially visible or inferred, 0.0-0.4 = not found or guessed
- Dates must be in YYYY-MM-DD format
- Monetary values must be plain numbers (no currency symbols)
- If a field is not found in the invoice, set it to null and give confidence 0.0
- Return ONLY the JSON object, no other text`

// PromptConfig holds the prompts and sampling parameters shared by the extraction gateways
type PromptConfig struct {
	System      string  `yaml:"system"`
	Extraction  string  `yaml:"extraction"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DefaultPrompts returns the built-in prompt configuration
func DefaultPrompts() *PromptConfig {
	return &PromptConfig{
		System:      DefaultSystemPrompt,
		Extraction:  DefaultExtractionPrompt,
		Temperature: 0.1,
		MaxTokens:   4096,
	}
}

// LoadPrompts reads a YAML override on top of the defaults.
// An empty path returns the defaults.
func LoadPrompts(path string) (*PromptConfig, error) {
	prompts := DefaultPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	if override.System != "" {
		prompts.System = override.System
	}
	if override.Extraction != "" {
		prompts.Extraction = override.Extraction
	}
	if override.Temperature > 0 {
		prompts.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		prompts.MaxTokens = override.MaxTokens
	}
	return prompts, nil
}

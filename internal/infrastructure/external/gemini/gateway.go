package gemini

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/extraction"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the slice of the genai client the gateway needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gateway implements port.ExtractionGateway with Gemini.
// The PDF is sent inline; Gemini reads it natively.
type Gateway struct {
	models  contentGenerator
	model   string
	prompts *extraction.PromptConfig
	logger  *zap.Logger
}

// NewGateway creates a Gemini API client
func NewGateway(ctx context.Context, apiKey, model string, prompts *extraction.PromptConfig, logger *zap.Logger) (*Gateway, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGateway(client.Models, model, prompts, logger), nil
}

func newGateway(models contentGenerator, model string, prompts *extraction.PromptConfig, logger *zap.Logger) *Gateway {
	if model == "" {
		model = DefaultModel
	}
	if prompts == nil {
		prompts = extraction.DefaultPrompts()
	}
	return &Gateway{
		models:  models,
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

// Extract sends the file and the extraction prompt and parses the JSON reply
func (g *Gateway) Extract(ctx context.Context, file []byte, mimeType string) (*entity.ExtractionResult, error) {
	g.logger.Info("Extracting invoice with Gemini",
		zap.String("model", g.model),
		zap.String("mime_type", mimeType),
		zap.Int("size_bytes", len(file)))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(file, mimeType),
			genai.NewPartFromText(g.prompts.Extraction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: g.prompts.System}}},
		Temperature:       genai.Ptr(g.prompts.Temperature),
		MaxOutputTokens:   int32(g.prompts.MaxTokens),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Gemini API call failed", zap.Error(err))
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.New("no response from Gemini")
	}

	result, err := extraction.Parse(text)
	if err != nil {
		g.logger.Error("Failed to parse Gemini response", zap.Error(err), zap.String("content", text))
		return nil, err
	}

	g.logger.Info("Invoice data extracted",
		zap.Int("line_items", len(result.LineItems)),
		zap.Bool("has_grand_total", result.GrandTotal.Valid))
	return result, nil
}

var _ port.ExtractionGateway = (*Gateway)(nil)

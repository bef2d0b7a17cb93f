package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/infrastructure/external/extraction"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel    = "gpt-4o"
	defaultMaxPages = 2
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PageRenderer turns a PDF into one JPEG per page
type PageRenderer interface {
	RenderJPEG(data []byte, maxPages int) ([][]byte, error)
}

// Gateway implements port.ExtractionGateway with an OpenAI vision model.
// PDFs are rasterised first; images are sent as-is.
type Gateway struct {
	client   chatCompleter
	renderer PageRenderer
	model    string
	maxPages int
	prompts  *extraction.PromptConfig
	logger   *zap.Logger
}

// Config configures the OpenAI gateway
type Config struct {
	APIKey   string
	Model    string
	BaseURL  string
	MaxPages int
}

// NewGateway creates an OpenAI-backed extraction gateway
func NewGateway(cfg Config, renderer PageRenderer, prompts *extraction.PromptConfig, logger *zap.Logger) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newGateway(openai.NewClientWithConfig(clientCfg), renderer, cfg.Model, cfg.MaxPages, prompts, logger), nil
}

func newGateway(client chatCompleter, renderer PageRenderer, model string, maxPages int, prompts *extraction.PromptConfig, logger *zap.Logger) *Gateway {
	if model == "" {
		model = DefaultModel
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if prompts == nil {
		prompts = extraction.DefaultPrompts()
	}
	return &Gateway{
		client:   client,
		renderer: renderer,
		model:    model,
		maxPages: maxPages,
		prompts:  prompts,
		logger:   logger,
	}
}

// Extract renders the file, sends the pages with the extraction prompt and parses the reply
func (g *Gateway) Extract(ctx context.Context, file []byte, mimeType string) (*entity.ExtractionResult, error) {
	images, imageType, err := g.toImages(file, mimeType)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Extracting invoice with Vision API",
		zap.String("model", g.model),
		zap.Int("image_count", len(images)))

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: g.prompts.Extraction,
	}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", imageType, base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.prompts.MaxTokens,
		Temperature: g.prompts.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.prompts.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		g.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from Vision API")
	}

	content := resp.Choices[0].Message.Content
	result, err := extraction.Parse(content)
	if err != nil {
		g.logger.Error("Failed to parse Vision API response", zap.Error(err), zap.String("content", content))
		return nil, err
	}

	g.logger.Info("Invoice data extracted",
		zap.Int("line_items", len(result.LineItems)),
		zap.Bool("has_grand_total", result.GrandTotal.Valid))
	return result, nil
}

func (g *Gateway) toImages(file []byte, mimeType string) ([][]byte, string, error) {
	switch {
	case mimeType == "application/pdf":
		if g.renderer == nil {
			return nil, "", errors.New("no PDF renderer configured")
		}
		images, err := g.renderer.RenderJPEG(file, g.maxPages)
		if err != nil {
			return nil, "", fmt.Errorf("failed to convert PDF: %w", err)
		}
		return images, "image/jpeg", nil
	case strings.HasPrefix(mimeType, "image/"):
		return [][]byte{file}, mimeType, nil
	default:
		return nil, "", fmt.Errorf("unsupported file type: %s", mimeType)
	}
}

var _ port.ExtractionGateway = (*Gateway)(nil)

package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChat struct {
	CreateChatCompletionFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (m *mockChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return m.CreateChatCompletionFunc(ctx, req)
}

type mockRenderer struct {
	RenderJPEGFunc func(data []byte, maxPages int) ([][]byte, error)
}

func (m *mockRenderer) RenderJPEG(data []byte, maxPages int) ([][]byte, error) {
	return m.RenderJPEGFunc(data, maxPages)
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

func TestGateway_ExtractPDF(t *testing.T) {
	var gotMaxPages int
	renderer := &mockRenderer{RenderJPEGFunc: func(data []byte, maxPages int) ([][]byte, error) {
		gotMaxPages = maxPages
		return [][]byte{[]byte("page1"), []byte("page2")}, nil
	}}
	var gotReq openai.ChatCompletionRequest
	chat := &mockChat{CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
		gotReq = req
		return reply(`{"invoice_number": "A-1", "confidence_scores": {"invoice_number": 0.9}}`), nil
	}}

	g := newGateway(chat, renderer, "", 3, nil, zap.NewNop())
	result, err := g.Extract(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "A-1", *result.InvoiceNumber)
	assert.Equal(t, 3, gotMaxPages)
	assert.Equal(t, DefaultModel, gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	parts := gotReq.Messages[1].MultiContent
	require.Len(t, parts, 3, "prompt plus one image per page")
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,"))
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, gotReq.ResponseFormat.Type)
}

func TestGateway_ExtractFailures(t *testing.T) {
	okRenderer := &mockRenderer{RenderJPEGFunc: func([]byte, int) ([][]byte, error) { return [][]byte{{1}}, nil }}

	tests := []struct {
		name     string
		mimeType string
		renderer *mockRenderer
		chat     func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	}{
		{
			name:     "unsupported type",
			mimeType: "text/plain",
			renderer: okRenderer,
		},
		{
			name:     "render error",
			mimeType: "application/pdf",
			renderer: &mockRenderer{RenderJPEGFunc: func([]byte, int) ([][]byte, error) { return nil, errors.New("broken") }},
		},
		{
			name:     "api error",
			mimeType: "application/pdf",
			renderer: okRenderer,
			chat: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{}, errors.New("rate limited")
			},
		},
		{
			name:     "no choices",
			mimeType: "image/png",
			chat: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{}, nil
			},
		},
		{
			name:     "unparseable reply",
			mimeType: "image/png",
			chat: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return reply("no idea"), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &mockChat{CreateChatCompletionFunc: tt.chat}
			var renderer PageRenderer
			if tt.renderer != nil {
				renderer = tt.renderer
			}
			_, err := newGateway(chat, renderer, "m", 0, nil, zap.NewNop()).Extract(context.Background(), []byte("data"), tt.mimeType)
			assert.Error(t, err)
		})
	}
}

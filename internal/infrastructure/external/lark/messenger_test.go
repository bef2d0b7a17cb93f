package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCreator struct {
	CreateFunc func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error)
}

func (m *mockCreator) Create(ctx context.Context, req *larkim.CreateMessageReq, _ ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	return m.CreateFunc(ctx, req)
}

func okResp() *larkim.CreateMessageResp {
	id := "om_1"
	return &larkim.CreateMessageResp{
		CodeError: larkcore.CodeError{Code: 0},
		Data:      &larkim.CreateMessageRespData{MessageId: &id},
	}
}

func TestMessenger_SendText(t *testing.T) {
	var got *larkim.CreateMessageReq
	m := &Messenger{
		messages: &mockCreator{CreateFunc: func(ctx context.Context, req *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
			got = req
			return okResp(), nil
		}},
		logger: zap.NewNop(),
	}

	require.NoError(t, m.SendText(context.Background(), "ou_123", `Invoice "march.pdf" has been approved`))

	require.NotNil(t, got)
	require.NotNil(t, got.Body)
	assert.Equal(t, "ou_123", *got.Body.ReceiveId)
	assert.Equal(t, larkim.MsgTypeText, *got.Body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*got.Body.Content), &content))
	assert.Equal(t, `Invoice "march.pdf" has been approved`, content["text"])
}

func TestMessenger_SendTextFailures(t *testing.T) {
	failing := func(resp *larkim.CreateMessageResp, err error) *Messenger {
		return &Messenger{
			messages: &mockCreator{CreateFunc: func(context.Context, *larkim.CreateMessageReq) (*larkim.CreateMessageResp, error) {
				return resp, err
			}},
			logger: zap.NewNop(),
		}
	}
	ctx := context.Background()

	assert.Error(t, failing(okResp(), nil).SendText(ctx, "", "hi"))
	assert.Error(t, failing(okResp(), nil).SendText(ctx, "ou_1", ""))
	assert.Error(t, failing(nil, errors.New("network")).SendText(ctx, "ou_1", "hi"))
	assert.Error(t, failing(&larkim.CreateMessageResp{CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"}}, nil).SendText(ctx, "ou_1", "hi"))
}

package lark

import (
	"errors"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
)

// Config holds Lark app credentials
type Config struct {
	AppID     string
	AppSecret string
}

// NewSDKClient creates a Lark SDK client with token caching
func NewSDKClient(cfg Config) (*lark.Client, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("lark app_id and app_secret are required")
	}
	return lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	), nil
}

package handlers

import (
	"context"

	"github.com/chatrelay/telegram-support/internal/common"
	"github.com/chatrelay/telegram-support/internal/config"
	"github.com/chatrelay/telegram-support/internal/relay"
	"github.com/gin-gonic/gin"
)

// NonceStore is the widget nonce contract; redisstore.Store satisfies it.
type NonceStore interface {
	IssueNonce(ctx context.Context, chatID string) (string, error)
	CheckNonce(ctx context.Context, token, chatID string) (bool, error)
}

type Handler struct {
	Cfg    config.Config
	Svc    *relay.Service
	Nonces NonceStore
}

func NewHandler(cfg config.Config, svc *relay.Service, nonces NonceStore) *Handler {
	return &Handler{Cfg: cfg, Svc: svc, Nonces: nonces}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, "pong")
}

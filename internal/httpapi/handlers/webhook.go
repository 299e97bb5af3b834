package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chatrelay/telegram-support/internal/relay"
	"github.com/chatrelay/telegram-support/internal/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook consumes Bot API updates. Responses are bare status
// codes: 403 on a secret mismatch, 400 on garbage JSON, and 200 for
// everything after that — Telegram re-delivers on anything else, so a
// routing failure must still ack.
func (h *Handler) TelegramWebhook(c *gin.Context) {
	if h.Cfg.WebhookSecret != "" {
		got := c.GetHeader(secretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Cfg.WebhookSecret)) != 1 {
			log.Printf("webhook: secret token mismatch")
			c.Status(http.StatusForbidden)
			return
		}
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Printf("webhook: invalid JSON: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	// edited messages, channel posts and the like carry no message
	if update.Message == nil {
		c.Status(http.StatusOK)
		return
	}

	tag, found := telegram.ParseReplyTag(update.Message.Text)
	if !found {
		// admin chatter not addressed to a visitor
		c.Status(http.StatusOK)
		return
	}
	if tag.Message == "" {
		log.Printf("webhook: empty reply body for chat_id=%s, ignoring", tag.ChatID)
		c.Status(http.StatusOK)
		return
	}

	sess, err := h.Svc.OpenSession(c.Request.Context(), tag.ChatID, relay.Visitor{})
	if err != nil {
		log.Printf("webhook: open session failed: chat_id=%s err=%v", tag.ChatID, err)
		c.Status(http.StatusOK)
		return
	}

	if err := h.Svc.ReceiveFromAdmin(c.Request.Context(), sess, tag.Message, update.Message.Chat.ID); err != nil {
		log.Printf("webhook: store reply failed: chat_id=%s err=%v", tag.ChatID, err)
	}
	c.Status(http.StatusOK)
}

package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chatrelay/telegram-support/internal/common"
	"github.com/chatrelay/telegram-support/internal/httpapi/middleware"
	"github.com/chatrelay/telegram-support/internal/relay"
)

func visitorFrom(c *gin.Context) relay.Visitor {
	v := relay.Visitor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		PageURL:   c.GetHeader("Referer"),
	}
	if raw, ok := c.Get(middleware.UserIDKey); ok {
		if uid, ok := raw.(uint64); ok {
			v.UserID = uid
		}
	}
	return v
}

func (h *Handler) checkNonce(c *gin.Context, token, chatID string) bool {
	valid, err := h.Nonces.CheckNonce(c.Request.Context(), token, chatID)
	if err != nil {
		log.Printf("nonce check failed: %v", err)
		common.Fail(c, http.StatusInternalServerError, "something went wrong, please try again")
		return false
	}
	if !valid {
		common.Fail(c, http.StatusForbidden, "security check failed")
		return false
	}
	return true
}

type openSessionReq struct {
	ChatID string `json:"chat_id"`
}

// OpenSession bootstraps the widget: reuses the supplied chat id or
// generates a fresh one, ensures the session row exists and hands back
// a nonce for the send/poll calls.
func (h *Handler) OpenSession(c *gin.Context) {
	var req openSessionReq
	_ = c.ShouldBindJSON(&req) // empty body is fine

	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		id, err := relay.GenerateChatID()
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, "failed to start chat")
			return
		}
		chatID = id
	}

	if _, err := h.Svc.OpenSession(c.Request.Context(), chatID, visitorFrom(c)); err != nil {
		log.Printf("open session failed: chat_id=%s err=%v", chatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to start chat")
		return
	}

	nonce, err := h.Nonces.IssueNonce(c.Request.Context(), chatID)
	if err != nil {
		log.Printf("issue nonce failed: chat_id=%s err=%v", chatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to start chat")
		return
	}

	common.OK(c, gin.H{"chat_id": chatID, "nonce": nonce})
}

type sendMessageReq struct {
	ChatID  string `json:"chat_id" binding:"required"`
	Message string `json:"message"`
	Nonce   string `json:"nonce" binding:"required"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request")
		return
	}
	if !h.checkNonce(c, req.Nonce, req.ChatID) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, "message cannot be empty")
		return
	}

	visitor := visitorFrom(c)
	sess, err := h.Svc.OpenSession(c.Request.Context(), req.ChatID, visitor)
	if err != nil {
		log.Printf("send: open session failed: chat_id=%s err=%v", req.ChatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to send message")
		return
	}

	if err := h.Svc.SendToAdmins(c.Request.Context(), sess, visitor, req.Message); err != nil {
		log.Printf("send to admins failed: chat_id=%s err=%v", req.ChatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to send message")
		return
	}

	common.OK(c, "message sent successfully")
}

type pollReq struct {
	ChatID        string `json:"chat_id" binding:"required"`
	LastMessageID uint64 `json:"last_message_id"`
	Nonce         string `json:"nonce" binding:"required"`
}

func (h *Handler) PollMessages(c *gin.Context) {
	var req pollReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid request")
		return
	}
	if !h.checkNonce(c, req.Nonce, req.ChatID) {
		return
	}

	sess, err := h.Svc.OpenSession(c.Request.Context(), req.ChatID, visitorFrom(c))
	if err != nil {
		log.Printf("poll: open session failed: chat_id=%s err=%v", req.ChatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to load messages")
		return
	}

	msgs, err := h.Svc.NewMessages(c.Request.Context(), sess, req.LastMessageID)
	if err != nil {
		log.Printf("poll failed: chat_id=%s err=%v", req.ChatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to load messages")
		return
	}

	common.OK(c, msgs)
}

func (h *Handler) History(c *gin.Context) {
	chatID := strings.TrimSpace(c.Query("chat_id"))
	if chatID == "" {
		common.Fail(c, http.StatusBadRequest, "invalid request")
		return
	}
	if !h.checkNonce(c, c.Query("nonce"), chatID) {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	sess, err := h.Svc.OpenSession(c.Request.Context(), chatID, visitorFrom(c))
	if err != nil {
		log.Printf("history: open session failed: chat_id=%s err=%v", chatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to load messages")
		return
	}

	msgs, err := h.Svc.AllMessages(c.Request.Context(), sess, limit)
	if err != nil {
		log.Printf("history failed: chat_id=%s err=%v", chatID, err)
		common.Fail(c, http.StatusInternalServerError, "failed to load messages")
		return
	}

	common.OK(c, msgs)
}

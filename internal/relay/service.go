package relay

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/chatrelay/telegram-support/internal/common"
	"github.com/chatrelay/telegram-support/internal/telegram"
)

var (
	ErrNotConfigured  = errors.New("relay: bot token or admin recipients not configured")
	ErrDeliveryFailed = errors.New("relay: message was not delivered to any admin")
)

// Sender is the outbound half of the Telegram client the service
// needs. *telegram.Client satisfies it.
type Sender interface {
	BroadcastMessage(ctx context.Context, chatIDs []int64, text string) map[int64]error
}

// Visitor carries the request-side identity material for one call.
type Visitor struct {
	UserID    uint64 // authenticated website user id, 0 for guests
	IP        string
	UserAgent string
	PageURL   string
}

// Identity derives the stored website_user_id: user_<id> for
// authenticated visitors, otherwise a best-effort fingerprint of
// IP + user agent. Never used for security decisions.
func (v Visitor) Identity() string {
	if v.UserID != 0 {
		return fmt.Sprintf("user_%d", v.UserID)
	}
	sum := md5.Sum([]byte(v.IP + v.UserAgent))
	return "guest_" + hex.EncodeToString(sum[:])
}

// Service orchestrates the visitor<->admin message flow atop the Repo
// and the Telegram sender.
type Service struct {
	repo         *Repo
	sender       Sender
	adminChatIDs []int64
}

// NewService wires the relay. sender may be nil when no bot token is
// configured; sends then fail with ErrNotConfigured.
func NewService(repo *Repo, sender Sender, adminChatIDs []int64) *Service {
	return &Service{repo: repo, sender: sender, adminChatIDs: adminChatIDs}
}

// OpenSession loads the session for chatID or creates it. Creation is
// idempotent: when the insert loses to the unique index (concurrent
// create, or an id that already exists) the existing row wins.
func (s *Service) OpenSession(ctx context.Context, chatID string, v Visitor) (*Session, error) {
	sess, err := s.repo.GetSessionByChatID(ctx, chatID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &Session{
		ChatID:        chatID,
		WebsiteUserID: v.Identity(),
		Status:        StatusOpen,
	}
	if err := s.repo.CreateSession(ctx, created); err != nil {
		if existing, getErr := s.repo.GetSessionByChatID(ctx, chatID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// SendToAdmins persists the visitor message and fans it out to every
// configured admin chat. The message stays persisted even when no
// delivery succeeds.
func (s *Service) SendToAdmins(ctx context.Context, sess *Session, v Visitor, text string) error {
	msg := &Message{
		SessionID: sess.ID,
		Type:      TypeUserToAdmin,
		Text:      text,
		SenderID:  v.Identity(),
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return err
	}

	if s.sender == nil || len(s.adminChatIDs) == 0 {
		return ErrNotConfigured
	}

	formatted := telegram.FormatAdminMessage(sess.ChatID, text, telegram.VisitorInfo{
		IP:        v.IP,
		UserAgent: v.UserAgent,
		PageURL:   v.PageURL,
	})

	results := s.sender.BroadcastMessage(ctx, s.adminChatIDs, formatted)

	delivered := false
	for id, err := range results {
		if err == nil {
			delivered = true
			continue
		}
		log.Printf("relay: send to admin %d failed: %v", id, err)
	}
	if !delivered {
		return ErrDeliveryFailed
	}

	if err := s.repo.UpdateSession(ctx, sess.ID, map[string]any{"status": StatusPendingAdmin}); err != nil {
		// delivery already happened, report success anyway
		log.Printf("relay: session %d status update failed: %v", sess.ID, err)
	}
	return nil
}

// ReceiveFromAdmin stores a routed admin reply and marks the session
// active with the replying chat as its owner. The replying chat id is
// recorded but not checked against the configured admin list.
func (s *Service) ReceiveFromAdmin(ctx context.Context, sess *Session, text string, adminChatID int64) error {
	adminID := strconv.FormatInt(adminChatID, 10)
	msg := &Message{
		SessionID: sess.ID,
		Type:      TypeAdminToUser,
		Text:      text,
		SenderID:  adminID,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return err
	}
	return s.repo.UpdateSession(ctx, sess.ID, map[string]any{
		"telegram_admin_id": adminID,
		"status":            StatusActive,
	})
}

// NewMessages returns messages newer than the poller's watermark,
// oldest first.
func (s *Service) NewMessages(ctx context.Context, sess *Session, lastMessageID uint64) ([]MessageView, error) {
	msgs, err := s.repo.MessagesSince(ctx, sess.ID, lastMessageID)
	if err != nil {
		return nil, err
	}
	return views(msgs), nil
}

// AllMessages returns a full page of the session's history.
func (s *Service) AllMessages(ctx context.Context, sess *Session, limit int) ([]MessageView, error) {
	msgs, err := s.repo.Messages(ctx, sess.ID, limit, 0)
	if err != nil {
		return nil, err
	}
	return views(msgs), nil
}

func (s *Service) CloseSession(ctx context.Context, sess *Session) error {
	return s.repo.UpdateSession(ctx, sess.ID, map[string]any{"status": StatusClosed})
}

// PurgeStale removes sessions untouched for olderThanDays and their
// messages, returning how many sessions went.
func (s *Service) PurgeStale(ctx context.Context, olderThanDays int) (int64, error) {
	return s.repo.PurgeStale(ctx, olderThanDays)
}

func views(msgs []Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		sender := "user"
		if m.Type == TypeAdminToUser {
			sender = "admin"
		}
		out = append(out, MessageView{
			ID:        m.ID,
			Type:      m.Type,
			Text:      m.Text,
			Timestamp: m.CreatedAt,
			Sender:    sender,
		})
	}
	return out
}

// GenerateChatID produces a fresh widget chat id. Collisions are
// negligible at operational scale; the store's unique index is the
// real guarantee either way.
func GenerateChatID() (string, error) {
	id, err := common.NewULID()
	if err != nil {
		return "", err
	}
	return "chat_" + strings.ToLower(id), nil
}

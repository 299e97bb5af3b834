package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chatrelay/telegram-support/internal/telegram"
)

type sentMessage struct {
	chatID int64
	text   string
}

// recordingSender fakes the Telegram client: it records successful
// deliveries and fails the chat ids listed in fail.
type recordingSender struct {
	sent []sentMessage
	fail map[int64]bool
}

func (s *recordingSender) BroadcastMessage(ctx context.Context, chatIDs []int64, text string) map[int64]error {
	_ = ctx
	results := make(map[int64]error, len(chatIDs))
	for _, id := range chatIDs {
		if s.fail[id] {
			results[id] = errors.New("simulated network error")
			continue
		}
		s.sent = append(s.sent, sentMessage{chatID: id, text: text})
		results[id] = nil
	}
	return results
}

func newTestService(t *testing.T, sender Sender, admins []int64) (*Service, *Repo) {
	t.Helper()
	db := openTestDB(t)
	repo := NewRepo(db)
	return NewService(repo, sender, admins), repo
}

func TestOpenSession_Idempotent(t *testing.T) {
	svc, repo := newTestService(t, &recordingSender{}, []int64{111})
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "UA"}

	first, err := svc.OpenSession(ctx, "chat_idem", v)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, err := svc.OpenSession(ctx, "chat_idem", v)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("session ids differ: %d vs %d", first.ID, second.ID)
	}
	if first.Status != StatusOpen {
		t.Fatalf("new session status = %q, want %q", first.Status, StatusOpen)
	}

	// exactly one row
	got, err := repo.GetSessionByChatID(ctx, "chat_idem")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("stored session id = %d, want %d", got.ID, first.ID)
	}
}

func TestVisitorIdentity(t *testing.T) {
	authed := Visitor{UserID: 7, IP: "1.2.3.4", UserAgent: "UA"}
	if got := authed.Identity(); got != "user_7" {
		t.Fatalf("authenticated identity = %q, want user_7", got)
	}

	guest := Visitor{IP: "1.2.3.4", UserAgent: "UA"}
	id := guest.Identity()
	if !strings.HasPrefix(id, "guest_") {
		t.Fatalf("guest identity = %q, want guest_ prefix", id)
	}
	if len(id) != len("guest_")+32 {
		t.Fatalf("guest identity length = %d, want md5 hex", len(id))
	}
	if id != (Visitor{IP: "1.2.3.4", UserAgent: "UA"}).Identity() {
		t.Fatal("same ip+ua should fingerprint identically")
	}
	if id == (Visitor{IP: "5.6.7.8", UserAgent: "UA"}).Identity() {
		t.Fatal("different ip should fingerprint differently")
	}
}

func TestSendToAdmins_FanOutPartialFailure(t *testing.T) {
	sender := &recordingSender{fail: map[int64]bool{222: true}}
	svc, repo := newTestService(t, sender, []int64{111, 222, 333})
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "UA"}

	sess, err := svc.OpenSession(ctx, "chat_fanout", v)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if err := svc.SendToAdmins(ctx, sess, v, "Need help"); err != nil {
		t.Fatalf("send should succeed when any recipient succeeds: %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("delivered to %d admins, want 2", len(sender.sent))
	}
	for _, s := range sender.sent {
		if !strings.Contains(s.text, "chat_fanout") || !strings.Contains(s.text, "Need help") {
			t.Fatalf("outbound text missing chat id or message: %q", s.text)
		}
	}

	got, err := repo.GetSessionByChatID(ctx, "chat_fanout")
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.Status != StatusPendingAdmin {
		t.Fatalf("status = %q, want %q", got.Status, StatusPendingAdmin)
	}
}

func TestSendToAdmins_AllFail(t *testing.T) {
	sender := &recordingSender{fail: map[int64]bool{111: true, 222: true}}
	svc, repo := newTestService(t, sender, []int64{111, 222})
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "UA"}

	sess, err := svc.OpenSession(ctx, "chat_allfail", v)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	err = svc.SendToAdmins(ctx, sess, v, "anyone there?")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}

	// the visitor message stays persisted, not rolled back
	msgs, err := repo.MessagesSince(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != TypeUserToAdmin || msgs[0].Text != "anyone there?" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	got, _ := repo.GetSessionByChatID(ctx, "chat_allfail")
	if got.Status != StatusOpen {
		t.Fatalf("status = %q, want %q after total delivery failure", got.Status, StatusOpen)
	}
}

func TestSendToAdmins_NotConfigured(t *testing.T) {
	svc, repo := newTestService(t, nil, nil)
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "UA"}

	sess, err := svc.OpenSession(ctx, "chat_nocfg", v)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	err = svc.SendToAdmins(ctx, sess, v, "hello?")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}

	// persisted before the configuration check
	msgs, _ := repo.MessagesSince(ctx, sess.ID, 0)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestReceiveFromAdmin(t *testing.T) {
	svc, repo := newTestService(t, &recordingSender{}, []int64{111})
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, "chat_recv", Visitor{})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if err := svc.ReceiveFromAdmin(ctx, sess, "We can help!", 111); err != nil {
		t.Fatalf("receive: %v", err)
	}

	msgs, err := repo.MessagesSince(ctx, sess.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Type != TypeAdminToUser || msgs[0].Text != "We can help!" || msgs[0].SenderID != "111" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}

	got, _ := repo.GetSessionByChatID(ctx, "chat_recv")
	if got.Status != StatusActive {
		t.Fatalf("status = %q, want %q", got.Status, StatusActive)
	}
	if got.TelegramAdminID == nil || *got.TelegramAdminID != "111" {
		t.Fatalf("telegram admin id = %v, want 111", got.TelegramAdminID)
	}
}

func TestNewMessages_SenderMapping(t *testing.T) {
	svc, _ := newTestService(t, &recordingSender{}, []int64{111})
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "UA"}

	sess, err := svc.OpenSession(ctx, "chat_views", v)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.SendToAdmins(ctx, sess, v, "question"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.ReceiveFromAdmin(ctx, sess, "answer", 111); err != nil {
		t.Fatalf("receive: %v", err)
	}

	all, err := svc.NewMessages(ctx, sess, 0)
	if err != nil {
		t.Fatalf("new messages: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d messages, want 2", len(all))
	}
	if all[0].Sender != "user" || all[0].Type != TypeUserToAdmin {
		t.Fatalf("first message: %+v", all[0])
	}
	if all[1].Sender != "admin" || all[1].Type != TypeAdminToUser {
		t.Fatalf("second message: %+v", all[1])
	}

	// polling past the visitor's own message yields only the reply
	tail, err := svc.NewMessages(ctx, sess, all[0].ID)
	if err != nil {
		t.Fatalf("new messages since watermark: %v", err)
	}
	if len(tail) != 1 || tail[0].Text != "answer" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
}

func TestCloseSession_TransitionsStayPermissive(t *testing.T) {
	svc, repo := newTestService(t, &recordingSender{}, []int64{111})
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "UA"}

	sess, err := svc.OpenSession(ctx, "chat_close", v)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.CloseSession(ctx, sess); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, _ := repo.GetSessionByChatID(ctx, "chat_close")
	if got.Status != StatusClosed {
		t.Fatalf("status = %q, want %q", got.Status, StatusClosed)
	}

	// a closed session still accepts sends and goes straight back to
	// pending_admin_response
	if err := svc.SendToAdmins(ctx, got, v, "one more thing"); err != nil {
		t.Fatalf("send on closed session: %v", err)
	}
	got, _ = repo.GetSessionByChatID(ctx, "chat_close")
	if got.Status != StatusPendingAdmin {
		t.Fatalf("status = %q, want %q", got.Status, StatusPendingAdmin)
	}
}

func TestGenerateChatID(t *testing.T) {
	a, err := GenerateChatID()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := GenerateChatID()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(a, "chat_") {
		t.Fatalf("chat id = %q, want chat_ prefix", a)
	}
	if a == b {
		t.Fatalf("two generated chat ids collided: %q", a)
	}
}

func TestEndToEndRelay(t *testing.T) {
	sender := &recordingSender{}
	svc, _ := newTestService(t, sender, []int64{111, 222})
	ctx := context.Background()
	v := Visitor{IP: "1.2.3.4", UserAgent: "Mozilla/5.0", PageURL: "https://example.com/help"}

	// visitor sends
	sess, err := svc.OpenSession(ctx, "chat_xyz", v)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := svc.SendToAdmins(ctx, sess, v, "Need help"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("delivered to %d admins, want 2", len(sender.sent))
	}

	// admin replies through the tag convention
	tag, found := telegram.ParseReplyTag("[ChatID: chat_xyz] We can help!")
	if !found {
		t.Fatal("reply tag did not parse")
	}
	replySess, err := svc.OpenSession(ctx, tag.ChatID, Visitor{})
	if err != nil {
		t.Fatalf("open session from webhook: %v", err)
	}
	if replySess.ID != sess.ID {
		t.Fatalf("webhook resolved a different session: %d vs %d", replySess.ID, sess.ID)
	}
	if err := svc.ReceiveFromAdmin(ctx, replySess, tag.Message, 111); err != nil {
		t.Fatalf("receive: %v", err)
	}

	// visitor polls past their own message
	all, err := svc.NewMessages(ctx, sess, 0)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d messages, want 2", len(all))
	}
	reply := all[1]
	if reply.Type != TypeAdminToUser || reply.Text != "We can help!" || reply.Sender != "admin" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a thin wrapper around the Telegram Bot HTTP API. It is
// stateless and safe for concurrent use.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// call posts a JSON payload to one Bot API method. Network errors,
// non-2xx responses and {ok:false} payloads are all reported as plain
// errors; callers never need a status-code taxonomy.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	if c.HTTP == nil {
		return errors.New("telegram: http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.BaseURL, "/"), c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return c.redact(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// transport errors embed the request URL, which carries the token
		return c.redact(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("telegram: %s: status %d", method, resp.StatusCode)
		}
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	if !decoded.OK {
		desc := strings.TrimSpace(decoded.Description)
		if desc == "" {
			desc = fmt.Sprintf("status %d", resp.StatusCode)
		}
		log.Printf("telegram api error: method=%s code=%d desc=%s", method, decoded.ErrorCode, desc)
		return fmt.Errorf("telegram: %s: %s", method, desc)
	}

	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("telegram: %s: %w", method, err)
		}
	}
	return nil
}

// redact strips the bot token from error text before it can reach a
// log line or a caller.
func (c *Client) redact(err error) error {
	if err == nil || c.Token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.Token, "***"))
}

type sendMessageReq struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// SendMessage delivers text to a single chat and returns the provider
// message id. parseMode defaults to HTML.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) (int64, error) {
	if parseMode == "" {
		parseMode = "HTML"
	}
	var out sentMessage
	if err := c.call(ctx, "sendMessage", sendMessageReq{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	}, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

// BroadcastMessage fans the same text out to every chat id. Each
// recipient is attempted independently; one failure never aborts the
// rest. The result maps each chat id to its delivery error, nil on
// success.
func (c *Client) BroadcastMessage(ctx context.Context, chatIDs []int64, text string) map[int64]error {
	results := make(map[int64]error, len(chatIDs))
	for _, id := range chatIDs {
		_, err := c.SendMessage(ctx, id, text, "")
		results[id] = err
	}
	return results
}

type setWebhookReq struct {
	URL         string `json:"url"`
	SecretToken string `json:"secret_token,omitempty"`
}

func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	return c.call(ctx, "setWebhook", setWebhookReq{URL: url, SecretToken: secretToken}, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

type WebhookInfo struct {
	URL                string `json:"url"`
	PendingUpdateCount int    `json:"pending_update_count"`
	LastErrorMessage   string `json:"last_error_message,omitempty"`
}

func (c *Client) WebhookInfo(ctx context.Context) (*WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, "getWebhookInfo", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

type BotInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

func (c *Client) Me(ctx context.Context) (*BotInfo, error) {
	var info BotInfo
	if err := c.call(ctx, "getMe", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ValidateToken probes the bot-identity endpoint.
func (c *Client) ValidateToken(ctx context.Context) bool {
	_, err := c.Me(ctx)
	return err == nil
}

// TestChatID sends the configuration test message to a chat id.
func (c *Client) TestChatID(ctx context.Context, chatID int64) error {
	const testMessage = "Telegram chat support test message. Your chat ID is configured correctly!"
	_, err := c.SendMessage(ctx, chatID, testMessage, "")
	return err
}

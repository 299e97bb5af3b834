// webhookctl manages the bot's webhook registration from the command
// line: validate the token, point Telegram at the service, tear the
// webhook down, or inspect its current state.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatrelay/telegram-support/internal/config"
	"github.com/chatrelay/telegram-support/internal/telegram"
)

func main() {
	validate := flag.Bool("validate", false, "probe the bot identity endpoint with the configured token")
	set := flag.Bool("set", false, "register WEBHOOK_URL (with WEBHOOK_SECRET) as the bot webhook")
	del := flag.Bool("delete", false, "remove the bot webhook")
	info := flag.Bool("info", false, "print current webhook state")
	testChat := flag.Int64("test-chat", 0, "send a test message to the given admin chat id")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is required")
	}

	client := telegram.NewClient(cfg.BotToken)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ran := false

	if *validate {
		ran = true
		me, err := client.Me(ctx)
		if err != nil {
			log.Fatalf("token is invalid: %v", err)
		}
		log.Printf("token ok: bot @%s (id %d)", me.Username, me.ID)
	}

	if *set {
		ran = true
		if cfg.WebhookURL == "" {
			log.Fatal("WEBHOOK_URL is required to set the webhook")
		}
		if err := client.SetWebhook(ctx, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			log.Fatalf("set webhook: %v", err)
		}
		log.Printf("webhook set to %s", cfg.WebhookURL)
	}

	if *del {
		ran = true
		if err := client.DeleteWebhook(ctx); err != nil {
			log.Fatalf("delete webhook: %v", err)
		}
		log.Printf("webhook deleted")
	}

	if *info {
		ran = true
		wi, err := client.WebhookInfo(ctx)
		if err != nil {
			log.Fatalf("webhook info: %v", err)
		}
		log.Printf("url=%q pending=%d last_error=%q", wi.URL, wi.PendingUpdateCount, wi.LastErrorMessage)
	}

	if *testChat != 0 {
		ran = true
		if err := client.TestChatID(ctx, *testChat); err != nil {
			log.Fatalf("test message to %d failed: %v", *testChat, err)
		}
		log.Printf("test message delivered to %d", *testChat)
	}

	if !ran {
		flag.Usage()
	}
}

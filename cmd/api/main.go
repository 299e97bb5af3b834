package main

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatrelay/telegram-support/internal/cleanup"
	"github.com/chatrelay/telegram-support/internal/config"
	"github.com/chatrelay/telegram-support/internal/db"
	"github.com/chatrelay/telegram-support/internal/httpapi"
	"github.com/chatrelay/telegram-support/internal/relay"
	"github.com/chatrelay/telegram-support/internal/store/redisstore"
	"github.com/chatrelay/telegram-support/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	repo := relay.NewRepo(gdb)

	var sender relay.Sender
	if cfg.BotToken != "" {
		sender = telegram.NewClient(cfg.BotToken)
	} else {
		log.Printf("BOT_TOKEN not set, visitor messages will be stored but not forwarded")
	}

	svc := relay.NewService(repo, sender, cfg.AdminChatIDs)

	nonces := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
		time.Duration(cfg.NonceTTLMinutes)*time.Minute)

	sweep := cleanup.NewManager(svc, cfg.RetentionDays)
	if err := sweep.Start(); err != nil {
		log.Fatalf("cleanup: %v", err)
	}
	defer sweep.Stop()

	r := httpapi.NewRouter(cfg, svc, nonces)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port  int
	DBDSN string

	// Telegram side
	BotToken      string
	AdminChatIDs  []int64
	WebhookSecret string
	WebhookURL    string

	// sessions untouched for this many days (by updated_at) get purged
	RetentionDays int

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	NonceTTLMinutes int

	// optional: visitors with a valid bearer token get a user_<id> identity
	JWTSecret string

	CORSOrigins []string
}

func Load() Config {
	port := 8080
	if v := os.Getenv("APP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			port = n
		}
	}

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/chat_support?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			"app", "apppass", "127.0.0.1", "3306", "chat_support",
		)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	nonceTTL := 720
	if v := os.Getenv("NONCE_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			nonceTTL = n
		}
	}

	retention := 30
	if v := os.Getenv("CLEANUP_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retention = n
		}
	}

	return Config{
		Port:            port,
		DBDSN:           dsn,
		BotToken:        os.Getenv("BOT_TOKEN"),
		AdminChatIDs:    parseChatIDs(os.Getenv("ADMIN_CHAT_IDS")),
		WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
		WebhookURL:      os.Getenv("WEBHOOK_URL"),
		RetentionDays:   retention,
		RedisAddr:       redisAddr,
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		NonceTTLMinutes: nonceTTL,
		JWTSecret:       os.Getenv("JWT_SECRET"),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
	}
}

// parseChatIDs parses a comma-separated list of Telegram chat ids.
// Entries that do not parse as int64 are skipped.
func parseChatIDs(raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

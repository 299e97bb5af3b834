package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/chatrelay/telegram-support/internal/relay"
)

// Manager runs the periodic stale-session sweep.
type Manager struct {
	cron          *cron.Cron
	svc           *relay.Service
	retentionDays int
}

func NewManager(svc *relay.Service, retentionDays int) *Manager {
	return &Manager{
		cron:          cron.New(),
		svc:           svc,
		retentionDays: retentionDays,
	}
}

func (m *Manager) Start() error {
	if _, err := m.cron.AddFunc("@daily", m.purge); err != nil {
		return err
	}
	m.cron.Start()
	log.Printf("cleanup: daily purge scheduled, retention=%d days", m.retentionDays)
	return nil
}

func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Manager) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := m.svc.PurgeStale(ctx, m.retentionDays)
	if err != nil {
		log.Printf("cleanup: purge failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("cleanup: purged %d stale sessions", n)
	}
}

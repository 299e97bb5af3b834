package relay

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	if s.Status == "" {
		s.Status = StatusOpen
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionByChatID(ctx context.Context, chatID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSession applies partial fields and always stamps updated_at.
func (r *Repo) UpdateSession(ctx context.Context, sessionID uint64, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// MessagesSince returns messages with id strictly greater than lastID,
// oldest first. No matches is an empty slice, not an error.
func (r *Repo) MessagesSince(ctx context.Context, sessionID uint64, lastID uint64) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND id > ?", sessionID, lastID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) Messages(ctx context.Context, sessionID uint64, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// PurgeStale removes sessions unmodified for more than olderThanDays,
// along with their messages. Messages go first so the sweep holds even
// without a database-level cascade.
func (r *Repo) PurgeStale(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&Session{}).
		Where("updated_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := r.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Delete(&Message{}).Error; err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&Session{}).Error; err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

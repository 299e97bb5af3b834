package relay

import "time"

// Session lifecycle states. The relay never enforces a transition
// table; any state may follow any other.
const (
	StatusOpen         = "open"
	StatusPendingAdmin = "pending_admin_response"
	StatusActive       = "active"
	StatusClosed       = "closed"
)

const (
	TypeUserToAdmin = "user_to_admin"
	TypeAdminToUser = "admin_to_user"
)

// Session is one visitor<->admin conversation thread, keyed externally
// by the opaque chat id the widget carries.
type Session struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatID          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"chat_id"`
	WebsiteUserID   string    `gorm:"type:varchar(255)" json:"-"`
	TelegramAdminID *string   `gorm:"type:varchar(255)" json:"-"`
	Status          string    `gorm:"type:varchar(32);index;not null;default:'open'" json:"status"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID uint64    `gorm:"index;not null" json:"-"`
	Session   *Session  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Type      string    `gorm:"type:varchar(16);index;not null" json:"type"`
	Text      string    `gorm:"type:longtext;not null" json:"text"`
	SenderID  string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// MessageView is the shape the widget polls for.
type MessageView struct {
	ID        uint64    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
}

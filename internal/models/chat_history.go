package models

import "time"

// ChatMessage is a persisted public message.
// ID is assigned by the database and grows monotonically, so it doubles as the
// ordering key for history reads.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Sender    string    `gorm:"size:50;not null;index" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name used by the original schema.
func (ChatMessage) TableName() string { return "messages" }

// PrivateMessage is a persisted direct message between two users.
type PrivateMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Sender    string    `gorm:"size:50;not null;index:idx_private_pair" json:"sender"`
	Receiver  string    `gorm:"size:50;not null;index:idx_private_pair" json:"receiver"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name used by the original schema.
func (PrivateMessage) TableName() string { return "private_messages" }

// Involves reports whether username is the sender or the receiver.
func (m PrivateMessage) Involves(username string) bool {
	return m.Sender == username || m.Receiver == username
}

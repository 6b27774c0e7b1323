package models

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Presence status values persisted on an Identity.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// MaxUsernameLength mirrors the width of the users.username column.
const MaxUsernameLength = 50

// SystemSender is the reserved sender of presence announcements.
const SystemSender = "System"

// ErrEmptyUsername is returned when an Identity without a username is written.
var ErrEmptyUsername = errors.New("username must not be empty")

// Identity is a durable chat user.
// The username is the primary key and is compared case-sensitively.
// LastSeen stays nil while the user is online.
type Identity struct {
	Username  string     `gorm:"primaryKey;size:50" json:"username"`
	Status    string     `gorm:"size:20;not null;default:offline;index" json:"status"`
	LastSeen  *time.Time `json:"last_seen"`
	CreatedAt time.Time  `json:"-"`
}

// TableName keeps the table name used by the original schema.
func (Identity) TableName() string { return "users" }

// IsOnline reports whether the stored status is online.
func (i Identity) IsOnline() bool { return i.Status == StatusOnline }

// BeforeCreate is a GORM hook that rejects blank usernames and defaults the
// status for records created without one.
func (i *Identity) BeforeCreate(tx *gorm.DB) (err error) {
	if strings.TrimSpace(i.Username) == "" {
		return ErrEmptyUsername
	}
	if i.Status == "" {
		i.Status = StatusOffline
	}
	return
}

package storage

import (
	"chatterbox/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("storage: record not found")

// Storage is the durable side of the chat: identities and message history.
// Every call honours ctx cancellation.
type Storage interface {
	FindOnline(ctx context.Context) ([]models.Identity, error)
	FindAll(ctx context.Context) ([]models.Identity, error)
	FindIdentity(ctx context.Context, username string) (*models.Identity, error)

	UpsertOnline(ctx context.Context, username string) error
	SetOffline(ctx context.Context, username string, at time.Time) error

	AppendPublicMessage(ctx context.Context, sender, content string) (*models.ChatMessage, error)
	AppendPrivateMessage(ctx context.Context, sender, receiver, content string) (*models.PrivateMessage, error)
	RecentPublic(ctx context.Context, limit int) ([]models.ChatMessage, error)
	RecentPrivate(ctx context.Context, userA, userB string, limit int) ([]models.PrivateMessage, error)

	DeleteIdentity(ctx context.Context, username string) error
	PurgeMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ResetStatuses(ctx context.Context, at time.Time) (int64, error)
}

// Service implements Storage on PostgreSQL through GORM. Redis is optional and
// only used for the cross-node relay.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Migrate creates or updates the tables used by Service.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(&models.Identity{}, &models.ChatMessage{}, &models.PrivateMessage{})
}

// FindOnline returns every identity whose stored status is online.
func (s *Service) FindOnline(ctx context.Context) ([]models.Identity, error) {
	var identities []models.Identity
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusOnline).
		Order("username asc").
		Find(&identities).Error; err != nil {
		return nil, fmt.Errorf("find online: %w", err)
	}
	return identities, nil
}

// FindAll returns all known identities ordered by username.
func (s *Service) FindAll(ctx context.Context) ([]models.Identity, error) {
	var identities []models.Identity
	if err := s.DB.WithContext(ctx).Order("username asc").Find(&identities).Error; err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	return identities, nil
}

// FindIdentity looks a user up by exact username.
func (s *Service) FindIdentity(ctx context.Context, username string) (*models.Identity, error) {
	var identity models.Identity
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find identity %q: %w", username, err)
	}
	return &identity, nil
}

// UpsertOnline creates the identity on first join, otherwise marks it online
// and clears last_seen.
func (s *Service) UpsertOnline(ctx context.Context, username string) error {
	identity := models.Identity{Username: username, Status: models.StatusOnline}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":    models.StatusOnline,
			"last_seen": nil,
		}),
	}).Create(&identity).Error
	if err != nil {
		return fmt.Errorf("upsert online %q: %w", username, err)
	}
	return nil
}

// SetOffline marks the identity offline with last_seen = at. An identity that
// was never persisted (its online write failed) is created offline.
func (s *Service) SetOffline(ctx context.Context, username string, at time.Time) error {
	at = at.UTC()
	identity := models.Identity{Username: username, Status: models.StatusOffline, LastSeen: &at}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":    models.StatusOffline,
			"last_seen": at,
		}),
	}).Create(&identity).Error
	if err != nil {
		return fmt.Errorf("set offline %q: %w", username, err)
	}
	return nil
}

// AppendPublicMessage stores a public message and returns it with its ID.
func (s *Service) AppendPublicMessage(ctx context.Context, sender, content string) (*models.ChatMessage, error) {
	msg := models.ChatMessage{Sender: sender, Content: content}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append public message from %q: %w", sender, err)
	}
	return &msg, nil
}

// AppendPrivateMessage stores a direct message and returns it with its ID.
func (s *Service) AppendPrivateMessage(ctx context.Context, sender, receiver, content string) (*models.PrivateMessage, error) {
	msg := models.PrivateMessage{Sender: sender, Receiver: receiver, Content: content}
	if err := s.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append private message %q -> %q: %w", sender, receiver, err)
	}
	return &msg, nil
}

// RecentPublic returns up to limit public messages, most recent first.
func (s *Service) RecentPublic(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	if err := s.DB.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("recent public: %w", err)
	}
	return messages, nil
}

// RecentPrivate returns up to limit messages exchanged between userA and userB
// in either direction, most recent first.
func (s *Service) RecentPrivate(ctx context.Context, userA, userB string, limit int) ([]models.PrivateMessage, error) {
	var messages []models.PrivateMessage
	if err := s.DB.WithContext(ctx).
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", userA, userB, userB, userA).
		Order("id desc").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("recent private %q/%q: %w", userA, userB, err)
	}
	return messages, nil
}

// DeleteIdentity removes a user row. Messages are kept.
func (s *Service) DeleteIdentity(ctx context.Context, username string) error {
	res := s.DB.WithContext(ctx).Where("username = ?", username).Delete(&models.Identity{})
	if res.Error != nil {
		return fmt.Errorf("delete identity %q: %w", username, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeMessagesOlderThan deletes public and private messages created before
// cutoff in one transaction and returns the number of rows removed.
func (s *Service) PurgeMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("created_at < ?", cutoff).Delete(&models.ChatMessage{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("created_at < ?", cutoff).Delete(&models.PrivateMessage{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge messages before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return removed, nil
}

// ResetStatuses marks every online identity offline with last_seen = at.
func (s *Service) ResetStatuses(ctx context.Context, at time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Identity{}).
		Where("status = ?", models.StatusOnline).
		Updates(map[string]interface{}{
			"status":    models.StatusOffline,
			"last_seen": at.UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reset statuses: %w", res.Error)
	}
	return res.RowsAffected, nil
}

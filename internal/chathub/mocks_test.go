package chathub_test

import (
	"chatterbox/backend/internal/models"
	"chatterbox/backend/internal/storage"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage used for failure injection.
type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) FindOnline(ctx context.Context) ([]models.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Identity), args.Error(1)
}

func (m *MockStorage) FindAll(ctx context.Context) ([]models.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Identity), args.Error(1)
}

func (m *MockStorage) FindIdentity(ctx context.Context, username string) (*models.Identity, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockStorage) UpsertOnline(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockStorage) SetOffline(ctx context.Context, username string, at time.Time) error {
	args := m.Called(ctx, username, at)
	return args.Error(0)
}

func (m *MockStorage) AppendPublicMessage(ctx context.Context, sender, content string) (*models.ChatMessage, error) {
	args := m.Called(ctx, sender, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMessage), args.Error(1)
}

func (m *MockStorage) AppendPrivateMessage(ctx context.Context, sender, receiver, content string) (*models.PrivateMessage, error) {
	args := m.Called(ctx, sender, receiver, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PrivateMessage), args.Error(1)
}

func (m *MockStorage) RecentPublic(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockStorage) RecentPrivate(ctx context.Context, userA, userB string, limit int) ([]models.PrivateMessage, error) {
	args := m.Called(ctx, userA, userB, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PrivateMessage), args.Error(1)
}

func (m *MockStorage) DeleteIdentity(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockStorage) PurgeMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) ResetStatuses(ctx context.Context, at time.Time) (int64, error) {
	args := m.Called(ctx, at)
	return args.Get(0).(int64), args.Error(1)
}

// memStore is an in-memory storage.Storage for behavioural tests.
type memStore struct {
	mu         sync.Mutex
	identities map[string]models.Identity
	public     []models.ChatMessage
	private    []models.PrivateMessage
	nextID     uint
}

var _ storage.Storage = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{identities: make(map[string]models.Identity)}
}

func (s *memStore) FindOnline(ctx context.Context) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Identity
	for _, identity := range s.identities {
		if identity.IsOnline() {
			out = append(out, identity)
		}
	}
	return out, nil
}

func (s *memStore) FindAll(ctx context.Context) ([]models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (s *memStore) FindIdentity(ctx context.Context, username string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &identity, nil
}

func (s *memStore) UpsertOnline(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[username] = models.Identity{Username: username, Status: models.StatusOnline}
	return nil
}

func (s *memStore) SetOffline(ctx context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[username] = models.Identity{Username: username, Status: models.StatusOffline, LastSeen: &at}
	return nil
}

func (s *memStore) AppendPublicMessage(ctx context.Context, sender, content string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := models.ChatMessage{ID: s.nextID, Sender: sender, Content: content, CreatedAt: time.Now()}
	s.public = append(s.public, msg)
	return &msg, nil
}

func (s *memStore) AppendPrivateMessage(ctx context.Context, sender, receiver, content string) (*models.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg := models.PrivateMessage{ID: s.nextID, Sender: sender, Receiver: receiver, Content: content, CreatedAt: time.Now()}
	s.private = append(s.private, msg)
	return &msg, nil
}

func (s *memStore) RecentPublic(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.public)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) RecentPrivate(ctx context.Context, userA, userB string, limit int) ([]models.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PrivateMessage
	for i := len(s.private) - 1; i >= 0 && len(out) < limit; i-- {
		msg := s.private[i]
		if msg.Involves(userA) && msg.Involves(userB) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *memStore) DeleteIdentity(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.identities, username)
	return nil
}

func (s *memStore) PurgeMessagesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *memStore) ResetStatuses(ctx context.Context, at time.Time) (int64, error) {
	return 0, nil
}

func (s *memStore) identity(username string) (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[username]
	return identity, ok
}

func (s *memStore) publicCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.public)
}

package chathub

import (
	"chatterbox/backend/internal/metrics"
	"chatterbox/backend/internal/models"
	"chatterbox/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultStoreTimeout bounds every identity store call.
const DefaultStoreTimeout = 5 * time.Second

// guardedStore runs identity store calls under a deadline. A call that
// outlives the deadline is abandoned and reported as ErrStoreUnavailable even
// if the store ignores its context.
type guardedStore struct {
	store   storage.Storage
	timeout time.Duration
}

func newGuardedStore(store storage.Storage, timeout time.Duration) *guardedStore {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &guardedStore{store: store, timeout: timeout}
}

type callResult[T any] struct {
	value T
	err   error
}

func guard[T any](ctx context.Context, g *guardedStore, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- callResult[T]{value: v, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		if res.err == nil {
			return res.value, nil
		}
		if errors.Is(res.err, storage.ErrNotFound) {
			return zero, res.err
		}
		metrics.StoreErrors.WithLabelValues(op).Inc()
		return zero, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, res.err)
	case <-ctx.Done():
		metrics.StoreErrors.WithLabelValues(op).Inc()
		return zero, fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, ctx.Err())
	}
}

func (g *guardedStore) FindOnline(ctx context.Context) ([]models.Identity, error) {
	return guard(ctx, g, "find_online", g.store.FindOnline)
}

func (g *guardedStore) FindAll(ctx context.Context) ([]models.Identity, error) {
	return guard(ctx, g, "find_all", g.store.FindAll)
}

func (g *guardedStore) FindIdentity(ctx context.Context, username string) (*models.Identity, error) {
	return guard(ctx, g, "find_identity", func(ctx context.Context) (*models.Identity, error) {
		return g.store.FindIdentity(ctx, username)
	})
}

func (g *guardedStore) UpsertOnline(ctx context.Context, username string) error {
	_, err := guard(ctx, g, "upsert_online", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.UpsertOnline(ctx, username)
	})
	return err
}

func (g *guardedStore) SetOffline(ctx context.Context, username string, at time.Time) error {
	_, err := guard(ctx, g, "set_offline", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.store.SetOffline(ctx, username, at)
	})
	return err
}

func (g *guardedStore) AppendPublicMessage(ctx context.Context, sender, content string) (*models.ChatMessage, error) {
	return guard(ctx, g, "append_public", func(ctx context.Context) (*models.ChatMessage, error) {
		return g.store.AppendPublicMessage(ctx, sender, content)
	})
}

func (g *guardedStore) AppendPrivateMessage(ctx context.Context, sender, receiver, content string) (*models.PrivateMessage, error) {
	return guard(ctx, g, "append_private", func(ctx context.Context) (*models.PrivateMessage, error) {
		return g.store.AppendPrivateMessage(ctx, sender, receiver, content)
	})
}

func (g *guardedStore) RecentPublic(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	return guard(ctx, g, "recent_public", func(ctx context.Context) ([]models.ChatMessage, error) {
		return g.store.RecentPublic(ctx, limit)
	})
}

func (g *guardedStore) RecentPrivate(ctx context.Context, userA, userB string, limit int) ([]models.PrivateMessage, error) {
	return guard(ctx, g, "recent_private", func(ctx context.Context) ([]models.PrivateMessage, error) {
		return g.store.RecentPrivate(ctx, userA, userB, limit)
	})
}

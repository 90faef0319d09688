package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/qrave1/RoomChat/internal/domain/models"
)

// SessionRepository maps a connection to the room and username it is seated with.
// Put overwrites without touching room membership; keeping both consistent is the
// caller's job.
type SessionRepository interface {
	Get(ctx context.Context, connID string) (*models.Session, error)
	Put(ctx context.Context, session models.Session) error
	// Touch pushes the session expiry forward; a missing session is left alone.
	Touch(ctx context.Context, connID string) error
	Remove(ctx context.Context, connID string) (*models.Session, error)

	MarkKicked(ctx context.Context, connID string, ttl time.Duration) error
	IsKicked(ctx context.Context, connID string) (bool, error)
}

type sessionRepository struct {
	store Store
	ttl   time.Duration
}

func NewSessionRepository(store Store, ttl time.Duration) SessionRepository {
	return &sessionRepository{store: store, ttl: ttl}
}

func (r *sessionRepository) Get(ctx context.Context, connID string) (*models.Session, error) {
	fields, err := r.store.HGetAll(ctx, sessionKey(connID))
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if len(fields) == 0 || fields[fieldRoomID] == "" {
		return nil, nil
	}

	return &models.Session{
		ConnectionID: connID,
		Username:     fields[fieldUsername],
		RoomID:       fields[fieldRoomID],
		JoinedAt:     parseTime(fields[fieldJoinedAt]),
	}, nil
}

func (r *sessionRepository) Put(ctx context.Context, session models.Session) error {
	key := sessionKey(session.ConnectionID)

	err := r.store.HSet(ctx, key, map[string]string{
		fieldUsername: session.Username,
		fieldRoomID:   session.RoomID,
		fieldJoinedAt: formatTime(session.JoinedAt),
	})
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	if err = r.store.Expire(ctx, key, r.ttl); err != nil {
		return fmt.Errorf("expire session: %w", err)
	}

	return nil
}

func (r *sessionRepository) Touch(ctx context.Context, connID string) error {
	if err := r.store.Expire(ctx, sessionKey(connID), r.ttl); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return nil
}

func (r *sessionRepository) Remove(ctx context.Context, connID string) (*models.Session, error) {
	session, err := r.Get(ctx, connID)
	if err != nil || session == nil {
		return nil, err
	}

	if err = r.store.Del(ctx, sessionKey(connID)); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}

	return session, nil
}

func (r *sessionRepository) MarkKicked(ctx context.Context, connID string, ttl time.Duration) error {
	if _, err := r.store.SetNX(ctx, kickedKey(connID), "1", ttl); err != nil {
		return fmt.Errorf("mark kicked: %w", err)
	}

	return nil
}

func (r *sessionRepository) IsKicked(ctx context.Context, connID string) (bool, error) {
	_, ok, err := r.store.Get(ctx, kickedKey(connID))
	if err != nil {
		return false, fmt.Errorf("get kick marker: %w", err)
	}

	return ok, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}

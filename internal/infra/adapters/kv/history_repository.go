package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qrave1/RoomChat/internal/domain/models"
)

// HistoryRepository keeps the last limit messages of every room.
type HistoryRepository interface {
	Append(ctx context.Context, msg models.ChatMessage) error
	Recent(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error)
	Erase(ctx context.Context, roomID string) error
}

type historyRepository struct {
	store Store
	limit int
	ttl   time.Duration
}

func NewHistoryRepository(store Store, limit int, ttl time.Duration) HistoryRepository {
	if limit < 1 {
		limit = 1
	}

	return &historyRepository{store: store, limit: limit, ttl: ttl}
}

func (r *historyRepository) Append(ctx context.Context, msg models.ChatMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := historyKey(msg.RoomID)

	if err = r.store.RPush(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if err = r.store.LTrim(ctx, key, int64(-r.limit), -1); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err = r.store.Expire(ctx, key, r.ttl); err != nil {
		return fmt.Errorf("expire history: %w", err)
	}

	return nil
}

// Recent returns up to n latest messages, oldest first. n <= 0 means all retained.
func (r *historyRepository) Recent(ctx context.Context, roomID string, n int) ([]models.ChatMessage, error) {
	if n <= 0 || n > r.limit {
		n = r.limit
	}

	raws, err := r.store.LRange(ctx, historyKey(roomID), int64(-n), -1)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(raws))
	for _, raw := range raws {
		var msg models.ChatMessage
		if err = json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (r *historyRepository) Erase(ctx context.Context, roomID string) error {
	if err := r.store.Del(ctx, historyKey(roomID)); err != nil {
		return fmt.Errorf("erase history: %w", err)
	}

	return nil
}

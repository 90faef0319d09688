package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/application/metric"
	"github.com/qrave1/RoomChat/internal/application/ratelimit"
	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/kv"
)

const messageIDLength = 16

type MessageUsecase interface {
	Send(ctx context.Context, session models.Session, text string) (*models.ChatMessage, error)
	History(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error)

	// EraseHistory is the room teardown hook.
	EraseHistory(ctx context.Context, roomID string) error
	// Forget drops per-connection state of a closed connection.
	Forget(connID string)
}

type messageUsecase struct {
	history   kv.HistoryRepository
	limiter   *ratelimit.Limiter
	policy    *bluemonday.Policy
	newID     func() string
	maxLength int
	now       func() time.Time
}

func NewMessageUsecase(cfg config.ChatConfig, history kv.HistoryRepository) (MessageUsecase, error) {
	newID, err := nanoid.Standard(messageIDLength)
	if err != nil {
		return nil, fmt.Errorf("create message id generator: %w", err)
	}

	return &messageUsecase{
		history:   history,
		limiter:   ratelimit.New(cfg.MessagesPerSecond, cfg.MessageBurst),
		policy:    bluemonday.StrictPolicy(),
		newID:     newID,
		maxLength: cfg.MaxMessageLength,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (uc *messageUsecase) Send(ctx context.Context, session models.Session, text string) (*models.ChatMessage, error) {
	if !uc.limiter.Allow(session.ConnectionID) {
		metric.RecordMessage(apperr.Code(apperr.ErrRateLimited))
		return nil, apperr.ErrRateLimited
	}

	text = strings.TrimSpace(uc.policy.Sanitize(text))

	if text == "" {
		metric.RecordMessage(apperr.Code(apperr.ErrInvalidInput))
		return nil, fmt.Errorf("%w: empty message", apperr.ErrInvalidInput)
	}

	if utf8.RuneCountInString(text) > uc.maxLength {
		metric.RecordMessage(apperr.Code(apperr.ErrInvalidInput))
		return nil, fmt.Errorf("%w: message is longer than %d characters", apperr.ErrInvalidInput, uc.maxLength)
	}

	msg := &models.ChatMessage{
		ID:        uc.newID(),
		RoomID:    session.RoomID,
		Username:  session.Username,
		Text:      text,
		Timestamp: uc.now(),
	}

	if err := uc.history.Append(ctx, *msg); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}

	metric.RecordMessage("sent")

	return msg, nil
}

func (uc *messageUsecase) History(ctx context.Context, roomID string, limit int) ([]models.ChatMessage, error) {
	return uc.history.Recent(ctx, roomID, limit)
}

func (uc *messageUsecase) EraseHistory(ctx context.Context, roomID string) error {
	return uc.history.Erase(ctx, roomID)
}

func (uc *messageUsecase) Forget(connID string) {
	uc.limiter.Forget(connID)
}

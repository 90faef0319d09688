package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/domain/apperr"
	"github.com/qrave1/RoomChat/internal/domain/models"
	"github.com/qrave1/RoomChat/internal/infra/adapters/kv"
	"github.com/qrave1/RoomChat/internal/infra/adapters/memory"
)

func newTestMessages(t *testing.T, cfg config.ChatConfig) MessageUsecase {
	t.Helper()

	history := kv.NewHistoryRepository(memory.NewKVStore(), cfg.HistoryLimit, time.Hour)

	uc, err := NewMessageUsecase(cfg, history)
	require.NoError(t, err)

	return uc
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		HistoryLimit:      3,
		MaxMessageLength:  20,
		MessagesPerSecond: 100,
		MessageBurst:      100,
	}
}

var alice = models.Session{ConnectionID: "c1", Username: "alice", RoomID: "R"}

func TestMessageUsecase_SendSanitizesAndStores(t *testing.T) {
	ctx := context.Background()
	uc := newTestMessages(t, testChatConfig())

	msg, err := uc.Send(ctx, alice, "  <b>hello</b> world ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", msg.Text)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "R", msg.RoomID)
	assert.Len(t, msg.ID, messageIDLength)

	history, err := uc.History(ctx, "R", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestMessageUsecase_RejectsEmptyAndLong(t *testing.T) {
	ctx := context.Background()
	uc := newTestMessages(t, testChatConfig())

	_, err := uc.Send(ctx, alice, "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = uc.Send(ctx, alice, "<img src=x>")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = uc.Send(ctx, alice, strings.Repeat("x", 21))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = uc.Send(ctx, alice, strings.Repeat("ж", 20))
	assert.NoError(t, err)
}

func TestMessageUsecase_RateLimit(t *testing.T) {
	ctx := context.Background()
	cfg := testChatConfig()
	cfg.MessagesPerSecond = 0.001
	cfg.MessageBurst = 2
	uc := newTestMessages(t, cfg)

	_, err := uc.Send(ctx, alice, "one")
	require.NoError(t, err)
	_, err = uc.Send(ctx, alice, "two")
	require.NoError(t, err)

	_, err = uc.Send(ctx, alice, "three")
	assert.ErrorIs(t, err, apperr.ErrRateLimited)

	// у другого соединения своё ведро
	bob := models.Session{ConnectionID: "c2", Username: "bob", RoomID: "R"}
	_, err = uc.Send(ctx, bob, "hi")
	assert.NoError(t, err)

	uc.Forget("c1")
	_, err = uc.Send(ctx, alice, "again")
	assert.NoError(t, err)
}

func TestMessageUsecase_HistoryIsCappedAndErased(t *testing.T) {
	ctx := context.Background()
	uc := newTestMessages(t, testChatConfig())

	for _, text := range []string{"1", "2", "3", "4", "5"} {
		_, err := uc.Send(ctx, alice, text)
		require.NoError(t, err)
	}

	history, err := uc.History(ctx, "R", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "3", history[0].Text)
	assert.Equal(t, "5", history[2].Text)

	require.NoError(t, uc.EraseHistory(ctx, "R"))

	history, err = uc.History(ctx, "R", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

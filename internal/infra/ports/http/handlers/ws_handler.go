package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/RoomChat/internal/application/config"
	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/application/metric"
	"github.com/qrave1/RoomChat/internal/domain/events"
	"github.com/qrave1/RoomChat/internal/infra/adapters/memory"
	"github.com/qrave1/RoomChat/internal/infra/appctx"
	"github.com/qrave1/RoomChat/internal/usecase"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	maxFrameSize = 64 << 10

	disconnectTimeout = 10 * time.Second
)

var (
	errUnknownType = errors.New("unknown message type")
	errBadPayload  = errors.New("malformed message data")
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	roomUsecase usecase.RoomUsecase
	wsConnRepo  memory.WebsocketConnectionRepository
}

func NewWebSocketHandler(
	cfg *config.Config,
	roomUsecase usecase.RoomUsecase,
	wsConnRepo memory.WebsocketConnectionRepository,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		roomUsecase: roomUsecase,
		wsConnRepo:  wsConnRepo,
	}
}

func (h *WebSocketHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return err
	}
	defer ws.Close()

	connID := uuid.NewString()
	ctx := appctx.WithConnectionID(c.Request().Context(), connID)

	h.wsConnRepo.Add(connID, ws)
	metric.IncrementWSActiveConnections()

	defer func() {
		// запрос уже отменён, уборку делаем в своём контексте
		disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		defer cancel()

		if err := h.roomUsecase.HandleDisconnect(disconnectCtx, connID); err != nil {
			slog.Error(
				"handle disconnect",
				slog.String(constant.ConnectionID, connID),
				slog.Any(constant.Error, err),
			)
		}

		h.wsConnRepo.Remove(connID)
		metric.DecrementWSActiveConnections()
	}()

	ws.SetReadLimit(maxFrameSize)

	err = ws.SetReadDeadline(time.Now().Add(pongWait))
	if err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error {
		h.touch(ctx, connID)
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					slog.Debug("ping failed", slog.String(constant.ConnectionID, connID), slog.Any(constant.Error, err))
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Debug("websocket connected", slog.String(constant.ConnectionID, connID))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_, msg, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn(
						"webSocket read error",
						slog.String(constant.ConnectionID, connID),
						slog.Any(constant.Error, err),
					)
				}

				return nil
			}

			h.touch(ctx, connID)

			message := new(events.Message)

			if err = json.Unmarshal(msg, message); err != nil {
				slog.Warn(
					"unmarshal websocket message",
					slog.String(constant.ConnectionID, connID),
					slog.Any(constant.Error, err),
				)
				h.replyError(connID, "invalid_input", "malformed message")

				continue
			}

			if err = h.handleMessage(ctx, message); err != nil {
				slog.Error(
					"handle message",
					slog.String(constant.ConnectionID, connID),
					slog.String("type", message.Type),
					slog.Any(constant.Error, err),
				)

				if errors.Is(err, errUnknownType) || errors.Is(err, errBadPayload) {
					h.replyError(connID, "invalid_input", err.Error())
				}
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(
	ctx context.Context,
	msg *events.Message,
) error {
	connID, ok := appctx.ConnectionID(ctx)
	if !ok {
		return fmt.Errorf("get connection id from context")
	}

	switch msg.Type {
	case events.TypeJoin:
		var joinEvent events.JoinEvent

		if err := decodeData(msg, &joinEvent); err != nil {
			return fmt.Errorf("unmarshal join event: %w", err)
		}

		if err := h.roomUsecase.HandleJoin(ctx, connID, joinEvent); err != nil {
			return fmt.Errorf("handle join: %w", err)
		}

	case events.TypeLeave:
		if err := h.roomUsecase.HandleLeave(ctx, connID); err != nil {
			return fmt.Errorf("handle leave: %w", err)
		}

	case events.TypeMessage:
		var chat events.ChatEvent

		if err := decodeData(msg, &chat); err != nil {
			return fmt.Errorf("unmarshal chat event: %w", err)
		}

		if err := h.roomUsecase.HandleMessage(ctx, connID, chat); err != nil {
			return fmt.Errorf("handle message: %w", err)
		}

	case events.TypeHistory:
		var req events.HistoryRequestEvent

		if err := decodeData(msg, &req); err != nil {
			return fmt.Errorf("unmarshal history request: %w", err)
		}

		if err := h.roomUsecase.HandleHistory(ctx, connID, req); err != nil {
			return fmt.Errorf("handle history: %w", err)
		}

	case events.TypeApproveJoin:
		var target events.TargetEvent

		if err := decodeData(msg, &target); err != nil {
			return fmt.Errorf("unmarshal approve event: %w", err)
		}

		if err := h.roomUsecase.HandleApproveJoin(ctx, connID, target); err != nil {
			return fmt.Errorf("handle approve join: %w", err)
		}

	case events.TypeRejectJoin:
		var reject events.RejectEvent

		if err := decodeData(msg, &reject); err != nil {
			return fmt.Errorf("unmarshal reject event: %w", err)
		}

		if err := h.roomUsecase.HandleRejectJoin(ctx, connID, reject); err != nil {
			return fmt.Errorf("handle reject join: %w", err)
		}

	case events.TypeCancelJoin:
		if err := h.roomUsecase.HandleCancelJoin(ctx, connID); err != nil {
			return fmt.Errorf("handle cancel join: %w", err)
		}

	case events.TypePendingList:
		if err := h.roomUsecase.HandlePendingList(ctx, connID); err != nil {
			return fmt.Errorf("handle pending list: %w", err)
		}

	case events.TypeKick:
		var target events.TargetEvent

		if err := decodeData(msg, &target); err != nil {
			return fmt.Errorf("unmarshal kick event: %w", err)
		}

		if err := h.roomUsecase.HandleKick(ctx, connID, target); err != nil {
			return fmt.Errorf("handle kick: %w", err)
		}

	case events.TypeTransferAdmin:
		var target events.TargetEvent

		if err := decodeData(msg, &target); err != nil {
			return fmt.Errorf("unmarshal transfer event: %w", err)
		}

		if err := h.roomUsecase.HandleTransferAdmin(ctx, connID, target); err != nil {
			return fmt.Errorf("handle transfer admin: %w", err)
		}

	case events.TypeCheckAvailability:
		var query events.RoomQueryEvent

		if err := decodeData(msg, &query); err != nil {
			return fmt.Errorf("unmarshal availability query: %w", err)
		}

		if err := h.roomUsecase.HandleCheckAvailability(ctx, connID, query); err != nil {
			return fmt.Errorf("handle check availability: %w", err)
		}

	case events.TypeCheckCapacity:
		var query events.RoomQueryEvent

		if err := decodeData(msg, &query); err != nil {
			return fmt.Errorf("unmarshal capacity query: %w", err)
		}

		if err := h.roomUsecase.HandleCheckCapacity(ctx, connID, query); err != nil {
			return fmt.Errorf("handle check capacity: %w", err)
		}

	case events.TypePing:
		h.roomUsecase.HandlePing(ctx, connID)

	default:
		return fmt.Errorf("%w: %q", errUnknownType, msg.Type)
	}

	return nil
}

// touch продлевает TTL сессии, пока соединение живо
func (h *WebSocketHandler) touch(ctx context.Context, connID string) {
	if err := h.roomUsecase.HandleActivity(ctx, connID); err != nil {
		slog.Warn(
			"refresh session ttl",
			slog.String(constant.ConnectionID, connID),
			slog.Any(constant.Error, err),
		)
	}
}

func (h *WebSocketHandler) replyError(connID, code, message string) {
	data, err := json.Marshal(events.ErrorEvent{Code: code, Message: message})
	if err != nil {
		return
	}

	h.wsConnRepo.Write(connID, events.Message{Type: events.TypeError, Data: data})
}

// decodeData tolerates a missing data field for verbs without arguments.
func decodeData(msg *events.Message, v any) error {
	if len(msg.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %w", errBadPayload, err)
	}

	return nil
}

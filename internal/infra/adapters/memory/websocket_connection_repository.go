package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qrave1/RoomChat/internal/application/constant"
)

const writeWait = 10 * time.Second

// WebsocketConnectionRepository интерфейс для работы с активными соединениями в памяти
type WebsocketConnectionRepository interface {
	Add(connID string, conn *websocket.Conn)
	Remove(connID string)

	Write(connID string, payload any)
	// Close sends a close frame and drops the connection; its read loop then ends.
	Close(connID string)
	Len() int
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type wsConnectionRepository struct {
	// wsConns хранит map[connection_id]*ws.conn
	wsConns map[string]*safeWS

	mu sync.RWMutex
}

func NewWSConnectionRepository() WebsocketConnectionRepository {
	return &wsConnectionRepository{
		wsConns: make(map[string]*safeWS, 10),
	}
}

func (w *wsConnectionRepository) Add(connID string, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.wsConns[connID] = &safeWS{conn: conn}
}

func (w *wsConnectionRepository) Remove(connID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.wsConns, connID)
}

func (w *wsConnectionRepository) Write(connID string, payload any) {
	safews, ok := w.getSafeWS(connID)
	if !ok {
		slog.Debug("websocket already gone", slog.String(constant.ConnectionID, connID))
		return
	}

	safews.mu.Lock()
	defer safews.mu.Unlock()

	_ = safews.conn.SetWriteDeadline(time.Now().Add(writeWait))

	err := safews.conn.WriteJSON(payload)
	if err != nil {
		slog.Error(
			"write to websocket",
			slog.String(constant.ConnectionID, connID),
			slog.Any(constant.Error, err),
		)
		return
	}
}

func (w *wsConnectionRepository) Close(connID string) {
	w.mu.Lock()
	safews, ok := w.wsConns[connID]
	delete(w.wsConns, connID)
	w.mu.Unlock()

	if !ok {
		return
	}

	safews.mu.Lock()
	defer safews.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "kicked")
	_ = safews.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))

	if err := safews.conn.Close(); err != nil {
		slog.Debug("close websocket", slog.String(constant.ConnectionID, connID), slog.Any(constant.Error, err))
	}
}

func (w *wsConnectionRepository) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.wsConns)
}

func (w *wsConnectionRepository) getSafeWS(connID string) (*safeWS, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	conn, ok := w.wsConns[connID]
	return conn, ok
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koopa0/system-design/14-realtime-match/internal/protocol"
	"github.com/koopa0/system-design/14-realtime-match/internal/session"
	apperrors "github.com/koopa0/system-design/14-realtime-match/pkg/errors"
)

// 系統設計問題：
//   排程器每秒要對每個玩家送出 25 個快照，某個玩家網路變慢時，
//   怎麼避免整個排程器被它拖住？
//
// 設計方案：
//   ✅ 每條連線一個緩衝 channel - 排程器只做非阻塞投遞，滿了就丟
//   ✅ readPump / writePump 分離 - 讀寫各自一個 goroutine
//   ✅ Ping/Pong 心跳 - 54s 送 Ping、60s 沒收到任何東西就斷線
//   ✅ 連線 id 即玩家 id - 斷線就是離開，沒有重連恢復

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 8 * 1024
	sendBufferSize = 256

	defaultRegisterTimeout = 5 * time.Second
)

// Hub 管理所有 WebSocket 連線，同時是排程器的 session.Sender
type Hub struct {
	manager  *session.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader

	conns map[string]*Connection // playerID -> Connection
	mu    sync.RWMutex

	registerTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// Connection 單一玩家的 WebSocket 連線
type Connection struct {
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	LastPing time.Time

	hub       *Hub
	mu        sync.Mutex
	closeOnce sync.Once
}

// HubOption 連線中心選項
type HubOption func(*Hub)

// WithRegisterTimeout 設定等待排程器註冊玩家的上限
func WithRegisterTimeout(d time.Duration) HubOption {
	return func(hub *Hub) {
		hub.registerTimeout = d
	}
}

// NewHub 創建連線中心；必須在排程器啟動前呼叫 Attach
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:           make(map[string]*Connection),
		registerTimeout: defaultRegisterTimeout,
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// Attach 綁定排程器（Manager 建立時需要 Hub 作為 Sender，所以分兩步）
func (hub *Hub) Attach(m *session.Manager) {
	hub.manager = m
}

// Send 實現 session.Sender：編碼後非阻塞地放進連線的緩衝區
func (hub *Hub) Send(connID, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		hub.logger.Error("序列化消息失敗",
			"type", msgType,
			"player_id", connID,
			"error", err)
		return
	}

	// 持有讀鎖投遞：unregister 在寫鎖下關閉 channel，兩者不會交錯
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	c, ok := hub.conns[connID]
	if !ok {
		return
	}
	c.push(data)
}

func (c *Connection) push(data []byte) {
	select {
	case c.Send <- data:
	default:
		c.hub.logger.Warn("連接緩衝區滿",
			"player_id", c.PlayerID)
	}
}

// ServeWS 升級連線並註冊玩家
//
// 查詢參數 player_id 可以指定身分（測試 / 除錯用），否則自動產生。
// 同一個 player_id 同時只能有一條連線。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		playerID = uuid.New().String()
	}

	hub.mu.RLock()
	_, exists := hub.conns[playerID]
	hub.mu.RUnlock()
	if exists {
		http.Error(w, "player already connected", http.StatusConflict)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := &Connection{
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		LastPing: time.Now(),
		hub:      hub,
	}
	if !hub.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "player already connected"))
		conn.Close()
		return
	}

	// 先註冊連線再通知排程器，welcome 才送得出去
	go c.writePump()

	ctx, cancel := context.WithTimeout(hub.ctx, hub.registerTimeout)
	err = hub.manager.SubmitConnect(ctx, playerID)
	cancel()
	if err != nil {
		hub.logger.Warn("玩家註冊失敗", "player_id", playerID, "error", err)
		// 逾時時連線命令可能還在 inbox 裡，之後仍會註冊玩家；補一個斷線把它清掉
		hub.manager.SubmitDisconnect(playerID)
		hub.unregister(c)
		return
	}

	go c.readPump()

	hub.logger.Info("WebSocket 連接建立", "player_id", playerID)
}

func (hub *Hub) register(c *Connection) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if _, exists := hub.conns[c.PlayerID]; exists {
		return false
	}
	hub.conns[c.PlayerID] = c
	return true
}

func (hub *Hub) unregister(c *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if actual, ok := hub.conns[c.PlayerID]; ok && actual == c {
		delete(hub.conns, c.PlayerID)
	}
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// ConnectionCount 目前的連線數
func (hub *Hub) ConnectionCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.conns)
}

// IdleConnections 超過 after 沒有回應 Pong 的連線數（用於監控）
func (hub *Hub) IdleConnections(after time.Duration) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	now := time.Now()
	idle := 0
	for _, c := range hub.conns {
		if now.Sub(c.lastPing()) > after {
			idle++
		}
	}
	return idle
}

func (c *Connection) lastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LastPing
}

// Stop 關閉所有連線
func (hub *Hub) Stop() {
	hub.cancel()

	hub.mu.Lock()
	conns := make([]*Connection, 0, len(hub.conns))
	for _, c := range hub.conns {
		conns = append(conns, c)
	}
	hub.mu.Unlock()

	for _, c := range conns {
		hub.unregister(c)
		c.Conn.Close()
	}

	hub.logger.Info("WebSocket Hub 已停止")
}

// readPump 讀取客戶端訊息並投遞給排程器
//
// 無法解析的訊息直接在這裡回覆錯誤，不進入 inbox。
// 離開迴圈時（斷線、逾時）通知排程器玩家已離開。
func (c *Connection) readPump() {
	defer func() {
		// 先投遞斷線再解除註冊：同一 player_id 的新連線要等到 unregister 後才進得來，
		// 它的連線命令一定排在這個斷線之後
		c.hub.manager.SubmitDisconnect(c.PlayerID)
		c.hub.unregister(c)
		c.Conn.Close()
		c.hub.logger.Info("WebSocket 連接關閉", "player_id", c.PlayerID)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.Conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.LastPing = time.Now()
		c.mu.Unlock()
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket 讀取錯誤",
					"error", err,
					"player_id", c.PlayerID)
			}
			return
		}
		if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			c.hub.replyDecodeError(c.PlayerID, err)
			continue
		}

		if err := c.hub.manager.SubmitMessage(c.hub.ctx, c.PlayerID, msg); err != nil {
			return
		}
	}
}

func (hub *Hub) replyDecodeError(playerID string, err error) {
	code, message := apperrors.ErrCodeInvalidInput, "invalid message"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code, message = appErr.Code, appErr.Message
		if appErr.Details != "" {
			message += ": " + appErr.Details
		}
	}
	hub.Send(playerID, protocol.TypeError, protocol.Error{Code: code, Message: message})
}

// writePump 把緩衝區的訊息寫到連線，並定期送出 Ping
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

			// 批量送出已排隊的訊息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				next, ok := <-c.Send
				if !ok {
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, next); err != nil {
					return
				}
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

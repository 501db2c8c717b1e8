package internal

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Transport 底層連接（WebSocket 或測試替身）
type Transport interface {
	// Ping 送出存活探測
	Ping() error
	// Close 強制關閉連接
	Close() error
}

// Client 一條客戶端連接
//
// 房間歸屬只保存 roomID + 位置編號，實際房間一律透過 RoomManager 查詢。
type Client struct {
	id        string
	transport Transport
	send      chan []byte
	alive     atomic.Bool

	mu           sync.Mutex
	name         string
	difficulty   string
	roomID       string
	playerNumber int
	closed       bool

	releaseOnce sync.Once
}

// NewClient 創建連接物件
func NewClient(transport Transport, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	c := &Client{
		transport: transport,
		send:      make(chan []byte, sendBuffer),
	}
	c.alive.Store(true)
	return c
}

// ID 連接 ID（註冊後才有值）
func (c *Client) ID() string {
	return c.id
}

// Outbound 待發送訊息（由 writePump 消費）
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Send 序列化並加入發送佇列，不阻塞
func (c *Client) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// IsOpen 連接是否仍可發送
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close 關閉發送佇列（冪等）
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Terminate 關閉發送佇列並強制斷開底層連接
func (c *Client) Terminate() {
	c.Close()
	if c.transport != nil {
		_ = c.transport.Close()
	}
}

// MarkAlive 收到 pong 或 ping
func (c *Client) MarkAlive() {
	c.alive.Store(true)
}

// IsAlive 存活旗標
func (c *Client) IsAlive() bool {
	return c.alive.Load()
}

// probe 清除存活旗標並送出探測
func (c *Client) probe() error {
	c.alive.Store(false)
	if c.transport == nil {
		return nil
	}
	return c.transport.Ping()
}

// release 只在第一次呼叫時回傳 true，用於斷線清理去重
func (c *Client) release() bool {
	first := false
	c.releaseOnce.Do(func() { first = true })
	return first
}

// SetProfile 設定顯示名稱與難度
func (c *Client) SetProfile(name, difficulty string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.difficulty = difficulty
}

// SetName 只更新顯示名稱
func (c *Client) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// Name 顯示名稱
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Difficulty 宣告的難度
func (c *Client) Difficulty() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.difficulty
}

// SetRoom 設定房間歸屬
func (c *Client) SetRoom(roomID string, playerNumber int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.playerNumber = playerNumber
}

// ClearRoom 清除房間歸屬
func (c *Client) ClearRoom() {
	c.SetRoom("", 0)
}

// Room 房間歸屬（roomID 為空表示未加入房間）
func (c *Client) Room() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.playerNumber
}

// Registry 連接註冊表
type Registry struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewRegistry 創建連接註冊表
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register 分配 ID 並發送 connected 確認
func (r *Registry) Register(c *Client) string {
	c.id = uuid.NewString()

	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()

	if err := c.Send(ConnectedMessage{Type: TypeConnected, ClientID: c.id}); err != nil {
		r.logger.Warn("發送連接確認失敗", "client_id", c.id, "error", err)
	}

	r.logger.Info("客戶端已連接", "client_id", c.id)
	return c.id
}

// Unregister 移除連接（不存在時忽略）
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, exists := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()

	if exists {
		r.logger.Info("客戶端已斷開", "client_id", id)
	}
}

// Get 依 ID 查詢連接
func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Snapshot 目前所有連接的快照
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Count 連接數量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

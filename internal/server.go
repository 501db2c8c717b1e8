package internal

import (
	"log/slog"
	"sync"
)

// Server 會話伺服器的全部狀態
//
// 連接表、配對佇列與房間表都由 Server 擁有，隨 Server 建立與關閉。
type Server struct {
	Registry *Registry
	Queue    *MatchQueue
	Rooms    *RoomManager
	Router   *Router

	heartbeat *HeartbeatMonitor
	publisher EventPublisher
	opts      Options
	logger    *slog.Logger

	shutdownOnce sync.Once
}

// NewServer 組裝各元件
func NewServer(opts Options, publisher EventPublisher, logger *slog.Logger) *Server {
	opts = opts.withDefaults()
	if publisher == nil {
		publisher = NopPublisher{}
	}

	registry := NewRegistry(logger)
	rooms := NewRoomManager(opts, logger)
	queue := NewMatchQueue(rooms, publisher, logger)
	router := NewRouter(queue, rooms, publisher, logger)

	s := &Server{
		Registry:  registry,
		Queue:     queue,
		Rooms:     rooms,
		Router:    router,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
	s.heartbeat = NewHeartbeatMonitor(registry, opts.HeartbeatInterval, s.Disconnect, logger)
	return s
}

// Start 啟動存活檢測
func (s *Server) Start() {
	s.heartbeat.Start()
	s.logger.Info("會話伺服器已啟動", "heartbeat_interval", s.opts.HeartbeatInterval)
}

// Heartbeat 存活檢測器
func (s *Server) Heartbeat() *HeartbeatMonitor {
	return s.heartbeat
}

// Connect 註冊新連接並發送 connected 確認
func (s *Server) Connect(transport Transport) *Client {
	c := NewClient(transport, s.opts.SendBuffer)
	s.Registry.Register(c)
	return c
}

// Disconnect 連接關閉後的清理（冪等）
func (s *Server) Disconnect(c *Client) {
	if !c.release() {
		return
	}
	s.Router.HandleDisconnect(c)
	s.Registry.Unregister(c.ID())
	c.Close()
}

// Stats 運行統計
func (s *Server) Stats() map[string]any {
	return map[string]any{
		"connections":       s.Registry.Count(),
		"waiting":           s.Queue.Len(),
		"rooms":             s.Rooms.Count(),
		"rooms_by_phase":    s.Rooms.Stats(),
		"pending_teardowns": s.Rooms.PendingTeardowns(),
	}
}

// Shutdown 停止計時器、斷開所有連接並關閉事件發布
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.heartbeat.Stop()
		s.Rooms.Stop()

		for _, c := range s.Registry.Snapshot() {
			c.Terminate()
		}

		if err := s.publisher.Close(); err != nil {
			s.logger.Error("關閉事件發布失敗", "error", err)
		}
		s.logger.Info("會話伺服器已關閉")
	})
}

package internal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoomManager 房間表
//
// 擁有所有進行中的房間與延遲銷毀計時器，隨伺服器生命週期建立與停止。
type RoomManager struct {
	rooms    map[string]*GameRoom
	teardown map[string]*time.Timer // roomID -> 延遲銷毀計時器
	mu       sync.RWMutex
	opts     Options
	logger   *slog.Logger
	stopped  bool
}

// NewRoomManager 創建房間表
func NewRoomManager(opts Options, logger *slog.Logger) *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]*GameRoom),
		teardown: make(map[string]*time.Timer),
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// CreateRoom 為一組配對創建房間並設定雙方的房間歸屬
func (m *RoomManager) CreateRoom(difficulty string, player1, player2 *Client) (*GameRoom, error) {
	if player1 == nil || player2 == nil || player1 == player2 {
		return nil, fmt.Errorf("房間需要兩個不同的玩家")
	}

	roomID := uuid.NewString()
	room := NewGameRoom(roomID, difficulty, player1, player2, m.opts, m.logger)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, fmt.Errorf("房間管理器已停止")
	}
	m.rooms[roomID] = room
	m.mu.Unlock()

	player1.SetRoom(roomID, 1)
	player2.SetRoom(roomID, 2)

	m.logger.Info("房間已創建",
		"room_id", roomID,
		"difficulty", difficulty,
		"player1", player1.ID(),
		"player2", player2.ID())

	return room, nil
}

// GetRoom 獲取房間
func (m *RoomManager) GetRoom(roomID string) (*GameRoom, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// RemoveRoom 立即移除房間，並取消尚未觸發的延遲銷毀
func (m *RoomManager) RemoveRoom(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.teardown[roomID]; ok {
		t.Stop()
		delete(m.teardown, roomID)
	}

	if _, ok := m.rooms[roomID]; !ok {
		return false
	}
	delete(m.rooms, roomID)
	m.logger.Info("房間已移除", "room_id", roomID)
	return true
}

// ScheduleRemoval 在 TeardownDelay 後移除房間
//
// 重複排程只保留第一個計時器；Stop 會取消所有未觸發的計時器。
func (m *RoomManager) ScheduleRemoval(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if _, ok := m.rooms[roomID]; !ok {
		return
	}
	if _, ok := m.teardown[roomID]; ok {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(m.opts.TeardownDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		// 計時器已被取消或取代
		if m.teardown[roomID] != timer {
			return
		}
		delete(m.teardown, roomID)
		delete(m.rooms, roomID)
		m.logger.Info("比賽結束後房間已清理", "room_id", roomID)
	})
	m.teardown[roomID] = timer
}

// PendingTeardowns 尚未觸發的延遲銷毀數量
func (m *RoomManager) PendingTeardowns() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.teardown)
}

// Count 房間數量
func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Stats 依階段統計房間
func (m *RoomManager) Stats() map[Phase]int {
	m.mu.RLock()
	rooms := make([]*GameRoom, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.RUnlock()

	byPhase := make(map[Phase]int)
	for _, room := range rooms {
		byPhase[room.Phase()]++
	}
	return byPhase
}

// Stop 取消所有延遲銷毀並清空房間表
func (m *RoomManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.stopped = true

	for roomID, t := range m.teardown {
		t.Stop()
		delete(m.teardown, roomID)
	}
	m.rooms = make(map[string]*GameRoom)

	m.logger.Info("房間管理器已停止")
}

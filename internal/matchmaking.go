package internal

import (
	"log/slog"
	"sync"
	"time"
)

// 配對預設值
const (
	DefaultPlayerName = "Player"
	DefaultDifficulty = "medium"
)

// waitingEntry 等待配對的連接
type waitingEntry struct {
	client     *Client
	difficulty string
	enqueuedAt time.Time
}

// MatchQueue 配對佇列
//
// 同難度嚴格先進先出：最早加入的相容玩家優先配對。
type MatchQueue struct {
	waiting   []waitingEntry
	mu        sync.Mutex
	rooms     *RoomManager
	publisher EventPublisher
	logger    *slog.Logger
}

// NewMatchQueue 創建配對佇列
func NewMatchQueue(rooms *RoomManager, publisher EventPublisher, logger *slog.Logger) *MatchQueue {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &MatchQueue{
		rooms:     rooms,
		publisher: publisher,
		logger:    logger,
	}
}

// Enqueue 請求配對
//
// 先移除同一連接的舊紀錄，再依序尋找難度相同且仍在線的玩家。
// 找到則建立房間（請求者 1 號位、對手 2 號位）並通知雙方；否則加入佇列。
func (q *MatchQueue) Enqueue(c *Client, playerName, difficulty string) (*GameRoom, error) {
	if playerName == "" {
		playerName = DefaultPlayerName
	}
	if difficulty == "" {
		difficulty = DefaultDifficulty
	}
	c.SetProfile(playerName, difficulty)

	q.mu.Lock()
	q.removeLocked(c)

	var opponent *Client
	kept := q.waiting[:0]
	for _, entry := range q.waiting {
		// 順便清掉已斷線的紀錄
		if !entry.client.IsOpen() {
			continue
		}
		if opponent == nil && entry.difficulty == difficulty && entry.client != c {
			opponent = entry.client
			continue
		}
		kept = append(kept, entry)
	}
	q.waiting = kept

	if opponent == nil {
		q.waiting = append(q.waiting, waitingEntry{
			client:     c,
			difficulty: difficulty,
			enqueuedAt: time.Now(),
		})
		waiting := len(q.waiting)
		q.mu.Unlock()

		q.logger.Info("加入配對佇列",
			"client_id", c.ID(),
			"player_name", playerName,
			"difficulty", difficulty,
			"waiting", waiting)

		if err := c.Send(SearchingMessage{Type: TypeSearchingForMatch}); err != nil {
			q.logger.Warn("發送配對中訊息失敗", "client_id", c.ID(), "error", err)
		}
		return nil, nil
	}

	// 建房與設定歸屬需在佇列鎖內完成（斷線清理先 Dequeue 再查房間）
	room, err := q.rooms.CreateRoom(difficulty, c, opponent)
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}

	state := room.State()
	q.notifyMatch(c, room.ID, 1, opponent.Name(), state)
	q.notifyMatch(opponent, room.ID, 2, playerName, state)

	if err := q.publisher.Publish(EventMatchCreated, MatchCreated{
		RoomID:     room.ID,
		Difficulty: difficulty,
		Player1:    playerName,
		Player2:    opponent.Name(),
		CreatedAt:  room.CreatedAt,
	}); err != nil {
		q.logger.Warn("發布配對事件失敗", "room_id", room.ID, "error", err)
	}

	return room, nil
}

// Dequeue 移除某連接的等待紀錄（冪等）
func (q *MatchQueue) Dequeue(c *Client) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(c)
}

// Len 等待中的連接數
func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Contains 某連接是否在佇列中
func (q *MatchQueue) Contains(c *Client) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.waiting {
		if entry.client == c {
			return true
		}
	}
	return false
}

func (q *MatchQueue) removeLocked(c *Client) bool {
	for i, entry := range q.waiting {
		if entry.client == c {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.logger.Debug("移出配對佇列", "client_id", c.ID())
			return true
		}
	}
	return false
}

func (q *MatchQueue) notifyMatch(c *Client, roomID string, playerNumber int, opponentName string, state GameState) {
	err := c.Send(MatchFoundMessage{
		Type:         TypeMatchFound,
		RoomID:       roomID,
		PlayerNumber: playerNumber,
		OpponentName: opponentName,
		GameState:    state,
	})
	if err != nil {
		q.logger.Warn("發送配對成功訊息失敗", "client_id", c.ID(), "room_id", roomID, "error", err)
	}
}

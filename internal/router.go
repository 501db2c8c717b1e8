package internal

import (
	"errors"
	"log/slog"
	"time"
)

// Router 訊息分派
//
// 依訊息類型與發送者目前的房間歸屬，交給配對佇列或對應房間處理。
// 同一連接的訊息由其讀取迴圈依序呼叫 Dispatch。
type Router struct {
	queue     *MatchQueue
	rooms     *RoomManager
	publisher EventPublisher
	logger    *slog.Logger
}

// NewRouter 創建訊息分派器
func NewRouter(queue *MatchQueue, rooms *RoomManager, publisher EventPublisher, logger *slog.Logger) *Router {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Router{
		queue:     queue,
		rooms:     rooms,
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch 解析並處理一則原始訊息
//
// 所有錯誤都在此處理：失效引用回覆 error 訊息，其餘只記錄日誌。
func (rt *Router) Dispatch(c *Client, raw []byte) {
	msg, err := DecodeMessage(raw)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			rt.logger.Info("未知訊息類型", "client_id", c.ID(), "error", err)
		} else {
			rt.logger.Warn("解析訊息失敗", "client_id", c.ID(), "error", err, "raw", string(raw))
		}
		return
	}

	rt.logger.Debug("收到訊息", "client_id", c.ID(), "type", msg.MessageType())

	if err := rt.handle(c, msg); err != nil {
		rt.handleError(c, msg, err)
	}
}

func (rt *Router) handle(c *Client, msg Inbound) error {
	switch m := msg.(type) {
	case FindMatch:
		rt.leaveOther(c, "", "rematch")
		_, err := rt.queue.Enqueue(c, m.PlayerName, m.Difficulty)
		return err
	case RestoreRoom:
		return rt.restoreRoom(c, m)
	case CancelMatchmaking:
		rt.queue.Dequeue(c)
		return nil
	case PaddleMoveMsg:
		room, slot, err := rt.roomOf(c)
		if err != nil {
			return err
		}
		return room.PaddleMove(slot, m.Paddle)
	case ServeMsg:
		room, slot, err := rt.roomOf(c)
		if err != nil {
			return err
		}
		return room.Serve(slot, m.Ball)
	case BallUpdateMsg:
		room, slot, err := rt.roomOf(c)
		if err != nil {
			return err
		}
		_, err = room.BallUpdate(slot, m.Ball)
		return err
	case ScoreMsg:
		return rt.score(c, m)
	case PlayerReady:
		return rt.playerReady(c, m)
	case LeaveGame:
		rt.Leave(c, "left")
		return nil
	case Ping:
		c.MarkAlive()
		return c.Send(PongMessage{Type: TypePong})
	}
	return ErrUnknownType
}

func (rt *Router) handleError(c *Client, msg Inbound, err error) {
	if !IsStaleReference(err) {
		rt.logger.Debug("訊息已忽略",
			"client_id", c.ID(),
			"type", msg.MessageType(),
			"error", err)
		return
	}

	rt.logger.Warn("失效的房間引用",
		"client_id", c.ID(),
		"type", msg.MessageType(),
		"error", err)

	if sendErr := c.Send(ErrorMessage{Type: TypeError, Message: clientMessage(err)}); sendErr != nil {
		rt.logger.Warn("發送錯誤訊息失敗", "client_id", c.ID(), "error", sendErr)
	}
}

// roomOf 解析連接目前所在的房間
//
// 位置已被其他連接接手時，視同房間不存在。
func (rt *Router) roomOf(c *Client) (*GameRoom, int, error) {
	roomID, slot := c.Room()
	if roomID == "" {
		return nil, 0, ErrNoRoom
	}
	room, ok := rt.rooms.GetRoom(roomID)
	if !ok || room.Player(slot) != c {
		return nil, 0, ErrRoomNotFound
	}
	return room, slot, nil
}

// leaveOther 連接仍屬於 keepRoomID 以外的房間時先離開該房間
func (rt *Router) leaveOther(c *Client, keepRoomID, reason string) {
	roomID, _ := c.Room()
	if roomID == "" || roomID == keepRoomID {
		return
	}
	rt.Leave(c, reason)
}

// rebind 驗證房間與位置後，將連接綁定到該位置
func (rt *Router) rebind(c *Client, roomID string, slot int) (*GameRoom, error) {
	room, ok := rt.rooms.GetRoom(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !validSlot(slot) {
		return nil, ErrInvalidPlayer
	}

	rt.queue.Dequeue(c)
	rt.leaveOther(c, room.ID, "rebind")
	c.SetRoom(room.ID, slot)
	if err := room.Attach(slot, c); err != nil {
		return nil, err
	}
	return room, nil
}

func (rt *Router) restoreRoom(c *Client, m RestoreRoom) error {
	room, ok := rt.rooms.GetRoom(m.RoomID)
	if !ok {
		return ErrRoomGone
	}
	if !validSlot(m.PlayerNumber) {
		return ErrInvalidPlayer
	}

	name := m.PlayerName
	if name == "" {
		name = DefaultPlayerName
	}

	rt.queue.Dequeue(c)
	rt.leaveOther(c, room.ID, "rematch")
	c.SetName(name)
	c.SetRoom(room.ID, m.PlayerNumber)
	return room.Restore(m.PlayerNumber, c)
}

func (rt *Router) playerReady(c *Client, m PlayerReady) error {
	// 訊息自帶房間資訊時以其為準（重新載入頁面後的重連路徑）
	if m.RoomID != "" && m.PlayerNumber != 0 {
		room, err := rt.rebind(c, m.RoomID, m.PlayerNumber)
		if err != nil {
			return err
		}
		_, err = room.Ready(m.PlayerNumber)
		return err
	}

	room, slot, err := rt.roomOf(c)
	if err != nil {
		return err
	}
	_, err = room.Ready(slot)
	return err
}

func (rt *Router) score(c *Client, m ScoreMsg) error {
	room, slot, err := rt.roomOf(c)
	if err != nil {
		return err
	}

	winner, finished, err := room.Score(slot, m.Scores, m.CurrentServer)
	if err != nil || !finished {
		return err
	}

	rt.rooms.ScheduleRemoval(room.ID)

	if err := rt.publisher.Publish(EventMatchFinished, MatchFinished{
		RoomID:     room.ID,
		Winner:     winner,
		Scores:     m.Scores,
		FinishedAt: time.Now(),
	}); err != nil {
		rt.logger.Warn("發布比賽結束事件失敗", "room_id", room.ID, "error", err)
	}
	return nil
}

// Leave 離開目前的房間
//
// 只有仍佔用該位置的連接才會解散房間；位置已被重連取代的舊連接只清除自己的歸屬。
func (rt *Router) Leave(c *Client, reason string) {
	roomID, slot := c.Room()
	if roomID == "" {
		return
	}
	c.ClearRoom()

	room, ok := rt.rooms.GetRoom(roomID)
	if !ok {
		return
	}
	if room.Player(slot) != c {
		rt.logger.Info("舊連接離開，位置已由新連接接手",
			"client_id", c.ID(),
			"room_id", roomID,
			"player_number", slot)
		return
	}

	// 已分出勝負的房間只提前銷毀，不算中途解散
	finished := room.Phase() == PhaseFinished
	room.Disconnect(slot)
	if !rt.rooms.RemoveRoom(roomID) || finished {
		return
	}

	if err := rt.publisher.Publish(EventMatchAbandoned, MatchAbandoned{
		RoomID: roomID,
		Reason: reason,
		At:     time.Now(),
	}); err != nil {
		rt.logger.Warn("發布房間解散事件失敗", "room_id", roomID, "error", err)
	}
}

// HandleDisconnect 連接關閉：移出配對佇列並離開房間
func (rt *Router) HandleDisconnect(c *Client) {
	rt.queue.Dequeue(c)
	rt.Leave(c, "disconnected")
}

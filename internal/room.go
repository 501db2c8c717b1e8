package internal

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Phase 房間階段
//
// 有限狀態機：
//
//	forming → serving ⇄ rallying → finished
//
// 得分後回到 serving，分出勝負則進入 finished（終態）。
type Phase string

const (
	PhaseForming  Phase = "forming"  // 等待雙方準備
	PhaseServing  Phase = "serving"  // 等待發球
	PhaseRallying Phase = "rallying" // 球在場上
	PhaseFinished Phase = "finished" // 已分出勝負，等待銷毀
)

// PlayersPerRoom 每間房固定兩個位置
const PlayersPerRoom = 2

// GameRoom 一場雙人比賽
//
// 房間內所有狀態都由 mu 保護，狀態變更與對應的廣播在同一把鎖內完成。
type GameRoom struct {
	ID         string
	Difficulty string
	CreatedAt  time.Time

	mu         sync.Mutex
	slots      [PlayersPerRoom]*Client
	state      GameState
	ready      [PlayersPerRoom]bool
	started    bool
	phase      Phase
	closed     bool
	lastSpeedX float64

	ballLimiter *rate.Limiter
	now         func() time.Time
	logger      *slog.Logger
}

// NewGameRoom 創建房間，player1 佔 1 號位，player2 佔 2 號位
func NewGameRoom(id, difficulty string, player1, player2 *Client, opts Options, logger *slog.Logger) *GameRoom {
	opts = opts.withDefaults()
	now := opts.Clock
	return &GameRoom{
		ID:          id,
		Difficulty:  difficulty,
		CreatedAt:   now(),
		slots:       [PlayersPerRoom]*Client{player1, player2},
		state:       NewGameState(),
		phase:       PhaseForming,
		ballLimiter: rate.NewLimiter(rate.Every(opts.BallUpdateFloor), 1),
		now:         now,
		logger:      logger.With("room_id", id),
	}
}

// Ready 標記某位置已準備
//
// 同一位置重複準備不會改變計數。雙方都準備後進入 serving，
// 並分別向兩個位置發送 gameStart。回傳值表示本次呼叫是否觸發開局。
func (r *GameRoom) Ready(slot int) (bool, error) {
	if !validSlot(slot) {
		return false, ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return false, ErrRoomFinished
	}
	if r.started {
		r.logger.Debug("比賽已開始，忽略準備", "player_number", slot)
		return false, nil
	}
	if r.ready[slot-1] {
		r.logger.Debug("重複準備", "player_number", slot)
		return false, nil
	}

	r.ready[slot-1] = true
	count := r.readyCountLocked()
	r.logger.Info("玩家已準備", "player_number", slot, "ready_count", count)

	r.sendToLocked(slot, ReadyConfirmedMessage{Type: TypeReadyConfirmed})
	r.broadcastLocked(ReadyStatusMessage{
		Type:         TypePlayerReadyStatus,
		ReadyCount:   count,
		TotalPlayers: PlayersPerRoom,
	}, 0)

	if count < PlayersPerRoom {
		return false, nil
	}

	r.started = true
	r.phase = PhaseServing
	r.state.GameActive = true
	r.state.IsServing = true
	r.state.CurrentServer = SidePlayer1

	start := GameStartMessage{Type: TypeGameStart, GameState: r.state.clone()}
	for s := 1; s <= PlayersPerRoom; s++ {
		r.sendToLocked(s, start)
	}
	r.logger.Info("比賽開始")
	return true, nil
}

// Serve 發球
//
// 不檢查發球方是否為 currentServer，任一方的發球都會被接受。
func (r *GameRoom) Serve(slot int, ball Ball) error {
	if !validSlot(slot) {
		return ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return ErrRoomFinished
	}

	r.state.Ball = ball
	r.state.IsServing = false
	r.state.RallyCount = 0
	r.lastSpeedX = ball.SpeedX
	if r.started {
		r.phase = PhaseRallying
	}

	r.logger.Debug("發球", "player_number", slot)
	r.broadcastLocked(ServeExecutedMessage{Type: TypeServeExecuted, Ball: ball, Server: slot}, slot)
	return nil
}

// PaddleMove 記錄球拍位置並轉發給對手
func (r *GameRoom) PaddleMove(slot int, paddle Paddle) error {
	if !validSlot(slot) {
		return ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return ErrRoomFinished
	}

	r.state.setPaddle(slot, paddle)
	r.broadcastLocked(OpponentPaddleMessage{
		Type:         TypeOpponentPaddleMove,
		Paddle:       paddle,
		PlayerNumber: slot,
	}, slot)
	return nil
}

// BallUpdate 同步球的位置
//
// 距離上次接受的更新不足 BallUpdateFloor 時直接丟棄（回傳 false），不排隊也不報錯。
func (r *GameRoom) BallUpdate(slot int, ball Ball) (bool, error) {
	if !validSlot(slot) {
		return false, ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return false, ErrRoomFinished
	}

	now := r.now()
	if !r.ballLimiter.AllowN(now, 1) {
		return false, nil
	}

	// 水平速度換向視為一次擊球
	if r.lastSpeedX*ball.SpeedX < 0 {
		r.state.RallyCount++
	}
	r.lastSpeedX = ball.SpeedX
	r.state.Ball = ball

	r.broadcastLocked(BallSyncMessage{
		Type:      TypeBallSync,
		Ball:      ball,
		Timestamp: now.UnixMilli(),
	}, slot)
	return true, nil
}

// Score 記錄比分並判斷勝負
//
// 分出勝負時廣播 gameOver 並回傳勝方；否則廣播 scoreUpdate。
func (r *GameRoom) Score(slot int, scores Scores, currentServer Side) (Side, bool, error) {
	if !validSlot(slot) {
		return "", false, ErrInvalidPlayer
	}
	if scores.Player1 < 0 || scores.Player2 < 0 {
		return "", false, newError(ErrCodeInvalidMessage, "negative score")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == PhaseFinished {
		return "", false, ErrRoomFinished
	}

	r.state.Scores = scores
	if currentServer.Valid() {
		r.state.CurrentServer = currentServer
	}
	r.state.IsServing = true
	r.state.RallyCount = 0
	r.lastSpeedX = 0
	if r.started {
		r.phase = PhaseServing
	}

	r.logger.Info("比分更新",
		"player1", scores.Player1,
		"player2", scores.Player2,
		"scorer", slot)

	winner, ok := CheckWinner(scores)
	if !ok {
		r.broadcastLocked(ScoreUpdateMessage{
			Type:          TypeScoreUpdate,
			Scores:        scores,
			CurrentServer: r.state.CurrentServer,
			Scorer:        slot,
		}, 0)
		return "", false, nil
	}

	r.state.Winner = &winner
	r.state.GameActive = false
	r.phase = PhaseFinished
	r.logger.Info("比賽結束", "winner", winner)

	r.broadcastLocked(GameOverMessage{Type: TypeGameOver, Winner: winner, Scores: scores}, 0)
	return winner, true, nil
}

// Disconnect 通知另一方對手離線，並標記房間關閉
//
// 呼叫端負責把房間從房間表移除。
func (r *GameRoom) Disconnect(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for s := 1; s <= PlayersPerRoom; s++ {
		if s == slot {
			continue
		}
		if c := r.slots[s-1]; c != nil && c.IsOpen() {
			r.sendToLocked(s, OpponentDisconnectedMessage{Type: TypeOpponentDisconnected})
		}
	}
	r.logger.Info("玩家離開房間", "player_number", slot)
}

// Attach 以新連接取代某位置的佔用者，不改變比賽狀態
func (r *GameRoom) Attach(slot int, c *Client) error {
	if !validSlot(slot) {
		return ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[slot-1] = c
	return nil
}

// Restore 重連：綁定位置並回覆目前比賽狀態
func (r *GameRoom) Restore(slot int, c *Client) error {
	if !validSlot(slot) {
		return ErrInvalidPlayer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots[slot-1] = c
	r.logger.Info("房間已恢復", "player_number", slot, "client_id", c.ID())

	r.sendToLocked(slot, RoomRestoredMessage{
		Type:         TypeRoomRestored,
		RoomID:       r.ID,
		PlayerNumber: slot,
		GameState:    r.state.clone(),
	})
	return nil
}

// State 比賽狀態快照
func (r *GameRoom) State() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.clone()
}

// Phase 目前階段
func (r *GameRoom) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Started 是否已開局
func (r *GameRoom) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// ReadyCount 已準備的位置數
func (r *GameRoom) ReadyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.readyCountLocked()
}

// Player 某位置目前的連接
func (r *GameRoom) Player(slot int) *Client {
	if !validSlot(slot) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[slot-1]
}

func (r *GameRoom) readyCountLocked() int {
	n := 0
	for _, ok := range r.ready {
		if ok {
			n++
		}
	}
	return n
}

// sendToLocked 發送給某位置，失敗只記錄日誌（需持有鎖）
func (r *GameRoom) sendToLocked(slot int, msg any) {
	c := r.slots[slot-1]
	if c == nil {
		return
	}
	if err := c.Send(msg); err != nil {
		r.logger.Warn("發送訊息失敗",
			"player_number", slot,
			"client_id", c.ID(),
			"error", err)
	}
}

// broadcastLocked 廣播給除 exclude 以外的位置（exclude 為 0 表示全部）
func (r *GameRoom) broadcastLocked(msg any, exclude int) {
	for s := 1; s <= PlayersPerRoom; s++ {
		if s == exclude {
			continue
		}
		r.sendToLocked(s, msg)
	}
}

func validSlot(slot int) bool {
	return slot >= 1 && slot <= PlayersPerRoom
}

package internal_test

import (
	"testing"
	"time"

	"github.com/sempressimo2/power-pickleball/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(clock *fakeClock) (*internal.GameRoom, *internal.Client, *internal.Client) {
	p1 := newTestClient()
	p2 := newTestClient()
	room := internal.NewGameRoom("room-1", "medium", p1, p2, testOptions(clock), testLogger())
	return room, p1, p2
}

// startedRoom 雙方都已準備的房間，佇列已清空
func startedRoom(t *testing.T, clock *fakeClock) (*internal.GameRoom, *internal.Client, *internal.Client) {
	t.Helper()
	room, p1, p2 := newTestRoom(clock)
	_, err := room.Ready(1)
	require.NoError(t, err)
	started, err := room.Ready(2)
	require.NoError(t, err)
	require.True(t, started)
	drain(p1)
	drain(p2)
	return room, p1, p2
}

// TestGameRoom_Ready 測試準備流程
func TestGameRoom_Ready(t *testing.T) {
	room, p1, p2 := newTestRoom(nil)
	assert.Equal(t, internal.PhaseForming, room.Phase())

	started, err := room.Ready(1)
	require.NoError(t, err)
	assert.False(t, started)

	expectType(t, p1, internal.TypeReadyConfirmed)
	status := expectType(t, p1, internal.TypePlayerReadyStatus)
	assert.Equal(t, float64(1), status["readyCount"])
	assert.Equal(t, float64(2), status["totalPlayers"])
	expectType(t, p2, internal.TypePlayerReadyStatus)

	// 重複準備不改變計數也不重複確認
	started, err = room.Ready(1)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, 1, room.ReadyCount())
	expectNoMessage(t, p1)
	expectNoMessage(t, p2)

	started, err = room.Ready(2)
	require.NoError(t, err)
	assert.True(t, started)

	expectType(t, p2, internal.TypeReadyConfirmed)
	status = expectType(t, p2, internal.TypePlayerReadyStatus)
	assert.Equal(t, float64(2), status["readyCount"])
	start := expectType(t, p2, internal.TypeGameStart)
	gs := start["gameState"].(map[string]any)
	assert.Equal(t, true, gs["gameActive"])

	expectType(t, p1, internal.TypePlayerReadyStatus)
	expectType(t, p1, internal.TypeGameStart)

	assert.True(t, room.Started())
	assert.Equal(t, internal.PhaseServing, room.Phase())

	// 開局後再準備不會再次開局
	started, err = room.Ready(1)
	require.NoError(t, err)
	assert.False(t, started)
	expectNoMessage(t, p1)
	expectNoMessage(t, p2)
}

// TestGameRoom_Ready_Order 測試準備順序不影響開局
func TestGameRoom_Ready_Order(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{"1 號位先", []int{1, 2}},
		{"2 號位先", []int{2, 1}},
		{"重複後完成", []int{2, 2, 2, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, p1, _ := newTestRoom(nil)

			starts := 0
			for _, slot := range tt.order {
				started, err := room.Ready(slot)
				require.NoError(t, err)
				if started {
					starts++
				}
			}
			assert.Equal(t, 1, starts)

			assert.Equal(t, 1, countType(t, p1, internal.TypeGameStart))
		})
	}
}

// TestGameRoom_InvalidSlot 測試無效位置
func TestGameRoom_InvalidSlot(t *testing.T) {
	room, _, _ := newTestRoom(nil)

	_, err := room.Ready(3)
	assert.ErrorIs(t, err, internal.ErrInvalidPlayer)
	assert.ErrorIs(t, room.PaddleMove(0, internal.Paddle{}), internal.ErrInvalidPlayer)
	assert.ErrorIs(t, room.Serve(-1, internal.Ball{}), internal.ErrInvalidPlayer)
	_, err = room.BallUpdate(5, internal.Ball{})
	assert.ErrorIs(t, err, internal.ErrInvalidPlayer)
}

// TestGameRoom_Relay 測試發球與球拍只轉發給對手
func TestGameRoom_Relay(t *testing.T) {
	room, p1, p2 := startedRoom(t, nil)

	ball := internal.Ball{X: 120, Y: 300, SpeedX: 8, SpeedY: -2}
	require.NoError(t, room.Serve(1, ball))

	msg := expectType(t, p2, internal.TypeServeExecuted)
	assert.Equal(t, float64(1), msg["server"])
	assert.Equal(t, float64(8), msg["ball"].(map[string]any)["speedX"])
	expectNoMessage(t, p1)
	assert.Equal(t, internal.PhaseRallying, room.Phase())
	assert.False(t, room.State().IsServing)

	require.NoError(t, room.PaddleMove(2, internal.Paddle{X: 1085, Y: 120}))
	msg = expectType(t, p1, internal.TypeOpponentPaddleMove)
	assert.Equal(t, float64(2), msg["playerNumber"])
	assert.Equal(t, float64(120), msg["paddle"].(map[string]any)["y"])
	expectNoMessage(t, p2)
	assert.Equal(t, internal.Paddle{X: 1085, Y: 120}, room.State().Paddles.Player2)
}

// TestGameRoom_BallUpdateFloor 測試球位置更新的最小間隔
func TestGameRoom_BallUpdateFloor(t *testing.T) {
	clock := newFakeClock()
	room, p1, p2 := startedRoom(t, clock)

	steps := []struct {
		advance time.Duration
		want    bool
	}{
		{0, true},
		{10 * time.Millisecond, false},
		{10 * time.Millisecond, true},
		{10 * time.Millisecond, false},
		{10 * time.Millisecond, true},
		{15 * time.Millisecond, false},
		{1 * time.Millisecond, true},
	}

	for i, step := range steps {
		clock.Advance(step.advance)
		ball := internal.Ball{X: float64(100 + i), Y: 300, SpeedX: 5}
		accepted, err := room.BallUpdate(1, ball)
		require.NoError(t, err)
		assert.Equal(t, step.want, accepted, "第 %d 次更新", i)

		if step.want {
			msg := expectType(t, p2, internal.TypeBallSync)
			assert.Equal(t, float64(clock.Now().UnixMilli()), msg["timestamp"])
			assert.Equal(t, ball, room.State().Ball)
		} else {
			expectNoMessage(t, p2)
		}
	}
	expectNoMessage(t, p1)
}

// TestGameRoom_RallyCount 測試水平速度換向計為一次擊球
func TestGameRoom_RallyCount(t *testing.T) {
	clock := newFakeClock()
	room, _, _ := startedRoom(t, clock)

	require.NoError(t, room.Serve(1, internal.Ball{X: 120, Y: 300, SpeedX: 6}))

	for _, speedX := range []float64{6, -6, -6, 6} {
		clock.Advance(20 * time.Millisecond)
		accepted, err := room.BallUpdate(1, internal.Ball{SpeedX: speedX})
		require.NoError(t, err)
		require.True(t, accepted)
	}
	assert.Equal(t, 2, room.State().RallyCount)

	_, _, err := room.Score(1, internal.Scores{Player1: 1}, internal.SidePlayer1)
	require.NoError(t, err)
	assert.Zero(t, room.State().RallyCount)
}

// TestGameRoom_Score 測試比分與勝負
func TestGameRoom_Score(t *testing.T) {
	t.Run("score update", func(t *testing.T) {
		room, p1, p2 := startedRoom(t, nil)

		winner, finished, err := room.Score(1, internal.Scores{Player1: 3, Player2: 2}, internal.SidePlayer2)
		require.NoError(t, err)
		assert.False(t, finished)
		assert.Empty(t, winner)

		for _, c := range []*internal.Client{p1, p2} {
			msg := expectType(t, c, internal.TypeScoreUpdate)
			assert.Equal(t, "player2", msg["currentServer"])
			assert.Equal(t, float64(1), msg["scorer"])
		}

		state := room.State()
		assert.Equal(t, internal.SidePlayer2, state.CurrentServer)
		assert.True(t, state.IsServing)
		assert.Equal(t, internal.PhaseServing, room.Phase())
	})

	t.Run("game over", func(t *testing.T) {
		room, p1, p2 := startedRoom(t, nil)

		winner, finished, err := room.Score(2, internal.Scores{Player1: 9, Player2: 11}, internal.SidePlayer1)
		require.NoError(t, err)
		assert.True(t, finished)
		assert.Equal(t, internal.SidePlayer2, winner)

		for _, c := range []*internal.Client{p1, p2} {
			msg := expectType(t, c, internal.TypeGameOver)
			assert.Equal(t, "player2", msg["winner"])
		}

		state := room.State()
		require.NotNil(t, state.Winner)
		assert.Equal(t, internal.SidePlayer2, *state.Winner)
		assert.False(t, state.GameActive)
		assert.Equal(t, internal.PhaseFinished, room.Phase())

		// 結束後拒絕所有變更
		assert.ErrorIs(t, room.PaddleMove(1, internal.Paddle{}), internal.ErrRoomFinished)
		assert.ErrorIs(t, room.Serve(1, internal.Ball{}), internal.ErrRoomFinished)
		_, err = room.BallUpdate(1, internal.Ball{})
		assert.ErrorIs(t, err, internal.ErrRoomFinished)
		_, _, err = room.Score(1, internal.Scores{Player1: 12, Player2: 11}, "")
		assert.ErrorIs(t, err, internal.ErrRoomFinished)
		_, err = room.Ready(1)
		assert.ErrorIs(t, err, internal.ErrRoomFinished)
		expectNoMessage(t, p1)
		expectNoMessage(t, p2)
	})

	t.Run("negative score rejected", func(t *testing.T) {
		room, p1, _ := startedRoom(t, nil)

		_, _, err := room.Score(1, internal.Scores{Player1: -1}, internal.SidePlayer1)
		require.Error(t, err)
		assert.Zero(t, room.State().Scores)
		expectNoMessage(t, p1)
	})
}

// TestGameRoom_Disconnect 測試離線通知
func TestGameRoom_Disconnect(t *testing.T) {
	room, p1, p2 := startedRoom(t, nil)

	room.Disconnect(1)
	expectType(t, p2, internal.TypeOpponentDisconnected)
	expectNoMessage(t, p1)

	// 只通知一次
	room.Disconnect(2)
	expectNoMessage(t, p1)
	expectNoMessage(t, p2)
}

// TestGameRoom_Disconnect_ClosedOpponent 測試對手已關閉時不發送
func TestGameRoom_Disconnect_ClosedOpponent(t *testing.T) {
	room, _, p2 := startedRoom(t, nil)
	p2.Close()

	assert.NotPanics(t, func() { room.Disconnect(1) })
}

// TestGameRoom_Restore 測試重連恢復
func TestGameRoom_Restore(t *testing.T) {
	room, p1, p2 := startedRoom(t, nil)
	_, _, err := room.Score(1, internal.Scores{Player1: 4, Player2: 1}, internal.SidePlayer1)
	require.NoError(t, err)
	drain(p1)
	drain(p2)

	fresh := newTestClient()
	require.NoError(t, room.Restore(1, fresh))
	assert.Same(t, fresh, room.Player(1))

	msg := expectType(t, fresh, internal.TypeRoomRestored)
	assert.Equal(t, "room-1", msg["roomId"])
	assert.Equal(t, float64(1), msg["playerNumber"])
	scores := msg["gameState"].(map[string]any)["scores"].(map[string]any)
	assert.Equal(t, float64(4), scores["player1"])

	// 之後的轉發送往新連接
	require.NoError(t, room.PaddleMove(2, internal.Paddle{X: 1085, Y: 10}))
	expectType(t, fresh, internal.TypeOpponentPaddleMove)
	expectNoMessage(t, p1)

	assert.ErrorIs(t, room.Restore(3, fresh), internal.ErrInvalidPlayer)
}

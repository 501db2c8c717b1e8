package internal

// 比賽規則常數
const (
	WinScore  = 11 // 獲勝最低分
	WinMargin = 2  // 獲勝最低分差
)

// Side 球場一側（序列化為 "player1" / "player2"）
type Side string

const (
	SidePlayer1 Side = "player1"
	SidePlayer2 Side = "player2"
)

// SideOf 將位置編號轉換為球場一側
func SideOf(slot int) Side {
	if slot == 2 {
		return SidePlayer2
	}
	return SidePlayer1
}

// Slot 球場一側對應的位置編號
func (s Side) Slot() int {
	if s == SidePlayer2 {
		return 2
	}
	return 1
}

// Valid 是否為合法的一側
func (s Side) Valid() bool {
	return s == SidePlayer1 || s == SidePlayer2
}

// Ball 球的位置與速度
type Ball struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	SpeedX float64 `json:"speedX"`
	SpeedY float64 `json:"speedY"`
}

// Paddle 球拍位置
type Paddle struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scores 雙方比分
type Scores struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
}

// Paddles 雙方球拍
type Paddles struct {
	Player1 Paddle `json:"player1"`
	Player2 Paddle `json:"player2"`
}

// GameState 一場比賽的共享狀態
//
// 物理模擬在客戶端進行，伺服器只保存最後一次回報的值。
type GameState struct {
	Ball          Ball    `json:"ball"`
	Scores        Scores  `json:"scores"`
	Paddles       Paddles `json:"paddles"`
	CurrentServer Side    `json:"currentServer"`
	IsServing     bool    `json:"isServing"`
	GameActive    bool    `json:"gameActive"`
	Winner        *Side   `json:"winner"`
	RallyCount    int     `json:"rallyCount"`
}

// NewGameState 初始比賽狀態
func NewGameState() GameState {
	return GameState{
		Ball:   Ball{X: 600, Y: 300},
		Scores: Scores{},
		Paddles: Paddles{
			Player1: Paddle{X: 100, Y: 250},
			Player2: Paddle{X: 1085, Y: 250},
		},
		CurrentServer: SidePlayer1,
		IsServing:     true,
	}
}

// clone 複製狀態（Winner 指標需深拷貝）
func (gs GameState) clone() GameState {
	if gs.Winner != nil {
		w := *gs.Winner
		gs.Winner = &w
	}
	return gs
}

// setPaddle 更新某一側的球拍
func (gs *GameState) setPaddle(slot int, p Paddle) {
	if slot == 2 {
		gs.Paddles.Player2 = p
		return
	}
	gs.Paddles.Player1 = p
}

// CheckWinner 判斷比分是否已分出勝負
//
// 一方達到 11 分且領先至少 2 分即獲勝。
func CheckWinner(s Scores) (Side, bool) {
	diff := s.Player1 - s.Player2
	if diff < 0 {
		diff = -diff
	}
	if (s.Player1 < WinScore && s.Player2 < WinScore) || diff < WinMargin {
		return "", false
	}
	if s.Player1 > s.Player2 {
		return SidePlayer1, true
	}
	return SidePlayer2, true
}

package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// 客戶端 → 伺服器訊息類型
const (
	TypeFindMatch         = "findMatch"
	TypeRestoreRoom       = "restoreRoom"
	TypeCancelMatchmaking = "cancelMatchmaking"
	TypePaddleMove        = "paddleMove"
	TypeServe             = "serve"
	TypeBallUpdate        = "ballUpdate"
	TypeScore             = "score"
	TypePlayerReady       = "playerReady"
	TypeLeaveGame         = "leaveGame"
	TypePing              = "ping"
)

// 伺服器 → 客戶端訊息類型
const (
	TypeConnected            = "connected"
	TypeSearchingForMatch    = "searchingForMatch"
	TypeMatchFound           = "matchFound"
	TypeRoomRestored         = "roomRestored"
	TypeReadyConfirmed       = "readyConfirmed"
	TypePlayerReadyStatus    = "playerReadyStatus"
	TypeGameStart            = "gameStart"
	TypeOpponentPaddleMove   = "opponentPaddleMove"
	TypeServeExecuted        = "serveExecuted"
	TypeBallSync             = "ballSync"
	TypeScoreUpdate          = "scoreUpdate"
	TypeGameOver             = "gameOver"
	TypeOpponentDisconnected = "opponentDisconnected"
	TypeError                = "error"
	TypePong                 = "pong"
)

// Inbound 客戶端訊息（封閉集合，只有本檔案中的類型實作）
type Inbound interface {
	MessageType() string
	inbound()
}

// FindMatch 請求配對
type FindMatch struct {
	PlayerName string `json:"playerName"`
	Difficulty string `json:"difficulty"`
}

// RestoreRoom 斷線後重新綁定房間位置
type RestoreRoom struct {
	RoomID       string `json:"roomId"`
	PlayerNumber int    `json:"playerNumber"`
	PlayerName   string `json:"playerName"`
}

// CancelMatchmaking 取消配對
type CancelMatchmaking struct{}

// PaddleMoveMsg 球拍移動
type PaddleMoveMsg struct {
	Paddle Paddle `json:"paddle"`
}

// ServeMsg 發球
type ServeMsg struct {
	Ball Ball `json:"ball"`
}

// BallUpdateMsg 球位置同步
type BallUpdateMsg struct {
	Ball Ball `json:"ball"`
}

// ScoreMsg 得分回報
type ScoreMsg struct {
	Scores        Scores `json:"scores"`
	CurrentServer Side   `json:"currentServer"`
}

// PlayerReady 玩家準備（可附帶房間資訊用於重連）
type PlayerReady struct {
	RoomID       string `json:"roomId,omitempty"`
	PlayerNumber int    `json:"playerNumber,omitempty"`
}

// LeaveGame 離開比賽
type LeaveGame struct{}

// Ping 應用層心跳
type Ping struct{}

func (FindMatch) MessageType() string         { return TypeFindMatch }
func (RestoreRoom) MessageType() string       { return TypeRestoreRoom }
func (CancelMatchmaking) MessageType() string { return TypeCancelMatchmaking }
func (PaddleMoveMsg) MessageType() string     { return TypePaddleMove }
func (ServeMsg) MessageType() string          { return TypeServe }
func (BallUpdateMsg) MessageType() string     { return TypeBallUpdate }
func (ScoreMsg) MessageType() string          { return TypeScore }
func (PlayerReady) MessageType() string       { return TypePlayerReady }
func (LeaveGame) MessageType() string         { return TypeLeaveGame }
func (Ping) MessageType() string              { return TypePing }

func (FindMatch) inbound()         {}
func (RestoreRoom) inbound()       {}
func (CancelMatchmaking) inbound() {}
func (PaddleMoveMsg) inbound()     {}
func (ServeMsg) inbound()          {}
func (BallUpdateMsg) inbound()     {}
func (ScoreMsg) inbound()          {}
func (PlayerReady) inbound()       {}
func (LeaveGame) inbound()         {}
func (Ping) inbound()              {}

// UnmarshalJSON 接受 "player1"/"player2" 或 1/2
//
// 其他數字解析為無效的一側，由呼叫端以 Valid 判斷。
func (s *Side) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Side(str)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid side: %s", data)
	}
	if !validSlot(n) {
		*s = ""
		return nil
	}
	*s = SideOf(n)
	return nil
}

// DecodeMessage 將原始位元組解析為對應的訊息類型
func DecodeMessage(raw []byte) (Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, wrapError(err, ErrCodeInvalidMessage, "invalid message")
	}

	var msg Inbound
	switch envelope.Type {
	case TypeFindMatch:
		msg = &FindMatch{}
	case TypeRestoreRoom:
		msg = &RestoreRoom{}
	case TypeCancelMatchmaking:
		return CancelMatchmaking{}, nil
	case TypePaddleMove:
		msg = &PaddleMoveMsg{}
	case TypeServe:
		msg = &ServeMsg{}
	case TypeBallUpdate:
		msg = &BallUpdateMsg{}
	case TypeScore:
		msg = &ScoreMsg{}
	case TypePlayerReady:
		msg = &PlayerReady{}
	case TypeLeaveGame:
		return LeaveGame{}, nil
	case TypePing:
		return Ping{}, nil
	case "":
		return nil, newError(ErrCodeInvalidMessage, "missing type")
	default:
		return nil, wrapError(fmt.Errorf("type %q", envelope.Type), ErrCodeUnknownType, "unknown message type")
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, wrapError(err, ErrCodeInvalidMessage, "invalid "+envelope.Type+" payload")
	}
	return deref(msg), nil
}

// deref 統一回傳值類型，方便呼叫端 type switch
func deref(msg Inbound) Inbound {
	switch m := msg.(type) {
	case *FindMatch:
		return *m
	case *RestoreRoom:
		return *m
	case *PaddleMoveMsg:
		return *m
	case *ServeMsg:
		return *m
	case *BallUpdateMsg:
		return *m
	case *ScoreMsg:
		return *m
	case *PlayerReady:
		return *m
	}
	return msg
}

// 伺服器 → 客戶端訊息

type ConnectedMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

type SearchingMessage struct {
	Type string `json:"type"`
}

type MatchFoundMessage struct {
	Type         string    `json:"type"`
	RoomID       string    `json:"roomId"`
	PlayerNumber int       `json:"playerNumber"`
	OpponentName string    `json:"opponentName"`
	GameState    GameState `json:"gameState"`
}

type RoomRestoredMessage struct {
	Type         string    `json:"type"`
	RoomID       string    `json:"roomId"`
	PlayerNumber int       `json:"playerNumber"`
	GameState    GameState `json:"gameState"`
}

type ReadyConfirmedMessage struct {
	Type string `json:"type"`
}

type ReadyStatusMessage struct {
	Type         string `json:"type"`
	ReadyCount   int    `json:"readyCount"`
	TotalPlayers int    `json:"totalPlayers"`
}

type GameStartMessage struct {
	Type      string    `json:"type"`
	GameState GameState `json:"gameState"`
}

type OpponentPaddleMessage struct {
	Type         string `json:"type"`
	Paddle       Paddle `json:"paddle"`
	PlayerNumber int    `json:"playerNumber"`
}

type ServeExecutedMessage struct {
	Type   string `json:"type"`
	Ball   Ball   `json:"ball"`
	Server int    `json:"server"`
}

type BallSyncMessage struct {
	Type      string `json:"type"`
	Ball      Ball   `json:"ball"`
	Timestamp int64  `json:"timestamp"`
}

type ScoreUpdateMessage struct {
	Type          string `json:"type"`
	Scores        Scores `json:"scores"`
	CurrentServer Side   `json:"currentServer"`
	Scorer        int    `json:"scorer"`
}

type GameOverMessage struct {
	Type   string `json:"type"`
	Winner Side   `json:"winner"`
	Scores Scores `json:"scores"`
}

type OpponentDisconnectedMessage struct {
	Type string `json:"type"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PongMessage struct {
	Type string `json:"type"`
}

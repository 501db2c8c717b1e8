package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// 比賽生命週期事件主題後綴
const (
	EventMatchCreated   = "created"
	EventMatchFinished  = "finished"
	EventMatchAbandoned = "abandoned"
)

// EventPublisher 比賽生命週期事件發布者
//
// 事件僅供外部觀察，發布失敗不影響比賽。
type EventPublisher interface {
	Publish(event string, payload any) error
	Close() error
}

// MatchCreated 配對成功
type MatchCreated struct {
	RoomID     string    `json:"roomId"`
	Difficulty string    `json:"difficulty"`
	Player1    string    `json:"player1"`
	Player2    string    `json:"player2"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MatchFinished 分出勝負
type MatchFinished struct {
	RoomID     string    `json:"roomId"`
	Winner     Side      `json:"winner"`
	Scores     Scores    `json:"scores"`
	FinishedAt time.Time `json:"finishedAt"`
}

// MatchAbandoned 玩家離開導致房間解散
type MatchAbandoned struct {
	RoomID string    `json:"roomId"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// NopPublisher 不發布任何事件
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }
func (NopPublisher) Close() error              { return nil }

// NATSPublisher 透過 NATS core 發布 JSON 事件
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher 連接 NATS
func NewNATSPublisher(url, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("pickleball-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連接中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS 已重新連接", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	logger.Info("已連接 NATS", "url", url, "subject_prefix", prefix)
	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject 事件對應的主題
func (p *NATSPublisher) Subject(event string) string {
	return p.prefix + "." + event
}

// Publish 發布事件（寫入客戶端緩衝區，不等待伺服器確認）
func (p *NATSPublisher) Publish(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event), data); err != nil {
		return fmt.Errorf("發布事件失敗: %w", err)
	}
	return nil
}

// Close 送出緩衝中的事件後關閉連接
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

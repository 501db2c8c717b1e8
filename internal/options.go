package internal

import "time"

// 協定固定參數
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultBallUpdateFloor   = 16 * time.Millisecond
	DefaultTeardownDelay     = 5 * time.Second
	DefaultSendBuffer        = 256
)

// Options 伺服器運行參數
//
// 預設值即協定規定的固定值，測試可縮短計時器。
type Options struct {
	HeartbeatInterval time.Duration
	BallUpdateFloor   time.Duration
	TeardownDelay     time.Duration
	SendBuffer        int
	Clock             func() time.Time
}

// DefaultOptions 協定預設參數
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: DefaultHeartbeatInterval,
		BallUpdateFloor:   DefaultBallUpdateFloor,
		TeardownDelay:     DefaultTeardownDelay,
		SendBuffer:        DefaultSendBuffer,
		Clock:             time.Now,
	}
}

// withDefaults 補齊未設定的欄位
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = d.HeartbeatInterval
	}
	if o.BallUpdateFloor <= 0 {
		o.BallUpdateFloor = d.BallUpdateFloor
	}
	if o.TeardownDelay <= 0 {
		o.TeardownDelay = d.TeardownDelay
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	return o
}

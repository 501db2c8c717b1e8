package internal_test

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sempressimo2/power-pickleball/internal"
	"github.com/sempressimo2/power-pickleball/pkg/logger"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return logger.Discard()
}

// fakeTransport 記錄探測與關閉的測試替身
type fakeTransport struct {
	mu     sync.Mutex
	pings  int
	closed bool
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeClock 可手動推進的時鐘
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPublisher 記錄發布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newTestClient() *internal.Client {
	return internal.NewClient(&fakeTransport{}, 64)
}

// nextMessage 讀取下一則待發送訊息
func nextMessage(t *testing.T, c *internal.Client) map[string]any {
	t.Helper()
	select {
	case data, ok := <-c.Outbound():
		require.True(t, ok, "發送佇列已關閉")
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("等待訊息超時")
		return nil
	}
}

// expectType 讀取下一則訊息並檢查類型
func expectType(t *testing.T, c *internal.Client, msgType string) map[string]any {
	t.Helper()
	msg := nextMessage(t, c)
	require.Equal(t, msgType, msg["type"], "收到 %v", msg)
	return msg
}

// expectNoMessage 確認沒有待發送訊息
func expectNoMessage(t *testing.T, c *internal.Client) {
	t.Helper()
	select {
	case data := <-c.Outbound():
		t.Fatalf("不應收到訊息: %s", data)
	default:
	}
}

// countType 讀完所有待發送訊息並計算某類型的數量
func countType(t *testing.T, c *internal.Client, msgType string) int {
	t.Helper()
	n := 0
	for {
		select {
		case data, ok := <-c.Outbound():
			if !ok {
				return n
			}
			var msg map[string]any
			require.NoError(t, json.Unmarshal(data, &msg))
			if msg["type"] == msgType {
				n++
			}
		default:
			return n
		}
	}
}

// drain 丟棄所有待發送訊息
func drain(c *internal.Client) {
	for {
		select {
		case _, ok := <-c.Outbound():
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// testOptions 縮短計時器並使用可控時鐘
func testOptions(clock *fakeClock) internal.Options {
	opts := internal.DefaultOptions()
	opts.TeardownDelay = 50 * time.Millisecond
	if clock != nil {
		opts.Clock = clock.Now
	}
	return opts
}

package internal

import (
	"log/slog"
	"sync"
	"time"
)

// HeartbeatMonitor 連接存活檢測
//
// 每個週期：上一輪探測後沒有回應的連接被強制斷開，其餘連接清除旗標並再次探測。
// 因此一條連接最多沉默兩個週期就會被回收。
type HeartbeatMonitor struct {
	registry *Registry
	interval time.Duration
	reap     func(*Client)
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHeartbeatMonitor 創建存活檢測器，reap 負責斷線後的清理
func NewHeartbeatMonitor(registry *Registry, interval time.Duration, reap func(*Client), logger *slog.Logger) *HeartbeatMonitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HeartbeatMonitor{
		registry: registry,
		interval: interval,
		reap:     reap,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start 啟動檢測迴圈
func (h *HeartbeatMonitor) Start() {
	h.wg.Add(1)
	go h.loop()
}

func (h *HeartbeatMonitor) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Tick()
		case <-h.stopCh:
			return
		}
	}
}

// Tick 執行一輪檢測，回傳被回收的連接數
func (h *HeartbeatMonitor) Tick() int {
	reaped := 0
	for _, c := range h.registry.Snapshot() {
		if !c.IsAlive() {
			h.logger.Info("回收無回應的連接", "client_id", c.ID())
			c.Terminate()
			if h.reap != nil {
				h.reap(c)
			}
			reaped++
			continue
		}

		if err := c.probe(); err != nil {
			h.logger.Warn("發送存活探測失敗", "client_id", c.ID(), "error", err)
		}
	}
	return reaped
}

// Stop 停止檢測迴圈（冪等）
func (h *HeartbeatMonitor) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
	h.wg.Wait()
}

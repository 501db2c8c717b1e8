package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sempressimo2/power-pickleball/internal"
	"github.com/sempressimo2/power-pickleball/pkg/logger"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "config.yaml", "配置檔路徑（不存在時使用預設值）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)，覆蓋配置")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json, tint)，覆蓋配置")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		slog.Error("載入配置失敗", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	// 比賽事件發布（未配置 NATS 時不發布）
	var publisher internal.EventPublisher = internal.NopPublisher{}
	if cfg.NATS.URL != "" {
		p, err := internal.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log)
		if err != nil {
			log.Error("NATS 不可用，停用事件發布", "error", err)
		} else {
			publisher = p
		}
	}

	opts := internal.DefaultOptions()
	opts.SendBuffer = cfg.Server.SendBuffer

	server := internal.NewServer(opts, publisher, log)
	server.Start()

	hub := internal.NewWebSocketHub(server, log)
	handler := internal.NewHandler(server, hub, log)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("WebSocket 服務器啟動",
			"addr", httpServer.Addr,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("服務器關閉失敗", "error", err)
	}

	// Shutdown 不會等待已升級的 WebSocket，需由會話伺服器自行斷開
	server.Shutdown()

	log.Info("服務器已關閉")
}

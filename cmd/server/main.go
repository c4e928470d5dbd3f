package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-realtime-match/internal/config"
	"github.com/koopa0/system-design/14-realtime-match/internal/publish"
	"github.com/koopa0/system-design/14-realtime-match/internal/rating"
	"github.com/koopa0/system-design/14-realtime-match/internal/server"
	"github.com/koopa0/system-design/14-realtime-match/internal/session"
	"github.com/koopa0/system-design/14-realtime-match/pkg/logger"
)

// 啟動時從 Redis 預載的積分檔案上限
const maxRestoredProfiles = 10000

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "", "配置檔路徑（留空使用預設值）")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ratings := rating.NewStore(rating.Params{
		Initial: cfg.Rating.Initial,
		K:       cfg.Rating.K,
		Floor:   cfg.Rating.Floor,
	})
	sinks, cleanup := setupSinks(ctx, cfg, ratings, log)
	cancel()
	defer cleanup()

	dispatcher := publish.NewDispatcher(log, cfg.Publish.BufferSize, cfg.Publish.Timeout, sinks...)

	// Manager 需要 Hub 當作 Sender，Hub 需要 Manager 投遞訊息
	hub := server.NewHub(log)
	manager := session.NewManager(cfg, hub, ratings, log, session.WithPublisher(dispatcher))
	hub.Attach(manager)
	manager.Start()

	handler := server.NewHandler(manager, ratings, hub, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("即時對戰服務器啟動",
			"port", cfg.Server.Port,
			"tick_rate", cfg.Tick.Rate,
			"sinks", len(sinks))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("收到關閉信號，開始優雅關閉...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// 停止接受新連接
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("服務器關閉失敗", "error", err)
	}

	// 排程器必須先停：進行中的對戰以 aborted 結束、不結算積分；
	// 之後連線關閉產生的斷線事件不會再被處理，最後清空結果佇列
	manager.Stop()
	hub.Stop()
	dispatcher.Close()

	log.Info("服務器已關閉", "dropped_records", dispatcher.Dropped())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// setupSinks 連線已啟用的外部系統；連不上的只記錄警告，伺服器照常啟動
func setupSinks(ctx context.Context, cfg *config.Config, ratings *rating.Store, log *slog.Logger) ([]publish.Sink, func()) {
	var (
		sinks   []publish.Sink
		closers []func()
	)

	if cfg.Redis.Enabled {
		client, err := publish.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn("Redis 無法連線，略過", "addr", cfg.Redis.Addr, "error", err)
		} else {
			sink := publish.NewRedisSink(client, cfg.Redis.KeyPrefix)
			if profiles, err := sink.LoadProfiles(ctx, maxRestoredProfiles); err != nil {
				log.Warn("從 Redis 載入積分失敗", "error", err)
			} else {
				ratings.Seed(profiles)
				log.Info("已從 Redis 恢復積分", "players", len(profiles))
			}
			sinks = append(sinks, sink)
			closers = append(closers, func() { _ = client.Close() })
		}
	}

	if cfg.NATS.Enabled {
		conn, err := publish.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			log.Warn("NATS 無法連線，略過", "url", cfg.NATS.URL, "error", err)
		} else {
			sinks = append(sinks, publish.NewNATSSink(conn, cfg.NATS.SubjectPrefix))
			closers = append(closers, func() { _ = conn.Drain() })
		}
	}

	if cfg.Postgres.Enabled {
		pool, err := publish.NewPostgresPool(ctx, cfg.PostgresDSN(), cfg.Postgres.MaxConns)
		if err != nil {
			log.Warn("PostgreSQL 無法連線，略過", "error", err)
		} else {
			sink := publish.NewPostgresSink(pool)
			if err := sink.EnsureSchema(ctx); err != nil {
				log.Warn("建立 match_results 資料表失敗", "error", err)
			}
			sinks = append(sinks, sink)
			closers = append(closers, pool.Close)
		}
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

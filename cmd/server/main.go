package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cliffyan/go-metasearch/internal/config"
	"github.com/cliffyan/go-metasearch/internal/engine"
	"github.com/cliffyan/go-metasearch/internal/logger"
	"github.com/cliffyan/go-metasearch/internal/server"
)

func main() {
	// 加载配置
	cfg := config.Load()

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("❌ Invalid log config: %v", err)
	}
	defer lg.Sync() //nolint:errcheck
	lg.Info("🔍 starting go-metasearch server",
		zap.String("version", cfg.MCP.ServerVersion),
		zap.Strings("default_engines", cfg.Search.DefaultEngines),
	)

	// 初始化搜索引擎管理器
	fetchers, closeFetchers := engine.NewFetchers(cfg, lg)
	defer closeFetchers()
	engineManager := engine.NewManager(cfg, fetchers, lg)

	srv := server.New(cfg, engineManager, lg)

	// 优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		lg.Info("🛑 shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("❌ shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Start(); err != nil {
		lg.Fatal("❌ server failed", zap.Error(err))
	}
	lg.Info("👋 server stopped")
}

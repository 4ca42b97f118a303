// @title LearnHub 后端 API
// @version 1.0
// @description LearnHub 在线课程平台的学习进度、测验与课程聊天服务。

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"

	"learnhub_backend/internal/app"
	"learnhub_backend/internal/config"
	"learnhub_backend/pkg/configwatcher"
	"learnhub_backend/pkg/logger"

	"go.uber.org/zap"
)

const configDir = "configs"

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := configwatcher.WatchConfig(ctx, filepath.Join(configDir, "config.yaml"), application.ApplyConfig); err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}

	application.Run()
}

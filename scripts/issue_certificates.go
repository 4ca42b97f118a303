// 手动触发证书补发脚本
//
// 主应用的后台定时任务会按 certificate.sweep_spec 自动执行。
// 此脚本仅用于手动触发，例如关闭了定时任务或批量导入历史学习记录之后。
//
// 用法: go run scripts/issue_certificates.go

package main

import (
	"context"
	"log"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/events"
	"learnhub_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	ctx := context.Background()
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progress := service.NewProgressService(
		courseRepo,
		enrollmentRepo,
		repository.NewCompletionRepository(db),
		repository.NewQuizRepository(db),
		service.ParseQuizCountPolicy(cfg.Progress.QuizCountPolicy),
	)
	certificates := service.NewCertificateService(
		repository.NewCertificateRepository(db),
		enrollmentRepo,
		courseRepo,
		repository.NewUserRepository(db),
		progress,
		service.NewStorageService(ctx, &cfg.Storage),
		events.NopPublisher{},
	)

	log.Println("开始补发证书...")
	issued, err := certificates.IssuePending(ctx)
	if err != nil {
		log.Fatalf("补发证书失败: %v", err)
	}
	log.Printf("补发完成，共颁发 %d 张证书", issued)
}

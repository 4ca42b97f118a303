package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/controller"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/events"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/security"
	"learnhub_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	publisher       events.Publisher
	scheduler       *cron.Cron
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	enrollment  *repository.EnrollmentRepository
	completion  *repository.CompletionRepository
	quiz        *repository.QuizRepository
	chat        *repository.ChatRepository
	certificate *repository.CertificateRepository
}

type services struct {
	storage     *service.StorageService
	progress    *service.ProgressService
	quiz        *service.QuizService
	student     *service.StudentService
	video       *service.VideoProgressService
	certificate *service.CertificateService
	authorizer  *service.ChatAuthorizer
	chat        *service.ChatService
	chatHub     *service.ChatHub
}

type controllers struct {
	student     *controller.StudentController
	quiz        *controller.QuizController
	certificate *controller.CertificateController
	chat        *controller.ChatController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，依次执行已注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		enrollment:  repository.NewEnrollmentRepository(db),
		completion:  repository.NewCompletionRepository(db),
		quiz:        repository.NewQuizRepository(db),
		chat:        repository.NewChatRepository(db),
		certificate: repository.NewCertificateRepository(db),
	}
}

func (a *App) initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.Events.Enabled {
		return events.NopPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		logger.Log.Warn("AMQP unavailable, domain events disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	logger.Log.Info("AMQP publisher connected", zap.String("exchange", cfg.Events.Exchange))
	return p
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	policy := service.ParseQuizCountPolicy(cfg.Progress.QuizCountPolicy)

	s.storage = service.NewStorageService(context.Background(), &cfg.Storage)
	s.progress = service.NewProgressService(repos.course, repos.enrollment, repos.completion, repos.quiz, policy)
	s.quiz = service.NewQuizService(db, repos.quiz, repos.course, repos.enrollment, s.progress, a.publisher)
	s.student = service.NewStudentService(
		db,
		repos.course,
		repos.enrollment,
		repos.completion,
		repos.certificate,
		s.progress,
		a.publisher,
	)
	s.video = service.NewVideoProgressService(repos.course, repos.enrollment, repos.completion, s.student, cfg.Storage.LocalPath)
	s.certificate = service.NewCertificateService(
		repos.certificate,
		repos.enrollment,
		repos.course,
		repos.user,
		s.progress,
		s.storage,
		a.publisher,
	)

	s.authorizer = service.NewChatAuthorizer(repos.course, repos.enrollment, repos.user)
	s.chat = service.NewChatService(repos.chat, repos.user, s.authorizer, a.publisher, cfg.Chat.MaxMessageLength)
	s.chatHub = service.NewChatHub(rdb, s.authorizer, s.chat, cfg.Chat.RatePerSecond, cfg.Chat.RateBurst)
	go s.chatHub.Run()

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		student:     controller.NewStudentController(s.student, s.progress, s.video),
		quiz:        controller.NewQuizController(s.quiz),
		certificate: controller.NewCertificateController(s.certificate),
		chat:        controller.NewChatController(s.chat, s.authorizer, s.chatHub),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) registerConfigCallbacks(s *services) {
	a.RegisterConfigCallback(func(cfg *config.Config) {
		logger.SetMode(cfg.Server.Mode)
	})
	a.RegisterConfigCallback(func(cfg *config.Config) {
		policy := service.ParseQuizCountPolicy(cfg.Progress.QuizCountPolicy)
		if policy != s.progress.Policy() {
			logger.Log.Info("Quiz count policy changed", zap.String("policy", string(policy)))
		}
		s.progress.SetPolicy(policy)
	})
}

// startBackgroundTasks 定时补发已完课但缺失的证书
func (a *App) startBackgroundTasks(s *services, cfg *config.Config) {
	if !cfg.Certificate.SweepEnabled {
		return
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Certificate.SweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		issued, err := s.certificate.IssuePending(ctx)
		if err != nil {
			logger.Log.Error("Certificate sweep failed", zap.Error(err))
			return
		}
		if issued > 0 {
			logger.Log.Info("Certificate sweep issued certificates", zap.Int("issued", issued))
		}
	})
	if err != nil {
		logger.Log.Error("Invalid certificate sweep schedule", zap.String("spec", cfg.Certificate.SweepSpec), zap.Error(err))
		return
	}

	c.Start()
	a.scheduler = c
	logger.Log.Info("Certificate sweep scheduled", zap.String("spec", cfg.Certificate.SweepSpec))
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式默认不迁移，需显式 -migrate
	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := build(cfg, db, rdb)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("learnhub-backend", cfg.Tracing.CollectorEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.startBackgroundTasks(app.services, cfg)

	return app
}

// build 在已建立的连接上组装仓储、服务、控制器与路由
func build(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}
	app.publisher = app.initPublisher(cfg)

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)
	app.registerConfigCallbacks(services)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// shutdown 释放后台资源，顺序与启动相反
func (a *App) shutdown() {
	// 清理 WebSocket连接和Redis在线状态
	if a.services != nil && a.services.chatHub != nil {
		a.services.chatHub.Stop()
	}
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Log.Error("Failed to close event publisher", zap.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	a.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

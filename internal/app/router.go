package app

import (
	"learnhub_backend/docs"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	router.GET("/api/health", c.health.HealthCheck)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerChatRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	student := group.Group("/student")
	{
		student.GET("/dashboard", c.student.GetDashboard)

		courses := student.Group("/courses/:courseId")
		{
			courses.POST("/enroll", c.student.Enroll)
			courses.POST("/start", c.student.StartCourse)
			courses.GET("/continue", c.student.ContinueCourse)
			courses.GET("/progress", c.student.GetProgress)
			courses.POST("/certificate", c.certificate.IssueCertificate)
		}

		student.POST("/lessons/:lessonId/complete", c.student.CompleteLesson)
		student.PUT("/lessons/:lessonId/video-progress", c.student.RecordVideoProgress)

		student.GET("/quizzes/:quizId", c.quiz.GetQuiz)
		student.POST("/quizzes/:quizId/attempt", c.quiz.SubmitAttempt)
		student.GET("/quizzes/:quizId/attempts", c.quiz.ListAttempts)

		student.GET("/certificates", c.certificate.ListCertificates)
	}
}

func (a *App) registerChatRoutes(group *gin.RouterGroup, c *controllers) {
	chat := group.Group("/chat")
	{
		chat.GET("/ws", c.chat.HandleWS)
		chat.GET("/verify/:courseId", c.chat.VerifyAccess)
		chat.GET("/messages/:courseId", c.chat.GetMessages)
		chat.POST("/messages/:courseId", c.chat.SendMessage)
	}
}

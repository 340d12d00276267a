package app

import (
	"edulearn_backend/docs"
	"edulearn_backend/internal/config"
	"edulearn_backend/internal/middleware"
	"edulearn_backend/internal/model"
	"edulearn_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerQuizRoutes(authGroup, c)
		a.registerAttemptRoutes(authGroup, c)
	}
}

// registerQuizRoutes 测验查询、开卷与成绩
func (a *App) registerQuizRoutes(api *gin.RouterGroup, c *controllers) {
	quizzes := api.Group("/quizzes")
	{
		quizzes.GET("", c.quiz.ListQuizzes)
		quizzes.GET("/:id", c.quiz.GetQuiz)
		quizzes.POST("/:id/attempts", c.attempt.StartAttempt)
		quizzes.GET("/:id/attempts/mine", c.attempt.ListMyAttempts)
		quizzes.GET("/:id/grade", c.attempt.GetQuizGrade)
	}

	// 试卷编辑与阅卷（教师）
	teacher := api.Group("/quizzes")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("", c.quiz.CreateQuiz)
		teacher.PUT("/:id", c.quiz.UpdateQuiz)
		teacher.DELETE("/:id", c.quiz.DeleteQuiz)
		teacher.POST("/:id/publish", c.quiz.SetPublished)
		teacher.GET("/:id/attempts", c.attempt.ListQuizAttempts)
	}
}

// registerAttemptRoutes 进行中尝试的会话操作
func (a *App) registerAttemptRoutes(api *gin.RouterGroup, c *controllers) {
	attempts := api.Group("/attempts")
	{
		attempts.PATCH("/:id/answers/:questionId", c.attempt.UpsertAnswer)
		attempts.POST("/:id/save", c.attempt.SaveNow)
		attempts.POST("/:id/flag/:questionId", c.attempt.FlagQuestion)
		attempts.DELETE("/:id/flag/:questionId", c.attempt.UnflagQuestion)
		attempts.POST("/:id/files/:questionId", c.attempt.UploadAnswerFile)
		attempts.GET("/:id/state", c.attempt.GetState)
		attempts.POST("/:id/submit", c.attempt.Submit)
		attempts.GET("/:id/result", c.attempt.GetResult)
	}
}

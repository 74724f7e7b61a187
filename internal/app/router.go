package app

import (
	"learnhub_backend/docs"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/middleware"
	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/courses", c.course.GetCourses)
		public.GET("/courses/:id", c.course.GetCourse)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.POST("/courses", middleware.RoleMiddleware(model.Teacher), c.course.CreateCourse)
		authGroup.POST("/courses/:id/enroll", c.course.Enroll)

		// 进度同步
		progress := authGroup.Group("/progress")
		{
			progress.POST("", c.progress.UpdateProgress)
			progress.POST("/batch", c.progress.UpdateProgressBatch)
			progress.POST("/compressed", c.progress.UpdateProgressCompressed)
			progress.POST("/complete", c.progress.MarkComplete)
			progress.POST("/reset", c.progress.ResetProgress)
			progress.GET("/module/:moduleId", c.analytics.GetModuleProgress)
			progress.GET("/course/:courseId", c.analytics.GetCourseProgress)
			progress.GET("/:lessonId", c.progress.GetProgress)
		}

		authGroup.GET("/analytics/learning", c.analytics.GetLearningAnalytics)
	}
}

package api

import (
	"github.com/fyerfyer/doc-qa-extractor/api/handler"
	"github.com/fyerfyer/doc-qa-extractor/api/middleware"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Handlers 路由使用的全部处理器
type Handlers struct {
	Document *handler.DocumentHandler
	Run      *handler.RunHandler
	Session  *handler.SessionHandler
	Health   *handler.HealthHandler
}

// RouterConfig 路由配置
type RouterConfig struct {
	MaxUploadBytes int64 // 请求体大小上限，0表示不限制
	EnableCORS     bool  // 是否允许跨域请求
}

// RegisterValidators 在gin的校验引擎上注册自定义标签
func RegisterValidators() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return credential.RegisterValidation(v)
	}
	return nil
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(h Handlers, cfg RouterConfig) *gin.Engine {
	// 创建路由引擎，请求日志与panic恢复由自定义中间件负责
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.BodyLimit(cfg.MaxUploadBytes))
	if cfg.EnableCORS {
		router.Use(Cors())
	}

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 上传文档并提取问题 - POST /api/documents
		api.POST("/documents", h.Document.UploadDocument)

		runGroup := api.Group("/runs")
		{
			// 获取Run状态 - GET /api/runs/:id
			runGroup.GET("/:id", h.Run.GetRun)

			// 获取回答 - POST /api/runs/:id/answers
			runGroup.POST("/:id/answers", h.Run.GenerateAnswers)

			// 下载结果文档 - GET /api/runs/:id/download
			runGroup.GET("/:id/download", h.Run.Download)

			// 丢弃Run - DELETE /api/runs/:id
			runGroup.DELETE("/:id", h.Run.DeleteRun)
		}

		sessionGroup := api.Group("/session")
		{
			sessionGroup.POST("/api-key", h.Session.SetAPIKey)
			sessionGroup.DELETE("/api-key", h.Session.ClearAPIKey)
			sessionGroup.GET("/credential", h.Session.GetCredential)
		}

		// 健康检查API
		api.GET("/health", h.Health.Health)
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

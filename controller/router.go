package controller

import (
	"evidence-vault/controller/handler"
	"evidence-vault/controller/respond"
	"evidence-vault/database"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires the HTTP surface
func SetupRouter(fileHandler *handler.FileHandler, migrationHandler *handler.MigrationHandler,
	auditHandler *handler.AuditHandler) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
	}))
	r.Use(respond.TimingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "cache": database.IsRedisEnabled()})
	})

	api := r.Group("/api/v1")
	{
		files := api.Group("/files")
		{
			files.POST("/upload", fileHandler.Upload)
			files.GET("", fileHandler.ListFiles)
			files.GET("/:fileId", fileHandler.GetFile)
			files.GET("/:fileId/content", fileHandler.GetContent)
			files.GET("/:fileId/payments", fileHandler.ListPayments)
			files.DELETE("/:fileId", fileHandler.DeleteFile)
		}

		gate := api.Group("/gate")
		{
			gate.GET("/status", fileHandler.GateStatus)
			gate.POST("/setup", fileHandler.GateSetUp)
		}

		migrations := api.Group("/migrations")
		{
			migrations.POST("/retry", migrationHandler.RetryFailed)
			migrations.POST("/:fileId", migrationHandler.Migrate)
		}

		audit := api.Group("/audit")
		{
			audit.POST("/sessions", auditHandler.LogSession)
			audit.GET("/topic", auditHandler.TopicInfo)
		}
	}

	return r
}

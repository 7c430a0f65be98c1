package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/luoxh/trainsys/internal/app/controllers"
	"github.com/luoxh/trainsys/internal/middleware"
)

// SetupRouter configures all application routes
func SetupRouter(
	router *gin.Engine,
	authController *controllers.AuthController,
	studentController *controllers.StudentController,
	exportController *controllers.ExportController,
	configController *controllers.ConfigController,
	fileController *controllers.FileController,
	authMiddleware *middleware.AuthMiddleware,
) {
	api := router.Group("/api")

	// --- Public auth routes ---
	auth := api.Group("/auth")
	{
		auth.POST("/login", authController.Login)
		auth.POST("/logout", authController.Logout)
	}

	// --- Mini-program routes ---
	miniprogram := api.Group("/miniprogram")
	{
		miniprogram.POST("/login", authController.MiniLogin)

		miniProtected := miniprogram.Group("")
		miniProtected.Use(authMiddleware.MiniAuth())
		{
			miniProtected.POST("/upload", studentController.MiniCreate)
			miniProtected.GET("/students", studentController.List)
		}
	}

	// --- Admin console routes ---
	admin := api.Group("")
	admin.Use(authMiddleware.AdminAuth())
	{
		students := admin.Group("/students")
		{
			students.POST("", studentController.Create)
			students.GET("", studentController.List)
			students.GET("/:id", studentController.Get)
			students.PUT("/:id", studentController.Update)
			students.PATCH("/:id", studentController.Update)
			students.DELETE("/:id", studentController.Delete)

			students.POST("/:id/approve", studentController.Approve)
			students.POST("/:id/reject", studentController.Reject)
			students.POST("/:id/generate", studentController.Generate)
			students.POST("/:id/upload", studentController.Upload)
			students.GET("/:id/attachments.zip", studentController.AttachmentsZip)

			students.POST("/batch/approve", studentController.BatchApprove)
			students.POST("/batch/reject", studentController.BatchReject)
			students.POST("/batch/delete", studentController.BatchDelete)
		}

		admin.GET("/companies", studentController.Companies)
		admin.GET("/export/excel", exportController.ExportExcel)
	}

	// Category catalog is public: the enrollment form needs it before
	// any session exists.
	api.GET("/config/job_categories", configController.JobCategories)

	// Ownership-checked static serving of stored attachments.
	files := router.Group("/students")
	files.Use(authMiddleware.FileAuth())
	{
		files.GET("/*filepath", fileController.ServeStudentFile)
	}

	// Health check endpoint (public)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

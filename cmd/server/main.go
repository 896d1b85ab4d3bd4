package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/yuditriaji/zaiko-backend/internal/auth"
	"github.com/yuditriaji/zaiko-backend/internal/dailyreport"
	"github.com/yuditriaji/zaiko-backend/internal/material"
	"github.com/yuditriaji/zaiko-backend/internal/movement"
	"github.com/yuditriaji/zaiko-backend/internal/stock"
	"github.com/yuditriaji/zaiko-backend/internal/stocktake"
	"github.com/yuditriaji/zaiko-backend/internal/store"
	"github.com/yuditriaji/zaiko-backend/internal/user"
	"github.com/yuditriaji/zaiko-backend/pkg/activitylog"
	"github.com/yuditriaji/zaiko-backend/pkg/config"
	"github.com/yuditriaji/zaiko-backend/pkg/database"
	"github.com/yuditriaji/zaiko-backend/pkg/email"
	"github.com/yuditriaji/zaiko-backend/pkg/middleware"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	kinds, err := stock.LoadRegistry(context.Background(), db)
	if err != nil {
		log.Fatalf("Failed to load movement types: %v", err)
	}

	activity := activitylog.NewLogger(db)
	agg := stock.NewAggregator(db, kinds)

	reports := dailyreport.NewEngine(db, agg)
	mailer := email.NewEmailService(cfg.ResendAPIKey, cfg.EmailFrom)
	if cfg.LowStockAlertEmail != "" && mailer.IsConfigured() {
		reports = reports.WithAlerts(mailer, cfg.LowStockAlertEmail)
	} else {
		log.Println("Low stock alert email disabled")
	}

	// Setup Gin router
	r := gin.Default()

	// Middleware
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db, cfg, activity)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.RefreshToken)

		// Google OAuth routes
		v1.GET("/auth/google", authHandler.GoogleLogin)
		v1.GET("/auth/google/callback", authHandler.GoogleCallback)

		// Protected routes
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired(cfg.JWTSecret))
		{
			protected.GET("/auth/me", authHandler.GetMe)

			// Stores
			storeHandler := store.NewHandler(db, activity)
			protected.GET("/stores", storeHandler.List)
			protected.GET("/stores/:id", storeHandler.Get)

			// Materials with stock overview
			materialHandler := material.NewHandler(db, agg, activity)
			protected.GET("/materials", materialHandler.List)
			protected.GET("/materials/alerts", materialHandler.GetAlerts)
			protected.GET("/materials/:id", materialHandler.Get)
			protected.GET("/material-categories", materialHandler.ListCategories)

			// Movement ledger
			movementHandler := movement.NewHandler(movement.NewLedger(db, kinds), activity)
			protected.GET("/movement-types", movementHandler.ListTypes)
			protected.GET("/movements", movementHandler.List)
			protected.POST("/movements", movementHandler.Create)

			// Daily reports
			reportHandler := dailyreport.NewHandler(reports, activity)
			protected.GET("/daily-reports/suggestions", reportHandler.Suggestions)
			protected.GET("/daily-reports", reportHandler.List)
			protected.POST("/daily-reports", reportHandler.Save)
			protected.GET("/daily-reports/:id", reportHandler.Get)
			protected.DELETE("/daily-reports/:id", reportHandler.Delete)

			// Stocktakes
			stocktakeHandler := stocktake.NewHandler(stocktake.NewEngine(db, agg, kinds), activity)
			protected.GET("/stocktakes", stocktakeHandler.List)
			protected.GET("/stocktakes/matrix", stocktakeHandler.Matrix)
			protected.GET("/stocktakes/matrix/export", stocktakeHandler.ExportMatrix)
			protected.POST("/stocktakes", stocktakeHandler.Create)
			protected.GET("/stocktakes/:id", stocktakeHandler.Get)
			protected.PUT("/stocktakes/:id", stocktakeHandler.Update)
			protected.DELETE("/stocktakes/:id", stocktakeHandler.Delete)
			protected.POST("/stocktakes/:id/confirm", stocktakeHandler.Confirm)

			// Admin only
			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.POST("/materials", materialHandler.Create)
				admin.PUT("/materials/:id", materialHandler.Update)
				admin.DELETE("/materials/:id", materialHandler.Delete)
				admin.POST("/material-categories", materialHandler.CreateCategory)

				importHandler := material.NewImportHandler(db, activity)
				admin.POST("/materials/import", importHandler.ImportExcel)
				admin.GET("/materials/import/template", importHandler.DownloadTemplate)

				admin.PUT("/movements/:id", movementHandler.Update)
				admin.DELETE("/movements/:id", movementHandler.Delete)

				admin.POST("/stores", storeHandler.Create)
				admin.PUT("/stores/:id", storeHandler.Update)
				admin.GET("/companies", storeHandler.ListCompanies)
				admin.POST("/companies", storeHandler.CreateCompany)

				userHandler := user.NewHandler(db, activity)
				admin.GET("/users", userHandler.ListUsers)
				admin.POST("/users", userHandler.CreateUser)
				admin.PUT("/users/:id", userHandler.UpdateUser)

				admin.GET("/activity-logs", activity.ListLogs)
			}
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

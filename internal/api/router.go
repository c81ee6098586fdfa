package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lepss/rent-simulator/internal/api/handlers"
	"github.com/lepss/rent-simulator/internal/api/middleware"
	"github.com/lepss/rent-simulator/internal/captcha"
	"github.com/lepss/rent-simulator/internal/config"
	"github.com/lepss/rent-simulator/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient handlers.IAsynqClient, configSvc services.IConfigService) *gin.Engine {
	simulationService := services.NewSimulationService(db, cfg, configSvc, rdb)
	resultsService := services.NewResultsService(simulationService, rdb, cfg, configSvc)

	captchaVerifier := captcha.NewTurnstileVerifier(cfg)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, configSvc)

	// Global middleware, order matters: captcha verification must run before
	// the limiter so verified humans bypass the soft limit.
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CaptchaMiddleware(cfg, captchaVerifier))
	r.Use(rateLimiter.Limit())

	restSessionHandler := handlers.NewRestSessionHandler(cfg)
	restSimulationHandler := handlers.NewRestSimulationHandler(simulationService, taskClient)
	restResultsHandler := handlers.NewRestResultsHandler(resultsService)
	restConfigHandler := handlers.NewRestConfigHandler(configSvc)

	v1 := r.Group("/v1")
	{
		// Public routes (rate limiting already applied globally)
		v1.POST("/session", restSessionHandler.CreateSession)
		v1.GET("/config", restConfigHandler.GetPublicConfig)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Everything under /simulation is scoped to the session subject.
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/simulation", restSimulationHandler.CreateSimulation)
			authRequired.GET("/simulation", restSimulationHandler.ListSimulations)
			authRequired.POST("/simulation/import", restSimulationHandler.ImportSimulation)
			authRequired.GET("/simulation/:id", restSimulationHandler.GetSimulation)
			authRequired.PUT("/simulation/:id/name", restSimulationHandler.RenameSimulation)
			authRequired.DELETE("/simulation/:id", restSimulationHandler.DeleteSimulation)
			authRequired.PUT("/simulation/:id/purchase", restSimulationHandler.SetPurchase)
			authRequired.PUT("/simulation/:id/lots", restSimulationHandler.SetLots)
			authRequired.PUT("/simulation/:id/expenditures", restSimulationHandler.SetExpenditures)
			authRequired.PUT("/simulation/:id/financing", restSimulationHandler.SetFinancing)
			authRequired.GET("/simulation/:id/results", restResultsHandler.GetResults)
			authRequired.GET("/simulation/:id/export", restSimulationHandler.ExportSimulation)
			authRequired.POST("/simulation/:id/archive", restSimulationHandler.ArchiveSimulation)
			authRequired.POST("/simulation/:id/report", restSimulationHandler.ReportSimulation)
		}

		// Admin routes are key-guarded, not session-guarded.
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AdminAPIKeyMiddleware(cfg.AdminAPIKeyHash))
		{
			adminRequired.PUT("/config", restConfigHandler.SetConfigValue)
			adminRequired.POST("/cleanup", restSimulationHandler.TriggerCleanup)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine bound to
// localhost only. It exists for orchestration and end-to-end test harnesses:
// remote shutdown plus retrieval of emails captured by the Redis mock sender.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			fmt.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
				fmt.Println("Shutdown signal sent successfully.")
			default:
				fmt.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestEmail":
			var args []string // Expect ["mail_type", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [mailType, email]"})
				return
			}
			mailType := args[0]
			emailAddr := args[1]
			redisKey := fmt.Sprintf("mockemail:%s:%s", emailAddr, mailType)

			// Poll Redis briefly for the key
			var emailJsonData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ { // Poll up to ~2 seconds
				emailJsonData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey) // Delete after fetching
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
				return
			}

			var emailData map[string]interface{}
			if err := json.Unmarshal([]byte(emailJsonData), &emailData); err != nil {
				log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/controllers"
	"github.com/cppla/rewards/middleware"
	"github.com/cppla/rewards/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(svc controllers.RewardService) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access and panic logs go to their own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, true))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", controllers.DeviceHeader},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	rewardsController := controllers.NewRewardsController(svc)
	walletController := controllers.NewWalletController(svc)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired())

	api.GET("/rewards/status", rewardsController.Status)
	api.GET("/wallet/balances", walletController.Balances)
	api.GET("/wallet/ledger", walletController.Ledger)

	mutations := api.Group("")
	mutations.Use(middleware.RateLimitMiddleware())
	mutations.POST("/faucet/claim", rewardsController.ClaimFaucet)
	mutations.POST("/wheel/spin", rewardsController.SpinWheel)
	mutations.POST("/chest/open", rewardsController.OpenChest)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

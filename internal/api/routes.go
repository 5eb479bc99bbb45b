package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"planning_poker/internal/api/handlers"
	"planning_poker/internal/middleware"
	"planning_poker/internal/service"
	"planning_poker/pkg/config"
)

func SetupRoutes(r *gin.Engine, services *service.Services, cfg *config.Config) {
	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.Room)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocket, services.Room)

	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Path not found.",
		})
	})

	// API 路由群組
	api := r.Group("/api")
	{
		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ok",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})

		// 估點房間相關
		rooms := api.Group("/rooms")
		{
			rooms.GET("", roomHandler.ListRooms)   // 獲取房間列表
			rooms.POST("", roomHandler.CreateRoom) // 創建房間
			rooms.GET("/:id", roomHandler.GetRoom) // 獲取房間信息
		}
	}

	// WebSocket 連接點
	r.GET("/ws", wsHandler.HandleWebSocket)
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"planning_poker/internal/service"
)

// RoomHandler 處理與估點房間相關的 HTTP 請求
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoom 處理創建新房間的請求，建立者識別碼可有可無
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input struct {
		ClientID string `json:"clientId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body."})
		return
	}

	room := h.roomService.CreateRoom(input.ClientID)

	c.JSON(http.StatusCreated, gin.H{
		"roomId": room.ID,
		"url":    "/room/" + room.ID,
	})
}

// ListRooms 回傳所有房間的監控摘要，與推送事件使用同一個投影
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.roomService.ListSummaries())
}

// GetRoom 處理獲取房間訊息的請求
func (h *RoomHandler) GetRoom(c *gin.Context) {
	state, err := h.roomService.GetRoomState(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found."})
		return
	}

	c.JSON(http.StatusOK, state)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"planning_poker/internal/models"
	"planning_poker/internal/repository"
	"planning_poker/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 跨域已由 CORS 中間件把關
	},
}

// WebSocketHandler 是即時通道的傳輸轉接層
// 負責解析客戶端封包、呼叫對應的房間操作、把結果轉成回應送回去
// 所有狀態推送都由服務層在變更完成後觸發，這裡不經手房間資料
type WebSocketHandler struct {
	wsManager   *service.WebSocketManager
	roomService *service.RoomService
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(wsManager *service.WebSocketManager, roomService *service.RoomService) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		roomService: roomService,
	}
}

// HandleWebSocket 處理 WebSocket 連線請求
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := h.wsManager.NewClient(conn)
	log.Debug().Str("channel_id", client.ChannelID).Msg("websocket connected")

	// 阻塞直到連線關閉；之後把斷線視為離開房間處理
	h.wsManager.HandleClient(client, h.dispatch)

	if client.RoomID != "" {
		h.roomService.LeaveRoom(client.RoomID, client.ChannelID)
	}
	log.Debug().Str("channel_id", client.ChannelID).Msg("websocket disconnected")
}

// dispatch 把單一封包轉交給對應的房間操作
// 任何一個請求出錯都只回報給發送者，不影響其他連線與其他房間
func (h *WebSocketHandler) dispatch(client *service.Client, raw []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.wsManager.Send(client, models.NewErrorAck("", "Invalid message."))
		return
	}

	switch msg.Type {
	case models.ActionRoomCreate:
		h.handleCreate(client, msg)
	case models.ActionRoomJoin:
		h.handleJoin(client, msg)
	case models.ActionVoteSubmit:
		h.handleRoomAction(client, msg.Type, func(roomID, clientID string) error {
			return h.roomService.SubmitVote(roomID, clientID, msg.Vote)
		})
	case models.ActionRoundStart:
		h.handleRoomAction(client, msg.Type, h.roomService.StartRound)
	case models.ActionRoundReveal:
		h.handleRoomAction(client, msg.Type, h.roomService.RevealRound)
	case models.ActionRoundReset:
		h.handleRoomAction(client, msg.Type, h.roomService.ResetRound)
	case models.ActionUpdateSettings:
		h.handleRoomAction(client, msg.Type, func(roomID, clientID string) error {
			return h.roomService.UpdateVotingOptions(roomID, clientID, msg.VotingOptions)
		})
	default:
		h.wsManager.Send(client, models.NewErrorAck(msg.Type, "Unknown action."))
	}
}

func (h *WebSocketHandler) handleCreate(client *service.Client, msg models.ClientMessage) {
	room := h.roomService.CreateRoom(msg.ClientID)

	ack := models.NewAck(models.ActionRoomCreate)
	ack.RoomID = room.ID
	ack.URL = "/room/" + room.ID
	h.wsManager.Send(client, ack)
}

func (h *WebSocketHandler) handleJoin(client *service.Client, msg models.ClientMessage) {
	room, isAdmin, err := h.roomService.JoinRoom(client, msg.RoomID, msg.Name, msg.ClientID)
	if err != nil {
		h.wsManager.Send(client, ackError(models.ActionRoomJoin, err))
		return
	}

	ack := models.NewAck(models.ActionRoomJoin)
	ack.RoomID = room.ID
	ack.IsAdmin = &isAdmin
	room.Lock()
	ack.VotingOptions = append([]string(nil), room.Settings.VotingOptions...)
	room.Unlock()
	h.wsManager.Send(client, ack)
}

// handleRoomAction 處理需要已綁定房間會話的操作
func (h *WebSocketHandler) handleRoomAction(client *service.Client, action string, op func(roomID, clientID string) error) {
	if client.RoomID == "" || client.ClientID == "" {
		h.wsManager.Send(client, models.NewErrorAck(action, "Room context missing."))
		return
	}
	if err := op(client.RoomID, client.ClientID); err != nil {
		h.wsManager.Send(client, ackError(action, err))
		return
	}
	h.wsManager.Send(client, models.NewAck(action))
}

// ackError 把服務層錯誤轉成回應給客戶端的訊息
func ackError(action string, err error) models.Ack {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return models.NewErrorAck(action, "Room not found.")
	case errors.Is(err, service.ErrInvalidPayload):
		return models.NewErrorAck(action, "Invalid join payload.")
	case errors.Is(err, service.ErrDuplicateName):
		return models.NewErrorAck(action, "Name already exists in this room.")
	case errors.Is(err, service.ErrNotParticipant):
		return models.NewErrorAck(action, "Room context missing.")
	case errors.Is(err, service.ErrVotingNotActive):
		return models.NewErrorAck(action, "Voting is not active.")
	case errors.Is(err, service.ErrNoActiveRound):
		return models.NewErrorAck(action, "No active voting round.")
	case errors.Is(err, service.ErrInvalidVote):
		return models.NewErrorAck(action, "Invalid vote option.")
	case errors.Is(err, service.ErrInvalidScale):
		return models.NewErrorAck(action, "Invalid voting scale.")
	case errors.Is(err, service.ErrNotAdmin):
		return models.NewErrorAck(action, notAdminMessage(action))
	case errors.Is(err, service.ErrInvalidTransition):
		return models.NewErrorAck(action, invalidTransitionMessage(action))
	default:
		return models.NewErrorAck(action, "Request failed.")
	}
}

func notAdminMessage(action string) string {
	switch action {
	case models.ActionRoundStart:
		return "Only admin can start estimation."
	case models.ActionRoundReveal:
		return "Only admin can reveal votes."
	case models.ActionRoundReset:
		return "Only admin can reset round."
	case models.ActionUpdateSettings:
		return "Only admin can update settings."
	default:
		return "Only admin can perform this action."
	}
}

func invalidTransitionMessage(action string) string {
	switch action {
	case models.ActionRoundStart:
		return "Round already in progress."
	case models.ActionRoundReset:
		return "No revealed round to reset."
	default:
		return "Operation not allowed in current status."
	}
}

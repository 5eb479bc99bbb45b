package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"planning_poker/internal/models"
	"planning_poker/pkg/config"
)

// Client 代表一個 WebSocket 客戶端連線
// RoomID 與 ClientID 是連線的會話紀錄，在成功加入房間時綁定
// 只有連線自己的讀取迴圈會更新這兩個欄位
type Client struct {
	Conn      *websocket.Conn
	ChannelID string
	RoomID    string
	ClientID  string
	SendChan  chan []byte // 外送訊息通道，用於異步傳送
}

// WebSocketManager 管理所有的 WebSocket 連線與訊息推送
// 只保存通道與房間的對應關係，從不讀寫房間本身的狀態；
// 要推送的快照一律由服務層在房間鎖內產生後交給它
type WebSocketManager struct {
	cfg config.WebSocketConfig

	mu      sync.RWMutex
	clients map[*Client]bool            // 所有存活連線
	rooms   map[string]map[*Client]bool // roomID -> 訂閱該房間的連線
}

// NewWebSocketManager 建立並初始化新的 WebSocket 管理器
func NewWebSocketManager(cfg config.WebSocketConfig) *WebSocketManager {
	return &WebSocketManager{
		cfg:     cfg,
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
	}
}

// NewClient 為升級完成的連線建立客戶端，指派全新的通道識別碼
func (m *WebSocketManager) NewClient(conn *websocket.Conn) *Client {
	return &Client{
		Conn:      conn,
		ChannelID: uuid.NewString(),
		SendChan:  make(chan []byte, 256),
	}
}

// HandleClient 處理一條連線的完整生命週期，直到連線關閉才返回
// 收到的每一則訊息交給 onMessage 處理
func (m *WebSocketManager) HandleClient(client *Client, onMessage func(*Client, []byte)) {
	m.addClient(client)

	// 連線結束時清理資源；先解除註冊再關閉連線，斷線後不會再收到推送
	defer func() {
		m.removeClient(client)
		client.Conn.Close()
	}()

	go m.writePump(client)
	m.readPump(client, onMessage)
}

// BindRoom 把連線綁定到房間並記錄會話，重連時會先解除舊房間的訂閱
func (m *WebSocketManager) BindRoom(client *Client, roomID, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client.RoomID != "" && client.RoomID != roomID {
		if subscribers, ok := m.rooms[client.RoomID]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(m.rooms, client.RoomID)
			}
		}
	}

	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[*Client]bool)
	}
	m.rooms[roomID][client] = true
	client.RoomID = roomID
	client.ClientID = clientID
}

// BroadcastRoomState 把房間快照推送給訂閱該房間的所有連線
func (m *WebSocketManager) BroadcastRoomState(roomID string, state models.RoomState) {
	payload, err := json.Marshal(models.NewRoomStateEvent(state))
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to encode room state")
		return
	}

	m.mu.RLock()
	targets := make([]*Client, 0, len(m.rooms[roomID]))
	for client := range m.rooms[roomID] {
		targets = append(targets, client)
	}
	m.mu.RUnlock()

	m.deliver(targets, payload)
}

// BroadcastRoomsSummary 把全域房間列表推送給所有連線，不限房間
func (m *WebSocketManager) BroadcastRoomsSummary(summary models.RoomsSummary) {
	payload, err := json.Marshal(models.NewRoomsStateEvent(summary))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode rooms summary")
		return
	}

	m.mu.RLock()
	targets := make([]*Client, 0, len(m.clients))
	for client := range m.clients {
		targets = append(targets, client)
	}
	m.mu.RUnlock()

	m.deliver(targets, payload)
}

// Send 對單一連線送出一則訊息，通常用於請求的同步回應
func (m *WebSocketManager) Send(client *Client, message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode message")
		return
	}
	m.deliver([]*Client{client}, payload)
}

// ConnectionCount 回傳目前存活的連線數
func (m *WebSocketManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.clients)
}

// deliver 逐一送進各連線的外送通道
// 通道塞滿代表客戶端消化不及，直接斷開，推送是盡力而為
func (m *WebSocketManager) deliver(targets []*Client, payload []byte) {
	var dropped []*Client

	m.mu.RLock()
	for _, client := range targets {
		if !m.clients[client] {
			continue
		}
		select {
		case client.SendChan <- payload:
		default:
			dropped = append(dropped, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range dropped {
		log.Warn().Str("channel_id", client.ChannelID).Msg("send buffer full, dropping client")
		m.removeClient(client)
		client.Conn.Close()
	}
}

// readPump 持續讀取客戶端送來的訊息，直到連線關閉
func (m *WebSocketManager) readPump(client *Client, onMessage func(*Client, []byte)) {
	client.Conn.SetReadLimit(m.cfg.ReadLimit)
	client.Conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(m.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("channel_id", client.ChannelID).Msg("websocket unexpected close")
			}
			return
		}
		onMessage(client, message)
	}
}

// writePump 處理向客戶端發送訊息與心跳
func (m *WebSocketManager) writePump(client *Client) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			client.Conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// addClient 安全地登記新連線
func (m *WebSocketManager) addClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client] = true
}

// removeClient 解除連線的所有登記並關閉外送通道
// 關閉通道與解除登記在同一把鎖內完成，deliver 不會寫入已關閉的通道
func (m *WebSocketManager) removeClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.clients[client] {
		return
	}
	delete(m.clients, client)
	if subscribers, ok := m.rooms[client.RoomID]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(m.rooms, client.RoomID)
		}
	}
	close(client.SendChan)
}

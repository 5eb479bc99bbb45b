package service

import (
	"crypto/rand"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"planning_poker/internal/models"
	"planning_poker/internal/repository"
)

// 房間代碼的字母表，排除容易混淆的 0/O/1/I
const roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const roomIDLength = 6

// RoomService 負責房間的完整生命週期：
// 建立與查詢、成員與管理員管理、回合狀態機、閒置回收
// 每個房間的變更都在該房間的鎖內完成，快照也在鎖內產生再推送
type RoomService struct {
	roomRepo             repository.RoomRepository
	wsManager            *WebSocketManager
	clock                clockwork.Clock
	defaultVotingOptions []string
}

func NewRoomService(roomRepo repository.RoomRepository, wsManager *WebSocketManager, clock clockwork.Clock, defaultVotingOptions []string) *RoomService {
	return &RoomService{
		roomRepo:             roomRepo,
		wsManager:            wsManager,
		clock:                clock,
		defaultVotingOptions: defaultVotingOptions,
	}
}

// CreateRoom 建立一個新房間並推送更新後的房間列表
// 代碼碰撞時重新抽取，代碼空間遠大於同時存活的房間數
func (s *RoomService) CreateRoom(createdByClientID string) *models.Room {
	for {
		room := models.NewRoom(generateRoomID(), strings.TrimSpace(createdByClientID), s.defaultVotingOptions, s.clock.Now())
		if err := s.roomRepo.Create(room); err != nil {
			continue
		}
		log.Info().Str("room_id", room.ID).Msg("room created")
		s.broadcastSummaries()
		return room
	}
}

// GetRoom 依代碼查詢房間，代碼不分大小寫並去除前後空白
func (s *RoomService) GetRoom(roomID string) (*models.Room, error) {
	return s.roomRepo.FindByID(normalizeRoomID(roomID))
}

// GetRoomState 取得房間的公開狀態快照
func (s *RoomService) GetRoomState(roomID string) (models.RoomState, error) {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return models.RoomState{}, err
	}
	room.Lock()
	state := models.NewRoomState(room)
	room.Unlock()
	return state, nil
}

// JoinRoom 讓客戶端加入房間並綁定其 WebSocket 通道
// 同一個 clientId 重複加入視為重連：更新名字並重新綁定通道，不新增成員
// 回傳加入後是否為管理員
func (s *RoomService) JoinRoom(client *Client, roomID, name, clientID string) (*models.Room, bool, error) {
	roomID = normalizeRoomID(roomID)
	name = strings.TrimSpace(name)
	clientID = strings.TrimSpace(clientID)
	if roomID == "" || name == "" || clientID == "" {
		return nil, false, ErrInvalidPayload
	}

	room, err := s.roomRepo.FindByID(roomID)
	if err != nil {
		return nil, false, err
	}

	room.Lock()

	// 名字在房間內不分大小寫必須唯一，但同一個 clientId 改名不受限
	if room.FindParticipantByName(name, clientID) != nil {
		room.Unlock()
		return nil, false, ErrDuplicateName
	}

	if existing := room.FindParticipant(clientID); existing != nil {
		existing.ChannelID = client.ChannelID
		existing.Name = name
	} else {
		room.Participants = append(room.Participants, &models.Participant{
			ClientID:  clientID,
			ChannelID: client.ChannelID,
			Name:      name,
		})
	}
	room.ParticipantDirectory[clientID] = name

	// 管理員指派：建立者加入時無條件取回控制權，否則無管理員時先到先得
	if room.CreatedByClientID != "" && room.CreatedByClientID == clientID {
		room.AdminClientID = clientID
	} else if room.AdminClientID == "" {
		room.AdminClientID = clientID
	}

	isAdmin := room.IsAdmin(clientID)
	room.LastActiveAt = s.clock.Now()

	// 先把通道加入訂閱再推送，加入者本身也要收到這次的快照
	s.wsManager.BindRoom(client, roomID, clientID)
	s.wsManager.BroadcastRoomState(roomID, models.NewRoomState(room))
	room.Unlock()

	s.broadcastSummaries()
	return room, isAdmin, nil
}

// LeaveRoom 處理通道斷線後的成員移除
// 只移除仍綁定在這個通道上的成員；重連後留下的舊通道斷線不會誤刪新的綁定
// 該成員未開票的票一併作廢，管理員離開時由最早加入的成員遞補
func (s *RoomService) LeaveRoom(roomID, channelID string) {
	room, err := s.roomRepo.FindByID(normalizeRoomID(roomID))
	if err != nil {
		return
	}

	room.Lock()
	participant := room.FindParticipantByChannel(channelID)
	if participant == nil {
		room.Unlock()
		return
	}

	remaining := room.Participants[:0]
	for _, p := range room.Participants {
		if p.ChannelID != channelID {
			remaining = append(remaining, p)
		}
	}
	room.Participants = remaining
	delete(room.RoundVotes, participant.ClientID)
	room.EnsureAdmin()
	room.LastActiveAt = s.clock.Now()

	s.wsManager.BroadcastRoomState(room.ID, models.NewRoomState(room))
	room.Unlock()

	log.Info().Str("room_id", room.ID).Str("client_id", participant.ClientID).Msg("participant left room")
	s.broadcastSummaries()
}

// StartRound 開始新一輪投票，只有管理員可以執行，且房間必須處於等待狀態
func (s *RoomService) StartRound(roomID, clientID string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}

	room.Lock()
	if !room.IsAdmin(clientID) {
		room.Unlock()
		return ErrNotAdmin
	}
	if room.Status != models.RoomStatusWaiting {
		room.Unlock()
		return ErrInvalidTransition
	}

	room.Status = models.RoomStatusVoting
	room.RoundVotes = make(map[string]string)
	room.LastActiveAt = s.clock.Now()

	s.wsManager.BroadcastRoomState(room.ID, models.NewRoomState(room))
	room.Unlock()

	s.broadcastSummaries()
	return nil
}

// SubmitVote 記錄或覆寫一票
// 當所有現存成員都投完票時自動開票，不需要等管理員
func (s *RoomService) SubmitVote(roomID, clientID, vote string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}

	room.Lock()
	if room.Status != models.RoomStatusVoting {
		room.Unlock()
		return ErrVotingNotActive
	}
	if room.FindParticipant(clientID) == nil {
		room.Unlock()
		return ErrNotParticipant
	}
	if !room.IsValidVote(vote) {
		room.Unlock()
		return ErrInvalidVote
	}

	room.RoundVotes[clientID] = vote
	if room.AllVoted() {
		room.Status = models.RoomStatusRevealed
		room.History = append(room.History, s.buildRoundRecord(room, true))
	}
	room.LastActiveAt = s.clock.Now()

	s.wsManager.BroadcastRoomState(room.ID, models.NewRoomState(room))
	room.Unlock()

	s.broadcastSummaries()
	return nil
}

// RevealRound 由管理員手動開票，只在投票進行中合法
func (s *RoomService) RevealRound(roomID, clientID string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}

	room.Lock()
	if !room.IsAdmin(clientID) {
		room.Unlock()
		return ErrNotAdmin
	}
	if room.Status != models.RoomStatusVoting {
		room.Unlock()
		return ErrNoActiveRound
	}

	room.Status = models.RoomStatusRevealed
	room.History = append(room.History, s.buildRoundRecord(room, false))
	room.LastActiveAt = s.clock.Now()

	s.wsManager.BroadcastRoomState(room.ID, models.NewRoomState(room))
	room.Unlock()

	s.broadcastSummaries()
	return nil
}

// ResetRound 結束本回合並回到等待狀態，回合數加一
// 只能在開票後重置，投票進行中不可重置
func (s *RoomService) ResetRound(roomID, clientID string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}

	room.Lock()
	if !room.IsAdmin(clientID) {
		room.Unlock()
		return ErrNotAdmin
	}
	if room.Status != models.RoomStatusRevealed {
		room.Unlock()
		return ErrInvalidTransition
	}

	room.CurrentRound++
	room.Status = models.RoomStatusWaiting
	room.RoundVotes = make(map[string]string)
	room.LastActiveAt = s.clock.Now()

	s.wsManager.BroadcastRoomState(room.ID, models.NewRoomState(room))
	room.Unlock()

	s.broadcastSummaries()
	return nil
}

// UpdateVotingOptions 整批替換房間允許的投票選項
// 只做形狀檢查：非空、每個選項去除空白後非空、彼此不重複
// 舊量表下已投出的票不會回頭重新驗證
func (s *RoomService) UpdateVotingOptions(roomID, clientID string, options []string) error {
	room, err := s.GetRoom(roomID)
	if err != nil {
		return err
	}

	cleaned, ok := normalizeVotingOptions(options)
	if !ok {
		return ErrInvalidScale
	}

	room.Lock()
	if !room.IsAdmin(clientID) {
		room.Unlock()
		return ErrNotAdmin
	}

	room.Settings.VotingOptions = cleaned
	room.LastActiveAt = s.clock.Now()

	s.wsManager.BroadcastRoomState(room.ID, models.NewRoomState(room))
	room.Unlock()

	s.broadcastSummaries()
	return nil
}

// ListSummaries 產生所有房間的監控投影，依最近活躍時間由新到舊排序
func (s *RoomService) ListSummaries() models.RoomsSummary {
	rooms := s.roomRepo.FindAll()

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.Lock()
		summaries = append(summaries, models.NewRoomSummary(room))
		room.Unlock()
	}

	// 由新到舊排序，最近活躍的房間排最前面
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActiveAt.After(summaries[j].LastActiveAt)
	})

	return models.RoomsSummary{
		Rooms:       summaries,
		TotalRooms:  len(summaries),
		GeneratedAt: s.clock.Now(),
	}
}

// EvictIdle 移除沒有成員且閒置超過 ttl 的房間
// 回傳是否有任何房間被移除，供呼叫端決定是否推送更新後的列表
func (s *RoomService) EvictIdle(ttl time.Duration) bool {
	now := s.clock.Now()
	evicted := false

	for _, room := range s.roomRepo.FindAll() {
		room.Lock()
		if len(room.Participants) == 0 && now.Sub(room.LastActiveAt) > ttl {
			if err := s.roomRepo.Delete(room.ID); err == nil {
				evicted = true
				log.Info().Str("room_id", room.ID).Time("last_active_at", room.LastActiveAt).Msg("idle room evicted")
			}
		}
		room.Unlock()
	}

	return evicted
}

// buildRoundRecord 在開票當下產生不可變的回合紀錄，呼叫時必須持有房間鎖
// 自動開票與手動開票一致：只記錄仍在房間內成員的票，離開者的票不會留下
func (s *RoomService) buildRoundRecord(room *models.Room, autoRevealed bool) models.RoundRecord {
	votes := make(map[string]string)
	for _, p := range room.Participants {
		if vote, ok := room.RoundVotes[p.ClientID]; ok {
			votes[p.ClientID] = vote
		}
	}

	details := make([]models.VoteDetail, 0, len(votes))
	for _, p := range room.Participants {
		vote, ok := votes[p.ClientID]
		if !ok {
			continue
		}
		name, ok := room.ParticipantDirectory[p.ClientID]
		if !ok {
			name = "Unknown"
		}
		details = append(details, models.VoteDetail{ClientID: p.ClientID, Name: name, Vote: vote})
	}

	return models.RoundRecord{
		Round:        room.CurrentRound,
		Votes:        votes,
		VoteDetails:  details,
		Average:      computeAverage(votes),
		RevealedAt:   s.clock.Now(),
		AutoRevealed: autoRevealed,
	}
}

func (s *RoomService) broadcastSummaries() {
	s.wsManager.BroadcastRoomsSummary(s.ListSummaries())
}

// computeAverage 計算數值票的平均，四捨五入到小數點後兩位
// 無法解析為數字的票（例如 "?" 或 "☕"）不列入計算
// 全部都是非數值票時平均為 nil，這是正常結果而不是錯誤
func computeAverage(votes map[string]string) *float64 {
	var sum float64
	var count int
	for _, vote := range votes {
		value, err := strconv.ParseFloat(vote, 64)
		if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
			continue
		}
		sum += value
		count++
	}
	if count == 0 {
		return nil
	}
	average := math.Round(sum/float64(count)*100) / 100
	return &average
}

// normalizeVotingOptions 清理並驗證投票選項的形狀
func normalizeVotingOptions(options []string) ([]string, bool) {
	if len(options) == 0 {
		return nil, false
	}
	cleaned := make([]string, 0, len(options))
	seen := make(map[string]bool)
	for _, option := range options {
		option = strings.TrimSpace(option)
		if option == "" || seen[option] {
			return nil, false
		}
		seen[option] = true
		cleaned = append(cleaned, option)
	}
	return cleaned, true
}

func normalizeRoomID(roomID string) string {
	return strings.ToUpper(strings.TrimSpace(roomID))
}

// generateRoomID 產生六碼房間代碼
func generateRoomID() string {
	buf := make([]byte, roomIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	id := make([]byte, roomIDLength)
	for i, b := range buf {
		id[i] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
	}
	return string(id)
}

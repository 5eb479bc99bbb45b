package service

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planning_poker/internal/models"
	"planning_poker/internal/repository"
	"planning_poker/pkg/config"
)

var testVotingOptions = []string{"1", "2", "3", "5", "8", "13", "21", "?", "☕"}

func newTestRoomService(t *testing.T) (*RoomService, *WebSocketManager, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	wsManager := NewWebSocketManager(config.WebSocketConfig{
		ReadLimit:    4096,
		WriteTimeout: time.Second,
		PongTimeout:  time.Minute,
		PingInterval: time.Minute,
	})
	svc := NewRoomService(repository.NewRoomRepository(), wsManager, clock, testVotingOptions)
	return svc, wsManager, clock
}

func newTestClient(channelID string) *Client {
	return &Client{ChannelID: channelID, SendChan: make(chan []byte, 64)}
}

func joinRoom(t *testing.T, svc *RoomService, roomID, clientID, name, channelID string) *Client {
	t.Helper()

	client := newTestClient(channelID)
	_, _, err := svc.JoinRoom(client, roomID, name, clientID)
	require.NoError(t, err)
	return client
}

func TestCreateRoomDefaults(t *testing.T) {
	svc, _, _ := newTestRoomService(t)

	room := svc.CreateRoom("c1")

	assert.Len(t, room.ID, 6)
	for _, ch := range room.ID {
		assert.Contains(t, roomIDAlphabet, string(ch))
	}
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, 1, room.CurrentRound)
	assert.Equal(t, "c1", room.CreatedByClientID)
	assert.Empty(t, room.AdminClientID)
	assert.Empty(t, room.Participants)
	assert.Empty(t, room.History)
	assert.Equal(t, testVotingOptions, room.Settings.VotingOptions)
}

func TestGetRoomNormalizesID(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("")

	found, err := svc.GetRoom("  " + strings.ToLower(room.ID) + " ")
	require.NoError(t, err)
	assert.Equal(t, room.ID, found.ID)

	_, err = svc.GetRoom("NOSUCH")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestJoinRoomValidation(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("")

	_, _, err := svc.JoinRoom(newTestClient("ch1"), room.ID, "", "c1")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = svc.JoinRoom(newTestClient("ch1"), room.ID, "Alice", "  ")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = svc.JoinRoom(newTestClient("ch1"), "ZZZZZZ", "Alice", "c1")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestJoinRoomAdminAssignment(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")

	// 建立者加入後成為管理員
	_, isAdmin, err := svc.JoinRoom(newTestClient("ch1"), room.ID, "Alice", "c1")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, "c1", room.AdminClientID)

	// 之後加入的人不會搶走管理員
	_, isAdmin, err = svc.JoinRoom(newTestClient("ch2"), room.ID, "Bob", "c2")
	require.NoError(t, err)
	assert.False(t, isAdmin)
	assert.Equal(t, "c1", room.AdminClientID)
}

func TestJoinRoomFirstComeAdminWithoutCreator(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("")

	_, isAdmin, err := svc.JoinRoom(newTestClient("ch1"), room.ID, "Alice", "c1")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	_, isAdmin, err = svc.JoinRoom(newTestClient("ch2"), room.ID, "Bob", "c2")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestCreatorReclaimsAdminOnRejoin(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")

	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")

	// 建立者離開後由最早加入的剩餘成員遞補
	svc.LeaveRoom(room.ID, "ch1")
	assert.Equal(t, "c2", room.AdminClientID)

	// 建立者重新加入時無條件取回管理員
	_, isAdmin, err := svc.JoinRoom(newTestClient("ch3"), room.ID, "Alice", "c1")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, "c1", room.AdminClientID)
}

func TestJoinRoomDuplicateName(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")

	// 名字比對不分大小寫
	_, _, err := svc.JoinRoom(newTestClient("ch3"), room.ID, "alice", "c3")
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.Len(t, room.Participants, 1)
	assert.Equal(t, "c1", room.AdminClientID)
}

func TestJoinRoomReconnectUpdatesBinding(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")

	// 同一個 clientId 重連：改名、換通道，不新增成員
	_, _, err := svc.JoinRoom(newTestClient("ch2"), room.ID, "Alicia", "c1")
	require.NoError(t, err)

	require.Len(t, room.Participants, 1)
	assert.Equal(t, "Alicia", room.Participants[0].Name)
	assert.Equal(t, "ch2", room.Participants[0].ChannelID)

	// 舊通道的斷線事件不會誤刪重連後的成員
	svc.LeaveRoom(room.ID, "ch1")
	assert.Len(t, room.Participants, 1)
}

func TestStartRound(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")

	assert.ErrorIs(t, svc.StartRound(room.ID, "c2"), ErrNotAdmin)
	assert.Equal(t, models.RoomStatusWaiting, room.Status)

	require.NoError(t, svc.StartRound(room.ID, "c1"))
	assert.Equal(t, models.RoomStatusVoting, room.Status)
	assert.Empty(t, room.RoundVotes)

	// 投票進行中不能再開始一輪
	assert.ErrorIs(t, svc.StartRound(room.ID, "c1"), ErrInvalidTransition)
}

func TestSubmitVoteAutoReveal(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")
	require.NoError(t, svc.StartRound(room.ID, "c1"))

	// 還有人沒投票，不能自動開票
	require.NoError(t, svc.SubmitVote(room.ID, "c1", "5"))
	assert.Equal(t, models.RoomStatusVoting, room.Status)
	assert.Empty(t, room.History)

	// 最後一票送出後自動開票
	require.NoError(t, svc.SubmitVote(room.ID, "c2", "8"))
	assert.Equal(t, models.RoomStatusRevealed, room.Status)

	require.Len(t, room.History, 1)
	record := room.History[0]
	assert.Equal(t, 1, record.Round)
	assert.True(t, record.AutoRevealed)
	assert.Equal(t, map[string]string{"c1": "5", "c2": "8"}, record.Votes)
	require.NotNil(t, record.Average)
	assert.Equal(t, 6.5, *record.Average)

	// 重置後回到等待狀態，回合加一，歷史保留
	require.NoError(t, svc.ResetRound(room.ID, "c1"))
	assert.Equal(t, models.RoomStatusWaiting, room.Status)
	assert.Equal(t, 2, room.CurrentRound)
	assert.Empty(t, room.RoundVotes)
	assert.Len(t, room.History, 1)
}

func TestSubmitVoteOverwrite(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")
	require.NoError(t, svc.StartRound(room.ID, "c1"))

	require.NoError(t, svc.SubmitVote(room.ID, "c1", "5"))
	require.NoError(t, svc.SubmitVote(room.ID, "c1", "13"))
	assert.Equal(t, "13", room.RoundVotes["c1"])
	assert.Equal(t, models.RoomStatusVoting, room.Status)
}

func TestSubmitVoteErrors(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")

	// 等待狀態不接受投票
	assert.ErrorIs(t, svc.SubmitVote(room.ID, "c1", "5"), ErrVotingNotActive)

	require.NoError(t, svc.StartRound(room.ID, "c1"))

	assert.ErrorIs(t, svc.SubmitVote(room.ID, "c1", "4"), ErrInvalidVote)
	assert.ErrorIs(t, svc.SubmitVote(room.ID, "ghost", "5"), ErrNotParticipant)
	assert.Empty(t, room.RoundVotes)
}

func TestRevealRound(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")

	// 沒有進行中的回合
	assert.ErrorIs(t, svc.RevealRound(room.ID, "c1"), ErrNoActiveRound)

	require.NoError(t, svc.StartRound(room.ID, "c1"))
	require.NoError(t, svc.SubmitVote(room.ID, "c1", "3"))

	// 非管理員不能開票，狀態不變
	assert.ErrorIs(t, svc.RevealRound(room.ID, "c2"), ErrNotAdmin)
	assert.Equal(t, models.RoomStatusVoting, room.Status)

	require.NoError(t, svc.RevealRound(room.ID, "c1"))
	assert.Equal(t, models.RoomStatusRevealed, room.Status)

	require.Len(t, room.History, 1)
	record := room.History[0]
	assert.False(t, record.AutoRevealed)
	assert.Equal(t, map[string]string{"c1": "3"}, record.Votes)
	require.Len(t, record.VoteDetails, 1)
	assert.Equal(t, "Alice", record.VoteDetails[0].Name)
}

func TestResetRoundOnlyFromRevealed(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")

	assert.ErrorIs(t, svc.ResetRound(room.ID, "c1"), ErrInvalidTransition)

	require.NoError(t, svc.StartRound(room.ID, "c1"))
	assert.ErrorIs(t, svc.ResetRound(room.ID, "c1"), ErrInvalidTransition)
	assert.Equal(t, 1, room.CurrentRound)
}

func TestDisconnectMidVoteDoesNotBlockAutoReveal(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")
	joinRoom(t, svc, room.ID, "c3", "Carol", "ch3")
	require.NoError(t, svc.StartRound(room.ID, "c1"))

	// Carol 投完票就斷線，她的票作廢
	require.NoError(t, svc.SubmitVote(room.ID, "c3", "21"))
	svc.LeaveRoom(room.ID, "ch3")
	assert.Equal(t, models.RoomStatusVoting, room.Status)
	assert.NotContains(t, room.RoundVotes, "c3")

	// 剩下的人投完即自動開票，離開者的票不出現在紀錄裡
	require.NoError(t, svc.SubmitVote(room.ID, "c1", "5"))
	require.NoError(t, svc.SubmitVote(room.ID, "c2", "8"))
	assert.Equal(t, models.RoomStatusRevealed, room.Status)

	require.Len(t, room.History, 1)
	record := room.History[0]
	assert.Equal(t, map[string]string{"c1": "5", "c2": "8"}, record.Votes)
	assert.True(t, record.AutoRevealed)
}

func TestLeaveRoomAdminFailover(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")
	joinRoom(t, svc, room.ID, "c3", "Carol", "ch3")

	svc.LeaveRoom(room.ID, "ch1")
	assert.Equal(t, "c2", room.AdminClientID)

	svc.LeaveRoom(room.ID, "ch2")
	assert.Equal(t, "c3", room.AdminClientID)

	svc.LeaveRoom(room.ID, "ch3")
	assert.Empty(t, room.AdminClientID)
	assert.Empty(t, room.Participants)
}

func TestUpdateVotingOptions(t *testing.T) {
	svc, _, _ := newTestRoomService(t)
	room := svc.CreateRoom("c1")
	joinRoom(t, svc, room.ID, "c1", "Alice", "ch1")
	joinRoom(t, svc, room.ID, "c2", "Bob", "ch2")

	assert.ErrorIs(t, svc.UpdateVotingOptions(room.ID, "c2", []string{"XS", "S"}), ErrNotAdmin)
	assert.ErrorIs(t, svc.UpdateVotingOptions(room.ID, "c1", nil), ErrInvalidScale)
	assert.ErrorIs(t, svc.UpdateVotingOptions(room.ID, "c1", []string{"S", " ", "M"}), ErrInvalidScale)
	assert.ErrorIs(t, svc.UpdateVotingOptions(room.ID, "c1", []string{"S", "S"}), ErrInvalidScale)

	// 換量表不會回頭重新驗證已投出的票
	require.NoError(t, svc.StartRound(room.ID, "c1"))
	require.NoError(t, svc.SubmitVote(room.ID, "c1", "5"))
	require.NoError(t, svc.UpdateVotingOptions(room.ID, "c1", []string{"XS", "S", "M"}))
	assert.Equal(t, []string{"XS", "S", "M"}, room.Settings.VotingOptions)
	assert.Equal(t, "5", room.RoundVotes["c1"])
	assert.Equal(t, models.RoomStatusVoting, room.Status)

	// 新量表立即生效
	assert.ErrorIs(t, svc.SubmitVote(room.ID, "c2", "8"), ErrInvalidVote)
	require.NoError(t, svc.SubmitVote(room.ID, "c2", "M"))
}

func TestComputeAverage(t *testing.T) {
	avg := computeAverage(map[string]string{"a": "1", "b": "2", "c": "3"})
	require.NotNil(t, avg)
	assert.Equal(t, 2.0, *avg)

	// 非數值票不列入計算，也不當成零
	avg = computeAverage(map[string]string{"a": "1", "b": "2", "c": "?"})
	require.NotNil(t, avg)
	assert.Equal(t, 1.5, *avg)

	// 全部都是非數值票時平均為空，不是零也不是錯誤
	assert.Nil(t, computeAverage(map[string]string{"a": "?", "b": "☕"}))
	assert.Nil(t, computeAverage(map[string]string{}))

	// 四捨五入到小數點後兩位
	avg = computeAverage(map[string]string{"a": "1", "b": "1", "c": "2"})
	require.NotNil(t, avg)
	assert.Equal(t, 1.33, *avg)
}

func TestListSummaries(t *testing.T) {
	svc, _, clock := newTestRoomService(t)

	first := svc.CreateRoom("c1")
	joinRoom(t, svc, first.ID, "c1", "Alice", "ch1")

	clock.Advance(time.Minute)
	second := svc.CreateRoom("")
	joinRoom(t, svc, second.ID, "c2", "Bob", "ch2")

	summary := svc.ListSummaries()
	assert.Equal(t, 2, summary.TotalRooms)
	require.Len(t, summary.Rooms, 2)

	// 最近活躍的房間排最前面
	assert.Equal(t, second.ID, summary.Rooms[0].ID)
	assert.Equal(t, first.ID, summary.Rooms[1].ID)

	require.NotNil(t, summary.Rooms[0].AdminName)
	assert.Equal(t, "Bob", *summary.Rooms[0].AdminName)
	assert.Nil(t, summary.Rooms[0].CreatorName)
	require.NotNil(t, summary.Rooms[1].CreatorName)
	assert.Equal(t, "Alice", *summary.Rooms[1].CreatorName)
	assert.Equal(t, 1, summary.Rooms[0].ParticipantCount)
}

func TestEvictIdle(t *testing.T) {
	svc, _, clock := newTestRoomService(t)

	empty := svc.CreateRoom("")
	occupied := svc.CreateRoom("")
	joinRoom(t, svc, occupied.ID, "c1", "Alice", "ch1")

	// 未超過 TTL 不清除
	clock.Advance(10 * time.Minute)
	assert.False(t, svc.EvictIdle(30*time.Minute))

	clock.Advance(21 * time.Minute)
	assert.True(t, svc.EvictIdle(30*time.Minute))

	_, err := svc.GetRoom(empty.ID)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	// 有成員的房間不受閒置清理影響
	_, err = svc.GetRoom(occupied.ID)
	assert.NoError(t, err)
}

package repository

import (
	"errors"
	"sync"

	"planning_poker/internal/models"
)

var (
	// ErrRoomNotFound 表示查無此房間
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists 表示房間代碼已被占用
	ErrRoomExists = errors.New("room already exists")
)

// RoomRepository 管理存活中的房間集合
// 整個系統的狀態只存在於記憶體，程序重啟後全部清空
type RoomRepository interface {
	Create(room *models.Room) error
	FindByID(id string) (*models.Room, error)
	Delete(id string) error
	FindAll() []*models.Room
	Count() int
}

type roomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
}

// NewRoomRepository 建立一個空的記憶體房間庫
func NewRoomRepository() RoomRepository {
	return &roomRepository{
		rooms: make(map[string]*models.Room),
	}
}

// Create 新增房間；代碼已存在時回傳 ErrRoomExists
// 檢查與寫入在同一把鎖內完成，同時建立房間不會互相覆蓋
func (r *roomRepository) Create(room *models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.ID]; ok {
		return ErrRoomExists
	}
	r.rooms[room.ID] = room
	return nil
}

func (r *roomRepository) FindByID(id string) (*models.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (r *roomRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(r.rooms, id)
	return nil
}

// FindAll 回傳所有存活房間，順序不固定
func (r *roomRepository) FindAll() []*models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (r *roomRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

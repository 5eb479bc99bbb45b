package repository

type Repositories struct {
	Room RoomRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Room: NewRoomRepository(),
	}
}

package model

import "time"

// Room statuses of m_rooms. Occupied holds exactly while an active
// t_guest_room row references the room.
const (
	RoomAvailable   = "Available"
	RoomOccupied    = "Occupied"
	RoomMaintenance = "Maintenance"
	RoomReserved    = "Reserved"
)

// Action types recorded on t_guest_room.
const (
	RoomActionAllocated = "Allocated"
	RoomActionChanged   = "Changed"
	RoomActionUpgraded  = "Upgraded"
	RoomActionVacated   = "Vacated"
)

type Room struct {
	RoomID       string     `json:"room_id"`
	RoomNo       string     `json:"room_no"`
	RoomName     *string    `json:"room_name,omitempty"`
	BuildingName *string    `json:"building_name,omitempty"`
	RoomType     *string    `json:"room_type,omitempty"`
	Capacity     int        `json:"capacity"`
	Status       string     `json:"status"`
	IsActive     bool       `json:"is_active"`
	InsertedAt   time.Time  `json:"inserted_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// GuestRoom is the guest-to-room assignment fact.
type GuestRoom struct {
	GuestRoomID       string     `json:"guest_room_id"`
	GuestID           string     `json:"guest_id"`
	RoomID            string     `json:"room_id"`
	CheckInDate       string     `json:"check_in_date"`
	CheckInTime       string     `json:"check_in_time"`
	CheckOutDate      *string    `json:"check_out_date,omitempty"`
	CheckOutTime      *string    `json:"check_out_time,omitempty"`
	ActionType        string     `json:"action_type"`
	ActionDescription *string    `json:"action_description,omitempty"`
	Remarks           *string    `json:"remarks,omitempty"`
	IsActive          bool       `json:"is_active"`
	InsertedAt        time.Time  `json:"inserted_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

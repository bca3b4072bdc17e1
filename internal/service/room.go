package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/database"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// A room holds one active guest assignment at a time.
const roomAssignmentCapacity = 1

// RoomService owns the room master and the guest-room assignment
// workflow. A room is Occupied exactly while an active assignment points
// at it.
type RoomService struct {
	Deps
	Rooms  *repository.RoomRepo
	Guests *repository.GuestRepo
	InOut  *repository.InOutRepo
}

func NewRoomService(d Deps, rooms *repository.RoomRepo, guests *repository.GuestRepo, inout *repository.InOutRepo) *RoomService {
	return &RoomService{Deps: d, Rooms: rooms, Guests: guests, InOut: inout}
}

type RoomInput struct {
	RoomNo       *string `json:"room_no"`
	RoomName     *string `json:"room_name"`
	BuildingName *string `json:"building_name"`
	RoomType     *string `json:"room_type"`
	Capacity     *int    `json:"capacity"`
	Status       *string `json:"status"`
}

// manualStatus validates a status set by a user. Occupied is derived from
// assignments only.
func manualStatus(s string) error {
	switch s {
	case model.RoomAvailable, model.RoomMaintenance, model.RoomReserved:
		return nil
	case model.RoomOccupied:
		return apperr.Validationf("status Occupied is set by assigning a guest")
	}
	return apperr.Validationf("unknown room status %q", s)
}

func (s *RoomService) CreateRoom(ctx context.Context, in RoomInput, a model.Actor) (*model.Room, error) {
	if in.RoomNo == nil {
		return nil, apperr.Validationf("room_no is required")
	}
	no, err := required("room_no", *in.RoomNo)
	if err != nil {
		return nil, err
	}
	rm := &model.Room{RoomNo: no, RoomName: trimmed(in.RoomName), BuildingName: trimmed(in.BuildingName),
		RoomType: trimmed(in.RoomType), Capacity: 1, Status: model.RoomAvailable}
	if in.Capacity != nil {
		rm.Capacity = *in.Capacity
	}
	if rm.Capacity < 1 {
		return nil, apperr.Validationf("capacity must be at least 1")
	}
	if in.Status != nil {
		if err := manualStatus(*in.Status); err != nil {
			return nil, err
		}
		rm.Status = *in.Status
	}

	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := s.Seq.NextTx(ctx, tx, repository.PrefixRoom)
		if err != nil {
			return err
		}
		rm.RoomID = id
		if err := s.Rooms.CreateTx(ctx, tx, rm, a); err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflictf("room number %s already exists", no)
			}
			return fmt.Errorf("insert room: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "room", "create", id, "Room "+no+" created", a)
	})
	if err != nil {
		return nil, err
	}
	return rm, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	rm, err := s.Rooms.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	return rm, nil
}

func (s *RoomService) ListRooms(ctx context.Context, all bool) ([]model.Room, error) {
	return s.Rooms.List(ctx, all)
}

// lockActiveRoom locks a room that must exist and be active.
func (s *RoomService) lockActiveRoom(ctx context.Context, tx *sql.Tx, id string) (*model.Room, error) {
	rm, err := s.Rooms.LockTx(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	if !rm.IsActive {
		return nil, apperr.NotFoundf("room %s not found", id)
	}
	return rm, nil
}

// UpdateRoom merges in over the room. A status change is checked against
// the room's active assignments.
func (s *RoomService) UpdateRoom(ctx context.Context, id string, in RoomInput, a model.Actor) (*model.Room, error) {
	var out *model.Room
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		rm, err := s.lockActiveRoom(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.RoomNo != nil {
			if rm.RoomNo, err = required("room_no", *in.RoomNo); err != nil {
				return err
			}
		}
		rm.RoomName = pick(rm.RoomName, in.RoomName)
		rm.BuildingName = pick(rm.BuildingName, in.BuildingName)
		rm.RoomType = pick(rm.RoomType, in.RoomType)
		if in.Capacity != nil {
			if *in.Capacity < 1 {
				return apperr.Validationf("capacity must be at least 1")
			}
			rm.Capacity = *in.Capacity
		}
		if in.Status != nil && *in.Status != rm.Status {
			if err := manualStatus(*in.Status); err != nil {
				return err
			}
			active, err := s.Rooms.LockActiveByRoomTx(ctx, tx, id)
			if err != nil {
				return fmt.Errorf("count room assignments: %w", err)
			}
			if active > 0 {
				return apperr.Conflictf("room %s has %d active assignment(s); vacate before changing status", id, active)
			}
			rm.Status = *in.Status
		}
		if err := s.Rooms.UpdateTx(ctx, tx, rm, a); err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflictf("room number %s already exists", rm.RoomNo)
			}
			return fmt.Errorf("update room: %w", err)
		}
		out = rm
		return s.Activity.AppendTx(ctx, tx, "room", "update", id, "Room updated", a)
	})
	return out, err
}

func (s *RoomService) DeleteRoom(ctx context.Context, id string, a model.Actor) error {
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.lockActiveRoom(ctx, tx, id); err != nil {
			return err
		}
		active, err := s.Rooms.LockActiveByRoomTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("count room assignments: %w", err)
		}
		if active > 0 {
			return apperr.Conflictf("room %s is occupied", id)
		}
		if err := s.Rooms.DeactivateTx(ctx, tx, id, a); err != nil {
			return fmt.Errorf("deactivate room: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "room", "delete", id, "Room deactivated", a)
	})
}

type RoomAssignInput struct {
	GuestID           string  `json:"guest_id"`
	RoomID            string  `json:"room_id"`
	CheckInDate       *string `json:"check_in_date"`
	CheckInTime       *string `json:"check_in_time"`
	ActionDescription *string `json:"action_description"`
	Remarks           *string `json:"remarks"`
}

// checkRoomFree verifies that rm can take a new assignment.
func (s *RoomService) checkRoomFree(ctx context.Context, tx *sql.Tx, rm *model.Room) error {
	if rm.Status == model.RoomMaintenance {
		return apperr.Conflictf("room %s is under maintenance", rm.RoomID)
	}
	active, err := s.Rooms.LockActiveByRoomTx(ctx, tx, rm.RoomID)
	if err != nil {
		return fmt.Errorf("count room assignments: %w", err)
	}
	if active >= roomAssignmentCapacity {
		return apperr.Capacityf("room %s is already occupied", rm.RoomID)
	}
	return nil
}

// Assign allocates a room to a guest. The room row and its active
// assignments are locked first, so of two concurrent requests for the
// same room the second sees the first one's row.
func (s *RoomService) Assign(ctx context.Context, in RoomAssignInput, a model.Actor) (gr *model.GuestRoom, err error) {
	defer func() { s.Metrics.ObserveAssignment("room", "assign", err) }()
	if in.GuestID == "" || in.RoomID == "" {
		return nil, apperr.Validationf("guest_id and room_id are required")
	}
	now := s.now()
	gr = &model.GuestRoom{GuestID: in.GuestID, RoomID: in.RoomID, CheckInDate: dateOf(now), CheckInTime: clockOf(now),
		ActionType: model.RoomActionAllocated, ActionDescription: trimmed(in.ActionDescription), Remarks: trimmed(in.Remarks)}
	if in.CheckInDate != nil {
		if gr.CheckInDate, err = parseDate("check_in_date", *in.CheckInDate); err != nil {
			return nil, err
		}
	}
	if in.CheckInTime != nil {
		if gr.CheckInTime, err = parseClock("check_in_time", *in.CheckInTime); err != nil {
			return nil, err
		}
	}

	var guest *model.Guest
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := s.Guests.LockTx(ctx, tx, in.GuestID)
		if err != nil {
			return notFound(err, "guest", in.GuestID)
		}
		if !g.IsActive {
			return apperr.NotFoundf("guest %s not found", in.GuestID)
		}
		guest = g

		rm, roomErr := s.Rooms.LockTx(ctx, tx, in.RoomID)
		if roomErr != nil && !repository.IsNoRows(roomErr) {
			return fmt.Errorf("lock room: %w", roomErr)
		}

		cur, err := s.Rooms.LockActiveByGuestTx(ctx, tx, in.GuestID)
		if err == nil {
			return apperr.Conflictf("guest %s already occupies room %s (%s)", in.GuestID, cur.RoomID, cur.GuestRoomID)
		}
		if !repository.IsNoRows(err) {
			return fmt.Errorf("load guest room: %w", err)
		}

		if roomErr != nil || !rm.IsActive {
			return apperr.NotFoundf("room %s not found", in.RoomID)
		}
		if err := s.checkRoomFree(ctx, tx, rm); err != nil {
			return err
		}

		if gr.GuestRoomID, err = s.Seq.NextTx(ctx, tx, repository.PrefixGuestRoom); err != nil {
			return err
		}
		if err := s.Rooms.InsertAssignmentTx(ctx, tx, gr, a); err != nil {
			return fmt.Errorf("insert guest room: %w", err)
		}
		if err := s.Rooms.SetStatusTx(ctx, tx, rm.RoomID, model.RoomOccupied, a); err != nil {
			return fmt.Errorf("occupy room: %w", err)
		}
		if err := s.InOut.SetRoomTx(ctx, tx, in.GuestID, &rm.RoomID, a); err != nil {
			return fmt.Errorf("record room on visit: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "guest_room", "assign", gr.GuestRoomID,
			"Room "+rm.RoomNo+" allocated to "+in.GuestID, a)
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("room assigned", zap.String("guest_room_id", gr.GuestRoomID),
		zap.String("guest_id", gr.GuestID), zap.String("room_id", gr.RoomID))
	s.notifyGuest(ctx, queue.EventRoomAssigned, guest.Email, guest.Mobile, "Your room is ready",
		fmt.Sprintf("Dear %s, room %s has been allocated to you.", guest.GuestName, gr.RoomID),
		map[string]string{"guest_room_id": gr.GuestRoomID, "room_id": gr.RoomID})
	return gr, nil
}

func (s *RoomService) GetAssignment(ctx context.Context, id string) (*model.GuestRoom, error) {
	gr, err := s.Rooms.GetAssignment(ctx, id)
	if err != nil {
		return nil, notFound(err, "guest room", id)
	}
	return gr, nil
}

// lockOpen locks an assignment that must still be active.
func (s *RoomService) lockOpen(ctx context.Context, tx *sql.Tx, id string) (*model.GuestRoom, error) {
	gr, err := s.Rooms.LockAssignmentTx(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, "guest room", id)
	}
	if !gr.IsActive {
		return nil, apperr.Conflictf("guest room %s is already closed", id)
	}
	return gr, nil
}

// release frees roomID when no active assignment references it anymore.
func (s *RoomService) release(ctx context.Context, tx *sql.Tx, rm *model.Room, a model.Actor) error {
	active, err := s.Rooms.LockActiveByRoomTx(ctx, tx, rm.RoomID)
	if err != nil {
		return fmt.Errorf("count room assignments: %w", err)
	}
	if active == 0 && rm.Status == model.RoomOccupied {
		if err := s.Rooms.SetStatusTx(ctx, tx, rm.RoomID, model.RoomAvailable, a); err != nil {
			return fmt.Errorf("free room: %w", err)
		}
		rm.Status = model.RoomAvailable
	}
	return nil
}

type VacateInput struct {
	Remarks *string `json:"remarks"`
}

// Vacate checks the guest out of the room now and frees the room.
func (s *RoomService) Vacate(ctx context.Context, id string, in VacateInput, a model.Actor) (out *model.GuestRoom, err error) {
	defer func() { s.Metrics.ObserveAssignment("room", "close", err) }()
	peek, err := s.Rooms.GetAssignment(ctx, id)
	if err != nil {
		return nil, notFound(err, "guest room", id)
	}
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		rm, err := s.Rooms.LockTx(ctx, tx, peek.RoomID)
		if err != nil {
			return fmt.Errorf("lock room %s: %w", peek.RoomID, err)
		}
		gr, err := s.lockOpen(ctx, tx, id)
		if err != nil {
			return err
		}
		if gr.RoomID != peek.RoomID {
			return apperr.Conflictf("guest room %s changed concurrently, retry", id)
		}
		now := s.now()
		d, c := dateOf(now), clockOf(now)
		remarks := trimmed(in.Remarks)
		if err := s.Rooms.CloseAssignmentTx(ctx, tx, id, d, c, remarks, a); err != nil {
			return fmt.Errorf("close guest room: %w", err)
		}
		if err := s.release(ctx, tx, rm, a); err != nil {
			return err
		}
		if err := s.InOut.SetRoomTx(ctx, tx, gr.GuestID, nil, a); err != nil {
			return fmt.Errorf("clear room on visit: %w", err)
		}
		gr.IsActive = false
		gr.CheckOutDate, gr.CheckOutTime = &d, &c
		gr.Remarks = pick(gr.Remarks, remarks)
		out = gr
		return s.Activity.AppendTx(ctx, tx, "guest_room", "vacate", id, "Room "+rm.RoomNo+" vacated", a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type RoomChangeInput struct {
	RoomID            string  `json:"room_id"`
	ActionType        string  `json:"action_type"`
	ActionDescription *string `json:"action_description"`
	Remarks           *string `json:"remarks"`
}

// Change moves the guest to another room: the current assignment is
// closed and a new one opened in the same transaction. Rooms are locked
// before assignment rows, in id order.
func (s *RoomService) Change(ctx context.Context, id string, in RoomChangeInput, a model.Actor) (next *model.GuestRoom, err error) {
	defer func() { s.Metrics.ObserveAssignment("room", "change", err) }()
	action := in.ActionType
	if action == "" {
		action = model.RoomActionChanged
	}
	if action != model.RoomActionChanged && action != model.RoomActionUpgraded {
		return nil, apperr.Validationf("action_type must be %s or %s", model.RoomActionChanged, model.RoomActionUpgraded)
	}
	if in.RoomID == "" {
		return nil, apperr.Validationf("room_id is required")
	}

	peek, err := s.Rooms.GetAssignment(ctx, id)
	if err != nil {
		return nil, notFound(err, "guest room", id)
	}
	if peek.RoomID == in.RoomID {
		return nil, apperr.Validationf("guest is already in room %s", in.RoomID)
	}

	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		first, second := peek.RoomID, in.RoomID
		if second < first {
			first, second = second, first
		}
		rooms := map[string]*model.Room{}
		for _, rid := range []string{first, second} {
			rm, err := s.Rooms.LockTx(ctx, tx, rid)
			if err != nil && !repository.IsNoRows(err) {
				return fmt.Errorf("lock room %s: %w", rid, err)
			}
			rooms[rid] = rm
		}
		cur, err := s.lockOpen(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.RoomID != peek.RoomID {
			return apperr.Conflictf("guest room %s changed concurrently, retry", id)
		}
		oldRoom, newRoom := rooms[cur.RoomID], rooms[in.RoomID]
		if oldRoom == nil {
			return fmt.Errorf("room %s of %s is missing", cur.RoomID, id)
		}
		if newRoom == nil || !newRoom.IsActive {
			return apperr.NotFoundf("room %s not found", in.RoomID)
		}
		if err := s.checkRoomFree(ctx, tx, newRoom); err != nil {
			return err
		}

		now := s.now()
		d, c := dateOf(now), clockOf(now)
		if err := s.Rooms.CloseAssignmentTx(ctx, tx, id, d, c, nil, a); err != nil {
			return fmt.Errorf("close guest room: %w", err)
		}
		if err := s.release(ctx, tx, oldRoom, a); err != nil {
			return err
		}

		next = &model.GuestRoom{GuestID: cur.GuestID, RoomID: in.RoomID, CheckInDate: d, CheckInTime: c,
			ActionType: action, ActionDescription: trimmed(in.ActionDescription), Remarks: trimmed(in.Remarks)}
		if next.GuestRoomID, err = s.Seq.NextTx(ctx, tx, repository.PrefixGuestRoom); err != nil {
			return err
		}
		if err := s.Rooms.InsertAssignmentTx(ctx, tx, next, a); err != nil {
			return fmt.Errorf("insert guest room: %w", err)
		}
		if err := s.Rooms.SetStatusTx(ctx, tx, in.RoomID, model.RoomOccupied, a); err != nil {
			return fmt.Errorf("occupy room: %w", err)
		}
		if err := s.InOut.SetRoomTx(ctx, tx, cur.GuestID, &next.RoomID, a); err != nil {
			return fmt.Errorf("record room on visit: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "guest_room", "change", next.GuestRoomID,
			fmt.Sprintf("%s: %s -> %s", action, oldRoom.RoomNo, newRoom.RoomNo), a)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

type RoomAssignmentPatch struct {
	CheckInDate       *string `json:"check_in_date"`
	CheckInTime       *string `json:"check_in_time"`
	ActionDescription *string `json:"action_description"`
	Remarks           *string `json:"remarks"`
}

// UpdateAssignment merges p over an active assignment. The room is changed
// through Change only.
func (s *RoomService) UpdateAssignment(ctx context.Context, id string, p RoomAssignmentPatch, a model.Actor) (out *model.GuestRoom, err error) {
	defer func() { s.Metrics.ObserveAssignment("room", "update", err) }()
	if err := optDate("check_in_date", p.CheckInDate); err != nil {
		return nil, err
	}
	if err := optClock("check_in_time", p.CheckInTime); err != nil {
		return nil, err
	}
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		gr, err := s.lockOpen(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.CheckInDate != nil {
			gr.CheckInDate = *p.CheckInDate
		}
		if p.CheckInTime != nil {
			gr.CheckInTime = *p.CheckInTime
		}
		gr.ActionDescription = pick(gr.ActionDescription, p.ActionDescription)
		gr.Remarks = pick(gr.Remarks, p.Remarks)
		if err := s.Rooms.UpdateAssignmentTx(ctx, tx, gr, a); err != nil {
			return fmt.Errorf("update guest room: %w", err)
		}
		out = gr
		return s.Activity.AppendTx(ctx, tx, "guest_room", "update", id, "Room assignment updated", a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Package match pairs players: creators open rooms, joiners claim them, and a
// claimed room becomes a game session.
package match

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/game"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// ErrRoomNotFound is returned when a join targets an id no waiting room holds.
var ErrRoomNotFound = protocol.NewCodedError(protocol.CodeRoomNotFound, "room not found")

// Room is a waiting match owned by its creator.
type Room struct {
	ID      int
	Creator string

	registry *Registry
	conn     protocol.Conn
	handoff  chan *game.Session
}

// Registry holds the rooms waiting for a second player.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	rooms   map[int]*Room
	rows    int
	columns int
	logger  *zap.Logger

	active  atomic.Int64
	matched atomic.Int64
}

// Stats is a point-in-time view of matchmaking load.
type Stats struct {
	// Waiting is the number of rooms awaiting a second player.
	Waiting int
	// Active is the number of sessions that have not yet finished or aborted.
	Active int
	// Matched is the total number of sessions created since start.
	Matched int
}

// NewRegistry creates an empty registry whose sessions use the given board size.
//
// Precondition: rows and columns must be positive; logger must be non-nil.
func NewRegistry(rows, columns int, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:   make(map[int]*Room),
		rows:    rows,
		columns: columns,
		logger:  logger,
	}
}

// CreateRoom opens a room under the lowest id not held by a waiting room.
//
// Precondition: creator must be non-nil.
// Postcondition: The room is listed until it is joined or its wait is cancelled.
func (r *Registry) CreateRoom(creatorName string, creator protocol.Conn) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := 0
	for {
		if _, taken := r.rooms[id]; !taken {
			break
		}
		id++
	}
	room := &Room{
		ID:       id,
		Creator:  creatorName,
		registry: r,
		conn:     creator,
		handoff:  make(chan *game.Session, 1),
	}
	r.rooms[id] = room

	r.logger.Info("room created",
		zap.Int("room_id", id),
		zap.String("creator", creatorName),
		zap.String("remote_addr", creator.RemoteAddr()),
	)
	return room
}

// AwaitMatch blocks until a joiner claims the room.
//
// Postcondition: Returns the session, or ctx.Err() after removing the room if
// it was still waiting. A room claimed concurrently with cancellation still
// returns its session.
func (room *Room) AwaitMatch(ctx context.Context) (*game.Session, error) {
	select {
	case s := <-room.handoff:
		return s, nil
	case <-ctx.Done():
	}

	r := room.registry
	r.mu.Lock()
	if r.rooms[room.ID] == room {
		delete(r.rooms, room.ID)
		r.mu.Unlock()
		r.logger.Info("room abandoned",
			zap.Int("room_id", room.ID),
			zap.String("creator", room.Creator),
		)
		return nil, ctx.Err()
	}
	r.mu.Unlock()

	// Claimed before the removal; the handoff is already buffered.
	return <-room.handoff, nil
}

// JoinRoom claims the room with the given id and starts a session with its
// creator as PlayerA and the joiner as PlayerB.
//
// Precondition: joiner must be non-nil.
// Postcondition: Exactly one of any concurrent joiners for the same id
// succeeds; the rest receive ErrRoomNotFound.
func (r *Registry) JoinRoom(id int, joinerName string, joiner protocol.Conn) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, fmt.Errorf("joining room %d: %w", id, ErrRoomNotFound)
	}

	s, err := game.NewSession(r.rows, r.columns,
		game.Seat{Name: room.Creator, Conn: room.conn},
		game.Seat{Name: joinerName, Conn: joiner},
		r.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("joining room %d: %w", id, err)
	}
	delete(r.rooms, id)
	room.handoff <- s

	r.active.Add(1)
	r.matched.Add(1)
	go func() {
		<-s.Done()
		r.active.Add(-1)
	}()

	r.logger.Info("room matched",
		zap.Int("room_id", id),
		zap.String("creator", room.Creator),
		zap.String("joiner", joinerName),
		zap.String("session_id", s.ID().String()),
	)
	return s, nil
}

// ListRooms returns the waiting rooms in ascending id order.
func (r *Registry) ListRooms() []protocol.RoomEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.RoomEntry, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, protocol.RoomEntry{ID: id, Creator: room.Creator})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RoomList returns the waiting rooms as a wire frame.
func (r *Registry) RoomList() protocol.RoomList {
	return protocol.RoomList{Rooms: r.ListRooms()}
}

// Len returns the number of waiting rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Stats returns current matchmaking counts.
func (r *Registry) Stats() Stats {
	return Stats{
		Waiting: r.Len(),
		Active:  int(r.active.Load()),
		Matched: int(r.matched.Load()),
	}
}

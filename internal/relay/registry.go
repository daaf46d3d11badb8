package relay

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RoomCapacity is the maximum number of participants in a room.
const RoomCapacity = 2

// DefaultName is used for participants that join without a name.
const DefaultName = "Anonymous"

// Conn is the outbound side of a participant's connection.
type Conn interface {
	// Send enqueues a frame without blocking. It returns ErrNotWritable when
	// the frame cannot be queued.
	Send(frame []byte) error
}

// Participant is one member of a room.
type Participant struct {
	ID   string
	Name string
	conn Conn
}

// NewParticipant creates a participant. A blank name becomes DefaultName and
// an empty id is replaced by a random one.
func NewParticipant(id, name string, conn Conn) *Participant {
	if id == "" {
		id = uuid.NewString()
	}
	if name = strings.TrimSpace(name); name == "" {
		name = DefaultName
	}
	return &Participant{ID: id, Name: name, conn: conn}
}

type room struct {
	id      string
	members []*Participant
}

func (r *room) names() []string {
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Name
	}
	return names
}

// RoomInfo describes a room for listings.
type RoomInfo struct {
	Room         string   `json:"room"`
	Participants []string `json:"participants"`
}

// Registry tracks rooms and their members. A room exists only while it has
// at least one member. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// Join adds p to the room, creating it if needed. It returns the member
// names in join order with p last, or ErrRoomFull without changing state.
func (r *Registry) Join(roomID string, p *Participant) ([]string, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, ErrRoomIDRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{id: roomID}
		r.rooms[roomID] = rm
		log.Info().Str("room", roomID).Msg("room created")
	}
	if len(rm.members) >= RoomCapacity {
		return nil, ErrRoomFull
	}
	rm.members = append(rm.members, p)
	return rm.names(), nil
}

// Leave removes p from the room and deletes the room once empty. ok is
// false when the room or the member does not exist.
func (r *Registry) Leave(roomID string, p *Participant) (remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, exists := r.rooms[roomID]
	if !exists {
		return 0, false
	}
	idx := -1
	for i, m := range rm.members {
		if m == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(rm.members), false
	}

	rm.members = append(rm.members[:idx], rm.members[idx+1:]...)
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
		log.Info().Str("room", roomID).Msg("room deleted")
	}
	return len(rm.members), true
}

// BroadcastExcept delivers frame to every member of the room other than
// sender and returns how many members accepted it. A member that is not
// writable is skipped.
func (r *Registry) BroadcastExcept(roomID string, sender *Participant, frame []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	delivered := 0
	for _, m := range rm.members {
		if m == sender {
			continue
		}
		if err := m.conn.Send(frame); err != nil {
			log.Warn().Err(err).Str("room", roomID).Str("participant", m.ID).Msg("skipping delivery")
			continue
		}
		delivered++
	}
	return delivered
}

// Snapshot lists all rooms sorted by id.
func (r *Registry) Snapshot() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		infos = append(infos, RoomInfo{Room: id, Participants: rm.names()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Room < infos[j].Room })
	return infos
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/pkg/models"
)

// GeneralRoomID is the room every user lands in on connect.
const GeneralRoomID = "general"

// historyLimit is how many prior messages a joining user receives.
const historyLimit = 100

// Hub tracks connected clients and their room membership and fans frames
// out. Room history persists through the repository so it survives restarts.
type Hub struct {
	repo   storage.Repository
	logger *observability.Logger

	mu      sync.RWMutex
	clients map[*client]bool
	rooms   map[string]map[*client]bool
}

// NewHub creates an empty hub.
func NewHub(repo storage.Repository, logger *observability.Logger) *Hub {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Hub{
		repo:    repo,
		logger:  logger,
		clients: map[*client]bool{},
		rooms:   map[string]map[*client]bool{},
	}
}

// register adds a connected client and announces it to the general room.
func (h *Hub) register(ctx context.Context, c *client) error {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return h.join(ctx, c, GeneralRoomID)
}

// unregister removes the client from every room and announces departures.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	var left []string
	for roomID, members := range h.rooms {
		if members[c] {
			delete(members, c)
			left = append(left, roomID)
		}
	}
	h.mu.Unlock()

	for _, roomID := range left {
		h.broadcast(roomID, outboundFrame{
			Type:      frameUserLeft,
			RoomID:    roomID,
			UserID:    c.principal.ID,
			Username:  c.principal.Username,
			Timestamp: time.Now().UTC(),
		}, nil)
	}
}

// join adds the client to a room, persists the membership, announces the
// arrival, and sends the room's recent history to the joiner.
func (h *Hub) join(ctx context.Context, c *client, roomID string) error {
	if err := h.repo.AddUserToRoom(ctx, c.principal.ID, roomID); err != nil {
		return err
	}

	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = map[*client]bool{}
		h.rooms[roomID] = members
	}
	members[c] = true
	h.mu.Unlock()

	h.broadcast(roomID, outboundFrame{
		Type:      frameUserJoined,
		RoomID:    roomID,
		UserID:    c.principal.ID,
		Username:  c.principal.Username,
		Timestamp: time.Now().UTC(),
	}, c)

	history, err := h.repo.GetRoomMessages(ctx, roomID, historyLimit, 0)
	if err != nil {
		return err
	}
	c.enqueue(outboundFrame{
		Type:      frameChatHistory,
		RoomID:    roomID,
		History:   history,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// isMember reports whether the client has joined the room in this process.
func (h *Hub) isMember(c *client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID][c]
}

// roomMessage persists one room message and fans it out to every member,
// sender included, so all clients render from the same event.
func (h *Hub) roomMessage(ctx context.Context, c *client, roomID, content string) error {
	msg := &models.RoomMessage{
		RoomID:    roomID,
		UserID:    c.principal.ID,
		Username:  c.principal.Username,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.AddRoomMessage(ctx, msg); err != nil {
		return err
	}
	h.broadcast(roomID, outboundFrame{
		Type:      frameChatMessage,
		RoomID:    roomID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt,
	}, nil)
	return nil
}

// broadcast sends a frame to every member of a room except the excluded
// client. Slow clients are skipped, not waited on.
func (h *Hub) broadcast(roomID string, frame outboundFrame, exclude *client) {
	h.mu.RLock()
	members := make([]*client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != exclude {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(frame)
	}
}

// connectedUsers returns the distinct usernames currently connected.
func (h *Hub) connectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := map[string]bool{}
	var names []string
	for c := range h.clients {
		if !seen[c.principal.Username] {
			seen[c.principal.Username] = true
			names = append(names, c.principal.Username)
		}
	}
	return names
}

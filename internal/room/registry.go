package room

import (
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Registry owns the room table. It is injected into handlers rather than
// held as package state so tests get isolated instances and rooms can be
// locked independently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Get looks up a room by name.
func (g *Registry) Get(name string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[name]
	return r, ok
}

// Create registers a new room with the given password hash and admin. The
// admin is recorded once and never changes for the room's lifetime. A room
// already holding the name yields ErrRoomExists so racing creators fall back
// to joining it.
func (g *Registry) Create(name string, passwordHash []byte, admin string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rooms[name]; ok {
		return nil, ErrRoomExists
	}
	r := newRoom(name, passwordHash, admin)
	g.rooms[name] = r

	log.Info().Str("room", name).Str("admin", admin).Msg("room created")
	return r, nil
}

// Remove deletes the room from the registry. The room's session dies with
// it; callers cancel the room's timer around this call.
func (g *Registry) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.rooms[name]; ok {
		delete(g.rooms, name)
		log.Info().Str("room", name).Msg("room removed")
	}
}

// Len returns the number of registered rooms.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// HashPassword hashes a room password for storage. An empty password leaves
// the room open.
func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

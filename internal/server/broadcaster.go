package server

import (
	"slices"

	"github.com/charmbracelet/log"
)

// Broadcaster fans messages out to session rooms. Room members are
// connection IDs resolved through the Directory at send time; connections
// that have gone away are skipped.
type Broadcaster struct {
	dir    *Directory
	rooms  map[string]map[string]struct{}
	logger *log.Logger
}

func NewBroadcaster(dir *Directory, logger *log.Logger) *Broadcaster {
	return &Broadcaster{
		dir:    dir,
		rooms:  make(map[string]map[string]struct{}),
		logger: logger.WithPrefix("broadcast"),
	}
}

// Subscribe adds a connection to the room for code.
func (b *Broadcaster) Subscribe(code, connID string) {
	room, ok := b.rooms[code]
	if !ok {
		room = make(map[string]struct{})
		b.rooms[code] = room
	}
	room[connID] = struct{}{}
}

// Unsubscribe removes a connection from the room for code.
func (b *Broadcaster) Unsubscribe(code, connID string) {
	room, ok := b.rooms[code]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(b.rooms, code)
	}
}

// Members returns the connection IDs subscribed to code.
func (b *Broadcaster) Members(code string) []string {
	room := b.rooms[code]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}

// DropRoom removes the room for code and returns its former members.
func (b *Broadcaster) DropRoom(code string) []string {
	ids := b.Members(code)
	delete(b.rooms, code)
	return ids
}

// Room sends msg to every member of the room except the listed connections.
func (b *Broadcaster) Room(code string, msg *Message, except ...string) {
	count := 0
	for id := range b.rooms[code] {
		if slices.Contains(except, id) {
			continue
		}
		if b.send(id, msg) {
			count++
		}
	}
	b.logger.Debug("Broadcasted message to room", "code", code, "type", msg.Type, "recipients", count)
}

// Direct sends msg to one connection.
func (b *Broadcaster) Direct(connID string, msg *Message) {
	b.send(connID, msg)
}

func (b *Broadcaster) send(connID string, msg *Message) bool {
	conn, ok := b.dir.Conn(connID)
	if !ok {
		return false
	}
	if err := conn.SendMessage(msg); err != nil {
		b.logger.Warn("Failed to send message", "conn", connID, "type", msg.Type, "error", err)
		return false
	}
	return true
}

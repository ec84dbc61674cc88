package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const codeLength = 6

// Registry maps room codes to live rooms for the lifetime of the process.
// Codes are normalized to uppercase on both write and read. When a room
// timeout is configured, a reaper removes rooms once every seat has been
// empty for longer than the timeout.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	roomTimeout time.Duration
	logger      *logrus.Logger
}

func newRegistry(logger *logrus.Logger, roomTimeout time.Duration) *Registry {
	reg := &Registry{
		rooms:       make(map[string]*Room),
		roomTimeout: roomTimeout,
		logger:      logger,
	}
	if roomTimeout > 0 {
		go reg.reaperLoop()
	}
	return reg
}

// create allocates a room under a freshly generated code.
func (reg *Registry) create() *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := reg.newCodeLocked()
	room := newRoom(code, reg.logger)
	reg.rooms[code] = room
	return room
}

// find looks a room up by code, case-insensitively. Returns nil if no such
// room exists.
func (reg *Registry) find(code string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	return reg.rooms[strings.ToUpper(code)]
}

// newCodeLocked generates a crypto-random room code and ensures it doesn't
// collide with an existing room.
func (reg *Registry) newCodeLocked() string {
	for {
		code := randomCode()
		if _, exists := reg.rooms[code]; !exists {
			return code
		}
	}
}

const codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomCode draws codeLength uniform letters from codeLetters. Bytes of
// 252 and above are rejected so the modulo stays unbiased (252 is the
// largest multiple of 36 that fits in a byte).
func randomCode() string {
	out := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		for _, b := range buf {
			if b >= 252 {
				continue
			}
			out = append(out, codeLetters[int(b)%len(codeLetters)])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out)
}

// reaperLoop periodically removes rooms whose players have all been
// disconnected for longer than the room timeout.
func (reg *Registry) reaperLoop() {
	ticker := time.NewTicker(reg.roomTimeout / 2)
	for range ticker.C {
		reg.reapIdle(time.Now().Add(-reg.roomTimeout))
	}
}

// reapIdle removes every room with no connected players whose last
// activity predates cutoff. Returns the number of rooms removed.
func (reg *Registry) reapIdle(cutoff time.Time) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	removed := 0
	for code, room := range reg.rooms {
		last, empty := room.idle()
		if empty && last.Before(cutoff) {
			delete(reg.rooms, code)
			removed++
			reg.logger.WithField("room", code).Info("reaped idle room")
		}
	}
	return removed
}

// logStatus emits a debug dump of every active room, mirroring what the
// server prints after create/join/disconnect events.
func (reg *Registry) logStatus(action string) {
	if !reg.logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}

	reg.mu.Lock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.Unlock()

	if len(rooms) == 0 {
		reg.logger.WithField("action", action).Debug("no active rooms")
		return
	}
	for _, room := range rooms {
		reg.logger.WithFields(logrus.Fields{
			"action":  action,
			"room":    room.Code(),
			"players": strings.Join(room.roster(), ", "),
			"age":     room.age().Round(time.Second),
		}).Debug("room status")
	}
}

package main

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const maxPlayers = 4

// Player is one seat at the table. The record survives disconnects so the
// same name can rejoin; client is nil while the player is offline.
type Player struct {
	Name   string
	client *Client
}

// Room owns one table's state: the seated players (join order doubles as
// seat/turn index), the authoritative deck, and the started flag. All
// access goes through the mutex; broadcasts happen under it so no send can
// race a disconnect.
type Room struct {
	code   string
	logger *logrus.Logger

	mu          sync.RWMutex
	players     []*Player
	deck        []*Card
	started     bool
	currentTurn int // tracked for clients, never enforced server-side

	createdAt  time.Time
	lastActive time.Time
}

func newRoom(code string, logger *logrus.Logger) *Room {
	now := time.Now()
	return &Room{
		code:       code,
		logger:     logger,
		deck:       newDeck(),
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) Code() string {
	return r.code
}

// addPlayer seats a new player and tells everyone in the room about the
// updated roster, including the player who just joined.
func (r *Room) addPlayer(name string, c *Client) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= maxPlayers {
		return nil, errRoomFull
	}
	for _, p := range r.players {
		if p.Name == name {
			return nil, errDuplicateName
		}
	}

	p := &Player{Name: name, client: c}
	r.players = append(r.players, p)
	r.lastActive = time.Now()

	r.broadcastLocked(playerJoinedMessage{
		Type:        "player-joined",
		PlayerCount: len(r.players),
		Players:     r.namesLocked(),
	}, nil)

	return p, nil
}

// start deals the table: a fresh deck is shuffled, stacked with small
// per-slot offsets, and sent in full to every connected player. Starting
// an already-started game is rejected rather than reshuffling under the
// players' hands.
func (r *Room) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errAlreadyStarted
	}

	deck := newDeck()
	shuffleDeck(deck)
	for slot, card := range deck {
		card.X = float64(slot) * 0.25
		card.Y = float64(slot) * 0.25
		card.Rot = 0
		card.Side = sideBack
	}

	r.deck = deck
	r.started = true
	r.currentTurn = 0
	r.lastActive = time.Now()

	if r.logger.IsLevelEnabled(logrus.DebugLevel) {
		for slot, card := range r.deck {
			r.logger.WithFields(logrus.Fields{
				"room": r.code,
				"slot": slot,
				"card": card.Index,
				"suit": card.Suit,
				"rank": card.Rank,
			}).Debug("shuffled deck order")
		}
	}

	// Send a copy: the write pumps serialize frames outside the room lock,
	// so they must not share card objects with the live deck.
	snapshot := make([]*Card, len(r.deck))
	for i, card := range r.deck {
		copied := *card
		snapshot[i] = &copied
	}
	r.broadcastLocked(initDeckMessage{
		Type:  "init-deck",
		Cards: snapshot,
	}, nil)

	return nil
}

// moveCard overwrites the mutable fields of one card and relays the move
// to every player except the one who made it. Last writer wins; there is
// no versioning on concurrent moves of the same card.
func (r *Room) moveCard(index int, x, y, rot float64, side string, origin *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.deck) {
		return errInvalidCardIndex
	}

	card := r.deck[index]
	card.X = x
	card.Y = y
	card.Rot = rot
	card.Side = side
	r.lastActive = time.Now()

	r.broadcastLocked(cardMovedMessage{
		Type:      "card-moved",
		CardIndex: index,
		X:         x,
		Y:         y,
		Rot:       rot,
		Side:      side,
	}, origin)

	return nil
}

// markDisconnected detaches the client from its seat, keeping the player
// record for a later rejoin, and tells the remaining players.
func (r *Room) markDisconnected(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.client == c {
			p.client = nil
			r.logger.WithFields(logrus.Fields{
				"room":   r.code,
				"player": p.Name,
			}).Info("player disconnected, seat kept")
			break
		}
	}
	r.lastActive = time.Now()

	r.broadcastGameStateLocked()
}

// reconnect rebinds an existing player's seat to a new connection and
// broadcasts the refreshed roster.
func (r *Room) reconnect(name string, c *Client) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.Name == name {
			p.client = c
			r.lastActive = time.Now()
			r.broadcastGameStateLocked()
			return p, nil
		}
	}

	return nil, errNotAMember
}

func (r *Room) broadcastGameStateLocked() {
	connected := make([]bool, len(r.players))
	for i, p := range r.players {
		connected[i] = p.client != nil
	}

	r.broadcastLocked(gameStateMessage{
		Type:        "game-state",
		PlayerCount: len(r.players),
		Players:     r.namesLocked(),
		Connected:   connected,
	}, nil)
}

// broadcastLocked queues msg for every connected player except exclude.
// Sends are fire-and-forget: a client whose buffer is full is dropped so
// one stuck socket cannot stall the table.
func (r *Room) broadcastLocked(msg any, exclude *Client) {
	for _, p := range r.players {
		c := p.client
		if c == nil || c == exclude {
			continue
		}
		// A seat can still point at a session that has already shut down;
		// its send channel is closed, so never write to it.
		if c.closed.Load() {
			p.client = nil
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Closing the socket unwinds the client's pumps, which own
			// the send channel's lifecycle.
			p.client = nil
			if c.conn != nil {
				_ = c.conn.Close()
			}
			r.logger.WithFields(logrus.Fields{
				"room":   r.code,
				"player": p.Name,
			}).Warn("dropping unresponsive client")
		}
	}
}

func (r *Room) namesLocked() []string {
	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.Name
	}
	return names
}

func (r *Room) roster() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Room) age() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return time.Since(r.createdAt)
}

// idle reports whether nobody is connected, and when the room last saw
// activity. Used by the registry's reaper.
func (r *Room) idle() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.players {
		if p.client != nil {
			return r.lastActive, false
		}
	}
	return r.lastActive, true
}

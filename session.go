package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one WebSocket session. The room binding and player name are
// transient session state owned by the read pump; the durable player
// identity lives in the Room, keyed by name.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any

	room       *Room
	playerName string

	closeOnce sync.Once
	closed    atomic.Bool
	logger    *logrus.Entry
}

// closeSend is safe to call from both the read pump and a room dropping an
// unresponsive client.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.send)
	})
}

// bindRoom points the session at a new room. A session only ever occupies
// one room at a time: if it was bound elsewhere, that seat is marked
// disconnected first so the old room stops broadcasting to this socket.
func (c *Client) bindRoom(room *Room, playerName string) {
	if c.room != nil && c.room != room {
		c.room.markDisconnected(c)
	}
	c.room = room
	c.playerName = playerName
}

// serveWS upgrades the connection and runs the session until the socket
// closes.
func serveWS(reg *Registry, logger *logrus.Logger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}

		c := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 16),
		}
		c.logger = logger.WithFields(logrus.Fields{
			"session": c.id,
			"remote":  realIP(r),
		})
		c.logger.Info("client connected")
		reg.logStatus("connect")

		go c.writePump()
		c.readPump(reg)
	}
}

func (c *Client) readPump(reg *Registry) {
	defer func() {
		if c.room != nil {
			c.room.markDisconnected(c)
		}
		c.closeSend()
		_ = c.conn.Close()
		c.logger.Info("client disconnected")
		reg.logStatus("disconnect")
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.WithError(err).Warn("dropping malformed frame")
			continue
		}

		c.dispatch(reg, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// dispatch routes one validated inbound message. A failure only ever
// produces an `error` frame on this session; other players and rooms are
// never affected.
func (c *Client) dispatch(reg *Registry, msg clientMessage) {
	switch msg.Type {
	case "create-room":
		if msg.PlayerName == "" {
			c.enqueue(errorMessage{Type: "error", Message: "Player name required"})
			return
		}

		room := reg.create()
		if _, err := room.addPlayer(msg.PlayerName, c); err != nil {
			c.enqueue(errorMessage{Type: "error", Message: err.Error()})
			return
		}
		c.bindRoom(room, msg.PlayerName)

		c.enqueue(roomCreatedMessage{Type: "room-created", RoomCode: room.Code()})
		c.logger.WithFields(logrus.Fields{
			"room":   room.Code(),
			"player": msg.PlayerName,
		}).Info("room created")
		reg.logStatus("create-room")

	case "join-room":
		if msg.PlayerName == "" {
			c.enqueue(errorMessage{Type: "error", Message: "Player name required"})
			return
		}

		room := reg.find(msg.RoomCode)
		if room == nil {
			c.enqueue(errorMessage{Type: "error", Message: errRoomNotFound.Error()})
			return
		}
		if _, err := room.addPlayer(msg.PlayerName, c); err != nil {
			c.enqueue(errorMessage{Type: "error", Message: err.Error()})
			return
		}
		c.bindRoom(room, msg.PlayerName)

		c.enqueue(roomJoinedMessage{Type: "room-joined", RoomCode: room.Code()})
		c.logger.WithFields(logrus.Fields{
			"room":   room.Code(),
			"player": msg.PlayerName,
		}).Info("player joined room")
		reg.logStatus("join-room")

	case "start-game":
		if c.room == nil {
			c.logger.Warn("start-game without a room")
			return
		}
		if err := c.room.start(); err != nil {
			c.enqueue(errorMessage{Type: "error", Message: err.Error()})
		}

	case "move-card":
		if c.room == nil {
			c.logger.Warn("move-card without a room")
			return
		}
		if err := c.room.moveCard(msg.CardIndex, msg.X, msg.Y, msg.Rot, msg.Side, c); err != nil {
			c.enqueue(errorMessage{Type: "error", Message: err.Error()})
		}

	case "rejoin-room":
		room := reg.find(msg.RoomCode)
		if room == nil {
			c.enqueue(errorMessage{Type: "error", Message: errRoomNotFound.Error()})
			return
		}
		if _, err := room.reconnect(msg.PlayerName, c); err != nil {
			c.enqueue(errorMessage{Type: "error", Message: err.Error()})
			return
		}
		c.bindRoom(room, msg.PlayerName)

		c.enqueue(roomJoinedMessage{Type: "room-joined", RoomCode: room.Code()})
		c.logger.WithFields(logrus.Fields{
			"room":   room.Code(),
			"player": msg.PlayerName,
		}).Info("player rejoined room")
		reg.logStatus("rejoin-room")

	default:
		c.logger.WithField("type", msg.Type).Warn("unknown message type")
	}
}

// enqueue queues a frame for this session only, dropping it if the write
// buffer is full or the session is already shutting down.
func (c *Client) enqueue(msg any) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

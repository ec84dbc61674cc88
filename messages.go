package main

// Messages coming from clients, discriminated by Type. Unknown or
// unparseable frames are dropped at the read pump; required fields are
// checked per message kind before any room state is touched.
type clientMessage struct {
	Type       string  `json:"type"`                 // "create-room", "join-room", "start-game", "move-card", "rejoin-room"
	PlayerName string  `json:"playerName,omitempty"` // create-room / join-room / rejoin-room
	RoomCode   string  `json:"roomCode,omitempty"`   // join-room / rejoin-room
	CardIndex  int     `json:"cardIndex"`            // move-card
	X          float64 `json:"x"`                    // move-card
	Y          float64 `json:"y"`                    // move-card
	Rot        float64 `json:"rot"`                  // move-card
	Side       string  `json:"side,omitempty"`       // move-card: "front" or "back"
}

// Messages sent to clients

// Reply to the creator of a new room.
type roomCreatedMessage struct {
	Type     string `json:"type"` // "room-created"
	RoomCode string `json:"roomCode"`
}

// Reply to a successful join or rejoin.
type roomJoinedMessage struct {
	Type     string `json:"type"` // "room-joined"
	RoomCode string `json:"roomCode"`
}

// Broadcast to everyone in the room when a player joins.
type playerJoinedMessage struct {
	Type        string   `json:"type"` // "player-joined"
	PlayerCount int      `json:"playerCount"`
	Players     []string `json:"players"`
}

// Broadcast roster update after a disconnect or rejoin. Connected is
// parallel to Players; seats are kept for disconnected players so the
// count never shrinks.
type gameStateMessage struct {
	Type        string   `json:"type"` // "game-state"
	PlayerCount int      `json:"playerCount"`
	Players     []string `json:"players"`
	Connected   []bool   `json:"connected"`
}

// Broadcast once the game starts, carrying the full shuffled deck.
type initDeckMessage struct {
	Type  string  `json:"type"` // "init-deck"
	Cards []*Card `json:"cards"`
}

// Broadcast to every player except the one who moved the card.
type cardMovedMessage struct {
	Type      string  `json:"type"` // "card-moved"
	CardIndex int     `json:"cardIndex"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Rot       float64 `json:"rot"`
	Side      string  `json:"side"`
}

// Sent to a single client when a request fails.
type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

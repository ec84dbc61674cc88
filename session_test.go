package main

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frameTimeout = 2 * time.Second

// serverFrame is a catch-all decode target for every outbound frame kind.
type serverFrame struct {
	Type        string   `json:"type"`
	RoomCode    string   `json:"roomCode"`
	PlayerCount int      `json:"playerCount"`
	Players     []string `json:"players"`
	Connected   []bool   `json:"connected"`
	Cards       []*Card  `json:"cards"`
	CardIndex   int      `json:"cardIndex"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Rot         float64  `json:"rot"`
	Side        string   `json:"side"`
	Message     string   `json:"message"`
}

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg := newRegistry(testLogger(), 0)
	mux := httprouter.New()
	mux.GET("/ws", serveWS(reg, testLogger()))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsDial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(frameTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("invalid JSON from server: %v\npayload: %s", err, string(data))
	}
	return frame
}

// expectFrame reads the next frame and fails unless it has the wanted type.
func expectFrame(t *testing.T, conn *websocket.Conn, wantType string) serverFrame {
	t.Helper()

	frame := readFrame(t, conn)
	if frame.Type != wantType {
		t.Fatalf("expected %s frame, got %s (%+v)", wantType, frame.Type, frame)
	}
	return frame
}

// expectSilence asserts nothing arrives within the grace period. The
// connection is unusable for further reads afterwards.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got: %s", string(data))
	}
}

// createRoom drives the create-room handshake and returns the room code.
func createRoom(t *testing.T, conn *websocket.Conn, playerName string) string {
	t.Helper()

	sendFrame(t, conn, clientMessage{Type: "create-room", PlayerName: playerName})

	pj := expectFrame(t, conn, "player-joined")
	assert.Equal(t, 1, pj.PlayerCount)
	assert.Equal(t, []string{playerName}, pj.Players)

	created := expectFrame(t, conn, "room-created")
	require.Len(t, created.RoomCode, codeLength)
	return created.RoomCode
}

func TestCreateJoinStartMoveScenario(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	code := createRoom(t, alice, "Alice")

	// Join with a lowercase code to exercise normalization.
	bob := wsDial(t, srv)
	sendFrame(t, bob, clientMessage{
		Type:       "join-room",
		RoomCode:   strings.ToLower(code),
		PlayerName: "Bob",
	})

	pj := expectFrame(t, bob, "player-joined")
	assert.Equal(t, 2, pj.PlayerCount)
	assert.Equal(t, []string{"Alice", "Bob"}, pj.Players)

	joined := expectFrame(t, bob, "room-joined")
	assert.Equal(t, code, joined.RoomCode)

	pj = expectFrame(t, alice, "player-joined")
	assert.Equal(t, 2, pj.PlayerCount)
	assert.Equal(t, []string{"Alice", "Bob"}, pj.Players)

	// Deal the table.
	sendFrame(t, alice, clientMessage{Type: "start-game"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		deal := expectFrame(t, conn, "init-deck")
		require.Len(t, deal.Cards, deckSize)

		seen := make(map[int]bool, deckSize)
		shuffled := false
		for slot, card := range deal.Cards {
			require.False(t, seen[card.Index])
			seen[card.Index] = true
			assert.Equal(t, card.Index/13, card.Suit)
			assert.Equal(t, card.Index%13+1, card.Rank)
			if card.Index != slot {
				shuffled = true
			}
		}
		assert.True(t, shuffled, "deck arrived in canonical order")
	}

	// Bob drags a card; only Alice hears about it.
	sendFrame(t, bob, clientMessage{
		Type:      "move-card",
		CardIndex: 7,
		X:         120.5,
		Y:         88.25,
		Rot:       15,
		Side:      sideFront,
	})

	moved := expectFrame(t, alice, "card-moved")
	assert.Equal(t, 7, moved.CardIndex)
	assert.Equal(t, 120.5, moved.X)
	assert.Equal(t, 88.25, moved.Y)
	assert.Equal(t, 15.0, moved.Rot)
	assert.Equal(t, sideFront, moved.Side)

	expectSilence(t, bob)
}

func TestJoinUnknownRoom(t *testing.T) {
	srv := startTestServer(t)

	conn := wsDial(t, srv)
	sendFrame(t, conn, clientMessage{Type: "join-room", RoomCode: "NOSUCH", PlayerName: "Bob"})

	frame := expectFrame(t, conn, "error")
	assert.Equal(t, "Room not found", frame.Message)
}

func TestJoinFullRoom(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	code := createRoom(t, alice, "Alice")

	for _, name := range []string{"Bob", "Carol", "Dave"} {
		conn := wsDial(t, srv)
		sendFrame(t, conn, clientMessage{Type: "join-room", RoomCode: code, PlayerName: name})
		expectFrame(t, conn, "player-joined")
		expectFrame(t, conn, "room-joined")
	}

	fifth := wsDial(t, srv)
	sendFrame(t, fifth, clientMessage{Type: "join-room", RoomCode: code, PlayerName: "Eve"})

	frame := expectFrame(t, fifth, "error")
	assert.Equal(t, "Room is full", frame.Message)
}

func TestJoinDuplicateName(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	code := createRoom(t, alice, "Alice")

	imposter := wsDial(t, srv)
	sendFrame(t, imposter, clientMessage{Type: "join-room", RoomCode: code, PlayerName: "Alice"})

	frame := expectFrame(t, imposter, "error")
	assert.Equal(t, "Name already taken", frame.Message)
}

func TestStartGameTwice(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	createRoom(t, alice, "Alice")

	sendFrame(t, alice, clientMessage{Type: "start-game"})
	expectFrame(t, alice, "init-deck")

	sendFrame(t, alice, clientMessage{Type: "start-game"})
	frame := expectFrame(t, alice, "error")
	assert.Equal(t, "Game already started", frame.Message)
}

func TestMoveCardInvalidIndexOverWire(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	createRoom(t, alice, "Alice")

	sendFrame(t, alice, clientMessage{Type: "start-game"})
	expectFrame(t, alice, "init-deck")

	sendFrame(t, alice, clientMessage{Type: "move-card", CardIndex: 99, X: 1, Y: 2})
	frame := expectFrame(t, alice, "error")
	assert.Equal(t, "Invalid card index", frame.Message)
}

func TestDisconnectAndRejoin(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	code := createRoom(t, alice, "Alice")

	bob := wsDial(t, srv)
	sendFrame(t, bob, clientMessage{Type: "join-room", RoomCode: code, PlayerName: "Bob"})
	expectFrame(t, bob, "player-joined")
	expectFrame(t, bob, "room-joined")
	expectFrame(t, alice, "player-joined")

	// Alice drops; Bob sees her seat go dark, the roster unchanged.
	require.NoError(t, alice.Close())

	state := expectFrame(t, bob, "game-state")
	assert.Equal(t, 2, state.PlayerCount)
	assert.Equal(t, []string{"Alice", "Bob"}, state.Players)
	assert.Equal(t, []bool{false, true}, state.Connected)

	// A stranger cannot take her seat.
	stranger := wsDial(t, srv)
	sendFrame(t, stranger, clientMessage{Type: "rejoin-room", RoomCode: code, PlayerName: "Mallory"})
	frame := expectFrame(t, stranger, "error")
	assert.Equal(t, "Not a member of this room", frame.Message)

	sendFrame(t, stranger, clientMessage{Type: "rejoin-room", RoomCode: "NOSUCH", PlayerName: "Alice"})
	frame = expectFrame(t, stranger, "error")
	assert.Equal(t, "Room not found", frame.Message)

	// Alice rejoins under her old name on a fresh connection.
	alice2 := wsDial(t, srv)
	sendFrame(t, alice2, clientMessage{Type: "rejoin-room", RoomCode: code, PlayerName: "Alice"})

	state = expectFrame(t, alice2, "game-state")
	assert.Equal(t, []bool{true, true}, state.Connected)
	joined := expectFrame(t, alice2, "room-joined")
	assert.Equal(t, code, joined.RoomCode)

	state = expectFrame(t, bob, "game-state")
	assert.Equal(t, 2, state.PlayerCount)
	assert.Equal(t, []bool{true, true}, state.Connected)
}

func TestRoomSwitchLeavesOldRoom(t *testing.T) {
	srv := startTestServer(t)

	alice := wsDial(t, srv)
	code := createRoom(t, alice, "Alice")

	bob := wsDial(t, srv)
	sendFrame(t, bob, clientMessage{Type: "join-room", RoomCode: code, PlayerName: "Bob"})
	expectFrame(t, bob, "player-joined")
	expectFrame(t, bob, "room-joined")
	expectFrame(t, alice, "player-joined")

	// Alice opens a second room on the same socket; her seat in the first
	// room goes dark.
	second := createRoom(t, alice, "Alice")
	assert.NotEqual(t, code, second)

	state := expectFrame(t, bob, "game-state")
	assert.Equal(t, []string{"Alice", "Bob"}, state.Players)
	assert.Equal(t, []bool{false, true}, state.Connected)

	// Even after her socket is gone entirely, the first room must keep
	// serving its remaining player.
	require.NoError(t, alice.Close())

	sendFrame(t, bob, clientMessage{Type: "start-game"})
	deal := expectFrame(t, bob, "init-deck")
	assert.Len(t, deal.Cards, deckSize)
}

func TestMalformedFrameIgnored(t *testing.T) {
	srv := startTestServer(t)

	conn := wsDial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"no-such-kind"}`)))

	// The session survives both and still handles real traffic.
	createRoom(t, conn, "Alice")
}

func TestCreateRoomRequiresName(t *testing.T) {
	srv := startTestServer(t)

	conn := wsDial(t, srv)
	sendFrame(t, conn, clientMessage{Type: "create-room"})

	frame := expectFrame(t, conn, "error")
	assert.Equal(t, "Player name required", frame.Message)
}

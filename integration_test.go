package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// startTestServer spins up an httptest.Server with a Hub and returns
// the server, its WebSocket URL, and the hub.
func startTestServer(t *testing.T) (*httptest.Server, string, *Hub) {
	t.Helper()

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	cfg := DefaultConfig()
	cfg.Arena = testArenaConfig()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.TicketSecret = "integration"
	cfg.PublicURL = "https://brains.example"

	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	journal := NewJournal(db)
	hub := NewHub(cfg, journal)
	go hub.Run()

	mux := SetupRoutes(hub, tmpDir)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	t.Cleanup(func() {
		srv.Close()
		hub.rooms.Close()
		journal.Stop()
		db.Close()
	})
	return srv, wsURL, hub
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, fields map[string]interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": msgType}
	for k, v := range fields {
		msg[k] = v
	}
	raw, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// readType reads text frames until one of the given type arrives, skipping
// everything else.
func readType(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS waiting for %s: %v", msgType, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if m["type"] == msgType {
			return m
		}
	}
}

// readBinary reads frames until a msgpack snapshot arrives
func readBinary(t *testing.T, conn *websocket.Conn) SnapshotMsg {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS waiting for binary: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		var snap SnapshotMsg
		dec := msgpack.NewDecoder(bytes.NewReader(raw))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&snap); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return snap
	}
}

// createRoom creates a room and returns (roomID, playerID, ticket).
func createRoom(t *testing.T, conn *websocket.Conn, name, password string) (string, string, string) {
	t.Helper()
	sendMsg(t, conn, MsgCreateRoom, map[string]interface{}{"name": name, "room": name + "'s arena", "password": password})
	created := readType(t, conn, MsgRoomCreated)
	return created["roomId"].(string), created["playerId"].(string), created["ticket"].(string)
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID, name, password, codec string) map[string]interface{} {
	t.Helper()
	sendMsg(t, conn, MsgJoinRoom, map[string]interface{}{"roomId": roomID, "name": name, "password": password, "codec": codec})
	return readType(t, conn, MsgRoomJoined)
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

// ---------- tests ----------

func TestIntegrationCreateAndJoin(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	host := dialWS(t, wsURL)
	guest := dialWS(t, wsURL)

	roomID, hostID, ticket := createRoom(t, host, "Alice", "")
	if !uuidRegex.MatchString(roomID) {
		t.Errorf("room id should be a uuid, got %s", roomID)
	}
	if hostID == "" || ticket == "" {
		t.Error("expected a player id and a ticket")
	}

	joined := joinRoom(t, guest, roomID, "Bob", "", "")
	players := joined["players"].([]interface{})
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(players))
	}
	settings := joined["settings"].(map[string]interface{})
	if settings["difficulty"] != "normal" {
		t.Errorf("expected default settings, got %v", settings)
	}
	state := joined["state"].(map[string]interface{})
	if state["phase"] != "lobby" || len(state["grid"].([]interface{})) != 7 {
		t.Errorf("unexpected state %v", state)
	}

	announced := readType(t, host, MsgPlayerJoined)
	if announced["player"].(map[string]interface{})["name"] != "Bob" {
		t.Errorf("host should hear about Bob, got %v", announced)
	}
}

func TestIntegrationJoinErrors(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	host := dialWS(t, wsURL)
	guest := dialWS(t, wsURL)

	roomID, _, _ := createRoom(t, host, "Alice", "secret")

	sendMsg(t, guest, MsgJoinRoom, map[string]interface{}{"roomId": roomID, "name": "Bob", "password": "wrong"})
	if e := readType(t, guest, MsgError); e["message"] != ErrWrongPassword.Error() {
		t.Errorf("expected wrong password, got %v", e)
	}

	sendMsg(t, guest, MsgJoinRoom, map[string]interface{}{"roomId": "missing", "name": "Bob"})
	if e := readType(t, guest, MsgError); e["message"] != ErrRoomNotFound.Error() {
		t.Errorf("expected room not found, got %v", e)
	}

	joinRoom(t, guest, roomID, "Bob", "secret", "")

	sendMsg(t, guest, MsgStartGame, nil)
	if e := readType(t, guest, MsgError); e["message"] != ErrNotHost.Error() {
		t.Errorf("expected not host, got %v", e)
	}

	sendMsg(t, guest, MsgRejoin, map[string]interface{}{"ticket": "forged"})
	if e := readType(t, guest, MsgError); e["message"] != ErrBadTicket.Error() {
		t.Errorf("expected invalid ticket, got %v", e)
	}
}

func TestIntegrationMalformedMessagesAreDropped(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	conn := dialWS(t, wsURL)

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`))
	conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
	sendMsg(t, conn, MsgInput, map[string]interface{}{"seq": 1, "dir": "up"})

	sendMsg(t, conn, MsgListRooms, nil)
	rooms := readType(t, conn, MsgRooms)
	if list, _ := rooms["rooms"].([]interface{}); len(list) != 0 {
		t.Errorf("expected no rooms, got %v", list)
	}
}

func TestIntegrationMatchFlow(t *testing.T) {
	srv, wsURL, _ := startTestServer(t)
	host := dialWS(t, wsURL)
	guest := dialWS(t, wsURL)

	roomID, _, _ := createRoom(t, host, "Alice", "")
	joinRoom(t, guest, roomID, "Bob", "", "msgpack")

	sendMsg(t, host, MsgStartGame, nil)
	readType(t, host, MsgGameStart)

	snap := readType(t, host, MsgSnapshot)
	state := snap["state"].(map[string]interface{})
	if agents := state["agents"].([]interface{}); len(agents) != 2 {
		t.Errorf("expected 2 agents in the snapshot, got %d", len(agents))
	}

	bin := readBinary(t, guest)
	if bin.Type != MsgSnapshot || len(bin.State.Agents) != 2 {
		t.Errorf("unexpected binary snapshot %+v", bin)
	}

	sendMsg(t, host, MsgInput, map[string]interface{}{"seq": 1, "dir": "right", "dropHazard": false})

	over := readType(t, host, MsgGameOver)
	if over["draw"] != true {
		t.Errorf("time up with two alive should be a draw, got %v", over)
	}

	var results []ResultRow
	deadline := time.Now().Add(3 * time.Second)
	for len(results) == 0 && time.Now().Before(deadline) {
		getJSON(t, srv.URL+"/rooms/"+roomID+"/results", &results)
		if len(results) == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if len(results) == 0 {
		t.Fatal("expected the match to be recorded")
	}
	if !results[0].Draw || len(results[0].Players) != 2 {
		t.Errorf("expected a recorded draw between two players, got %+v", results[0])
	}
}

func TestIntegrationRejoin(t *testing.T) {
	_, wsURL, _ := startTestServer(t)
	host := dialWS(t, wsURL)
	guest := dialWS(t, wsURL)

	roomID, _, _ := createRoom(t, host, "Alice", "")
	joined := joinRoom(t, guest, roomID, "Bob", "", "")
	guestID := joined["playerId"].(string)
	ticket := joined["ticket"].(string)

	sendMsg(t, host, MsgStartGame, nil)
	readType(t, guest, MsgGameStart)
	guest.Close()

	again := dialWS(t, wsURL)
	sendMsg(t, again, MsgRejoin, map[string]interface{}{"ticket": ticket})
	back := readType(t, again, MsgRoomJoined)
	if back["playerId"] != guestID || back["roomId"] != roomID {
		t.Errorf("rejoin should restore the same seat, got %v", back)
	}
	if back["ticket"] == "" {
		t.Error("rejoin should refresh the ticket")
	}
	readType(t, again, MsgSnapshot)
}

func TestIntegrationRoomsEndpoints(t *testing.T) {
	srv, wsURL, hub := startTestServer(t)
	host := dialWS(t, wsURL)
	roomID, _, _ := createRoom(t, host, "Alice", "pw")

	var rooms []RoomInfo
	getJSON(t, srv.URL+"/rooms", &rooms)
	if len(rooms) != 1 || rooms[0].ID != roomID || !rooms[0].Password || rooms[0].Players != 1 {
		t.Errorf("unexpected room list %+v", rooms)
	}

	resp, err := http.Get(srv.URL + "/rooms/" + roomID + "/qr")
	if err != nil {
		t.Fatalf("GET qr: %v", err)
	}
	png, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("expected a png, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("qr body should be a png")
	}
	if got := joinURL(hub.publicURL, nil, roomID); got != "https://brains.example/?room="+roomID {
		t.Errorf("unexpected join url %s", got)
	}

	if resp := getJSON(t, srv.URL+"/rooms/missing/qr", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown room, got %d", resp.StatusCode)
	}
	if resp := getJSON(t, srv.URL+"/rooms/missing/results", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown room, got %d", resp.StatusCode)
	}

	var results []ResultRow
	getJSON(t, srv.URL+"/rooms/"+roomID+"/results", &results)
	if results == nil || len(results) != 0 {
		t.Errorf("a fresh room has an empty result list, got %v", results)
	}

	var stats map[string]int
	getJSON(t, srv.URL+"/stats", &stats)
	if stats["rooms"] != 1 || stats["connections"] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
}

func TestIntegrationRoomClosesWhenEmpty(t *testing.T) {
	srv, wsURL, hub := startTestServer(t)
	host := dialWS(t, wsURL)
	roomID, _, _ := createRoom(t, host, "Alice", "")

	sendMsg(t, host, MsgLeaveRoom, nil)
	deadline := time.Now().Add(2 * time.Second)
	for hub.rooms.GetRoom(roomID) != nil {
		if time.Now().After(deadline) {
			t.Fatal("room should close once its last human leaves")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var rooms []RoomInfo
	getJSON(t, srv.URL+"/rooms", &rooms)
	if len(rooms) != 0 {
		t.Errorf("expected no rooms, got %v", rooms)
	}
}

func TestIntegrationStaticFiles(t *testing.T) {
	srv, _, _ := startTestServer(t)

	for _, path := range []string{"/", "/js/main.js", "/0b7c3f7e-8a7d-4b0b-9d6c-3b8a2f4c1e55"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		if resp.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("GET %s: expected no-cache", path)
		}
	}
}

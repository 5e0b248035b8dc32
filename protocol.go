package main

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Client -> Server message types
const (
	MsgCreateRoom     = "create_room"
	MsgJoinRoom       = "join_room"
	MsgRejoin         = "rejoin"
	MsgLeaveRoom      = "leave_room"
	MsgListRooms      = "list_rooms"
	MsgInput          = "input"
	MsgReady          = "ready"
	MsgStartGame      = "start_game"
	MsgUpdateSettings = "update_settings"
)

// Server -> Client message types
const (
	MsgRoomCreated     = "room_created"
	MsgRoomJoined      = "room_joined"
	MsgPlayerJoined    = "player_joined"
	MsgPlayerLeft      = "player_left"
	MsgPlayerReady     = "player_ready"
	MsgSettingsUpdated = "settings_updated"
	MsgGameStart       = "game_start"
	MsgSnapshot        = "snapshot"
	MsgGameOver        = "game_over"
	MsgRooms           = "rooms"
	MsgError           = "error"
)

// Codec selects how snapshots are framed for a client
type Codec string

const (
	CodecJSON    Codec = "json"
	CodecMsgpack Codec = "msgpack"
)

// ParseCodec maps a requested codec to a supported one, defaulting to JSON
func ParseCodec(s string) Codec {
	if Codec(s) == CodecMsgpack {
		return CodecMsgpack
	}
	return CodecJSON
}

// InMessage peeks at the type of an incoming frame
type InMessage struct {
	Type string `json:"type"`
}

// CreateRoomMsg asks for a new room hosted by the sender
type CreateRoomMsg struct {
	Name     string `json:"name"`
	Room     string `json:"room,omitempty"`
	Password string `json:"password,omitempty"`
	Codec    string `json:"codec,omitempty"`
}

// JoinRoomMsg asks to join an existing room
type JoinRoomMsg struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Codec    string `json:"codec,omitempty"`
}

// RejoinMsg reclaims a slot with a ticket issued on create or join
type RejoinMsg struct {
	Ticket string `json:"ticket"`
	Codec  string `json:"codec,omitempty"`
}

// InputMsg carries one movement sample. A null dir means stop.
type InputMsg struct {
	Seq        uint32  `json:"seq"`
	Dir        *string `json:"dir"`
	DropHazard bool    `json:"dropHazard"`
}

// SettingsUpdate changes room settings; nil fields are left as they are
type SettingsUpdate struct {
	TimeLimit  *float64 `json:"timeLimit,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	Bots       *int     `json:"bots,omitempty"`
	Difficulty *string  `json:"difficulty,omitempty"`
}

// ClientInput is the buffered intent of one participant
type ClientInput struct {
	Seq        uint32
	Dir        Dir
	DropHazard bool
}

// AgentState is broadcast per agent each tick
type AgentState struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Alive     bool    `json:"alive"`
	Facing    string  `json:"facing"`
	Bot       bool    `json:"bot"`
	Hazards   int     `json:"hazards"` // placements still available
	Range     int     `json:"range"`
	Kick      bool    `json:"kick,omitempty"`
	Curse     string  `json:"curse,omitempty"`
	Connected bool    `json:"connected"`
}

// HazardState is broadcast per live hazard
type HazardState struct {
	ID    int     `json:"id"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Owner string  `json:"owner"`
	Range int     `json:"range"`
	Timer float64 `json:"timer"`
}

// BlastState is broadcast per active blast cell
type BlastState struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	CreatedAt float64 `json:"createdAt"`
}

// PickupState is broadcast per pickup on the ground
type PickupState struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Kind string `json:"kind"`
}

// GameState is the full snapshot of one room
type GameState struct {
	Phase         string        `json:"phase"`
	Grid          [][]CellKind  `json:"grid"`
	Agents        []AgentState  `json:"agents"`
	Hazards       []HazardState `json:"hazards"`
	Blasts        []BlastState  `json:"blasts"`
	Pickups       []PickupState `json:"pickups"`
	TimeRemaining float64       `json:"timeRemaining"`
	Countdown     float64       `json:"countdown"`
	Tick          uint64        `json:"tick"`
}

// PlayerInfo is a roster entry
type PlayerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slot      int    `json:"slot"`
	Bot       bool   `json:"bot"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	Alive     bool   `json:"alive"`
	Wins      int    `json:"wins"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
}

// RoomCreatedMsg answers create_room
type RoomCreatedMsg struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"roomId"`
	PlayerID string    `json:"playerId"`
	Ticket   string    `json:"ticket"`
	State    GameState `json:"state"`
}

// RoomJoinedMsg answers join_room and rejoin
type RoomJoinedMsg struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"roomId"`
	PlayerID string        `json:"playerId"`
	Ticket   string        `json:"ticket"`
	Players  []PlayerInfo  `json:"players"`
	Settings MatchSettings `json:"settings"`
	State    GameState     `json:"state"`
}

// PlayerJoinedMsg announces a new roster entry
type PlayerJoinedMsg struct {
	Type   string     `json:"type"`
	Player PlayerInfo `json:"player"`
}

// PlayerMsg carries a bare player id (player_left, player_ready)
type PlayerMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// SettingsUpdatedMsg announces new room settings and the rebuilt arena
type SettingsUpdatedMsg struct {
	Type     string        `json:"type"`
	Settings MatchSettings `json:"settings"`
	State    GameState     `json:"state"`
}

// GameStartMsg announces the start of a countdown
type GameStartMsg struct {
	Type string `json:"type"`
}

// SnapshotMsg is the per-tick state broadcast
type SnapshotMsg struct {
	Type  string    `json:"type"`
	State GameState `json:"state"`
	Time  float64   `json:"time"`
}

// GameOverMsg announces the outcome of a match
type GameOverMsg struct {
	Type                string       `json:"type"`
	Winner              string       `json:"winner,omitempty"`
	Draw                bool         `json:"draw"`
	RestartDelaySeconds float64      `json:"restartDelaySeconds"`
	Players             []PlayerInfo `json:"players"`
}

// RoomInfo is used in the room list
type RoomInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Players  int    `json:"players"`
	Phase    string `json:"phase"`
	Password bool   `json:"password"`
}

// RoomsMsg answers list_rooms
type RoomsMsg struct {
	Type  string     `json:"type"`
	Rooms []RoomInfo `json:"rooms"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func errorMsg(err error) ErrorMsg {
	return ErrorMsg{Type: MsgError, Message: err.Error()}
}

// encodeMsgpack encodes v using its json field names so both codecs share one shape
func encodeMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

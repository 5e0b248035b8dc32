package main

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
	maxRoomNameLen    = 30
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	playerID   string
	roomID     string
	codec      Codec
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		codec:      CodecJSON,
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		if msgType != websocket.TextMessage {
			log.Printf("dropping non-text frame from %s", c.remoteAddr)
			continue
		}
		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(err error) {
	c.SendJSON(errorMsg(err))
}

// handleMessage routes incoming messages by their type field
func (c *Client) handleMessage(raw []byte) {
	var head InMessage
	if err := json.Unmarshal(raw, &head); err != nil {
		log.Printf("unmarshal error from %s: %v", c.remoteAddr, err)
		return
	}

	switch head.Type {
	case MsgListRooms:
		c.handleList()
	case MsgCreateRoom:
		c.handleCreate(raw)
	case MsgJoinRoom:
		c.handleJoin(raw)
	case MsgRejoin:
		c.handleRejoin(raw)
	case MsgLeaveRoom:
		c.handleLeave()
	case MsgInput:
		c.handleInput(raw)
	case MsgReady:
		c.handleReady()
	case MsgStartGame:
		c.handleStart()
	case MsgUpdateSettings:
		c.handleSettings(raw)
	default:
		log.Printf("unknown message type %q from %s", head.Type, c.remoteAddr)
	}
}

func cleanName(name, fallback string, maxLen int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name
}

func (c *Client) room() *Room {
	if c.roomID == "" || c.playerID == "" {
		return nil
	}
	return c.hub.rooms.GetRoom(c.roomID)
}

func (c *Client) handleList() {
	c.SendJSON(RoomsMsg{Type: MsgRooms, Rooms: c.hub.rooms.ListRooms()})
}

func (c *Client) handleCreate(raw []byte) {
	var msg CreateRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("bad create_room from %s: %v", c.remoteAddr, err)
		return
	}
	c.handleLeave()

	name := cleanName(msg.Name, "Player", maxNameLen)
	roomName := cleanName(msg.Room, name+"'s room", maxRoomNameLen)
	hash, err := HashPassword(msg.Password, c.hub.bcryptCost)
	if err != nil {
		c.sendError(err)
		return
	}
	room, err := c.hub.rooms.CreateRoom(roomName, hash)
	if err != nil {
		c.sendError(err)
		return
	}
	agent, err := room.Game.AddPlayer(name)
	if err != nil {
		c.hub.rooms.RemoveRoom(room.ID)
		c.sendError(err)
		return
	}
	ticket, err := c.hub.tickets.Issue(room.ID, agent.ID)
	if err != nil {
		log.Printf("issue ticket: %v", err)
	}

	c.attach(room, agent.ID, msg.Codec)
	c.SendJSON(RoomCreatedMsg{
		Type:     MsgRoomCreated,
		RoomID:   room.ID,
		PlayerID: agent.ID,
		Ticket:   ticket,
		State:    room.Game.State(),
	})
	room.Game.SetClient(agent.ID, c, c.codec)
}

func (c *Client) handleJoin(raw []byte) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("bad join_room from %s: %v", c.remoteAddr, err)
		return
	}
	room := c.hub.rooms.GetRoom(msg.RoomID)
	if room == nil {
		c.sendError(ErrRoomNotFound)
		return
	}
	if !CheckPassword(room.PasswordHash, msg.Password) {
		c.sendError(ErrWrongPassword)
		return
	}
	c.handleLeave()

	agent, err := room.Game.AddPlayer(cleanName(msg.Name, "Player", maxNameLen))
	if err != nil {
		c.sendError(err)
		return
	}
	ticket, err := c.hub.tickets.Issue(room.ID, agent.ID)
	if err != nil {
		log.Printf("issue ticket: %v", err)
	}
	c.attach(room, agent.ID, msg.Codec)
	c.sendJoined(room, agent.ID, ticket)
}

func (c *Client) handleRejoin(raw []byte) {
	var msg RejoinMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("bad rejoin from %s: %v", c.remoteAddr, err)
		return
	}
	roomID, playerID, err := c.hub.tickets.Parse(msg.Ticket)
	if err != nil {
		c.sendError(ErrBadTicket)
		return
	}
	room := c.hub.rooms.GetRoom(roomID)
	if room == nil {
		c.sendError(ErrRoomNotFound)
		return
	}
	if c.roomID != roomID || c.playerID != playerID {
		c.handleLeave()
	}
	ticket, err := c.hub.tickets.Issue(roomID, playerID)
	if err != nil {
		log.Printf("issue ticket: %v", err)
	}
	codec := ParseCodec(msg.Codec)
	if err := room.Game.Rejoin(playerID, c, codec, ticket); err != nil {
		c.sendError(ErrBadTicket)
		return
	}
	c.attach(room, playerID, msg.Codec)
}

func (c *Client) attach(room *Room, playerID, codec string) {
	c.roomID = room.ID
	c.playerID = playerID
	c.codec = ParseCodec(codec)
}

func (c *Client) sendJoined(room *Room, playerID, ticket string) {
	c.SendJSON(RoomJoinedMsg{
		Type:     MsgRoomJoined,
		RoomID:   room.ID,
		PlayerID: playerID,
		Ticket:   ticket,
		Players:  room.Game.Players(),
		Settings: room.Game.Settings(),
		State:    room.Game.State(),
	})
	room.Game.SetClient(playerID, c, c.codec)
}

func (c *Client) handleLeave() {
	if c.roomID == "" {
		return
	}
	c.hub.rooms.Disconnect(c.roomID, c.playerID, c)
	c.roomID = ""
	c.playerID = ""
}

func (c *Client) handleInput(raw []byte) {
	room := c.room()
	if room == nil {
		return
	}
	var msg InputMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("bad input from %s: %v", c.remoteAddr, err)
		return
	}
	dir := DirNone
	if msg.Dir != nil {
		dir = ParseDir(*msg.Dir)
	}
	room.Game.HandleInput(c.playerID, ClientInput{Seq: msg.Seq, Dir: dir, DropHazard: msg.DropHazard})
}

func (c *Client) handleReady() {
	if room := c.room(); room != nil {
		room.Game.HandleReady(c.playerID)
	}
}

func (c *Client) handleStart() {
	room := c.room()
	if room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	if err := room.Game.StartGame(c.playerID); err != nil {
		c.sendError(err)
	}
}

func (c *Client) handleSettings(raw []byte) {
	room := c.room()
	if room == nil {
		c.sendError(ErrNotInRoom)
		return
	}
	var msg SettingsUpdate
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("bad update_settings from %s: %v", c.remoteAddr, err)
		return
	}
	if err := room.Game.UpdateSettings(c.playerID, msg); err != nil {
		c.sendError(err)
	}
}

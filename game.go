package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendRaw(data []byte)
	SendBinary(data []byte)
}

// MatchResult summarizes one finished match for the journal
type MatchResult struct {
	RoomID   string
	Round    int
	WinnerID string
	Draw     bool
	Duration float64
	Players  []PlayerInfo
	EndedAt  time.Time
}

// Game holds the authoritative state of one room
type Game struct {
	mu       sync.RWMutex
	id       string
	cfg      ArenaConfig
	settings MatchSettings
	seed     int64
	round    int
	rng      *rand.Rand

	grid      *Grid
	hazards   *HazardEngine
	pickups   map[Cell]*Pickup
	dangerCfg DangerConfig
	danger    *DangerMap
	zone      *DangerZone

	slots   [RoomCapacity]*Agent
	bots    map[string]*Bot
	clients map[string]Broadcaster // playerID -> client
	codecs  map[string]Codec
	hostID  string

	phase         Phase
	countdown     float64
	timeRemaining float64
	restartT      float64

	inputMu sync.Mutex
	inputs  map[string]ClientInput

	tick    uint64
	stopped bool
	stop    chan struct{}

	// OnResult and OnFault are set before Run and called from the loop goroutine
	OnResult func(MatchResult)
	OnFault  func(err error)
}

// NewGame creates a room in the lobby phase with a fresh arena
func NewGame(id string, cfg ArenaConfig, seed int64) *Game {
	g := &Game{
		id:        id,
		cfg:       cfg,
		settings:  DefaultSettings(cfg),
		seed:      seed,
		dangerCfg: NewDangerConfig(cfg),
		bots:      make(map[string]*Bot),
		clients:   make(map[string]Broadcaster),
		codecs:    make(map[string]Codec),
		inputs:    make(map[string]ClientInput),
		phase:     PhaseLobby,
		stop:      make(chan struct{}),
	}
	g.buildArena()
	return g
}

// Run starts the game loop at the room's fixed tick rate
func (g *Game) Run() {
	ticker := time.NewTicker(time.Second / time.Duration(g.cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := g.safeUpdate(); err != nil {
				g.fail(err)
				return
			}
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop. Pending countdowns, chain delays and
// restarts are loop-driven and end with it.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stopped {
		g.stopped = true
		close(g.stop)
	}
}

func (g *Game) safeUpdate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("room %s: tick %d panicked: %v", g.id, g.tick, r)
		}
	}()
	g.update()
	return nil
}

func (g *Game) fail(err error) {
	log.Printf("%v", err)
	g.mu.RLock()
	for _, c := range g.clients {
		c.SendJSON(ErrorMsg{Type: MsgError, Message: "room closed after an internal error"})
	}
	g.mu.RUnlock()
	if g.OnFault != nil {
		g.OnFault(err)
	}
}

// arenaConfig returns the arena tuning with the room's settings applied
func (g *Game) arenaConfig() ArenaConfig {
	a := g.cfg
	a.AgentSpeed = g.settings.Speed
	a.TimeLimit = g.settings.TimeLimit
	return a
}

// buildArena discards the grid and hazard state and respawns the roster
func (g *Game) buildArena() {
	g.rng = rand.New(rand.NewSource(g.seed + int64(g.round)*7919))
	g.grid = nil
	if len(g.cfg.Layout) > 0 {
		grid, err := ParseGrid(g.cfg.Layout)
		if err != nil {
			log.Printf("room %s: bad layout, generating: %v", g.id, err)
		} else {
			g.grid = grid
		}
	}
	if g.grid == nil {
		g.grid = GenerateGrid(g.cfg.Width, g.cfg.Height, g.cfg.BlockDensity, g.rng)
	}
	g.hazards = NewHazardEngine(NewHazardConfig(g.cfg))
	g.pickups = make(map[Cell]*Pickup)
	g.timeRemaining = g.settings.TimeLimit
	g.countdown = 0

	arena := g.arenaConfig()
	corners := g.grid.SpawnCorners()
	for _, a := range g.slots {
		if a == nil {
			continue
		}
		a.Spawn(corners[a.Slot], arena)
		if a.Bot {
			g.bots[a.ID] = NewBot(a.ID, g.settings.Difficulty, g.botSeed(a.Slot))
		}
	}
	g.rebuildDanger()
}

func (g *Game) botSeed(slot int) int64 {
	return g.seed + int64(g.round)*31 + int64(slot) + 1
}

func (g *Game) rebuildDanger() {
	hz := g.hazards.Hazards()
	blasts := g.hazards.Blasts()
	g.danger = BuildDangerMap(g.grid, hz, blasts, g.dangerCfg)
	g.zone = BuildDangerZone(g.grid, hz, blasts)
}

// AddPlayer seats a new human in the first free slot
func (g *Game) AddPlayer(name string) (*Agent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseCountdown || g.phase == PhaseRunning {
		return nil, ErrMatchInProgress
	}
	slot := g.freeSlot()
	if slot < 0 {
		return nil, ErrRoomFull
	}
	a := NewAgent(GenerateID(4), name, slot, false)
	a.Spawn(g.grid.SpawnCorners()[slot], g.arenaConfig())
	if g.phase == PhaseOver {
		a.Alive = false
	}
	g.slots[slot] = a
	if g.hostID == "" {
		g.hostID = a.ID
	}
	g.broadcastMsg(PlayerJoinedMsg{Type: MsgPlayerJoined, Player: a.Info()})
	return a, nil
}

// Rejoin reattaches a human to its seat. The welcome message is queued before
// the client is registered so it precedes every later broadcast.
func (g *Game) Rejoin(playerID string, client Broadcaster, codec Codec, ticket string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a := g.agent(playerID)
	if a == nil || a.Bot {
		return ErrNotInRoom
	}
	a.Connected = true
	if g.hostID == "" {
		g.hostID = a.ID
	}
	client.SendJSON(RoomJoinedMsg{
		Type:     MsgRoomJoined,
		RoomID:   g.id,
		PlayerID: playerID,
		Ticket:   ticket,
		Players:  g.players(),
		Settings: g.settings,
		State:    g.state(),
	})
	g.clients[playerID] = client
	g.codecs[playerID] = codec
	return nil
}

// SetClient associates a broadcaster with a player
func (g *Game) SetClient(playerID string, client Broadcaster, codec Codec) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[playerID] = client
	g.codecs[playerID] = codec
}

// DisconnectPlayer handles a closed channel or an explicit leave. In the
// lobby the slot is released; otherwise the agent stays, marked disconnected,
// until the next restart. A client that no longer owns the player is ignored.
func (g *Game) DisconnectPlayer(playerID string, client Broadcaster) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cur, ok := g.clients[playerID]; ok && client != nil && cur != client {
		return
	}
	delete(g.clients, playerID)
	delete(g.codecs, playerID)
	g.inputMu.Lock()
	delete(g.inputs, playerID)
	g.inputMu.Unlock()

	a := g.agent(playerID)
	if a == nil {
		return
	}
	if g.phase == PhaseLobby {
		g.slots[a.Slot] = nil
	} else {
		a.Connected = false
		a.Intent = DirNone
		a.DropHazard = false
	}
	if g.hostID == playerID {
		g.hostID = g.nextHost()
	}
	g.broadcastMsg(PlayerMsg{Type: MsgPlayerLeft, PlayerID: playerID})
}

// ConnectedHumans returns the number of humans with a live channel
func (g *Game) ConnectedHumans() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, a := range g.slots {
		if a != nil && !a.Bot && a.Connected {
			n++
		}
	}
	return n
}

// PlayerCount returns the number of occupied slots
func (g *Game) PlayerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.participants()
}

// Phase returns the current match phase
func (g *Game) Phase() Phase {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.phase
}

// Settings returns the room settings
func (g *Game) Settings() MatchSettings {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settings
}

// Players returns the roster in slot order
func (g *Game) Players() []PlayerInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.players()
}

// State returns a snapshot of the room
func (g *Game) State() GameState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state()
}

// HandleInput buffers a participant's intent for the next tick
func (g *Game) HandleInput(playerID string, in ClientInput) {
	g.inputMu.Lock()
	defer g.inputMu.Unlock()
	prev, ok := g.inputs[playerID]
	if ok && in.Seq < prev.Seq {
		return
	}
	if ok && prev.DropHazard {
		in.DropHazard = true
	}
	g.inputs[playerID] = in
}

// HandleReady marks a participant ready
func (g *Game) HandleReady(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.agent(playerID)
	if a == nil || a.Ready {
		return
	}
	a.Ready = true
	g.broadcastMsg(PlayerMsg{Type: MsgPlayerReady, PlayerID: playerID})
}

// StartGame fills free slots with bots and begins the countdown
func (g *Game) StartGame(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if playerID != g.hostID {
		return ErrNotHost
	}
	if g.phase != PhaseLobby {
		return ErrMatchInProgress
	}
	if g.humans()+min(g.settings.Bots, RoomCapacity-g.humans()) < 2 {
		return ErrNeedPlayers
	}
	g.syncBots()
	g.startCountdown()
	log.Printf("room %s: match started with %d participants", g.id, g.participants())
	return nil
}

// UpdateSettings changes room settings between matches and rebuilds the arena
func (g *Game) UpdateSettings(playerID string, u SettingsUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if playerID != g.hostID {
		return ErrNotHost
	}
	if g.phase != PhaseLobby && g.phase != PhaseOver {
		return ErrMatchInProgress
	}
	s, err := g.settings.Apply(u)
	if err != nil {
		return err
	}
	g.settings = s
	if g.phase == PhaseOver {
		g.syncBots()
	}
	g.buildArena()
	g.broadcastMsg(SettingsUpdatedMsg{Type: MsgSettingsUpdated, Settings: g.settings, State: g.state()})
	return nil
}

// syncBots adds or removes bots until their count matches the settings
func (g *Game) syncBots() {
	count := 0
	for _, a := range g.slots {
		if a != nil && a.Bot {
			count++
		}
	}
	for slot := RoomCapacity - 1; slot >= 0 && count > g.settings.Bots; slot-- {
		if a := g.slots[slot]; a != nil && a.Bot {
			g.slots[slot] = nil
			delete(g.bots, a.ID)
			count--
		}
	}
	arena := g.arenaConfig()
	corners := g.grid.SpawnCorners()
	for count < g.settings.Bots {
		slot := g.freeSlot()
		if slot < 0 {
			break
		}
		a := NewAgent("bot-"+GenerateID(3), fmt.Sprintf("Bot %d", slot+1), slot, true)
		a.Spawn(corners[slot], arena)
		if g.phase == PhaseOver {
			a.Alive = false
		}
		g.slots[slot] = a
		g.bots[a.ID] = NewBot(a.ID, g.settings.Difficulty, g.botSeed(slot))
		count++
	}
}

func (g *Game) startCountdown() {
	g.phase = PhaseCountdown
	g.countdown = g.cfg.CountdownSeconds
	g.broadcastMsg(GameStartMsg{Type: MsgGameStart})
}

// update runs one game tick
func (g *Game) update() {
	g.mu.Lock()
	defer g.mu.Unlock()

	dt := g.cfg.TickDuration()
	g.tick++
	live := g.phase == PhaseCountdown || g.phase == PhaseRunning

	g.applyInputs()
	switch g.phase {
	case PhaseCountdown:
		g.countdown -= dt
		if g.countdown <= 0 {
			g.countdown = 0
			g.phase = PhaseRunning
		}
	case PhaseRunning:
		g.step(dt)
	case PhaseOver:
		g.restartT -= dt
		if g.restartT <= 0 {
			g.restart()
		}
	}

	if live || g.phase == PhaseCountdown || g.phase == PhaseRunning {
		g.broadcastSnapshot()
	}
}

// applyInputs copies buffered intents into agents
func (g *Game) applyInputs() {
	g.inputMu.Lock()
	inputs := g.inputs
	g.inputs = make(map[string]ClientInput, len(inputs))
	g.inputMu.Unlock()

	for id, in := range inputs {
		a := g.agent(id)
		if a == nil || a.Bot || !a.Alive {
			continue
		}
		a.Intent = in.Dir
		if in.DropHazard && g.phase == PhaseRunning {
			a.DropHazard = true
		}
	}
}

// step advances a running match by one ordered pass
func (g *Game) step(dt float64) {
	agents := g.agentList()
	byID := make(map[string]*Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}

	res := g.hazards.Advance(dt, g.grid, byID, g.rng)
	for _, b := range res.BlastCells {
		delete(g.pickups, b.Cell)
	}
	for i := range res.Drops {
		p := res.Drops[i]
		g.pickups[p.Cell] = &p
	}

	for _, a := range applyBlastHits(g.hazards, agents) {
		log.Printf("room %s: %s was caught in a blast", g.id, a.Name)
	}

	g.rebuildDanger()

	world := &World{
		Grid:    g.grid,
		Hazards: g.hazards,
		Agents:  agents,
		Danger:  g.danger,
		Zone:    g.zone,
		Cfg:     g.dangerCfg,
		Fuse:    g.cfg.HazardFuse,
	}
	for _, a := range agents {
		if !a.Alive {
			continue
		}
		if a.Bot {
			if b := g.bots[a.ID]; b != nil {
				d := b.Decide(world, a)
				a.Intent = d.Dir
				a.DropHazard = d.Drop
			}
		}
		if a.DropHazard {
			g.hazards.Place(a, g.grid)
			a.DropHazard = false
		}
	}

	for _, a := range agents {
		if !a.Alive {
			continue
		}
		a.Move(dt, g.grid, g.hazards, g.cfg.StuckSeconds)
		a.TickCurse(dt)
		if p := g.pickups[a.Cell()]; p != nil {
			ApplyPickup(a, p.Kind, g.rng, g.cfg.CurseSeconds)
			delete(g.pickups, p.Cell)
		}
	}

	g.timeRemaining -= dt
	if out := EvaluateOutcome(agents, g.timeRemaining); out.Over {
		g.finish(out)
	}
}

// applyBlastHits kills every living agent standing in an active blast and
// credits the blast's owner.
func applyBlastHits(hz *HazardEngine, agents []*Agent) []*Agent {
	var killed []*Agent
	for _, a := range agents {
		if !a.Alive {
			continue
		}
		owner, ok := hz.BlastOwner(a.Cell())
		if !ok || !a.Kill() {
			continue
		}
		killed = append(killed, a)
		if owner == a.ID {
			continue
		}
		for _, k := range agents {
			if k.ID == owner {
				k.Kills++
			}
		}
	}
	return killed
}

func (g *Game) finish(out Outcome) {
	g.phase = PhaseOver
	g.restartT = g.cfg.RestartDelay
	if w := g.agent(out.WinnerID); w != nil {
		w.Wins++
	}
	players := g.players()
	g.broadcastMsg(GameOverMsg{
		Type:                MsgGameOver,
		Winner:              out.WinnerID,
		Draw:                out.Draw,
		RestartDelaySeconds: g.cfg.RestartDelay,
		Players:             players,
	})
	log.Printf("room %s: round %d over, winner=%q draw=%v", g.id, g.round, out.WinnerID, out.Draw)

	if g.OnResult != nil {
		g.OnResult(MatchResult{
			RoomID:   g.id,
			Round:    g.round,
			WinnerID: out.WinnerID,
			Draw:     out.Draw,
			Duration: round2(g.settings.TimeLimit - math.Max(g.timeRemaining, 0)),
			Players:  players,
			EndedAt:  time.Now().UTC(),
		})
	}
}

// restart drops disconnected humans, rebuilds the arena and counts down again
func (g *Game) restart() {
	for slot, a := range g.slots {
		if a == nil {
			continue
		}
		if !a.Bot && !a.Connected {
			g.slots[slot] = nil
			continue
		}
		a.Ready = false
	}
	if g.agent(g.hostID) == nil {
		g.hostID = g.nextHost()
	}
	g.round++
	g.buildArena()
	if g.participants() < 2 {
		g.phase = PhaseLobby
		g.broadcastSnapshot()
		return
	}
	g.startCountdown()
}

// broadcastSnapshot marshals the post-tick state once per codec and hands it
// to every client
func (g *Game) broadcastSnapshot() {
	msg := SnapshotMsg{Type: MsgSnapshot, State: g.state(), Time: round2(g.hazards.Now())}

	var text, binary []byte
	for id, client := range g.clients {
		if g.codecs[id] == CodecMsgpack {
			if binary == nil {
				data, err := encodeMsgpack(msg)
				if err != nil {
					log.Printf("room %s: msgpack snapshot: %v", g.id, err)
					continue
				}
				binary = data
			}
			client.SendBinary(binary)
			continue
		}
		if text == nil {
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("room %s: json snapshot: %v", g.id, err)
				continue
			}
			text = data
		}
		client.SendRaw(text)
	}
}

// broadcastMsg sends a message to all clients in the room
func (g *Game) broadcastMsg(msg interface{}) {
	for _, client := range g.clients {
		client.SendJSON(msg)
	}
}

func (g *Game) state() GameState {
	st := GameState{
		Phase:         string(g.phase),
		Grid:          g.grid.Rows(),
		Agents:        make([]AgentState, 0, RoomCapacity),
		Hazards:       make([]HazardState, 0, len(g.hazards.Hazards())),
		Blasts:        make([]BlastState, 0),
		Pickups:       make([]PickupState, 0, len(g.pickups)),
		TimeRemaining: round2(math.Max(g.timeRemaining, 0)),
		Countdown:     round2(math.Max(g.countdown, 0)),
		Tick:          g.tick,
	}
	for _, a := range g.agentList() {
		st.Agents = append(st.Agents, a.ToState())
	}
	for _, h := range g.hazards.Hazards() {
		st.Hazards = append(st.Hazards, h.ToState())
	}
	for _, b := range g.hazards.Blasts() {
		st.Blasts = append(st.Blasts, b.ToState())
	}
	for _, p := range g.pickups {
		st.Pickups = append(st.Pickups, p.ToState())
	}
	sort.Slice(st.Pickups, func(i, j int) bool {
		if st.Pickups[i].Y != st.Pickups[j].Y {
			return st.Pickups[i].Y < st.Pickups[j].Y
		}
		return st.Pickups[i].X < st.Pickups[j].X
	})
	return st
}

func (g *Game) players() []PlayerInfo {
	list := make([]PlayerInfo, 0, RoomCapacity)
	for _, a := range g.agentList() {
		list = append(list, a.Info())
	}
	return list
}

// agentList returns the seated agents in slot order
func (g *Game) agentList() []*Agent {
	list := make([]*Agent, 0, RoomCapacity)
	for _, a := range g.slots {
		if a != nil {
			list = append(list, a)
		}
	}
	return list
}

func (g *Game) agent(id string) *Agent {
	if id == "" {
		return nil
	}
	for _, a := range g.slots {
		if a != nil && a.ID == id {
			return a
		}
	}
	return nil
}

func (g *Game) freeSlot() int {
	for i, a := range g.slots {
		if a == nil {
			return i
		}
	}
	return -1
}

func (g *Game) participants() int {
	n := 0
	for _, a := range g.slots {
		if a != nil {
			n++
		}
	}
	return n
}

func (g *Game) humans() int {
	n := 0
	for _, a := range g.slots {
		if a != nil && !a.Bot {
			n++
		}
	}
	return n
}

// nextHost picks the first connected human in slot order
func (g *Game) nextHost() string {
	for _, a := range g.slots {
		if a != nil && !a.Bot && a.Connected {
			return a.ID
		}
	}
	return ""
}

package room

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/ai"
	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/game"
	"github.com/codeclash/codeclash-server/internal/game/cards"
	"github.com/codeclash/codeclash-server/internal/game/gameerr"
	"github.com/codeclash/codeclash-server/internal/game/rules"
	"github.com/codeclash/codeclash-server/internal/game/state"
	"github.com/codeclash/codeclash-server/internal/game/targeting"
	"github.com/codeclash/codeclash-server/internal/repository"
)

const recordTimeout = 5 * time.Second

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	HandSize          int
	MinPlayers        int
	MaxPlayers        int
	HistorySize       int
	DefaultDifficulty state.Difficulty
	DisconnectGrace   time.Duration
	AIBaseDelay       time.Duration
	AIMaxDelay        time.Duration
	Catalog           *cards.Catalog
	Roster            []ai.Personality
	// ReplayDir receives a replay file per finished match. Empty disables
	// recording.
	ReplayDir string
	// Seed makes room codes, decks and AI choices reproducible. Zero seeds
	// from the runtime's entropy.
	Seed uint64
}

// OptionsFromConfig derives manager options from the loaded configuration,
// reading the card catalog from game.catalog_path when one is set.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	catalog, err := cards.LoadCatalog(cfg.Game.CatalogPath)
	if err != nil {
		return Options{}, err
	}
	return Options{
		HandSize:          cfg.Game.HandSize,
		MinPlayers:        cfg.Game.MinPlayers,
		MaxPlayers:        cfg.Game.MaxPlayers,
		HistorySize:       cfg.Game.HistorySize,
		DefaultDifficulty: state.ParseDifficulty(cfg.Game.DefaultDifficulty),
		DisconnectGrace:   cfg.Game.DisconnectGrace,
		AIBaseDelay:       cfg.AI.BaseDelay,
		AIMaxDelay:        cfg.AI.MaxDelay,
		Catalog:           catalog,
		ReplayDir:         cfg.Game.ReplayDir,
	}, nil
}

func (o *Options) applyDefaults() {
	if o.HandSize <= 0 {
		o.HandSize = state.DefaultHandSize
	}
	if o.MinPlayers <= 0 {
		o.MinPlayers = rules.DefaultMinPlayers
	}
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = 4
	}
	if o.DefaultDifficulty == "" {
		o.DefaultDifficulty = state.DifficultyNormal
	}
	if o.AIBaseDelay == 0 {
		o.AIBaseDelay = ai.DefaultBaseDelay
	}
	if o.AIMaxDelay == 0 {
		o.AIMaxDelay = ai.DefaultMaxDelay
	}
	if len(o.Roster) == 0 {
		o.Roster = ai.Roster
	}
}

// Seat identifies a player's place in a room.
type Seat struct {
	RoomCode     string `json:"roomCode"`
	PlayerID     string `json:"playerId"`
	ConnectionID string `json:"connectionId"`
}

// Notification carries what changed in a room to the transports. Views are
// keyed by connection id and only built for connected humans.
type Notification struct {
	RoomCode string
	Events   []rules.Event
	Views    map[string]*state.View
	Closed   bool
}

// NotificationHandler receives room notifications after the room lock is
// released, in the order the changes were applied. Calls for one room never
// overlap. A caller may return before its notification is delivered when
// another goroutine is already delivering for the same room.
type NotificationHandler func(Notification)

// Manager is the sole entry point transports use to reach a room's game
// state.
type Manager struct {
	opts     Options
	registry *Registry
	matches  repository.MatchStore
	logger   *zap.Logger

	seedMu sync.Mutex
	seeds  *rand.Rand

	handlerMu sync.RWMutex
	handler   NotificationHandler
}

// NewManager creates a manager. A nil match store keeps history in memory.
func NewManager(opts Options, matches repository.MatchStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if matches == nil {
		matches = repository.NewMemoryMatchStore()
	}
	opts.applyDefaults()

	var seeds *rand.Rand
	if opts.Seed != 0 {
		seeds = rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	} else {
		seeds = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Manager{
		opts:     opts,
		registry: NewRegistry(rand.New(rand.NewPCG(seeds.Uint64(), seeds.Uint64()))),
		matches:  matches,
		logger:   logger,
		seeds:    seeds,
	}
}

// SetNotificationHandler sets the handler for room notifications.
func (m *Manager) SetNotificationHandler(handler NotificationHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.handler = handler
}

// Matches returns the store finished games are recorded in.
func (m *Manager) Matches() repository.MatchStore {
	return m.matches
}

func (m *Manager) newRand() *rand.Rand {
	m.seedMu.Lock()
	defer m.seedMu.Unlock()
	return rand.New(rand.NewPCG(m.seeds.Uint64(), m.seeds.Uint64()))
}

func notFound(code string) error {
	return gameerr.New(gameerr.CodeRoomNotFound, "room %s does not exist", code)
}

func unknownConnection(connectionID string) error {
	return gameerr.New(gameerr.CodePlayerNotFound, "connection %s is not seated in this room", connectionID)
}

// outcome is what a locked operation leaves behind for dispatch.
type outcome struct {
	note   Notification
	match  *repository.Match
	replay *game.Replay
	closed bool
}

// withRoom runs fn under the room's lock and dispatches what it produced
// once the lock is released. Events published by a failed fn are dropped.
// Outcomes queue on the room in lock order and are dispatched by a single
// flusher at a time.
func (m *Manager) withRoom(code string, fn func(r *Room) error) error {
	r, ok := m.registry.Get(code)
	if !ok {
		return notFound(code)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return notFound(code)
	}
	r.pending = nil
	err := fn(r)
	if err != nil {
		r.pending = nil
	}
	r.outbox = append(r.outbox, m.drainLocked(r))
	flush := !r.flushing
	r.flushing = true
	r.mu.Unlock()

	if flush {
		m.flush(r)
	}
	return err
}

// flush dispatches queued outcomes until the room's outbox is empty. Only
// the caller that set r.flushing runs it.
func (m *Manager) flush(r *Room) {
	r.mu.Lock()
	for len(r.outbox) > 0 {
		out := r.outbox[0]
		r.outbox[0] = outcome{}
		r.outbox = r.outbox[1:]
		r.mu.Unlock()
		m.dispatch(out)
		r.mu.Lock()
	}
	r.outbox = nil
	r.flushing = false
	r.mu.Unlock()
}

func (m *Manager) drainLocked(r *Room) outcome {
	out := outcome{
		note: Notification{
			RoomCode: r.Code,
			Events:   r.pending,
			Views:    r.viewsLocked(),
			Closed:   r.closed,
		},
		closed: r.closed,
	}
	r.pending = nil
	if r.state.Status == state.StatusFinished && !r.recorded && r.state.Turn > 0 {
		r.recorded = true
		match := m.matchLocked(r)
		out.match = &match
		out.replay = r.replay
	}
	return out
}

func (m *Manager) dispatch(out outcome) {
	if out.closed {
		m.registry.Delete(out.note.RoomCode)
		m.logger.Info("room closed", zap.String("room_code", out.note.RoomCode))
	}
	if out.match != nil {
		m.recordMatch(*out.match)
	}
	if out.replay != nil {
		m.saveReplay(out.replay)
	}
	if len(out.note.Events) == 0 && !out.closed {
		return
	}

	m.handlerMu.RLock()
	handler := m.handler
	m.handlerMu.RUnlock()
	if handler != nil {
		handler(out.note)
	}
}

func (m *Manager) recordMatch(match repository.Match) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := m.matches.SaveMatch(ctx, match); err != nil {
		m.logger.Warn("failed to record match",
			zap.String("room_code", match.RoomCode),
			zap.Error(err),
		)
		return
	}
	m.logger.Info("match recorded",
		zap.String("room_code", match.RoomCode),
		zap.String("winner", match.Winner),
		zap.Int("turns", match.Turns),
	)
}

func (m *Manager) saveReplay(replay *game.Replay) {
	path, err := replay.SaveToFile(m.opts.ReplayDir)
	if err != nil {
		m.logger.Warn("failed to save replay",
			zap.String("match_id", replay.MatchID),
			zap.Error(err),
		)
		return
	}
	m.logger.Info("replay saved",
		zap.String("match_id", replay.MatchID),
		zap.Int("frames", replay.Len()),
		zap.String("path", path),
	)
}

// LoadReplay reads the replay of a finished match from the replay directory.
func (m *Manager) LoadReplay(matchID string) (*game.Replay, error) {
	if m.opts.ReplayDir == "" {
		return nil, gameerr.New(gameerr.CodeMatchNotFound, "replay recording is disabled")
	}
	return game.LoadReplay(m.opts.ReplayDir, matchID)
}

func (m *Manager) matchLocked(r *Room) repository.Match {
	match := repository.Match{
		ID:         r.matchID,
		RoomCode:   r.Code,
		WinnerID:   r.state.Winner,
		Turns:      r.state.Turn,
		Difficulty: string(r.state.Settings.Difficulty),
		StartedAt:  r.startedAt,
		FinishedAt: time.Now(),
	}
	for i, p := range r.state.Players {
		if p.ID == r.state.Winner {
			match.Winner = p.Nickname
		}
		match.Players = append(match.Players, repository.MatchPlayer{
			PlayerID:   p.ID,
			Nickname:   p.Nickname,
			IsAI:       p.IsAI,
			Seat:       i,
			Stabilized: p.Progress(),
		})
	}
	return match
}

// CreateRoom allocates a room, seats the host and the requested AI players.
func (m *Manager) CreateRoom(settings state.Settings, hostConnectionID, nickname string) (Seat, error) {
	if settings.MaxPlayers <= 0 || settings.MaxPlayers > m.opts.MaxPlayers {
		settings.MaxPlayers = m.opts.MaxPlayers
	}
	if settings.MaxPlayers < m.opts.MinPlayers {
		return Seat{}, gameerr.New(gameerr.CodeInvalidAction,
			"a room needs room for at least %d players", m.opts.MinPlayers)
	}
	if settings.AIPlayers < 0 || settings.AIPlayers > settings.MaxPlayers-1 {
		return Seat{}, gameerr.New(gameerr.CodeRoomFull,
			"%d AI players do not fit next to the host in a %d-player room", settings.AIPlayers, settings.MaxPlayers)
	}
	if settings.Difficulty == "" {
		settings.Difficulty = m.opts.DefaultDifficulty
	} else {
		settings.Difficulty = state.ParseDifficulty(string(settings.Difficulty))
	}

	rng := m.newRand()
	host := state.NewPlayer(uuid.NewString(), hostConnectionID, nickname, false)
	host.IsHost = true

	r := m.registry.Create(func(code string) *Room {
		r := &Room{
			Code:      code,
			CreatedAt: time.Now(),
			state:     state.New(settings),
			engine: game.NewEngine(game.Options{
				HandSize:    m.opts.HandSize,
				MinPlayers:  m.opts.MinPlayers,
				HistorySize: m.opts.HistorySize,
				Catalog:     m.opts.Catalog,
			}, rng, m.logger.With(zap.String("room_code", code))),
			decider:       ai.NewDecider(rng, m.logger.With(zap.String("room_code", code))),
			scheduler:     ai.NewScheduler(m.logger.With(zap.String("room_code", code))),
			hostID:        host.ID,
			connections:   map[string]string{hostConnectionID: host.ID},
			personalities: make(map[string]ai.Personality),
			grace:         make(map[string]*time.Timer),
		}
		r.subscribe()
		r.state.Players = append(r.state.Players, host)

		picker := ai.NewPicker(m.opts.Roster, rng)
		for i := 0; i < settings.AIPlayers; i++ {
			p := picker.Next()
			bot := state.NewPlayer(uuid.NewString(), "", p.Name, true)
			r.state.Players = append(r.state.Players, bot)
			r.personalities[bot.ID] = p
		}
		return r
	})

	m.logger.Info("room created",
		zap.String("room_code", r.Code),
		zap.String("host_id", host.ID),
		zap.Int("ai_players", settings.AIPlayers),
		zap.Int("max_players", settings.MaxPlayers),
	)
	return Seat{RoomCode: r.Code, PlayerID: host.ID, ConnectionID: hostConnectionID}, nil
}

// JoinRoom seats a new human in a WAITING room.
func (m *Manager) JoinRoom(code, connectionID, nickname string) (Seat, *state.View, error) {
	var seat Seat
	var view *state.View
	err := m.withRoom(code, func(r *Room) error {
		if r.state.Status != state.StatusWaiting {
			return gameerr.New(gameerr.CodeGameNotActive, "room %s is no longer accepting players", code)
		}
		if len(r.state.Players) >= r.state.Settings.MaxPlayers {
			return gameerr.New(gameerr.CodeRoomFull, "room %s is full", code)
		}
		if _, taken := r.connections[connectionID]; taken {
			return gameerr.New(gameerr.CodeInvalidAction, "connection %s is already seated", connectionID)
		}

		p := state.NewPlayer(uuid.NewString(), connectionID, nickname, false)
		r.state.Players = append(r.state.Players, p)
		r.connections[connectionID] = p.ID
		r.publishLocked(rules.NewEvent(rules.EventPlayerJoined, p.ID))

		seat = Seat{RoomCode: code, PlayerID: p.ID, ConnectionID: connectionID}
		view = r.state.ViewFor(p.ID)
		m.logger.Info("player joined", zap.String("room_code", code), zap.String("player_id", p.ID))
		return nil
	})
	return seat, view, err
}

// LeaveRoom unseats the player on the connection. The host role moves to a
// remaining human; the room is deleted once no humans remain.
func (m *Manager) LeaveRoom(code, connectionID string) error {
	return m.withRoom(code, func(r *Room) error {
		p, ok := r.playerByConnectionLocked(connectionID)
		if !ok {
			return unknownConnection(connectionID)
		}
		m.removePlayerLocked(r, p.ID, "left")
		return nil
	})
}

func (m *Manager) removePlayerLocked(r *Room, playerID, reason string) {
	playing := r.state.Status == state.StatusInProgress || r.state.Status == state.StatusPaused
	wasCurrent := playing && r.state.IsCurrentPlayer(playerID)
	p, ok := r.state.RemovePlayer(playerID)
	if !ok {
		return
	}
	if p.ConnectionID != "" {
		delete(r.connections, p.ConnectionID)
	}
	delete(r.personalities, playerID)
	r.stopGraceLocked(playerID)
	r.scheduler.Cancel(playerID)

	evt := rules.NewEvent(rules.EventPlayerLeft, playerID)
	evt.Description = reason
	r.publishLocked(evt)
	m.logger.Info("player removed",
		zap.String("room_code", r.Code),
		zap.String("player_id", playerID),
		zap.String("reason", reason),
	)

	if r.state.HumanCount() == 0 {
		r.closeLocked()
		return
	}
	if p.IsHost || r.hostID == playerID {
		if next, ok := r.transferHostLocked(); ok {
			r.publishLocked(rules.NewEvent(rules.EventHostChanged, next))
		}
	}

	if !playing {
		return
	}
	if len(r.state.Players) < m.opts.MinPlayers {
		r.engine.Turns().Finish(r.state, r.state.Players[0].ID)
		r.scheduler.CancelAll()
		return
	}
	if wasCurrent {
		if cur := r.state.CurrentPlayer(); cur != nil {
			r.engine.Turns().RefillHand(r.state, cur)
		}
	}
	m.scheduleAILocked(r)
}

// StartGame deals and starts the game on behalf of the host's connection.
func (m *Manager) StartGame(code, connectionID string) error {
	return m.withRoom(code, func(r *Room) error {
		p, ok := r.playerByConnectionLocked(connectionID)
		if !ok {
			return unknownConnection(connectionID)
		}
		matchID := uuid.NewString()
		var replay *game.Replay
		if m.opts.ReplayDir != "" {
			replay = game.NewReplay(matchID, r.Code)
		}
		r.engine.RecordReplay(replay)
		if err := r.engine.StartGame(r.state, p.ID); err != nil {
			r.engine.RecordReplay(nil)
			return err
		}
		r.matchID, r.replay = matchID, replay
		r.startedAt = time.Now()
		m.scheduleAILocked(r)
		return nil
	})
}

// ProcessAction applies an action submitted on a connection. The acting
// player is the one seated on the connection.
func (m *Manager) ProcessAction(code, connectionID string, action game.PlayerAction) (*game.Result, error) {
	var res *game.Result
	err := m.withRoom(code, func(r *Room) error {
		p, ok := r.playerByConnectionLocked(connectionID)
		if !ok {
			return unknownConnection(connectionID)
		}
		if action.PlayerID != "" && action.PlayerID != p.ID {
			return gameerr.New(gameerr.CodeInvalidAction, "action is for player %s, connection belongs to %s", action.PlayerID, p.ID)
		}
		action.PlayerID = p.ID
		if action.Timestamp.IsZero() {
			action.Timestamp = time.Now()
		}

		var err error
		res, err = r.engine.Apply(r.state, action)
		if err != nil {
			return err
		}
		m.afterActionLocked(r)
		return nil
	})
	return res, err
}

// ComputeTargets returns the requirement and candidate targets for a card
// in the connection's player's hand.
func (m *Manager) ComputeTargets(code, connectionID, cardID string) (targeting.Requirement, []targeting.Option, error) {
	var req targeting.Requirement
	var opts []targeting.Option
	err := m.withRoom(code, func(r *Room) error {
		p, ok := r.playerByConnectionLocked(connectionID)
		if !ok {
			return unknownConnection(connectionID)
		}
		var err error
		req, opts, err = r.engine.ComputeTargets(r.state, p.ID, cardID)
		return err
	})
	return req, opts, err
}

func (m *Manager) afterActionLocked(r *Room) {
	if r.state.Status == state.StatusFinished {
		r.scheduler.CancelAll()
		return
	}
	m.scheduleAILocked(r)
}

// scheduleAILocked arms the thinking timer when an AI holds the turn and
// cancels every pending timer otherwise.
func (m *Manager) scheduleAILocked(r *Room) {
	cur := r.state.CurrentPlayer()
	if !r.state.IsActive() || cur == nil || !cur.IsAI {
		r.scheduler.CancelAll()
		return
	}
	delay := ai.ThinkingDelay(m.opts.AIBaseDelay, m.opts.AIMaxDelay, r.state.Settings.Difficulty)
	code, playerID := r.Code, cur.ID
	r.scheduler.Schedule(playerID, delay, func() { m.runAITurn(code, playerID) })
}

// runAITurn is the timer re-entry for an AI seat. It goes through the same
// serialized path as a human action.
func (m *Manager) runAITurn(code, playerID string) {
	err := m.withRoom(code, func(r *Room) error {
		cur := r.state.CurrentPlayer()
		if !r.state.IsActive() || cur == nil || cur.ID != playerID {
			return nil
		}
		action, err := r.decider.DecideOrPass(r.state, playerID, r.personalities[playerID])
		if err != nil {
			m.logger.Error("ai decision failed", zap.String("room_code", code), zap.String("player_id", playerID), zap.Error(err))
		}
		if _, err := r.engine.Apply(r.state, action); err != nil {
			m.logger.Warn("ai action rejected, passing",
				zap.String("room_code", code),
				zap.String("player_id", playerID),
				zap.String("action_type", string(action.Type)),
				zap.Error(err),
			)
			if _, err := r.engine.Apply(r.state, game.PassTurn(playerID)); err != nil {
				m.logger.Error("ai pass rejected", zap.String("room_code", code), zap.String("player_id", playerID), zap.Error(err))
				return nil
			}
		}
		m.afterActionLocked(r)
		return nil
	})
	if err != nil {
		m.logger.Debug("ai turn skipped", zap.String("room_code", code), zap.String("player_id", playerID), zap.Error(err))
	}
}

// HandleDisconnection marks the connection's player as gone. Before the game
// starts the player is removed outright. Mid-game the player keeps the seat
// for the disconnect grace period and the room pauses once no human is
// connected.
func (m *Manager) HandleDisconnection(code, connectionID string) error {
	return m.withRoom(code, func(r *Room) error {
		p, ok := r.playerByConnectionLocked(connectionID)
		if !ok {
			return unknownConnection(connectionID)
		}
		if r.state.Status == state.StatusWaiting {
			m.removePlayerLocked(r, p.ID, "disconnected")
			return nil
		}

		p.Connected = false
		r.publishLocked(rules.NewEvent(rules.EventPlayerDisconnected, p.ID))
		m.logger.Info("player disconnected", zap.String("room_code", code), zap.String("player_id", p.ID))

		if r.state.ConnectedHumans() == 0 {
			if r.state.Status == state.StatusFinished {
				r.closeLocked()
				return nil
			}
			if r.state.Status == state.StatusInProgress {
				r.state.Status = state.StatusPaused
				r.scheduler.CancelAll()
				r.publishLocked(rules.NewEvent(rules.EventGamePaused, p.ID))
			}
		}
		if r.state.Status != state.StatusFinished && m.opts.DisconnectGrace > 0 {
			r.stopGraceLocked(p.ID)
			playerID := p.ID
			r.grace[playerID] = time.AfterFunc(m.opts.DisconnectGrace, func() { m.expireGrace(code, playerID) })
		}
		return nil
	})
}

func (m *Manager) expireGrace(code, playerID string) {
	_ = m.withRoom(code, func(r *Room) error {
		delete(r.grace, playerID)
		p, ok := r.state.PlayerByID(playerID)
		if !ok || p.Connected {
			return nil
		}
		m.removePlayerLocked(r, playerID, "disconnect grace expired")
		return nil
	})
}

// UpdateConnectionIdentity re-keys a player's connection without touching
// any other player state.
func (m *Manager) UpdateConnectionIdentity(code, oldConnectionID, newConnectionID string) error {
	return m.withRoom(code, func(r *Room) error {
		_, err := m.rekeyLocked(r, oldConnectionID, newConnectionID)
		return err
	})
}

func (m *Manager) rekeyLocked(r *Room, oldID, newID string) (*state.Player, error) {
	p, ok := r.playerByConnectionLocked(oldID)
	if !ok {
		return nil, unknownConnection(oldID)
	}
	if oldID == newID {
		return p, nil
	}
	if _, taken := r.connections[newID]; taken {
		return nil, gameerr.New(gameerr.CodeInvalidAction, "connection %s is already seated", newID)
	}
	delete(r.connections, oldID)
	r.connections[newID] = p.ID
	p.ConnectionID = newID
	return p, nil
}

// Reconnect moves a returning player onto a new connection, marks them
// connected and resumes a paused game.
func (m *Manager) Reconnect(code, oldConnectionID, newConnectionID string) (*state.View, error) {
	var view *state.View
	err := m.withRoom(code, func(r *Room) error {
		p, err := m.rekeyLocked(r, oldConnectionID, newConnectionID)
		if err != nil {
			return err
		}
		r.stopGraceLocked(p.ID)
		if !p.Connected {
			p.Connected = true
			r.publishLocked(rules.NewEvent(rules.EventPlayerReconnected, p.ID))
		}
		if r.state.Status == state.StatusPaused {
			m.resumeLocked(r)
			m.scheduleAILocked(r)
		}
		view = r.state.ViewFor(p.ID)
		m.logger.Info("player reconnected", zap.String("room_code", code), zap.String("player_id", p.ID))
		return nil
	})
	return view, err
}

func (m *Manager) resumeLocked(r *Room) {
	r.state.Status = state.StatusInProgress
	r.publishLocked(rules.NewEvent(rules.EventGameResumed, ""))
}

// View returns the room as seen by the connection's player.
func (m *Manager) View(code, connectionID string) (*state.View, error) {
	var view *state.View
	err := m.withRoom(code, func(r *Room) error {
		p, ok := r.playerByConnectionLocked(connectionID)
		if !ok {
			return unknownConnection(connectionID)
		}
		view = r.state.ViewFor(p.ID)
		return nil
	})
	return view, err
}

// History returns the last n applied actions of a room.
func (m *Manager) History(code string, n int) ([]game.HistoryEntry, error) {
	var entries []game.HistoryEntry
	err := m.withRoom(code, func(r *Room) error {
		entries = r.engine.History().Last(n)
		return nil
	})
	return entries, err
}

// Rooms lists every live room.
func (m *Manager) Rooms() []Summary {
	rooms := m.registry.List()
	out := make([]Summary, 0, len(rooms))
	for _, r := range rooms {
		r.mu.Lock()
		if !r.closed {
			out = append(out, r.summaryLocked())
		}
		r.mu.Unlock()
	}
	return out
}

// CloseRoom tears a room down, cancelling its timers.
func (m *Manager) CloseRoom(code string) error {
	return m.withRoom(code, func(r *Room) error {
		r.closeLocked()
		return nil
	})
}

// Penalize gives a player skipped turns.
func (m *Manager) Penalize(code, playerID string, turns int) error {
	return m.withRoom(code, func(r *Room) error {
		return r.engine.Penalize(r.state, playerID, turns)
	})
}

// Close tears down every room.
func (m *Manager) Close() {
	for _, r := range m.registry.List() {
		_ = m.CloseRoom(r.Code)
	}
}

package hangman

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/klubhuset/backend/internal/dependencies/random"
	"github.com/klubhuset/backend/internal/model"
)

const roomTokenLength = 8

// Broadcaster delivers game events to connections
type Broadcaster interface {
	ToAll(event string, data any)
	ToConn(conn model.ConnectionID, event string, data any)
	ToConns(conns []model.ConnectionID, event string, data any)
}

// room is one hangman game instance with its own membership and chat
type room struct {
	id      model.RoomID
	number  int // position in creation order, stable for the room's lifetime
	state   model.RoomState
	game    *Game
	creator string
	members map[string]struct{}
	scores  map[string]int
	chatLog []model.ChatMessage
	conns   map[model.ConnectionID]string
}

func (r *room) memberNames() []string {
	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *room) connIDs() []model.ConnectionID {
	ids := make([]model.ConnectionID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Manager owns the collection of hangman rooms. It is constructed once
// at process start; all mutation funnels through its methods.
type Manager struct {
	mu          sync.Mutex
	rooms       map[model.RoomID]*room
	names       map[model.ConnectionID]string
	knownUsers  map[string]struct{}
	roomCounter int

	random      random.Random
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewManager creates a new hangman room manager
func NewManager(rnd random.Random, broadcaster Broadcaster, logger *slog.Logger) *Manager {
	return &Manager{
		rooms:       make(map[model.RoomID]*room),
		names:       make(map[model.ConnectionID]string),
		knownUsers:  make(map[string]struct{}),
		random:      rnd,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "hangman")),
	}
}

// SetName records the display name a connection uses in the game
// feature and tracks it in the coarse all-users set.
func (m *Manager) SetName(connID model.ConnectionID, name string) {
	m.mu.Lock()
	if prev, ok := m.names[connID]; ok && prev != name {
		delete(m.knownUsers, prev)
	}
	m.names[connID] = name
	if name != "" {
		m.knownUsers[name] = struct{}{}
	}
	m.mu.Unlock()

	m.logger.Info("name set", slog.String("conn_id", string(connID)), slog.String("name", name))
	m.BroadcastStatus()
}

// Join handles the combined join event: with a word it creates a room,
// otherwise it joins an existing one.
func (m *Manager) Join(connID model.ConnectionID, req model.JoinRequest) {
	name := req.Name
	if name == "" {
		m.mu.Lock()
		name = m.names[connID]
		m.mu.Unlock()
	}

	if req.Word != "" {
		m.createRoom(connID, name, req.Word)
		return
	}
	m.joinRoom(connID, name, req.RoomID)
}

// createRoom validates the word, creates the room with the caller as
// starter, and announces the new game.
func (m *Manager) createRoom(connID model.ConnectionID, starter, word string) {
	if err := ValidateWord(word); err != nil {
		m.broadcaster.ToConn(connID, model.EventGameError, model.GameErrorNotice{Message: err.Error()})
		return
	}

	m.mu.Lock()
	m.roomCounter++
	r := &room{
		id:      model.RoomID("room-" + m.random.Token(roomTokenLength)),
		number:  m.roomCounter,
		state:   model.RoomStateActive,
		game:    NewGame(word),
		creator: starter,
		members: map[string]struct{}{starter: {}},
		scores:  map[string]int{starter: 0},
		conns:   map[model.ConnectionID]string{connID: starter},
	}
	m.rooms[r.id] = r
	m.names[connID] = starter
	if starter != "" {
		m.knownUsers[starter] = struct{}{}
	}
	view := r.game.View()
	members := r.memberNames()
	m.mu.Unlock()

	m.logger.Info("room created",
		slog.String("room_id", string(r.id)),
		slog.String("creator", starter))

	m.broadcaster.ToConn(connID, model.EventStart, view)
	m.broadcaster.ToConn(connID, model.EventJoined, model.JoinedNotice{RoomID: r.id})
	m.broadcaster.ToConn(connID, model.EventStarter, model.StarterNotice{IsStarter: true})
	m.broadcaster.ToConn(connID, model.EventScore, 0)
	m.broadcaster.ToConn(connID, model.EventUsers, model.UserListChange{Type: "add", Users: members})
	m.BroadcastStatus()
}

// joinRoom adds a name to an existing room's roster. Rejoining is
// idempotent and preserves any existing score.
func (m *Manager) joinRoom(connID model.ConnectionID, name string, roomID model.RoomID) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		m.broadcaster.ToConn(connID, model.EventGameError, model.GameErrorNotice{Message: model.ErrRoomNotFound.Error()})
		return
	}
	if r.game == nil || !r.game.Active() {
		m.mu.Unlock()
		m.broadcaster.ToConn(connID, model.EventGameError, model.GameErrorNotice{Message: model.ErrGameInactive.Error()})
		return
	}

	r.members[name] = struct{}{}
	r.conns[connID] = name
	if _, ok := r.scores[name]; !ok {
		r.scores[name] = 0
	}
	m.names[connID] = name
	if name != "" {
		m.knownUsers[name] = struct{}{}
	}

	view := r.game.View()
	isStarter := name == r.creator
	score := r.scores[name]
	members := r.memberNames()
	roomConns := r.connIDs()
	m.mu.Unlock()

	m.logger.Info("room joined",
		slog.String("room_id", string(roomID)),
		slog.String("name", name))

	m.broadcaster.ToConn(connID, model.EventStart, view)
	m.broadcaster.ToConn(connID, model.EventStarter, model.StarterNotice{IsStarter: isStarter})
	m.broadcaster.ToConn(connID, model.EventScore, score)
	m.broadcaster.ToConns(roomConns, model.EventUsers, model.UserListChange{Type: "add", Users: members})
	m.BroadcastStatus()
}

// Guess processes one letter guess from a room member.
func (m *Manager) Guess(connID model.ConnectionID, letter string) {
	m.mu.Lock()
	r := m.roomForConnLocked(connID)
	if r == nil || r.game == nil || !r.game.Active() {
		m.mu.Unlock()
		return
	}
	name := r.conns[connID]

	if name == r.creator {
		m.mu.Unlock()
		m.broadcaster.ToConn(connID, model.EventGameError,
			model.GameErrorNotice{Message: model.ErrStarterCannotGuess.Error()})
		return
	}

	correct, err := r.game.Guess(letter)
	if err != nil {
		view := r.game.View()
		m.mu.Unlock()
		if err == model.ErrLetterAlreadyGuessed {
			m.broadcaster.ToConn(connID, model.EventDuplicateLetter,
				model.LetterOutcome{Letter: letter, Game: view})
			return
		}
		m.broadcaster.ToConn(connID, model.EventGameError, model.GameErrorNotice{Message: err.Error()})
		return
	}

	outcome := model.EventWrongLetter
	delta := -1
	if correct {
		outcome = model.EventCorrectLetter
		delta = 1
	}
	r.scores[name] += delta
	score := r.scores[name]
	view := r.game.View()
	roomConns := r.connIDs()

	gameOver, won, lost := r.game.Evaluate()
	var overNotice model.GameOverNotice
	if gameOver {
		winner := ""
		if won {
			winner = name
		}
		overNotice = model.GameOverNotice{
			Winner: winner,
			Answer: r.game.Answer(),
			Won:    won,
			Lost:   lost,
		}
		r.state = model.RoomStateDestroyed
		delete(m.rooms, r.id)
	}
	m.mu.Unlock()

	m.broadcaster.ToConns(roomConns, outcome, model.LetterOutcome{Letter: letter, Game: view})
	m.broadcaster.ToConn(connID, model.EventScore, score)

	if gameOver {
		m.logger.Info("game over",
			slog.String("room_id", string(r.id)),
			slog.Bool("won", won),
			slog.Bool("lost", lost))
		m.broadcaster.ToConns(roomConns, model.EventGameOver, overNotice)
		m.BroadcastStatus()
	}
}

// Chat relays a message to the sender's room only.
func (m *Manager) Chat(connID model.ConnectionID, message string) {
	m.mu.Lock()
	r := m.roomForConnLocked(connID)
	if r == nil {
		m.mu.Unlock()
		return
	}
	name := r.conns[connID]
	entry := model.ChatMessage{Name: name, Message: message}
	r.chatLog = append(r.chatLog, entry)
	roomConns := r.connIDs()
	m.mu.Unlock()

	m.broadcaster.ToConns(roomConns, model.EventChat, entry)
}

// Leave handles an explicit leave of the game feature.
func (m *Manager) Leave(connID model.ConnectionID) {
	m.removeConnection(connID)
}

// Disconnect handles transport-level disconnection of a connection.
func (m *Manager) Disconnect(connID model.ConnectionID) {
	m.removeConnection(connID)
}

// removeConnection takes a connection out of its room. A leaving
// starter destroys the room outright; otherwise the member is removed
// from the roster and an empty room is destroyed.
func (m *Manager) removeConnection(connID model.ConnectionID) {
	m.mu.Lock()
	name := m.names[connID]
	delete(m.names, connID)
	if name != "" {
		delete(m.knownUsers, name)
	}

	r := m.roomForConnLocked(connID)
	if r == nil {
		m.mu.Unlock()
		m.BroadcastStatus()
		return
	}

	delete(r.conns, connID)
	delete(r.members, name)
	delete(r.scores, name)

	destroyed := false
	reason := model.ReasonRoomEmpty
	if name == r.creator {
		destroyed = true
		reason = model.ReasonCreatorLeft
	} else if len(r.members) == 0 {
		destroyed = true
	}

	roomConns := r.connIDs()
	if destroyed {
		r.state = model.RoomStateDestroyed
		delete(m.rooms, r.id)
	}
	m.mu.Unlock()

	if destroyed {
		if reason == model.ReasonCreatorLeft {
			m.logger.Info("room destroyed, creator left", slog.String("room_id", string(r.id)))
			m.broadcaster.ToConns(roomConns, model.EventRoomLeft, model.RoomLeftNotice{Reason: reason})
		} else {
			m.logger.Info("room destroyed, empty", slog.String("room_id", string(r.id)))
		}
	} else {
		m.broadcaster.ToConns(roomConns, model.EventUsers, model.UserListChange{Type: "remove", Users: []string{name}})
		m.broadcaster.ToConns(roomConns, model.EventUserLeft, model.UserLeftNotice{Username: name})
	}
	m.BroadcastStatus()
}

func (m *Manager) roomForConnLocked(connID model.ConnectionID) *room {
	for _, r := range m.rooms {
		if _, ok := r.conns[connID]; ok {
			return r
		}
	}
	return nil
}

// Status builds the on-demand global listing: rooms with an active
// game in creation order, plus the coarse set of all users who have
// set a name this process lifetime.
func (m *Manager) Status() model.StatusView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() model.StatusView {
	allUsers := make(map[string]struct{}, len(m.knownUsers))
	for name := range m.knownUsers {
		allUsers[name] = struct{}{}
	}

	status := model.StatusView{Rooms: []model.RoomSummary{}}
	for _, r := range m.rooms {
		for name := range r.members {
			allUsers[name] = struct{}{}
		}
		if r.game != nil && r.game.Active() {
			status.Active = true
		}
		status.Rooms = append(status.Rooms, model.RoomSummary{
			ID:      r.id,
			Number:  r.number,
			Creator: r.creator,
			Users:   r.memberNames(),
		})
	}
	sort.Slice(status.Rooms, func(i, j int) bool {
		return status.Rooms[i].Number < status.Rooms[j].Number
	})

	status.AllUsers = make([]string, 0, len(allUsers))
	for name := range allUsers {
		status.AllUsers = append(status.AllUsers, name)
	}
	sort.Strings(status.AllUsers)
	return status
}

// SendStatus sends the current listing to a single connection.
func (m *Manager) SendStatus(connID model.ConnectionID) {
	m.broadcaster.ToConn(connID, model.EventStatus, m.Status())
}

// BroadcastStatus refreshes the global room listing for everyone.
func (m *Manager) BroadcastStatus() {
	status := m.Status()
	m.broadcaster.ToAll(model.EventStatus, status)
	m.broadcaster.ToAll(model.EventAllUsers, status.AllUsers)
}

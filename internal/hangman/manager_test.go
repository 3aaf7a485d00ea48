package hangman

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/klubhuset/backend/internal/dependencies/mocks"
	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/testutil"
)

// sent records one delivered event for assertions
type sent struct {
	conns []model.ConnectionID // nil means broadcast to all
	event string
	data  any
}

type recordingBroadcaster struct {
	sent []sent
}

func (b *recordingBroadcaster) ToAll(event string, data any) {
	b.sent = append(b.sent, sent{event: event, data: data})
}

func (b *recordingBroadcaster) ToConn(conn model.ConnectionID, event string, data any) {
	b.sent = append(b.sent, sent{conns: []model.ConnectionID{conn}, event: event, data: data})
}

func (b *recordingBroadcaster) ToConns(conns []model.ConnectionID, event string, data any) {
	b.sent = append(b.sent, sent{conns: conns, event: event, data: data})
}

func (b *recordingBroadcaster) reset() {
	b.sent = nil
}

// eventsFor returns the events delivered to a connection, including broadcasts
func (b *recordingBroadcaster) eventsFor(conn model.ConnectionID) []sent {
	var result []sent
	for _, s := range b.sent {
		if s.conns == nil {
			result = append(result, s)
			continue
		}
		for _, c := range s.conns {
			if c == conn {
				result = append(result, s)
				break
			}
		}
	}
	return result
}

func (b *recordingBroadcaster) lastByEvent(event string) (sent, bool) {
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].event == event {
			return b.sent[i], true
		}
	}
	return sent{}, false
}

type ManagerSuite struct {
	suite.Suite
	broadcaster *recordingBroadcaster
	random      *mocks.MockRandom
	manager     *Manager
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.broadcaster = &recordingBroadcaster{}
	s.random = mocks.NewMockRandom()
	s.manager = NewManager(s.random, s.broadcaster, testutil.NopLogger())
}

// createRoom creates a room for the given starter and returns its id
func (s *ManagerSuite) createRoom(conn model.ConnectionID, starter, word string) model.RoomID {
	s.manager.Join(conn, model.JoinRequest{Name: starter, Word: word})
	joined, ok := s.broadcaster.lastByEvent(model.EventJoined)
	s.Require().True(ok, "expected joined event after room creation")
	return joined.data.(model.JoinedNotice).RoomID
}

func (s *ManagerSuite) TestCreateRoomAnnouncesGame() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.NotEmpty(roomID)

	start, ok := s.broadcaster.lastByEvent(model.EventStart)
	s.Require().True(ok)
	view := start.data.(model.GameView)
	s.Equal("_ _ _ _ _ _", view.MaskedWord)
	s.True(view.Active)

	starter, ok := s.broadcaster.lastByEvent(model.EventStarter)
	s.Require().True(ok)
	s.True(starter.data.(model.StarterNotice).IsStarter)
}

func (s *ManagerSuite) TestCreateRoomRejectsBadWord() {
	s.manager.Join("conn-u", model.JoinRequest{Name: "ulla", Word: "x"})

	gameErr, ok := s.broadcaster.lastByEvent(model.EventGameError)
	s.Require().True(ok)
	s.Equal(model.ErrInvalidWord.Error(), gameErr.data.(model.GameErrorNotice).Message)

	s.Empty(s.manager.Status().Rooms)
}

func (s *ManagerSuite) TestJoinUnknownRoomFails() {
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: "room-nope"})

	gameErr, ok := s.broadcaster.lastByEvent(model.EventGameError)
	s.Require().True(ok)
	s.Equal(model.ErrRoomNotFound.Error(), gameErr.data.(model.GameErrorNotice).Message)
}

func (s *ManagerSuite) TestJoinIsIdempotent() {
	roomID := s.createRoom("conn-u", "ulla", "socket")

	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})

	status := s.manager.Status()
	s.Require().Len(status.Rooms, 1)
	s.Equal([]string{"ulla", "viggo"}, status.Rooms[0].Users)
}

func (s *ManagerSuite) TestGuessRoundTrip() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.broadcaster.reset()

	s.manager.Guess("conn-v", "s")

	correct, ok := s.broadcaster.lastByEvent(model.EventCorrectLetter)
	s.Require().True(ok)
	outcome := correct.data.(model.LetterOutcome)
	s.Equal("s", outcome.Letter)
	s.Equal("s _ _ _ _ _", outcome.Game.MaskedWord)

	score, ok := s.broadcaster.lastByEvent(model.EventScore)
	s.Require().True(ok)
	s.Equal(1, score.data.(int))

	// Guessing the same letter again is a distinct duplicate signal,
	// not a score change
	s.broadcaster.reset()
	s.manager.Guess("conn-v", "s")

	dup, ok := s.broadcaster.lastByEvent(model.EventDuplicateLetter)
	s.Require().True(ok)
	s.Equal("s", dup.data.(model.LetterOutcome).Letter)
	_, ok = s.broadcaster.lastByEvent(model.EventScore)
	s.False(ok)
}

func (s *ManagerSuite) TestWrongGuessCostsPoint() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.broadcaster.reset()

	s.manager.Guess("conn-v", "z")

	_, ok := s.broadcaster.lastByEvent(model.EventWrongLetter)
	s.True(ok)
	score, ok := s.broadcaster.lastByEvent(model.EventScore)
	s.Require().True(ok)
	s.Equal(-1, score.data.(int))
}

func (s *ManagerSuite) TestStarterCannotGuess() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.broadcaster.reset()

	s.manager.Guess("conn-u", "s")

	gameErr, ok := s.broadcaster.lastByEvent(model.EventGameError)
	s.Require().True(ok)
	s.Equal(model.ErrStarterCannotGuess.Error(), gameErr.data.(model.GameErrorNotice).Message)
	_, ok = s.broadcaster.lastByEvent(model.EventCorrectLetter)
	s.False(ok)
}

func (s *ManagerSuite) TestNonMemberGuessIsNoOp() {
	s.createRoom("conn-u", "ulla", "socket")
	s.broadcaster.reset()

	s.manager.Guess("conn-x", "s")

	s.Empty(s.broadcaster.sent)
}

func (s *ManagerSuite) TestLossDestroysRoom() {
	roomID := s.createRoom("conn-u", "ulla", "go")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})

	for _, letter := range []string{"a", "b", "c", "d", "e", "f"} {
		s.manager.Guess("conn-v", letter)
	}

	over, ok := s.broadcaster.lastByEvent(model.EventGameOver)
	s.Require().True(ok)
	notice := over.data.(model.GameOverNotice)
	s.Equal("go", notice.Answer)
	s.True(notice.Lost)
	s.False(notice.Won)
	s.Empty(notice.Winner)

	// Room destroyed: further guesses are not accepted
	s.Empty(s.manager.Status().Rooms)
	s.broadcaster.reset()
	s.manager.Guess("conn-v", "g")
	s.Empty(s.broadcaster.sent)
}

func (s *ManagerSuite) TestWinBroadcastsWinner() {
	roomID := s.createRoom("conn-u", "ulla", "go")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})

	s.manager.Guess("conn-v", "g")
	s.manager.Guess("conn-v", "o")

	over, ok := s.broadcaster.lastByEvent(model.EventGameOver)
	s.Require().True(ok)
	notice := over.data.(model.GameOverNotice)
	s.True(notice.Won)
	s.Equal("viggo", notice.Winner)
	s.Equal("go", notice.Answer)
	s.Empty(s.manager.Status().Rooms)
}

func (s *ManagerSuite) TestStarterLeavingDestroysRoom() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.broadcaster.reset()

	s.manager.Leave("conn-u")

	left, ok := s.broadcaster.lastByEvent(model.EventRoomLeft)
	s.Require().True(ok)
	s.Equal(model.ReasonCreatorLeft, left.data.(model.RoomLeftNotice).Reason)
	s.Empty(s.manager.Status().Rooms)
}

func (s *ManagerSuite) TestMemberLeavingUpdatesRoster() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.broadcaster.reset()

	s.manager.Disconnect("conn-v")

	change, ok := s.broadcaster.lastByEvent(model.EventUsers)
	s.Require().True(ok)
	s.Equal(model.UserListChange{Type: "remove", Users: []string{"viggo"}}, change.data.(model.UserListChange))

	left, ok := s.broadcaster.lastByEvent(model.EventUserLeft)
	s.Require().True(ok)
	s.Equal("viggo", left.data.(model.UserLeftNotice).Username)

	status := s.manager.Status()
	s.Require().Len(status.Rooms, 1)
	s.Equal([]string{"ulla"}, status.Rooms[0].Users)
}

func (s *ManagerSuite) TestScorePreservedOnRejoin() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.manager.Guess("conn-v", "s")

	// Rejoin from a new connection under the same name
	s.broadcaster.reset()
	s.manager.Join("conn-v2", model.JoinRequest{Name: "viggo", RoomID: roomID})

	score, ok := s.broadcaster.lastByEvent(model.EventScore)
	s.Require().True(ok)
	s.Equal(1, score.data.(int))
}

func (s *ManagerSuite) TestChatStaysInRoom() {
	roomID := s.createRoom("conn-u", "ulla", "socket")
	s.manager.Join("conn-v", model.JoinRequest{Name: "viggo", RoomID: roomID})
	s.createRoom("conn-w", "werner", "kasket")
	s.broadcaster.reset()

	s.manager.Chat("conn-v", "hej")

	chat, ok := s.broadcaster.lastByEvent(model.EventChat)
	s.Require().True(ok)
	s.Equal(model.ChatMessage{Name: "viggo", Message: "hej"}, chat.data.(model.ChatMessage))
	s.ElementsMatch([]model.ConnectionID{"conn-u", "conn-v"}, chat.conns)
}

func (s *ManagerSuite) TestChatFromNonMemberIsNoOp() {
	s.createRoom("conn-u", "ulla", "socket")
	s.broadcaster.reset()

	s.manager.Chat("conn-x", "hej")
	s.Empty(s.broadcaster.sent)
}

func (s *ManagerSuite) TestStatusNumbersRoomsInCreationOrder() {
	first := s.createRoom("conn-u", "ulla", "socket")
	second := s.createRoom("conn-v", "viggo", "kasket")

	status := s.manager.Status()
	s.True(status.Active)
	s.Require().Len(status.Rooms, 2)
	s.Equal(first, status.Rooms[0].ID)
	s.Equal(1, status.Rooms[0].Number)
	s.Equal(second, status.Rooms[1].ID)
	s.Equal(2, status.Rooms[1].Number)
}

func (s *ManagerSuite) TestAllUsersPrunedOnDisconnectOnly() {
	s.manager.SetName("conn-u", "ulla")
	s.manager.SetName("conn-v", "viggo")

	s.ElementsMatch([]string{"ulla", "viggo"}, s.manager.Status().AllUsers)

	s.manager.Disconnect("conn-v")
	s.ElementsMatch([]string{"ulla"}, s.manager.Status().AllUsers)
}

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velvetgames/partyhub/entities"
	"github.com/velvetgames/partyhub/games/chatroom"
	"github.com/velvetgames/partyhub/games/duel"
	"github.com/velvetgames/partyhub/games/trivia"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/schemas"
)

func TestMain(m *testing.M) {
	logx.NewLogger()
	m.Run()
}

type harness struct {
	registry *entities.Registry
	manager  *GameManager
}

func newHarness(joinTimeout time.Duration) *harness {
	registry := entities.NewRegistry()
	return &harness{
		registry: registry,
		manager:  NewGameManager(registry, nil, joinTimeout),
	}
}

func (h *harness) connect(userId, username string) *entities.Participant {
	participant := entities.NewParticipant(userId, userId+"-session", username, entities.NewFakeConn())
	h.registry.Bind(participant)
	return participant
}

// awaitEvent reads the participant's outbound queue until the named
// event shows up, discarding everything before it.
func awaitEvent(t *testing.T, participant *entities.Participant, event string) json.RawMessage {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case body := <-participant.Message:
			var envelope schemas.Envelope
			require.NoError(t, json.Unmarshal(body, &envelope))
			if envelope.Event == event {
				return envelope.Data
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", event)
			return nil
		}
	}
}

func TestCreateRoomIssuesWellFormedDistinctCodes(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)

	codes := map[string]bool{}
	for i := 0; i < 20; i++ {
		host := h.connect(fmt.Sprintf("host-%d", i), fmt.Sprintf("Host%d", i))

		room, err := h.manager.CreateRoom(chatroom.TypeId, host)
		require.NoError(t, err)

		code := room.Code()
		assert.Len(code, codeLength)
		for _, char := range code {
			assert.True(strings.ContainsRune(codeAlphabet, char), "unexpected character %q", char)
		}

		assert.False(codes[code], "join code %q issued twice", code)
		codes[code] = true
	}
}

func TestCreateRoomRejectsUnknownGameType(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	_, err := h.manager.CreateRoom("backgammon", host)

	assert.ErrorIs(t, err, UnknownGameType)
}

func TestCreateRoomRejectsSecondMembership(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	_, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	_, err = h.manager.CreateRoom(chatroom.TypeId, host)
	assert.ErrorIs(t, err, AlreadyInRoom)
}

func TestJoinRoomUnknownCode(t *testing.T) {
	h := newHarness(time.Minute)
	guest := h.connect("guest", "Guest")

	_, err := h.manager.JoinRoom("ZZZZZ", guest)

	assert.ErrorIs(t, err, RoomNotFound)
}

func TestJoinRoomNeverExceedsCapacity(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(duel.TypeId, host)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		guest := h.connect(fmt.Sprintf("guest-%d", i), fmt.Sprintf("Guest%d", i))
		_, err := h.manager.JoinRoom(room.Code(), guest)
		require.NoError(t, err)
	}

	straggler := h.connect("straggler", "Straggler")
	_, err = h.manager.JoinRoom(room.Code(), straggler)

	assert.ErrorIs(err, RoomFull)
	assert.Equal(4, room.PlayerCount())

	// The rejected player holds no membership and may go elsewhere.
	_, err = h.manager.CreateRoom(chatroom.TypeId, straggler)
	assert.NoError(err)
}

func TestJoinRoomAfterBeginForbiddenForDuel(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")
	guest := h.connect("guest", "Guest")

	room, err := h.manager.CreateRoom(duel.TypeId, host)
	require.NoError(t, err)

	_, err = h.manager.JoinRoom(room.Code(), guest)
	require.NoError(t, err)

	require.NoError(t, h.manager.BeginRoom(host))

	late := h.connect("late", "Late")
	_, err = h.manager.JoinRoom(room.Code(), late)

	assert.ErrorIs(t, err, RoomBegun)
}

func TestBeginRoomAuthorization(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Host")
	guest := h.connect("guest", "Guest")

	room, err := h.manager.CreateRoom(trivia.TypeId, host)
	require.NoError(t, err)

	_, err = h.manager.JoinRoom(room.Code(), guest)
	require.NoError(t, err)

	assert.ErrorIs(h.manager.BeginRoom(guest), NotHost)
	assert.ErrorIs(h.manager.BeginRoom(host), BelowMinimum)
	assert.False(room.HasBegun(), "a failed begin must leave the room untouched")

	outsider := h.connect("outsider", "Outsider")
	assert.ErrorIs(h.manager.BeginRoom(outsider), NotInRoom)
}

func TestBeginRoomIsNotRepeatable(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	_, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	require.NoError(t, h.manager.BeginRoom(host))

	assert.ErrorIs(t, h.manager.BeginRoom(host), RoomBegun)
}

func TestLeaveRoomFreesMembership(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Host")
	guest := h.connect("guest", "Guest")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	_, err = h.manager.JoinRoom(room.Code(), guest)
	require.NoError(t, err)

	require.NoError(t, h.manager.LeaveRoom(guest))

	assert.False(room.HasPlayer("guest"))
	assert.Equal(1, room.PlayerCount())

	// Remaining members learn the new roster.
	awaitEvent(t, host, schemas.EventGamePlayers)

	_, err = h.manager.CreateRoom(chatroom.TypeId, guest)
	assert.NoError(err)
}

func TestLeaveRoomForbiddenMidGame(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")
	guest := h.connect("guest", "Guest")

	room, err := h.manager.CreateRoom(duel.TypeId, host)
	require.NoError(t, err)

	_, err = h.manager.JoinRoom(room.Code(), guest)
	require.NoError(t, err)

	require.NoError(t, h.manager.BeginRoom(host))

	assert.ErrorIs(t, h.manager.LeaveRoom(guest), LeaveForbidden)
}

func TestLastLeaverTearsDownRoom(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)
	code := room.Code()

	require.NoError(t, h.manager.LeaveRoom(host))

	assert.Eventually(t, func() bool {
		return h.manager.RoomByCode(code) == nil
	}, 2*time.Second, 10*time.Millisecond, "an empty room must be destroyed")
}

func TestTerminateRoomIsHostOnly(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Host")
	guest := h.connect("guest", "Guest")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)
	code := room.Code()

	_, err = h.manager.JoinRoom(code, guest)
	require.NoError(t, err)

	assert.ErrorIs(h.manager.TerminateRoom(guest), NotHost)

	require.NoError(t, h.manager.TerminateRoom(host))

	awaitEvent(t, host, schemas.EventGameEnd)
	awaitEvent(t, guest, schemas.EventGameEnd)

	assert.Eventually(func() bool {
		return h.manager.RoomByCode(code) == nil
	}, 2*time.Second, 10*time.Millisecond)

	// Former members are free again.
	assert.Eventually(func() bool {
		_, err := h.manager.CreateRoom(chatroom.TypeId, guest)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJoinTimeoutDestroysIdleRoom(t *testing.T) {
	h := newHarness(50 * time.Millisecond)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)
	code := room.Code()

	awaitEvent(t, host, schemas.EventGameError)
	awaitEvent(t, host, schemas.EventGameEnd)

	guest := h.connect("guest", "Guest")
	assert.Eventually(t, func() bool {
		_, err := h.manager.JoinRoom(code, guest)
		return errors.Is(err, RoomNotFound)
	}, 2*time.Second, 10*time.Millisecond, "an expired code must not be joinable")
}

func TestJoinTimeoutIsCancelledByBegin(t *testing.T) {
	h := newHarness(50 * time.Millisecond)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	require.NoError(t, h.manager.BeginRoom(host))

	time.Sleep(150 * time.Millisecond)

	assert.NotNil(t, h.manager.RoomByCode(room.Code()), "a begun room must outlive the join timeout")
}

func TestLateExpiryYieldsToBegunRoom(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	require.NoError(t, h.manager.BeginRoom(host))

	// The timer callback landing after begin must find its claim gone
	// and leave the room alone.
	h.manager.expireRoom(room.Code())

	assert.NotNil(t, h.manager.RoomByCode(room.Code()))
	assert.True(t, room.HasBegun())
}

func TestBeginFailsOnceExpiryClaimsTheRoom(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	// Simulate the expiry path winning the race for the timer entry
	// just before the host's begin request lands.
	require.True(t, h.manager.claimJoinTimer(room.Code()))

	assert.ErrorIs(t, h.manager.BeginRoom(host), RoomNotFound)
	assert.False(t, room.HasBegun())
}

func TestJoinTimerClaimIsExclusive(t *testing.T) {
	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	assert.True(t, h.manager.claimJoinTimer(room.Code()))
	assert.False(t, h.manager.claimJoinTimer(room.Code()), "the timer entry is a one-shot token")
}

func TestChatMessageReachesEveryMember(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Alice")
	guest := h.connect("guest", "Bob")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	require.NoError(t, h.manager.BeginRoom(host))

	// Chat permits joining a running room; the newcomer's handlers
	// attach on the spot.
	_, err = h.manager.JoinRoom(room.Code(), guest)
	require.NoError(t, err)

	go guest.Read(nil)

	frame, err := schemas.Encode(schemas.EventChatMessage, map[string]string{"content": "hello there"})
	require.NoError(t, err)
	guest.Connection.(*entities.FakeConn).Inbound <- frame

	for _, member := range []*entities.Participant{host, guest} {
		data := awaitEvent(t, member, schemas.EventChatNewMessage)

		var message chatroom.Message
		require.NoError(t, json.Unmarshal(data, &message))
		assert.Equal("Bob", message.Sender)
		assert.Equal("hello there", message.Content)
		assert.NotZero(message.SentAt)
	}
}

func TestAttemptRejoinRestoresRoomState(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Host")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	// Fresh connection for the same identity, as after a page reload.
	reconnected := h.connect("host", "Host")

	assert.True(h.manager.AttemptRejoin(reconnected))

	var info schemas.GameInfo
	require.NoError(t, json.Unmarshal(awaitEvent(t, reconnected, schemas.EventGameInfo), &info))
	assert.Equal(room.Code(), info.JoinCode)
	assert.True(info.IsHost)

	var players schemas.GamePlayers
	require.NoError(t, json.Unmarshal(awaitEvent(t, reconnected, schemas.EventGamePlayers), &players))
	assert.Len(players.Players, 1)

	stranger := h.connect("stranger", "Stranger")
	assert.False(h.manager.AttemptRejoin(stranger))
}

func TestRoomsContainingAnyReportsSummaries(t *testing.T) {
	assert := assert.New(t)

	h := newHarness(time.Minute)
	host := h.connect("host", "Alice")
	guest := h.connect("guest", "Bob")

	room, err := h.manager.CreateRoom(chatroom.TypeId, host)
	require.NoError(t, err)

	_, err = h.manager.JoinRoom(room.Code(), guest)
	require.NoError(t, err)

	summaries := h.manager.RoomsContainingAny([]string{"guest", "nobody"})

	require.Len(t, summaries, 1)
	assert.Equal(room.Code(), summaries[0].JoinCode)
	assert.Equal("Chat Room", summaries[0].GameName)
	assert.Equal("Alice", summaries[0].HostName)
	assert.Equal(2, summaries[0].Occupancy)
	assert.Equal(20, summaries[0].Capacity)

	assert.Empty(h.manager.RoomsContainingAny([]string{"nobody"}))
}

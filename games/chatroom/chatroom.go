package chatroom

import (
	"encoding/json"
	"time"

	"github.com/velvetgames/partyhub/game"
	"github.com/velvetgames/partyhub/schemas"
)

const TypeId = "chat"

const maxMessageLength = 500

// State carries no game-specific fields; a chat room is the smallest
// thing the game contract can host.
type State struct{}

type Message struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
	SentAt  int64  `json:"sentAt"`
}

type chat struct {
	room *game.Room[State]
}

func New(code, creatorId string, lookup game.Lookup, endFunc game.EndFunc) game.Instance {
	config := game.Config{
		TypeId:          TypeId,
		Name:            "Chat Room",
		MinPlayers:      1,
		MaxPlayers:      20,
		JoinAfterBegin:  true,
		LeaveAfterBegin: true,
	}

	instance := &chat{}
	instance.room = game.NewRoom(code, creatorId, config, lookup, endFunc, func() *State {
		return &State{}
	})
	instance.room.SetHooks(instance.beginRound, instance.registerHandlers)

	return instance.room
}

// beginRound has nothing to drive; the room lives until the host
// terminates it or everyone leaves.
func (chat *chat) beginRound() {}

func (chat *chat) registerHandlers(userId string, sender game.Sender) {
	sender.On(schemas.EventChatMessage, func(data json.RawMessage) {
		var payload struct {
			Content string `json:"content"`
		}

		if err := json.Unmarshal(data, &payload); err != nil || payload.Content == "" {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventChatMessage,
				Message: "message content is required",
			})
			return
		}

		if len(payload.Content) > maxMessageLength {
			sender.Emit(schemas.EventGameError, schemas.GameError{
				Module:  schemas.EventChatMessage,
				Message: "message is too long",
			})
			return
		}

		chat.room.Do(func(tx *game.Tx[State]) {
			entry, ok := tx.Player(userId)
			if !ok {
				return
			}

			tx.Broadcast(schemas.EventChatNewMessage, Message{
				Sender:  entry.Username,
				Content: payload.Content,
				SentAt:  time.Now().Unix(),
			})
		})
	})
}

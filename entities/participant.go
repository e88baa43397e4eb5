package entities

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/pkg/syncx"
	"github.com/velvetgames/partyhub/schemas"
	"go.uber.org/zap"
)

// Conn is the slice of *websocket.Conn the participant needs; tests
// drive participants through a fake implementation.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// HandlerFunc consumes one inbound event's payload.
type HandlerFunc func(data json.RawMessage)

// Participant binds an authenticated identity to one live connection.
// A reconnect produces a fresh Participant; the registry swaps the
// entry under the same identity id, which is why games never hold one
// directly.
type Participant struct {
	Id        string
	SessionId string
	Username  string

	Connection Conn
	Message    chan []byte

	handlers syncx.Map[string, HandlerFunc]

	// Guards IsClosed so the send channel is closed exactly once.
	mutex    sync.Mutex
	IsClosed bool
}

func NewParticipant(id, sessionId, username string, connection Conn) *Participant {
	return &Participant{
		Id:         id,
		SessionId:  sessionId,
		Username:   username,
		Connection: connection,
		Message:    make(chan []byte, 50),
	}
}

// On attaches an inbound-event handler to this connection. Handlers
// die with the connection; games re-register them after a reconnect.
func (participant *Participant) On(event string, handler func(data json.RawMessage)) {
	participant.handlers.Store(event, HandlerFunc(handler))
}

// Emit queues a named event for delivery. A full send buffer drops the
// message rather than stalling the caller's room.
func (participant *Participant) Emit(event string, data any) {
	body, err := schemas.Encode(event, data)
	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not encode outbound event"),
			zap.String("event", event),
			zap.String("participantId", participant.Id),
		)
		return
	}

	participant.mutex.Lock()
	defer participant.mutex.Unlock()

	if participant.IsClosed {
		return
	}

	select {
	case participant.Message <- body:
	default:
		logx.Logger.Warn(
			"participant send buffer full, dropping message",
			zap.String("event", event),
			zap.String("participantId", participant.Id),
		)
	}
}

// Different scenarios for 'close of closed channel'
// 1) If user opens duplicate tab and closes the first one

func (participant *Participant) Kick() {
	// Mutex makes sure IsClosed is evaluated correctly when reading
	// its value at the same time.
	// https://go101.org/article/channel-closing.html
	participant.mutex.Lock()

	defer participant.mutex.Unlock()

	if !participant.IsClosed {
		close(participant.Message)
		participant.IsClosed = true
	}

	if participant.Connection != nil {
		err := participant.Connection.Close()

		if err != nil {
			logx.Logger.Debug(
				err.Error(),
				zap.String("desc", "could not close participant connection"),
				zap.String("participantId", participant.Id),
			)
		}
	}
}

// Write pumps queued messages to the socket until the channel closes.
func (participant *Participant) Write() {
	defer participant.Kick()

	for {
		message, ok := <-participant.Message

		if !ok {
			logx.Logger.Info(
				"participant channel is closed",
				zap.String("participantId", participant.Id),
			)
			break
		}

		err := participant.Connection.WriteMessage(websocket.TextMessage, message)

		if err != nil {
			logx.Logger.Error(
				err.Error(),
				zap.String("desc", "could not write participant message"),
				zap.String("participantId", participant.Id),
			)
		}
	}
}

// Read pumps inbound frames, decodes the envelope and dispatches to
// the registered handler. onClose runs once when the connection dies.
func (participant *Participant) Read(onClose func()) {
	defer func() {
		participant.Kick()
		if onClose != nil {
			onClose()
		}
	}()

	for {
		_, message, err := participant.Connection.ReadMessage()

		if err != nil {
			logx.Logger.Info(
				err.Error(),
				zap.String("desc", "participant connection closed"),
				zap.String("participantId", participant.Id),
			)
			break
		}

		participant.react(message)
	}
}

func (participant *Participant) react(message []byte) {
	var envelope schemas.Envelope

	if err := json.Unmarshal(message, &envelope); err != nil {
		participant.Emit(schemas.EventGameError, schemas.GameError{
			Message: "malformed message",
		})
		return
	}

	handler, ok := participant.handlers.Load(envelope.Event)

	if !ok {
		participant.Emit(schemas.EventGameError, schemas.GameError{
			Module:  envelope.Event,
			Message: "unknown or unavailable action",
		})
		return
	}

	handler(envelope.Data)
}

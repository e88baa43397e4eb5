package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/velvetgames/partyhub/entities"
	"github.com/velvetgames/partyhub/pkg/logx"
	"github.com/velvetgames/partyhub/schemas"
	"github.com/velvetgames/partyhub/services"
	"go.uber.org/zap"
)

type SocketHandler struct {
	authService services.AuthService
	registry    *entities.Registry
	gameManager *services.GameManager
	upgrader    websocket.Upgrader
}

func NewSocketHandler(
	router *chi.Mux,
	authService services.AuthService,
	registry *entities.Registry,
	gameManager *services.GameManager,
	allowedOrigins []string,
) {
	origins := map[string]bool{}
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}

	socketHandler := SocketHandler{
		authService: authService,
		registry:    registry,
		gameManager: gameManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return len(origins) == 0 || origins[r.Header.Get("Origin")]
			},
		},
	}

	router.Get("/ws", socketHandler.connect)
}

// connect performs the handshake: upgrade, token validation, session
// binding, rejoin attempt, then the read pump until disconnect.
func (socketHandler SocketHandler) connect(w http.ResponseWriter, r *http.Request) {
	connection, err := socketHandler.upgrader.Upgrade(w, r, nil)

	if err != nil {
		logx.Logger.Error(
			err.Error(),
			zap.String("desc", "could not upgrade http request"),
		)
		return
	}

	token := r.URL.Query().Get("token")

	user, err := socketHandler.authService.Validate(r.Context(), token)

	if err != nil {
		socketHandler.rejectConnection(connection, err)
		return
	}

	participant := entities.NewParticipant(user.Id, uuid.NewString(), user.Username, connection)

	socketHandler.registry.Bind(participant)
	socketHandler.registerRoomHandlers(participant)

	go participant.Write()

	participant.Emit(schemas.EventConnectionResult, schemas.ConnectionResult{
		Success: true,
		User:    &schemas.UserProfile{Id: user.Id, Username: user.Username},
	})

	socketHandler.gameManager.AttemptRejoin(participant)

	participant.Read(func() {
		socketHandler.registry.Unbind(participant.Id, participant.SessionId)
	})
}

func (socketHandler SocketHandler) rejectConnection(connection *websocket.Conn, reason error) {
	message := "authentication failed"

	switch {
	case errors.Is(reason, services.TokenExpired):
		message = "token has expired"
	case errors.Is(reason, services.AccountLocked):
		message = "account is locked"
	}

	body, err := schemas.Encode(schemas.EventConnectionResult, schemas.ConnectionResult{
		Success: false,
		Message: message,
	})

	if err == nil {
		if err := connection.WriteMessage(websocket.TextMessage, body); err != nil {
			logx.Logger.Debug(
				err.Error(),
				zap.String("desc", "could not write rejection message"),
			)
		}
	}

	if err := connection.Close(); err != nil {
		logx.Logger.Debug(
			err.Error(),
			zap.String("desc", "could not close rejected connection"),
		)
	}
}

// registerRoomHandlers attaches the room-command listeners every
// connection gets regardless of game membership.
func (socketHandler SocketHandler) registerRoomHandlers(participant *entities.Participant) {
	gameManager := socketHandler.gameManager

	participant.On(schemas.EventCreateGame, func(data json.RawMessage) {
		var payload schemas.CreateGameRequest

		if err := json.Unmarshal(data, &payload); err != nil || payload.GameTypeId == "" {
			socketHandler.reportError(participant, schemas.EventCreateGame, errors.New("gameTypeId is required"))
			return
		}

		if _, err := gameManager.CreateRoom(payload.GameTypeId, participant); err != nil {
			socketHandler.reportError(participant, schemas.EventCreateGame, err)
		}
	})

	participant.On(schemas.EventJoinGame, func(data json.RawMessage) {
		var payload schemas.JoinGameRequest

		if err := json.Unmarshal(data, &payload); err != nil || payload.JoinCode == "" {
			socketHandler.reportError(participant, schemas.EventJoinGame, errors.New("joinCode is required"))
			return
		}

		if _, err := gameManager.JoinRoom(payload.JoinCode, participant); err != nil {
			socketHandler.reportError(participant, schemas.EventJoinGame, err)
		}
	})

	participant.On(schemas.EventBeginGame, func(data json.RawMessage) {
		if err := gameManager.BeginRoom(participant); err != nil {
			socketHandler.reportError(participant, schemas.EventBeginGame, err)
		}
	})

	participant.On(schemas.EventLeaveGame, func(data json.RawMessage) {
		if err := gameManager.LeaveRoom(participant); err != nil {
			socketHandler.reportError(participant, schemas.EventLeaveGame, err)
		}
	})

	participant.On(schemas.EventTerminateGame, func(data json.RawMessage) {
		if err := gameManager.TerminateRoom(participant); err != nil {
			socketHandler.reportError(participant, schemas.EventTerminateGame, err)
		}
	})
}

// reportError surfaces eligibility and protocol failures to the
// client; these are expected and never logged as server faults.
func (socketHandler SocketHandler) reportError(participant *entities.Participant, module string, err error) {
	participant.Emit(schemas.EventGameError, schemas.GameError{
		Module:  module,
		Message: err.Error(),
	})
}

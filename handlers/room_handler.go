package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/velvetgames/partyhub/schemas"
	"github.com/velvetgames/partyhub/services"
)

// RoomHandler exposes the cross-room query the social service uses to
// show which rooms a user's friends are currently in.
type RoomHandler struct {
	gameManager *services.GameManager
}

func NewRoomHandler(router *chi.Mux, gameManager *services.GameManager) {
	roomHandler := RoomHandler{gameManager: gameManager}

	router.Post("/rooms/query", roomHandler.query)
	router.Get("/healthz", roomHandler.health)
}

func (roomHandler RoomHandler) query(w http.ResponseWriter, r *http.Request) {
	var payload schemas.RoomsQueryRequest

	if err := decode(&payload, r); err != nil || len(payload.UserIds) == 0 {
		w.WriteHeader(http.StatusUnprocessableEntity)
		encode(schemas.ErrorResponse{Message: "userIds are required"}, w)
		return
	}

	summaries := roomHandler.gameManager.RoomsContainingAny(payload.UserIds)

	encode(schemas.RoomsQueryResponse{Rooms: summaries}, w)
}

func (roomHandler RoomHandler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

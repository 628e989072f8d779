package gameserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/match"
)

// RoomsResponse is the body served on GET /rooms.
type RoomsResponse struct {
	Count       int          `json:"count"`
	ActiveGames int          `json:"active_games"`
	Rooms       []RoomStatus `json:"rooms"`
}

// RoomStatus is one waiting room in RoomsResponse.
type RoomStatus struct {
	ID      int    `json:"id"`
	Creator string `json:"creator"`
}

// RoomsHandler serves a JSON snapshot of the rooms awaiting an opponent.
func RoomsHandler(registry *match.Registry, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rooms := registry.ListRooms()
		resp := RoomsResponse{
			Count:       len(rooms),
			ActiveGames: registry.Stats().Active,
			Rooms:       make([]RoomStatus, 0, len(rooms)),
		}
		for _, e := range rooms {
			resp.Rooms = append(resp.Rooms, RoomStatus{ID: e.ID, Creator: e.Creator})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("writing rooms response",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
		}
	})
}

package handlers

import (
	"concord-backend/internal/hub"
	"net/http"
)

func HandleWebSocket(userID int64, w http.ResponseWriter, r *http.Request) {
	hub.HandleClient(userID, w, r)
}

package handlers

import (
	"concord-backend/internal/database"
	"concord-backend/internal/media"
	"errors"
	"net/http"
	"strconv"
)

// GetMediaToken grants access to the call of a channel or a conversation the
// user takes part in. The room is named after its id.
func GetMediaToken(userID int64, w http.ResponseWriter, r *http.Request) {
	roomID, ok := queryID(w, r, "room")
	if !ok {
		return
	}

	_, _, err := store.ChannelForMember(r.Context(), roomID, userID)
	if errors.Is(err, database.ErrNotFound) {
		_, _, err = store.ConversationForProfile(r.Context(), roomID, userID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := store.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	room := strconv.FormatInt(roomID, 10)
	token, err := media.CreateToken(room, strconv.FormatInt(userID, 10), profile.Name)
	if errors.Is(err, media.ErrNotConfigured) {
		http.Error(w, "Calls aren't available", http.StatusServiceUnavailable)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}{token, media.URL()})
}

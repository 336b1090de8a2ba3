package handlers

import (
	"net/http"
	"strconv"
	"strings"
)

func GetUserInfo(userID int64, w http.ResponseWriter, r *http.Request) {
	paramUserID := r.URL.Query().Get("userID")
	if paramUserID == "" {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	requestedUserID := userID
	if paramUserID != "self" {
		var err error
		requestedUserID, err = strconv.ParseInt(paramUserID, 10, 64)
		if err != nil {
			http.Error(w, "", http.StatusBadRequest)
			return
		}
	}

	profile, err := store.GetProfile(r.Context(), requestedUserID)
	if err != nil {
		writeError(w, err)
		return
	}

	public := publicProfile(profile)
	if requestedUserID == userID {
		public.Email = profile.Email
	}

	writeJSON(w, public)
}

func UpdateUserInfo(userID int64, w http.ResponseWriter, r *http.Request) {
	type ProfileUpdate struct {
		Name     string `json:"name" validate:"omitempty,chatname=64"`
		ImageURL string `json:"imageUrl" validate:"omitempty,max=2048"`
	}

	var update ProfileUpdate
	if !decodeBody(w, r, &update) {
		return
	}

	err := store.UpdateProfile(r.Context(), userID, strings.TrimSpace(update.Name), update.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}

	profile, err := store.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	public := publicProfile(profile)
	public.Email = profile.Email
	writeJSON(w, public)
}

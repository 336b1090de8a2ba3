package handlers

import (
	"concord-backend/internal/database"
	"concord-backend/internal/keyValue"
	"concord-backend/internal/models"
	"encoding/json"
	"errors"
	"net/http"
)

func ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	value, err := keyValue.GetDel(registrationKey(token))
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	if value == "" {
		http.Error(w, "Token isn't valid", http.StatusUnauthorized)
		return
	}

	var profile models.Profile
	err = json.Unmarshal([]byte(value), &profile)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	err = store.CreateProfile(r.Context(), profile)
	if errors.Is(err, database.ErrConflict) {
		// someone registered the same email or username while this one waited
		http.Error(w, "Email or username is already taken", http.StatusConflict)
		return
	} else if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

package handlers

import (
	"concord-backend/internal/database"
	"concord-backend/internal/email"
	"concord-backend/internal/hub"
	"concord-backend/internal/jwt"
	"concord-backend/internal/keyValue"
	"concord-backend/internal/models"
	"concord-backend/internal/snowflake"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const registrationExpiration = 1 * time.Hour

var bcryptCost = 12

func registrationKey(token string) string {
	return fmt.Sprintf("registration:%s", token)
}

func Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		Email      string `json:"email" validate:"required"`
		Password   string `json:"password" validate:"required"`
		RememberMe bool   `json:"rememberMe"`
	}

	var login Login
	if !decodeBody(w, r, &login) {
		return
	}

	profile, err := store.GetProfileByEmail(r.Context(), strings.ToLower(login.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			sugar.Debug(err)
			http.Error(w, "", http.StatusUnauthorized)
		} else {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
		}
		return
	}

	err = bcrypt.CompareHashAndPassword(profile.Password, []byte(login.Password))
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusUnauthorized)
		return
	}

	cookie, err := jwt.CreateToken(login.RememberMe, profile.ID)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &cookie)
}

func Register(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		Email           string `json:"email" validate:"required,chatemail"`
		UserName        string `json:"username" validate:"required,username"`
		Name            string `json:"name" validate:"omitempty,chatname=64"`
		Password        string `json:"password" validate:"required,chatpassword,eqfield=ConfirmPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}

	var registration Registration
	if !decodeBody(w, r, &registration) {
		return
	}
	registration.Email = strings.ToLower(registration.Email)

	taken, err := store.EmailOrUsernameTaken(r.Context(), registration.Email, registration.UserName)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "Email or username is already taken", http.StatusConflict)
		return
	}

	userID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	name := strings.TrimSpace(registration.Name)
	if name == "" {
		name = registration.UserName
	}

	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(registration.Password), bcryptCost)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	token, err := uuid.NewV7()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	profile := models.Profile{
		ID:       userID,
		Email:    registration.Email,
		UserName: registration.UserName,
		Name:     name,
		Password: passwordBytes,
	}

	bytes, err := json.Marshal(profile)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	err = keyValue.Set(registrationKey(token.String()), string(bytes), registrationExpiration)
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	err = email.SendEmailConfirmation(registration.Email, registration.UserName, token.String())
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	_, err = fmt.Fprint(w, "confirm_email")
	if err != nil {
		sugar.Error(err)
	}
}

func Logout(w http.ResponseWriter, r *http.Request) {
	jwtCookie := jwt.DeleteCookie()
	http.SetCookie(w, &jwtCookie)

	http.SetCookie(w, &http.Cookie{
		Name:     hub.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteLaxMode,
	})
}

// NewSession issues the cookie that identifies one websocket connection of
// the user, a user may have several open at once.
func NewSession(_ int64, w http.ResponseWriter, r *http.Request) {
	sessionID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	sessionCookie := http.Cookie{
		Name:     hub.SessionCookieName,
		Value:    fmt.Sprint(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   isHttps,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, &sessionCookie)
}

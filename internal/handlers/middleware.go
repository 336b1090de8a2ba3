package handlers

import (
	"concord-backend/internal/hub"
	"concord-backend/internal/jwt"
	"concord-backend/internal/keyValue"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type SessionIDKeyType struct{}
type UserIDKeyType struct{}

const tokenRenewAfter = 15 * time.Minute

// AllowCors reflects the origin back, credentials can't be used with a
// wildcard origin.
func AllowCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionReader attaches the websocket session of the request when there is
// one. Requests without it still pass, they just don't get realtime updates.
func SessionReader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionCookie, err := r.Cookie(hub.SessionCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sessionID, err := strconv.ParseInt(sessionCookie.Value, 10, 64)
		if err != nil {
			sugar.Debugf("Session cookie is in improper format: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDKeyType{}, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtCookie, err := r.Cookie(jwt.CookieName)
		if err != nil {
			sugar.Debug(err)
			http.Error(w, "No jwt cookie was provided", http.StatusUnauthorized)
			return
		}

		userToken, err := jwt.VerifyToken(jwtCookie.Value)
		if err != nil {
			sugar.Debug(err)
			http.Error(w, "Couldn't verify JWT", http.StatusUnauthorized)
			return
		}

		// check if user exists
		key := fmt.Sprintf("user_exists:%d", userToken.UserID)

		userFound := false

		value, err := keyValue.Get(key)
		if err != nil {
			sugar.Error(err)
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		if value == "" { // user isn't cached
			userFound, err = store.ProfileExists(r.Context(), userToken.UserID)
			if err != nil {
				sugar.Error(err)
				http.Error(w, "", http.StatusInternalServerError)
				return
			}
			if userFound {
				err = keyValue.Set(key, "y", 15*time.Minute)
				if err != nil {
					sugar.Error(err)
					http.Error(w, "", http.StatusInternalServerError)
					return
				}
				sugar.Debugf("User ID %d was found in database and was cached", userToken.UserID)
			} else {
				sugar.Debugf("User ID %d was not found in database", userToken.UserID)
			}
		} else {
			userFound = true
		}

		// the account is gone but the browser kept the token
		if !userFound {
			deleteJwtCookie := jwt.DeleteCookie()
			http.SetCookie(w, &deleteJwtCookie)
			http.Error(w, "", http.StatusUnauthorized)
			return
		}

		// renew JWT and cookie
		if userToken.IssuedAt == nil || time.Since(userToken.IssuedAt.Time) >= tokenRenewAfter {
			updatedCookie, err := jwt.CreateToken(userToken.Remember, userToken.UserID)
			if err != nil {
				sugar.Error(err)
				http.Error(w, "Couldn't renew cookie", http.StatusInternalServerError)
				return
			}

			http.SetCookie(w, &updatedCookie)
		}

		// this passes the authenticated user's ID to next handler
		ctx := context.WithValue(r.Context(), UserIDKeyType{}, userToken.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package handlers

import (
	"concord-backend/internal/config"
	"concord-backend/internal/database"
	"concord-backend/internal/hub"
	"concord-backend/internal/search"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger
var store *database.Store
var searcher *search.Service
var isHttps bool

func Setup(_sugar *zap.SugaredLogger, _store *database.Store, _searcher *search.Service, _isHttps bool) {
	sugar = _sugar
	store = _store
	searcher = _searcher
	isHttps = _isHttps
}

// NewRouter builds the http handler of the whole api, Setup has to be called
// first.
func NewRouter(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	if cfg.Cors {
		r.Use(AllowCors)
		hub.AllowOrigins()
	}
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))

		api.Get("/health", Health)

		api.Route("/auth", func(r chi.Router) {
			r.Post("/login", Login)
			r.Post("/register", Register)
			r.Post("/logout", Logout)
			r.With(UserVerifier).Get("/newSession", withUserID(NewSession))
			r.With(UserVerifier).Get("/isLoggedIn", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		})

		api.Route("/email", func(r chi.Router) {
			r.Get("/confirm", ConfirmEmail)
		})

		api.Group(func(api chi.Router) {
			api.Use(UserVerifier)
			api.Use(SessionReader)

			api.Route("/user", func(r chi.Router) {
				r.Get("/fetch", withUserID(GetUserInfo))
				r.Post("/update", withUserID(UpdateUserInfo))
			})

			api.Route("/server", func(r chi.Router) {
				r.Post("/create", withUserID(CreateServer))
				r.Get("/fetch", withUserID(GetServerList))
				r.Get("/info", withUserID(GetServerInfo))
				r.Get("/initial", withUserID(GetInitialServer))
				r.Post("/update", withUserID(UpdateServer))
				r.Post("/delete", withUserID(DeleteServer))
				r.Post("/inviteCode", withUserID(RegenerateInviteCode))
				r.Post("/join", withUserID(JoinServer))
				r.Post("/leave", withUserID(LeaveServer))
			})

			api.Route("/channel", func(r chi.Router) {
				r.Post("/create", withUserID(CreateChannel))
				r.Get("/fetch", withUserID(GetChannelList))
				r.Get("/general", withUserID(GetGeneralChannel))
				r.Post("/update", withUserID(UpdateChannel))
				r.Post("/delete", withUserID(DeleteChannel))
			})

			api.Route("/member", func(r chi.Router) {
				r.Get("/fetch", withUserID(GetMemberList))
				r.Post("/role", withUserID(UpdateMemberRole))
				r.Post("/kick", withUserID(KickMember))
			})

			api.Route("/message", func(r chi.Router) {
				r.Get("/fetch", withUserID(GetMessageList))
				r.Post("/create", withUserID(CreateMessage))
				r.Post("/update", withUserID(UpdateMessage))
				r.Post("/delete", withUserID(DeleteMessage))
			})

			api.Route("/conversation", func(r chi.Router) {
				r.Post("/open", withUserID(OpenConversation))
			})

			api.Route("/directMessage", func(r chi.Router) {
				r.Get("/fetch", withUserID(GetDirectMessageList))
				r.Post("/create", withUserID(CreateDirectMessage))
				r.Post("/update", withUserID(UpdateDirectMessage))
				r.Post("/delete", withUserID(DeleteDirectMessage))
			})

			api.Route("/upload", func(r chi.Router) {
				r.Post("/attachment", withUserID(UploadAttachment))
				r.Post("/picture", withUserID(UploadPicture))
			})

			api.Get("/media/token", withUserID(GetMediaToken))

			api.Route("/search", func(r chi.Router) {
				r.Get("/server", withUserID(SearchServer))
				r.Get("/messages", withUserID(SearchMessages))
			})
		})
	})

	var websocketPath string

	if cfg.BehindNginx {
		websocketPath = "/ws/"
	} else {
		websocketPath = "/ws"
		r.Handle("/cdn/*", http.StripPrefix("/cdn/", http.FileServer(http.Dir("./public"))))
		r.Handle("/*", http.FileServer(http.Dir("./public/static")))
	}

	r.With(UserVerifier).Get(websocketPath, withUserID(HandleWebSocket))

	return r
}

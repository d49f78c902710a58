package routes

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/spikeline/tournament-server/handlers"
	"github.com/spikeline/tournament-server/middleware"
)

//go:embed openapi.json
var openAPISpec []byte

type Handlers struct {
	Auth       *handlers.AuthHandler
	Team       *handlers.TeamHandler
	Match      *handlers.MatchHandler
	Standings  *handlers.StandingsHandler
	Schedule   *handlers.ScheduleHandler
	Bracket    *handlers.BracketHandler
	Tournament *handlers.TournamentHandler
	WebSocket  *handlers.WebSocketHandler
}

// SetupRoutes wires every endpoint. Reads are public; mutations require an
// admin token obtained from /auth/login.
func SetupRoutes(router *chi.Mux, h Handlers, jwtSecret string) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(openAPISpec)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Post("/auth/login", h.Auth.Login)

	router.Route("/teams", func(r chi.Router) {
		r.Get("/", h.Team.List)
		r.Get("/{teamID}", h.Team.Get)

		// Registration stays open to the public while the tournament is in
		// the registration phase; the service enforces the gate.
		r.Post("/", h.Team.Register)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireAdmin)

			r.Put("/{teamID}", h.Team.Update)
			r.Delete("/{teamID}", h.Team.Delete)
			r.Post("/{teamID}/approve", h.Team.Approve)
			r.Post("/{teamID}/reject", h.Team.Reject)
			r.Post("/{teamID}/logo", h.Team.UploadLogo)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", h.Match.List)
		r.Get("/{matchID}", h.Match.Get)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireAdmin)

			r.Put("/{matchID}/score", h.Match.SubmitScore)
		})
	})

	router.Get("/standings", h.Standings.Get)

	router.Route("/tournament", func(r chi.Router) {
		r.Get("/settings", h.Tournament.GetSettings)
		r.Get("/bracket", h.Bracket.State)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireAdmin)

			r.Put("/phase", h.Tournament.SetPhase)
			r.Post("/reset", h.Tournament.Reset)
			r.Post("/schedule", h.Schedule.Generate)
			r.Post("/bracket", h.Bracket.Start)
			r.Post("/bracket/advance", h.Bracket.Advance)
		})
	})

	router.Get("/ws/{topic}", h.WebSocket.ServeWs)
}

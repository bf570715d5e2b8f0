package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/roll-call/internal/web/handlers"
	"github.com/kozaktomas/roll-call/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.store, s.sessionManager)
	coursesHandler := handlers.NewCoursesHandler(s.store)
	studentsHandler := handlers.NewStudentsHandler(s.store)
	facesHandler := handlers.NewFacesHandler(s.store, s.index, s.engine, s.images, s.config.Recognition)
	sessionsHandler := handlers.NewSessionsHandler(s.store, s.ledger, s.index, s.engine, s.hub, s.config.Recognition)
	statsHandler := handlers.NewStatsHandler(s.index, s.hub)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Everything else requires a teacher session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.sessionManager))

			// Courses and rosters
			r.Post("/courses", coursesHandler.Create)
			r.Get("/courses", coursesHandler.List)
			r.Get("/courses/{id}", coursesHandler.Get)
			r.Get("/courses/{id}/roster", coursesHandler.Roster)
			r.Post("/courses/{id}/enroll", coursesHandler.Enroll)
			r.Post("/courses/{id}/sessions", sessionsHandler.Start)

			// Students
			r.Post("/students", studentsHandler.Upsert)
			r.Get("/students/search", studentsHandler.Search)
			r.Get("/students/{id}", studentsHandler.Get)

			// Face enrollment
			r.Post("/faces", facesHandler.Register)
			r.Post("/faces/rebuild", facesHandler.Rebuild)

			// Attendance sessions
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Post("/sessions/{id}/end", sessionsHandler.End)
			r.Post("/sessions/{id}/frames", sessionsHandler.Frame)
			r.Get("/sessions/{id}/attendance", sessionsHandler.Export)
			r.Get("/sessions/{id}/events", sessionsHandler.Events)
			r.Get("/sessions/{id}/live", sessionsHandler.Live)

			// Stats
			r.Get("/stats", statsHandler.Get)
		})
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a minimal landing page pointing at the API.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Roll Call</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Roll Call</h1>
        <p>Classroom attendance by face recognition.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}

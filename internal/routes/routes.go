package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/taskbrew/taskbrew-backend/internal/database"
	"github.com/taskbrew/taskbrew-backend/internal/handlers"
	"github.com/taskbrew/taskbrew-backend/internal/middleware"
)

// Deps carries the wired components the routes need. Everything is
// injected; there are no package-level singletons to trip over in tests.
type Deps struct {
	DB           *database.Manager
	Auth         *middleware.Auth
	AuthHandler  *handlers.AuthHandler
	Tasks        *handlers.TasksHandler
	TaskStream   *handlers.TaskStreamHandler
	LoginLimiter *middleware.LoginRateLimiter
}

// SetupRoutes mounts the API. Every data route sits behind the
// database-availability gate; task and settings routes additionally sit
// behind the auth guard, which is the only source of the owner id the
// handlers will scope their queries with.
func SetupRoutes(r *chi.Mux, d Deps) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireDatabase(d.DB))

		// Credential endpoints get their own tighter rate limit.
		r.Group(func(r chi.Router) {
			if d.LoginLimiter != nil {
				r.Use(d.LoginLimiter.Middleware)
			}
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Post("/logout", d.AuthHandler.Logout)
		r.With(d.Auth.Optional).Get("/auth-status", d.AuthHandler.AuthStatus)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Require)
			r.Get("/tasks", d.Tasks.List)
			r.Post("/tasks", d.Tasks.Create)
			r.Put("/tasks/{taskID}", d.Tasks.Update)
			r.Delete("/tasks/{taskID}", d.Tasks.Delete)
			r.Get("/settings", d.AuthHandler.GetSettings)
			r.Put("/settings", d.AuthHandler.UpdateSettings)
		})
	})

	// Live task feed; authenticates via the session cookie itself.
	r.Get("/ws/tasks", d.TaskStream.ServeTaskStream)
}

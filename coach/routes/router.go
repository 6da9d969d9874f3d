package routes

import (
	"net/http"

	"essaycoach/coach/controllers"
	"essaycoach/coach/middlewares"
	"essaycoach/coach/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Auth     *controllers.AuthController
	Chat     *controllers.ChatController
	User     *controllers.UserController
	Health   *controllers.HealthController
	Secret   string
	Sessions *session.Manager
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestLog)
	r.Use(middleware.Recoverer)

	r.Get("/", servePage("static/index.html"))
	r.Get("/app", servePage("static/app.html"))
	r.Mount("/health", HealthRoutes(d.Health))
	r.Mount("/auth", AuthRoutes(d.Auth, d.Secret, d.Sessions))
	r.Mount("/chat", ChatRoutes(d.Chat, d.Secret, d.Sessions))
	r.Mount("/users", UserRoutes(d.User, d.Secret, d.Sessions))
	return r
}

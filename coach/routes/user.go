package routes

import (
	"net/http"

	"essaycoach/coach/controllers"
	"essaycoach/coach/middlewares"
	"essaycoach/coach/session"
	httputils "essaycoach/coach/utils/http"

	"github.com/go-chi/chi/v5"
)

func UserRoutes(ctrl *controllers.UserController, secret string, sessions *session.Manager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(secret, sessions))
		gr.Get("/me", httputils.HandleJSON(func(r *http.Request) (any, error) {
			ctx := r.Context()
			return ctrl.Me(ctx, middlewares.UserID(ctx))
		}))
	})
	return r
}

// coach/routes/auth.go
package routes

import (
	"net/http"

	"essaycoach/coach/controllers"
	"essaycoach/coach/middlewares"
	"essaycoach/coach/session"
	httputils "essaycoach/coach/utils/http"
	"essaycoach/coach/utils/types"

	"github.com/go-chi/chi/v5"
)

func AuthRoutes(ctrl *controllers.AuthController, secret string, sessions *session.Manager) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", httputils.HandleJSON(func(r *http.Request) (any, error) {
		var req types.CredentialsRequest
		if err := httputils.DecodeJSON(r, &req); err != nil {
			return nil, err
		}
		return ctrl.Register(r.Context(), req)
	}))
	r.Post("/login", httputils.HandleJSON(func(r *http.Request) (any, error) {
		var req types.CredentialsRequest
		if err := httputils.DecodeJSON(r, &req); err != nil {
			return nil, err
		}
		return ctrl.Login(r.Context(), req)
	}))
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(secret, sessions))
		gr.Post("/logout", httputils.HandleJSON(func(r *http.Request) (any, error) {
			ctx := r.Context()
			return nil, ctrl.Logout(ctx, middlewares.UserID(ctx), middlewares.SessionID(ctx))
		}))
	})
	return r
}

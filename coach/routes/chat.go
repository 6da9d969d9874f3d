package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"essaycoach/coach/controllers"
	"essaycoach/coach/middlewares"
	"essaycoach/coach/session"
	httputils "essaycoach/coach/utils/http"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func ChatRoutes(ctrl *controllers.ChatController, secret string, sessions *session.Manager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(secret, sessions))
		gr.Use(middleware.Timeout(90 * time.Second))
		// POST /chat/ : one blocking interaction
		gr.Post("/", httputils.HandleJSON(func(r *http.Request) (any, error) {
			var req types.ChatRequest
			if err := httputils.DecodeJSON(r, &req); err != nil {
				return nil, err
			}
			ctx := r.Context()
			return ctrl.Chat(ctx, middlewares.UserID(ctx), middlewares.SessionID(ctx), req)
		}))
		gr.Get("/transcript", httputils.HandleJSON(func(r *http.Request) (any, error) {
			ctx := r.Context()
			return ctrl.Transcript(middlewares.UserID(ctx), middlewares.SessionID(ctx))
		}))
		gr.Get("/exports", httputils.HandleJSON(func(r *http.Request) (any, error) {
			ctx := r.Context()
			return ctrl.Exports(ctx, middlewares.UserID(ctx))
		}))
	})
	// the browser cannot set headers on a websocket; the token is the first frame
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")
		serveChatSocket(r.Context(), conn, ctrl, secret, sessions)
	})
	return r
}

func serveChatSocket(ctx context.Context, conn *websocket.Conn, ctrl *controllers.ChatController, secret string, sessions *session.Manager) {
	var hello struct {
		Token string `json:"token"`
	}
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		conn.Close(websocket.StatusUnsupportedData, "expected token frame")
		return
	}
	claims, err := middlewares.ParseToken(secret, hello.Token)
	if err == nil {
		_, err = sessions.Get(claims.SessionID, claims.UID)
	}
	if err != nil {
		wsjson.Write(ctx, conn, types.ChatEvent{Type: types.EventError, Message: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "invalid token")
		return
	}

	for {
		var req types.ChatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				logging.AppLogger.Debug("chat socket closed", zap.String("session_id", claims.SessionID), zap.Error(err))
			}
			return
		}
		for ev := range ctrl.ChatStream(ctx, claims.UID, claims.SessionID, req) {
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
		// logout from another tab ends the socket too
		if _, err := sessions.Get(claims.SessionID, claims.UID); err != nil {
			conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		}
	}
}

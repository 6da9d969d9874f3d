// coach/middlewares/auth.go
package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"essaycoach/coach/session"
	"essaycoach/coach/utils/apperr"
	httputils "essaycoach/coach/utils/http"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey    contextKey = "uid"
	SessionIDKey contextKey = "session_id"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims bind a token to one user and one live session.
type Claims struct {
	UID       string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func IssueToken(secret, uid, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:       uid,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || claims.UID == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthMiddleware admits requests carrying a valid bearer token whose
// session is still live.
func AuthMiddleware(secret string, sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			parts := strings.Split(auth, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputils.WriteError(w, apperr.Auth("authorize", ErrInvalidToken))
				return
			}
			claims, err := ParseToken(secret, parts[1])
			if err != nil {
				httputils.WriteError(w, apperr.Auth("authorize", err))
				return
			}
			if _, err := sessions.Get(claims.SessionID, claims.UID); err != nil {
				httputils.WriteError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UID)
			ctx = context.WithValue(ctx, SessionIDKey, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserID(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(SessionIDKey).(string)
	return sid
}

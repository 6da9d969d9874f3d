// coach/controllers/auth.go
package controllers

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"essaycoach/coach/agents/core"
	"essaycoach/coach/config"
	"essaycoach/coach/middlewares"
	"essaycoach/coach/sources/psql/dao"
	"essaycoach/coach/sources/psql/models"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/markdown"
	"essaycoach/coach/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

type AuthController struct {
	userDAO *dao.UserDAO
	tutor   *core.Tutor
	cfg     config.Config
}

func NewAuthController(userDAO *dao.UserDAO, tutor *core.Tutor, cfg config.Config) *AuthController {
	return &AuthController{
		userDAO: userDAO,
		tutor:   tutor,
		cfg:     cfg,
	}
}

// Register creates the identity and logs it straight in.
func (c *AuthController) Register(ctx context.Context, req types.CredentialsRequest) (*types.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	// bare addresses only; the address becomes part of every export key
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Auth("register", ErrInvalidCredentials)
	}
	if len(req.Password) < 8 {
		return nil, apperr.Auth("register", ErrWeakPassword)
	}
	existing, err := c.userDAO.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.AuthConflict("register", ErrEmailTaken)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := c.userDAO.CreateUser(ctx, uuid.NewString(), email, string(hash))
	if err != nil {
		// lost a race with another registration for the same address
		if again, _ := c.userDAO.GetUserByEmail(ctx, email); again != nil {
			return nil, apperr.AuthConflict("register", ErrEmailTaken)
		}
		return nil, err
	}
	logging.AppLogger.Info("user registered", zap.String("uid", user.UID))
	return c.start(ctx, user)
}

func (c *AuthController) Login(ctx context.Context, req types.CredentialsRequest) (*types.TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := c.userDAO.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Auth("login", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Auth("login", ErrInvalidCredentials)
	}
	return c.start(ctx, user)
}

// start opens a tutoring session for user and issues the token bound to it.
func (c *AuthController) start(ctx context.Context, user *models.User) (*types.TokenResponse, error) {
	who := types.Identity{UID: user.UID, Email: user.Email}
	sess, out, err := c.tutor.Begin(ctx, who)
	if err != nil {
		return nil, err
	}
	token, err := middlewares.IssueToken(c.cfg.JWTSecret, who.UID, sess.ID, c.cfg.TokenTTL)
	if err != nil {
		c.tutor.End(ctx, sess.ID, who.UID)
		return nil, err
	}
	return &types.TokenResponse{
		Token:     token,
		SessionID: sess.ID,
		User:      who,
		Turns:     markdown.Turns(out.Turns),
		Export:    exportNotice(out),
	}, nil
}

func (c *AuthController) Logout(ctx context.Context, uid, sessionID string) error {
	if err := c.tutor.End(ctx, sessionID, uid); err != nil {
		return err
	}
	logging.AppLogger.Info("user logged out", zap.String("uid", uid), zap.String("session_id", sessionID))
	return nil
}

// exportNotice is the success or failure notice shown after an export.
func exportNotice(out *core.Outcome) *types.ExportNotice {
	switch {
	case out.ExportErr != nil:
		return &types.ExportNotice{OK: false, Message: "Chat log could not be saved: " + out.ExportErr.Error()}
	case out.Export != nil:
		return &types.ExportNotice{OK: true, URL: out.Export.URL, Message: "Chat log saved to " + out.Export.ObjectKey}
	}
	return nil
}

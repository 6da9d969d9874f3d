// coach/controllers/user.go
package controllers

import (
	"context"
	"errors"
	"time"

	"essaycoach/coach/sources/psql/dao"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/types"
)

type UserController struct {
	dao       *dao.UserDAO
	exportDAO *dao.ChatExportDAO
}

func NewUserController(dao *dao.UserDAO, exportDAO *dao.ChatExportDAO) *UserController {
	return &UserController{dao: dao, exportDAO: exportDAO}
}

func (c *UserController) Me(ctx context.Context, uid string) (*types.Profile, error) {
	user, err := c.dao.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Auth("me", errors.New("user no longer exists"))
	}
	profile := &types.Profile{
		Identity:  types.Identity{UID: user.UID, Email: user.Email},
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	latest, err := c.exportDAO.ListExportsByUser(ctx, user.ID, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) == 1 {
		profile.LatestLogURL = latest[0].URL
	}
	return profile, nil
}

package core

import (
	"context"
	"fmt"

	"essaycoach/coach/services/export"
	"essaycoach/coach/sources/psql/dao"
	"essaycoach/coach/sources/psql/models"
	"essaycoach/coach/utils/types"
)

// DBRecorder stores export history in the chat_exports table.
type DBRecorder struct {
	users   *dao.UserDAO
	exports *dao.ChatExportDAO
}

func NewDBRecorder(users *dao.UserDAO, exports *dao.ChatExportDAO) *DBRecorder {
	return &DBRecorder{users: users, exports: exports}
}

func (r *DBRecorder) RecordExport(ctx context.Context, who types.Identity, sessionID string, res *export.Result) error {
	user, err := r.users.GetUserByUID(ctx, who.UID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no user with uid %s", who.UID)
	}
	return r.exports.CreateExport(ctx, &models.ChatExport{
		UserID:    user.ID,
		SessionID: sessionID,
		ObjectKey: res.ObjectKey,
		URL:       res.URL,
		Rows:      res.Rows,
		CreatedAt: res.At,
	})
}

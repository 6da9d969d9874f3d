// coach/controllers/chat.go
package controllers

import (
	"context"
	"time"

	"essaycoach/coach/agents/core"
	"essaycoach/coach/sources/psql/dao"
	"essaycoach/coach/utils/markdown"
	"essaycoach/coach/utils/types"
)

const exportHistoryLimit = 50

type ChatController struct {
	tutor     *core.Tutor
	userDAO   *dao.UserDAO
	exportDAO *dao.ChatExportDAO
}

func NewChatController(tutor *core.Tutor, userDAO *dao.UserDAO, exportDAO *dao.ChatExportDAO) *ChatController {
	return &ChatController{tutor: tutor, userDAO: userDAO, exportDAO: exportDAO}
}

// Chat runs one interaction to completion.
func (c *ChatController) Chat(ctx context.Context, uid, sessionID string, req types.ChatRequest) (*types.ChatResponse, error) {
	out := c.tutor.Converse(ctx, sessionID, uid, req.Content)
	if out.Err != nil {
		return nil, out.Err
	}
	return &types.ChatResponse{
		Turns:  markdown.Turns(out.Turns),
		Export: exportNotice(&out),
	}, nil
}

// ChatStream runs one interaction and reports it as events: pending at once,
// then the turns that were added, then the export notice or an error.
// The channel is closed after the last event.
func (c *ChatController) ChatStream(ctx context.Context, uid, sessionID string, req types.ChatRequest) <-chan types.ChatEvent {
	ch := make(chan types.ChatEvent, 4)
	pending := c.tutor.Submit(ctx, sessionID, uid, req.Content)
	ch <- types.ChatEvent{Type: types.EventPending}
	go func() {
		defer close(ch)
		out := <-pending
		if len(out.Turns) > 0 {
			ch <- types.ChatEvent{Type: types.EventTurns, Turns: markdown.Turns(out.Turns)}
		}
		if out.Err != nil {
			ch <- types.ChatEvent{Type: types.EventError, Message: out.Err.Error()}
			return
		}
		if n := exportNotice(&out); n != nil {
			ch <- types.ChatEvent{Type: types.EventExport, Export: n}
		}
	}()
	return ch
}

func (c *ChatController) Transcript(uid, sessionID string) ([]types.RenderedTurn, error) {
	turns, err := c.tutor.Transcript(sessionID, uid)
	if err != nil {
		return nil, err
	}
	return markdown.Turns(turns), nil
}

// Exports lists the user's published chat logs, newest first.
func (c *ChatController) Exports(ctx context.Context, uid string) ([]types.ExportSummary, error) {
	user, err := c.userDAO.GetUserByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := []types.ExportSummary{}
	if user == nil {
		return out, nil
	}
	rows, err := c.exportDAO.ListExportsByUser(ctx, user.ID, exportHistoryLimit)
	if err != nil {
		return nil, err
	}
	for _, e := range rows {
		out = append(out, types.ExportSummary{
			ObjectKey: e.ObjectKey,
			URL:       e.URL,
			Rows:      e.Rows,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	return out, nil
}

package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"essaycoach/coach/agents/configs"
	"essaycoach/coach/agents/core"
	"essaycoach/coach/config"
	"essaycoach/coach/controllers"
	"essaycoach/coach/services/export"
	"essaycoach/coach/services/llm"
	"essaycoach/coach/session"
	"essaycoach/coach/sources/psql"
	"essaycoach/coach/sources/psql/dao"
	"essaycoach/coach/sources/storage"
	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

type echoLLM struct{}

func (echoLLM) Complete(ctx context.Context, msgs []llm.Message, p llm.Params) (string, error) {
	return "You said: " + msgs[len(msgs)-1].Content, nil
}

type diskStore struct{}

func (diskStore) Upload(ctx context.Context, localPath, remoteKey string) (storage.Object, error) {
	if _, err := os.Stat(localPath); err != nil {
		return storage.Object{}, err
	}
	return storage.Object{Bucket: "logs", Key: remoteKey}, nil
}

func (diskStore) PublishPublic(ctx context.Context, obj storage.Object) (string, error) {
	return "http://store.local/logs/" + obj.Key, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	db, err := psql.Open(ctx, sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	a, err := transcript.NewAnnotator("Europe/London", nil)
	require.NoError(t, err)
	profile, err := configs.LoadProfile("")
	require.NoError(t, err)

	users := dao.NewUserDAO(db.DB)
	exports := dao.NewChatExportDAO(db.DB)
	manager := session.NewManager(ctx, time.Hour)
	tutor := core.NewTutor(echoLLM{}, export.New(diskStore{}, a, t.TempDir(), false), profile, a, manager).
		WithRecorder(core.NewDBRecorder(users, exports))
	cfg := config.Config{JWTSecret: "routes-secret", TokenTTL: time.Hour}

	srv := httptest.NewServer(NewRouter(Deps{
		Auth:     controllers.NewAuthController(users, tutor, cfg),
		Chat:     controllers.NewChatController(tutor, users, exports),
		User:     controllers.NewUserController(users, exports),
		Health:   controllers.NewHealthController(manager),
		Secret:   cfg.JWTSecret,
		Sessions: manager,
	}))
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown(context.Background())
	})
	return srv
}

func call(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func register(t *testing.T, base string) types.TokenResponse {
	t.Helper()
	var tok types.TokenResponse
	code := call(t, "POST", base+"/auth/register", "", types.CredentialsRequest{Email: "jo@example.com", Password: "long enough"}, &tok)
	require.Equal(t, http.StatusOK, code)
	return tok
}

func TestPagesAndHealth(t *testing.T) {
	srv := newServer(t)
	for _, path := range []string{"/", "/app"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
	}
	require.Equal(t, http.StatusOK, call(t, "GET", srv.URL+"/health", "", nil, nil))
}

func TestAuthAndChatOverHTTP(t *testing.T) {
	srv := newServer(t)
	tok := register(t, srv.URL)
	require.Len(t, tok.Turns, 1)

	require.Equal(t, http.StatusConflict,
		call(t, "POST", srv.URL+"/auth/register", "", types.CredentialsRequest{Email: "jo@example.com", Password: "long enough"}, nil))
	require.Equal(t, http.StatusUnauthorized,
		call(t, "POST", srv.URL+"/auth/login", "", types.CredentialsRequest{Email: "jo@example.com", Password: "nope nope"}, nil))
	require.Equal(t, http.StatusUnauthorized, call(t, "GET", srv.URL+"/chat/transcript", "", nil, nil))
	require.Equal(t, http.StatusBadRequest, call(t, "POST", srv.URL+"/auth/login", "", "not an object", nil))

	var resp types.ChatResponse
	require.Equal(t, http.StatusOK, call(t, "POST", srv.URL+"/chat/", tok.Token, types.ChatRequest{Content: "my thesis"}, &resp))
	require.Len(t, resp.Turns, 2)
	require.Equal(t, "You said: my thesis", resp.Turns[1].Content)
	require.True(t, resp.Export.OK)

	var turns []types.RenderedTurn
	require.Equal(t, http.StatusOK, call(t, "GET", srv.URL+"/chat/transcript", tok.Token, nil, &turns))
	require.Len(t, turns, 3)
	for _, rt := range turns {
		require.NotEqual(t, "system", rt.Role)
	}

	var history []types.ExportSummary
	require.Equal(t, http.StatusOK, call(t, "GET", srv.URL+"/chat/exports", tok.Token, nil, &history))
	require.Len(t, history, 2)

	var me types.Profile
	require.Equal(t, http.StatusOK, call(t, "GET", srv.URL+"/users/me", tok.Token, nil, &me))
	require.Equal(t, tok.User, me.Identity)
	require.NotEmpty(t, me.LatestLogURL)

	require.Equal(t, http.StatusNoContent, call(t, "POST", srv.URL+"/auth/logout", tok.Token, nil, nil))
	require.Equal(t, http.StatusUnauthorized, call(t, "GET", srv.URL+"/chat/transcript", tok.Token, nil, nil))
}

func TestChatOverWebsocket(t *testing.T) {
	srv := newServer(t)
	tok := register(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"token": tok.Token}))
	require.NoError(t, wsjson.Write(ctx, conn, types.ChatRequest{Content: "hello coach"}))

	var got []types.ChatEvent
	for len(got) < 3 {
		var ev types.ChatEvent
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		got = append(got, ev)
	}
	require.Equal(t, types.EventPending, got[0].Type)
	require.Equal(t, types.EventTurns, got[1].Type)
	require.Len(t, got[1].Turns, 2)
	require.Equal(t, types.EventExport, got[2].Type)
	require.True(t, got[2].Export.OK)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]string{"token": "garbage"}))
	var ev types.ChatEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, types.EventError, ev.Type)

	_, _, err = conn.Read(ctx)
	require.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

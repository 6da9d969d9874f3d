package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"essaycoach/coach/sources/storage"
	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/types"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects    map[string][]byte
	uploads    []string
	uploadErr  error
	publishErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Upload(ctx context.Context, localPath, remoteKey string) (storage.Object, error) {
	if f.uploadErr != nil {
		return storage.Object{}, f.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return storage.Object{}, err
	}
	f.objects[remoteKey] = data
	f.uploads = append(f.uploads, remoteKey)
	return storage.Object{Bucket: "test", Key: remoteKey, Size: int64(len(data))}, nil
}

func (f *fakeStore) PublishPublic(ctx context.Context, obj storage.Object) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	return "https://cdn.example.com/test/" + obj.Key, nil
}

var who = types.Identity{UID: "u-123", Email: "jo.doe@example.com"}

// fixture returns an annotator whose clock advances by step on every read.
func fixture(t *testing.T, start time.Time, step time.Duration) *transcript.Annotator {
	t.Helper()
	cur := start
	a, err := transcript.NewAnnotator("Europe/London", func() time.Time {
		now := cur
		cur = cur.Add(step)
		return now
	})
	require.NoError(t, err)
	return a
}

func seeded(a *transcript.Annotator) []transcript.Turn {
	return []transcript.Turn{
		a.NewTurn(transcript.RoleSystem, "You are a tutor. Never write the essay."),
		a.NewTurn(transcript.RoleAssistant, "Hi there! Ready to start your essay?"),
	}
}

func readUploaded(t *testing.T, store *fakeStore, key string) []Row {
	t.Helper()
	data, ok := store.objects[key]
	require.True(t, ok, "no object at %s", key)
	rows, err := ReadCSV(bytes.NewReader(data))
	require.NoError(t, err)
	return rows
}

func TestFileNaming(t *testing.T) {
	at := time.Date(2024, 2, 1, 9, 5, 59, 0, time.UTC)
	require.Equal(t, "jo_doe_example_com", SanitizeEmail("jo.doe@example.com"))
	name := FileName("jo.doe@example.com", at)
	require.Equal(t, "jo_doe_example_com_0905_chat_log.csv", name)
	require.Equal(t, "chat_logs/u-123_jo_doe_example_com_0905_chat_log.csv", RemoteKey("u-123", name))
}

func TestExportSeedOnlyTranscript(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	store := newFakeStore()
	exp := New(store, a, t.TempDir(), false)

	res, err := exp.Export(context.Background(), who, seeded(a))
	require.NoError(t, err)
	require.Equal(t, 1, res.Rows)
	require.Equal(t, "https://cdn.example.com/test/"+res.ObjectKey, res.URL)

	rows := readUploaded(t, store, res.ObjectKey)
	require.Len(t, rows, 1)
	require.Equal(t, "assistant", rows[0].Role)
	require.Equal(t, "", rows[0].ResponseTime)
}

func TestExportAfterOneInteraction(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), 7*time.Second)
	turns := seeded(a)
	turns = append(turns,
		a.NewTurn(transcript.RoleUser, "Climate change"),
		a.NewTurn(transcript.RoleAssistant, "Great choice, what angle interests you?"),
	)
	store := newFakeStore()
	exp := New(store, a, t.TempDir(), false)

	res, err := exp.Export(context.Background(), who, turns)
	require.NoError(t, err)

	rows := readUploaded(t, store, res.ObjectKey)
	require.Len(t, rows, len(turns)-1)
	require.Equal(t, "", rows[0].ResponseTime)
	for _, r := range rows[1:] {
		secs, err := strconv.Atoi(r.ResponseTime)
		require.NoError(t, err)
		require.Equal(t, 7, secs)
	}
	for _, r := range rows {
		require.NotEqual(t, "system", r.Role)
	}
}

func TestExportRoundTrip(t *testing.T) {
	a := fixture(t, time.Date(2024, 6, 1, 23, 59, 58, 0, time.UTC), time.Second)
	turns := seeded(a)
	turns = append(turns,
		a.NewTurn(transcript.RoleUser, "My draft: \"Cities, towns,\nand villages\" all differ."),
		a.NewTurn(transcript.RoleAssistant, "- Clarify the thesis\n- Add a hook, perhaps?"),
	)
	store := newFakeStore()
	res, err := New(store, a, t.TempDir(), false).Export(context.Background(), who, turns)
	require.NoError(t, err)

	rows := readUploaded(t, store, res.ObjectKey)
	visible := transcript.WithoutSystem(turns)
	require.Len(t, rows, len(visible))
	for i, r := range rows {
		require.Equal(t, visible[i].Content, r.Content)
		require.Equal(t, visible[i].Length, r.Length)
		require.Equal(t, transcript.WordCount(r.Content), r.Length)
		require.Equal(t, visible[i].Timestamp, r.Date+" "+r.Time)
	}
}

func TestExportKeepsUserTurnWithoutReply(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	turns := append(seeded(a), a.NewTurn(transcript.RoleUser, "Climate change"))
	store := newFakeStore()

	res, err := New(store, a, t.TempDir(), false).Export(context.Background(), who, turns)
	require.NoError(t, err)
	rows := readUploaded(t, store, res.ObjectKey)
	require.Len(t, rows, 2)
	require.Equal(t, "user", rows[1].Role)
	require.Equal(t, "Climate change", rows[1].Content)
}

func TestExportSameMinuteOverwrites(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	turns := seeded(a)
	dir := t.TempDir()
	store := newFakeStore()
	exp := New(store, a, dir, true)

	first, err := exp.Export(context.Background(), who, turns)
	require.NoError(t, err)
	firstBody := store.objects[first.ObjectKey]

	second, err := exp.Export(context.Background(), who, turns)
	require.NoError(t, err)

	require.Equal(t, first.ObjectKey, second.ObjectKey)
	require.Equal(t, []string{first.ObjectKey, first.ObjectKey}, store.uploads)
	require.Equal(t, firstBody, store.objects[second.ObjectKey])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "same-minute exports share one local file")
	local, err := os.ReadFile(second.LocalPath)
	require.NoError(t, err)
	require.Equal(t, firstBody, local)
}

func TestExportRemovesLocalFileByDefault(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	dir := t.TempDir()

	res, err := New(newFakeStore(), a, dir, false).Export(context.Background(), who, seeded(a))
	require.NoError(t, err)
	require.Empty(t, res.LocalPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExportUploadFailure(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	dir := t.TempDir()
	store := newFakeStore()
	store.uploadErr = errors.New("connection refused")

	_, err := New(store, a, dir, false).Export(context.Background(), who, seeded(a))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindExport))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "failed exports leave the local file for inspection")
}

func TestExportPublishFailure(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	store := newFakeStore()
	store.publishErr = errors.New("access denied")

	_, err := New(store, a, t.TempDir(), false).Export(context.Background(), who, seeded(a))
	require.True(t, apperr.Is(err, apperr.KindExport))
}

func TestExportWriteFailure(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	store := newFakeStore()

	_, err := New(store, a, blocker, false).Export(context.Background(), who, seeded(a))
	require.True(t, apperr.Is(err, apperr.KindExport))
	require.Empty(t, store.uploads)
}

func TestBuildRowsStampsUnstampedTurns(t *testing.T) {
	a := fixture(t, time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC), time.Second)
	rows, err := BuildRows([]transcript.Turn{
		{Role: transcript.RoleSystem, Content: "hidden"},
		{Role: transcript.RoleAssistant, Content: "two words"},
	}, a)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 2, rows[0].Length)
	require.Equal(t, "2024-01-10", rows[0].Date)
}

func TestReadCSVRejectsForeignHeader(t *testing.T) {
	_, err := ReadCSV(bytes.NewBufferString("a,b,c,d,e,f\n"))
	require.Error(t, err)
}

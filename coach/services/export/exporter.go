// Package export writes a session transcript to a CSV chat log and
// publishes it to object storage.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"essaycoach/coach/sources/storage"
	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/types"

	"go.uber.org/zap"
)

// RemotePrefix is the folder every chat log is published under.
const RemotePrefix = "chat_logs"

// Store is the durable object store the logs are published to.
type Store interface {
	Upload(ctx context.Context, localPath, remoteKey string) (storage.Object, error)
	PublishPublic(ctx context.Context, obj storage.Object) (string, error)
}

type Result struct {
	FileName  string    `json:"file_name"`
	ObjectKey string    `json:"object_key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	LocalPath string    `json:"-"`
	At        time.Time `json:"at"`
}

type Exporter struct {
	store     Store
	annotator *transcript.Annotator
	dir       string
	keepLocal bool
}

// New returns an Exporter writing its local files into dir. With keepLocal
// unset, the local file is removed once it has been published.
func New(store Store, annotator *transcript.Annotator, dir string, keepLocal bool) *Exporter {
	return &Exporter{store: store, annotator: annotator, dir: dir, keepLocal: keepLocal}
}

// SanitizeEmail makes an email address safe for a file name.
func SanitizeEmail(email string) string {
	return strings.NewReplacer("@", "_", ".", "_").Replace(email)
}

// FileName is deterministic per user and minute: two exports in the same
// minute share it and the later one overwrites the earlier.
func FileName(email string, at time.Time) string {
	return fmt.Sprintf("%s_%s_chat_log.csv", SanitizeEmail(email), at.Format("1504"))
}

func RemoteKey(uid, fileName string) string {
	return fmt.Sprintf("%s/%s_%s", RemotePrefix, uid, fileName)
}

// Export rewrites the user's chat log from turns and publishes it.
func (e *Exporter) Export(ctx context.Context, who types.Identity, turns []transcript.Turn) (*Result, error) {
	defer logging.LogDuration(ctx, "export_chat_log")()

	rows, err := BuildRows(turns, e.annotator)
	if err != nil {
		return nil, apperr.Export("build rows", err)
	}

	now := e.annotator.Now()
	name := FileName(who.Email, now)
	local := filepath.Join(e.dir, name)
	if err := writeFile(local, rows); err != nil {
		logging.ErrorLogger.Error("chat log write failed", zap.String("path", local), zap.Error(err))
		return nil, apperr.Export("write", err)
	}

	key := RemoteKey(who.UID, name)
	obj, err := e.store.Upload(ctx, local, key)
	if err != nil {
		logging.ErrorLogger.Error("chat log upload failed", zap.String("key", key), zap.Error(err))
		return nil, apperr.Export("upload", err)
	}
	url, err := e.store.PublishPublic(ctx, obj)
	if err != nil {
		logging.ErrorLogger.Error("chat log publish failed", zap.String("key", key), zap.Error(err))
		return nil, apperr.Export("publish", err)
	}

	res := &Result{FileName: name, ObjectKey: obj.Key, URL: url, Rows: len(rows), At: now}
	if e.keepLocal {
		res.LocalPath = local
	} else if err := os.Remove(local); err != nil {
		logging.AppLogger.Warn("could not remove local chat log", zap.String("path", local), zap.Error(err))
	}
	logging.AppLogger.Info("chat log published",
		zap.String("uid", who.UID),
		zap.String("key", obj.Key),
		zap.Int("rows", len(rows)),
	)
	return res, nil
}

func writeFile(path string, rows []Row) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteCSV(f, rows)
}

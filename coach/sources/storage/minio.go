package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"essaycoach/coach/config"
	"essaycoach/coach/utils/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/policy"
	"github.com/minio/minio-go/v7/pkg/set"
	"go.uber.org/zap"
)

// Object identifies an uploaded artifact.
type Object struct {
	Bucket string
	Key    string
	ETag   string
	Size   int64
}

type MinIOClient struct {
	client     *minio.Client
	bucket     string
	publicBase string

	mu         sync.Mutex
	publicDirs map[string]bool
}

func NewMinIOClient(ctx context.Context, cfg config.Config) (*MinIOClient, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOUseSSL,
		},
	)
	if err != nil {
		return nil, err
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logging.AppLogger.Info("created bucket", zap.String("bucket", bucket))
	}

	base := cfg.MinIOPublicURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	return &MinIOClient{
		client:     client,
		bucket:     bucket,
		publicBase: base,
		publicDirs: map[string]bool{},
	}, nil
}

// Upload copies the local file at localPath to remoteKey, overwriting any
// object already stored there.
func (m *MinIOClient) Upload(ctx context.Context, localPath, remoteKey string) (Object, error) {
	defer logging.LogDuration(ctx, "minio_upload")()

	info, err := m.client.FPutObject(ctx, m.bucket, remoteKey, localPath, minio.PutObjectOptions{ContentType: contentType(remoteKey)})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", remoteKey, err)
	}
	return Object{Bucket: info.Bucket, Key: info.Key, ETag: info.ETag, Size: info.Size}, nil
}

// PublishPublic grants anonymous read on the object's folder and returns the
// URL it can be fetched from.
func (m *MinIOClient) PublishPublic(ctx context.Context, obj Object) (string, error) {
	dir := path.Dir(obj.Key)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.publicDirs[dir] {
		dirs := []string{dir}
		for d := range m.publicDirs {
			dirs = append(dirs, d)
		}
		doc, err := publicReadPolicy(m.bucket, dirs)
		if err != nil {
			return "", err
		}
		if err := m.client.SetBucketPolicy(ctx, m.bucket, doc); err != nil {
			return "", fmt.Errorf("publish %s: %w", obj.Key, err)
		}
		m.publicDirs[dir] = true
	}
	return objectURL(m.publicBase, m.bucket, obj.Key)
}

const awsResourcePrefix = "arn:aws:s3:::"

// publicReadPolicy grants anonymous GetObject under each dir. Listing stays
// private: keys carry user emails.
func publicReadPolicy(bucket string, dirs []string) (string, error) {
	resources := set.NewStringSet()
	for _, d := range dirs {
		resources.Add(fmt.Sprintf("%s%s/%s/*", awsResourcePrefix, bucket, strings.Trim(d, "/")))
	}
	b, err := json.Marshal(policy.BucketAccessPolicy{
		Version: "2012-10-17",
		Statements: []policy.Statement{{
			Effect:    "Allow",
			Principal: policy.User{AWS: set.CreateStringSet("*")},
			Actions:   set.CreateStringSet("s3:GetObject"),
			Resources: resources,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encode bucket policy: %w", err)
	}
	return string(b), nil
}

func objectURL(base, bucket, key string) (string, error) {
	u, err := url.JoinPath(base, bucket, key)
	if err != nil {
		return "", fmt.Errorf("build object url: %w", err)
	}
	return u, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}

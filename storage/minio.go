package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"albumapi/config"
	"albumapi/logger"
	"albumapi/model"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const snapshotPrefix = "snapshots/"

// Snapshot is the document written by the backup command.
type Snapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	AlbumCount  int            `json:"album_count"`
	TrackCount  int            `json:"track_count"`
	Albums      []*model.Album `json:"albums"`
}

// NewSnapshot summarises albums as of now.
func NewSnapshot(albums []*model.Album, now time.Time) *Snapshot {
	s := &Snapshot{GeneratedAt: now.UTC(), AlbumCount: len(albums), Albums: albums}
	if s.Albums == nil {
		s.Albums = []*model.Album{}
	}
	for _, a := range albums {
		s.TrackCount += len(a.Tracks)
	}
	return s
}

// ObjectName returns a unique object key for a snapshot taken at t.
func ObjectName(t time.Time) string {
	return fmt.Sprintf(snapshotPrefix+"%s-%s.json", t.UTC().Format("20060102T150405Z"), uuid.NewString())
}

// objectStore is the part of *minio.Client the snapshot store uses.
type objectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// SnapshotStore uploads snapshots to a bucket and lists them.
type SnapshotStore struct {
	client objectStore
	bucket string
}

// NewSnapshotStore 初始化 MinIO 客户端 and makes sure the bucket exists.
func NewSnapshotStore(ctx context.Context, cfg *config.Config) (*SnapshotStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("Created MinIO bucket", logger.String("bucket", cfg.MinioBucket))
	}

	return &SnapshotStore{client: client, bucket: cfg.MinioBucket}, nil
}

// Put writes snap as JSON and returns the object name.
func (s *SnapshotStore) Put(ctx context.Context, snap *Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := ObjectName(snap.GeneratedAt)
	info, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot %s: %w", name, err)
	}

	logger.Info("Snapshot uploaded",
		logger.String("bucket", s.bucket),
		logger.String("object", name),
		logger.Int64("size", info.Size),
		logger.Int("albums", snap.AlbumCount),
	)
	return name, nil
}

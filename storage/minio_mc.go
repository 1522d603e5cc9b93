package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ObjectInfo 快照文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// List returns the stored snapshots, newest first.
func (s *SnapshotStore) List(ctx context.Context) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    snapshotPrefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list snapshots in %s: %w", s.bucket, object.Err)
		}

		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}

		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ETag:         object.ETag,
		})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, stats, nil
}

// PrintSnapshots 打印快照列表
func PrintSnapshots(w io.Writer, bucket string, objects []ObjectInfo, stats *BucketStats) {
	fmt.Fprintf(w, "Bucket: %s\n", bucket)
	fmt.Fprintf(w, "Snapshots: %d (%s)\n", stats.TotalObjects, formatSize(stats.TotalSize))
	if stats.TotalObjects == 0 {
		return
	}
	fmt.Fprintf(w, "Last updated: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
	for _, obj := range objects {
		fmt.Fprintf(w, "  ├─ %s  %s  %s\n", obj.Key, formatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

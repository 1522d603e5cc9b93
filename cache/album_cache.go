package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"albumapi/logger"
	"albumapi/model"

	"github.com/go-redis/redis/v8"
)

const albumListKey = "album:list"

// GetAlbumKey 根据专辑ID生成Redis键
func GetAlbumKey(albumID int64) string {
	return fmt.Sprintf("album:%d", albumID)
}

// AlbumCache 专辑缓存
// Lookups report a miss on any error; the store stays the source of truth.
// A read that misses can write back a stale entry after a concurrent write has
// invalidated it. Such an entry lives until its TTL expires.
type AlbumCache interface {
	GetAlbum(ctx context.Context, id int64) (*model.Album, bool)
	SetAlbum(ctx context.Context, album *model.Album)
	GetAlbumList(ctx context.Context) ([]*model.Album, bool)
	SetAlbumList(ctx context.Context, albums []*model.Album)
	// Invalidate drops the given albums and the album list.
	Invalidate(ctx context.Context, ids ...int64)
}

// RedisAlbumCache 基于Redis的专辑缓存
type RedisAlbumCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAlbumCache(client *redis.Client, ttl time.Duration) *RedisAlbumCache {
	return &RedisAlbumCache{client: client, ttl: ttl}
}

func (c *RedisAlbumCache) GetAlbum(ctx context.Context, id int64) (*model.Album, bool) {
	var album model.Album
	if !c.get(ctx, GetAlbumKey(id), &album) {
		return nil, false
	}
	return &album, true
}

func (c *RedisAlbumCache) SetAlbum(ctx context.Context, album *model.Album) {
	c.set(ctx, GetAlbumKey(album.ID), album)
}

func (c *RedisAlbumCache) GetAlbumList(ctx context.Context) ([]*model.Album, bool) {
	var albums []*model.Album
	if !c.get(ctx, albumListKey, &albums) {
		return nil, false
	}
	return albums, true
}

func (c *RedisAlbumCache) SetAlbumList(ctx context.Context, albums []*model.Album) {
	c.set(ctx, albumListKey, albums)
}

func (c *RedisAlbumCache) Invalidate(ctx context.Context, ids ...int64) {
	keys := []string{albumListKey}
	for _, id := range ids {
		keys = append(keys, GetAlbumKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("Failed to invalidate album cache",
			logger.Any("keys", keys),
			logger.ErrorField(err),
		)
	}
}

func (c *RedisAlbumCache) get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Failed to read album cache", logger.String("key", key), logger.ErrorField(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		logger.Warn("Failed to decode album cache entry", logger.String("key", key), logger.ErrorField(err))
		return false
	}
	return true
}

func (c *RedisAlbumCache) set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode album cache entry", logger.String("key", key), logger.ErrorField(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to write album cache", logger.String("key", key), logger.ErrorField(err))
	}
}

// NopAlbumCache 未启用Redis时使用
type NopAlbumCache struct{}

func (NopAlbumCache) GetAlbum(context.Context, int64) (*model.Album, bool) {
	return nil, false
}

func (NopAlbumCache) SetAlbum(context.Context, *model.Album) {}

func (NopAlbumCache) GetAlbumList(context.Context) ([]*model.Album, bool) {
	return nil, false
}

func (NopAlbumCache) SetAlbumList(context.Context, []*model.Album) {}

func (NopAlbumCache) Invalidate(context.Context, ...int64) {}

package repository

import (
	"context"
	"errors"

	"albumapi/model"

	"gorm.io/gorm"
)

// TrackRepository 定义歌曲相关的数据库操作接口
// Nested writes through an album go through the reconciler instead.
type TrackRepository interface {
	List(ctx context.Context) ([]*model.Track, error)
	GetByID(ctx context.Context, id int64) (*model.Track, error)
	Create(ctx context.Context, track *model.Track) error
	// Update 更新歌曲
	// Writes columns to the track and returns the stored row.
	Update(ctx context.Context, id int64, columns map[string]interface{}) (*model.Track, error)
	Delete(ctx context.Context, id int64) (bool, error)
	AlbumExists(ctx context.Context, albumID int64) (bool, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 歌曲仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) List(ctx context.Context) ([]*model.Track, error) {
	var tracks []*model.Track
	if err := r.db.WithContext(ctx).Order("id").Find(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// GetByID 根据ID获取歌曲
// Returns nil, nil when the track does not exist.
func (r *gormTrackRepository) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).First(&track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Create(track).Error
}

func (r *gormTrackRepository) Update(ctx context.Context, id int64, columns map[string]interface{}) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&track, id).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		if err := tx.Model(&track).Updates(columns).Error; err != nil {
			return err
		}
		return tx.First(&track, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

func (r *gormTrackRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Track{}, id)
	return res.RowsAffected > 0, res.Error
}

func (r *gormTrackRepository) AlbumExists(ctx context.Context, albumID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Album{}).
		Where("id = ?", albumID).
		Count(&count).Error
	return count > 0, err
}

package repository

import (
	"context"
	"errors"

	"albumapi/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlbumRepository 定义专辑相关的数据库操作接口
type AlbumRepository interface {
	// List 获取所有专辑及其歌曲
	List(ctx context.Context) ([]*model.Album, error)

	// GetByID 根据ID获取专辑及其歌曲
	// Returns nil, nil if the album does not exist.
	GetByID(ctx context.Context, id int64) (*model.Album, error)

	// Delete 删除专辑及其歌曲
	// Reports false if the album does not exist.
	Delete(ctx context.Context, id int64) (bool, error)
}

// gormAlbumRepository GORM 实现
type gormAlbumRepository struct {
	db *gorm.DB
}

// NewGormAlbumRepository 创建 GORM 专辑仓库
func NewGormAlbumRepository(db *gorm.DB) AlbumRepository {
	return &gormAlbumRepository{db: db}
}

// TrackOrder 歌曲排序
// Tracks are sorted by their position, then by id.
func TrackOrder(db *gorm.DB) *gorm.DB {
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
}

func (r *gormAlbumRepository) List(ctx context.Context) ([]*model.Album, error) {
	var albums []*model.Album
	err := r.db.WithContext(ctx).
		Preload("Tracks", TrackOrder).
		Order("id").
		Find(&albums).Error
	if err != nil {
		return nil, err
	}
	return albums, nil
}

func (r *gormAlbumRepository) GetByID(ctx context.Context, id int64) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).
		Preload("Tracks", TrackOrder).
		First(&album, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &album, nil
}

// Delete 删除专辑
// The album's tracks are removed explicitly as well, so the cascade holds
// even on tables migrated without the foreign key constraint.
func (r *gormAlbumRepository) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("album_id = ?", id).Delete(&model.Track{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Album{}, id)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}

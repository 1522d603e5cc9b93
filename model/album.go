package model

import "encoding/json"

// Album is the parent record of the catalogue.
type Album struct {
	ID        int64   `gorm:"primaryKey;autoIncrement" json:"id" mapstructure:"id"`
	AlbumName string  `gorm:"size:100;not null" json:"album_name" mapstructure:"album_name"`
	Artist    string  `gorm:"size:100;not null" json:"artist" mapstructure:"artist"`
	Tracks    []Track `gorm:"foreignKey:AlbumID;constraint:OnDelete:CASCADE" json:"tracks" mapstructure:"-"`
}

// TableName explicitly sets the table name for GORM.
func (Album) TableName() string {
	return "albums"
}

func (a *Album) PrimaryKey() int64 {
	return a.ID
}

// MarshalJSON always renders tracks as a list, never null.
func (a Album) MarshalJSON() ([]byte, error) {
	type album Album
	if a.Tracks == nil {
		a.Tracks = []Track{}
	}
	return json.Marshal(album(a))
}

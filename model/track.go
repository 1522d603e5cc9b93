package model

// Track is a song on an album. AlbumID is assigned by the server and never
// accepted from a client payload.
type Track struct {
	ID       int64   `gorm:"primaryKey;autoIncrement" json:"id" mapstructure:"id"`
	Order    int64   `gorm:"column:order;not null" json:"order" mapstructure:"order"`
	Title    string  `gorm:"size:100;not null" json:"title" mapstructure:"title"`
	Duration float64 `gorm:"not null" json:"duration" mapstructure:"duration"`
	AlbumID  int64   `gorm:"not null;index" json:"album" mapstructure:"album"`
}

// TableName explicitly sets the table name for GORM.
func (Track) TableName() string {
	return "tracks"
}

func (t *Track) PrimaryKey() int64 {
	return t.ID
}
